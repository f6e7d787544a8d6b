package changefs

import (
	"context"
	"sync"
)

// CombinedFileProvider fans a Watch call out across N underlying providers
// and merges their GetFileInfo/GetDirectoryContents results. It is the
// aggregating provider of spec.md §4.7 - the Go analogue of ASP.NET Core's
// CompositeFileProvider, generalized here from the teacher's MountManager
// (which routed by virtual path prefix; this instead always queries every
// provider, since a combined provider has no notion of mount points).
type CombinedFileProvider struct {
	providers []FileProvider
}

// NewCombinedFileProvider wraps providers, queried in the given order.
func NewCombinedFileProvider(providers ...FileProvider) *CombinedFileProvider {
	cp := make([]FileProvider, len(providers))
	copy(cp, providers)
	return &CombinedFileProvider{providers: cp}
}

// Providers returns a copy of the underlying provider list.
func (c *CombinedFileProvider) Providers() []FileProvider {
	out := make([]FileProvider, len(c.providers))
	copy(out, c.providers)
	return out
}

// GetFileInfo returns the first provider's result whose Exists is true,
// queried in provider order; otherwise NotFoundFileInfo.
func (c *CombinedFileProvider) GetFileInfo(ctx context.Context, subpath string) (FileInfo, error) {
	for _, p := range c.providers {
		info, err := p.GetFileInfo(ctx, subpath)
		if err != nil {
			return FileInfo{}, err
		}
		if info.Exists {
			return info, nil
		}
	}
	return NotFoundFileInfo, nil
}

// GetDirectoryContents concatenates entries from every provider whose
// directory exists, deduplicating by entry name (first occurrence wins).
// The result's Exists bit is true if any provider reported an existing
// directory, even if all of them were empty.
func (c *CombinedFileProvider) GetDirectoryContents(ctx context.Context, subpath string) (DirectoryContents, error) {
	var result DirectoryContents
	seen := make(map[string]bool)

	for _, p := range c.providers {
		contents, err := p.GetDirectoryContents(ctx, subpath)
		if err != nil {
			return DirectoryContents{}, err
		}
		if !contents.Exists {
			continue
		}
		result.Exists = true
		for _, entry := range contents.Entries {
			if seen[entry.Name] {
				continue
			}
			seen[entry.Name] = true
			result.Entries = append(result.Entries, entry)
		}
	}

	return result, nil
}

// Watch calls Watch(filter) on every underlying provider, keeps the ones
// whose result has ActiveChangeCallbacks() true, and wraps the survivors in
// a CombinedChangeToken. If nothing yields an active token, Watch returns
// the shared no-op token.
func (c *CombinedFileProvider) Watch(ctx context.Context, filter string) (ChangeToken, error) {
	var active []ChangeToken

	for _, p := range c.providers {
		token, err := p.Watch(ctx, filter)
		if err != nil {
			return nil, err
		}
		if token != nil && token.ActiveChangeCallbacks() {
			active = append(active, token)
		}
	}

	if len(active) == 0 {
		return NeverChangeToken{}, nil
	}

	return NewCombinedChangeToken(active...), nil
}

// CombinedChangeToken aggregates an ordered set of inner tokens under a
// single ChangeToken contract: HasChanged is the logical OR of the inner
// tokens, and a registered callback subscribes to every inner token whose
// ActiveChangeCallbacks is true (spec.md §4.7 - registering on tokens that
// will never fire would just leak callbacks).
type CombinedChangeToken struct {
	tokens []ChangeToken
}

// NewCombinedChangeToken combines tokens. Tokens whose ActiveChangeCallbacks
// is false still count toward HasChanged, they are just never subscribed.
func NewCombinedChangeToken(tokens ...ChangeToken) *CombinedChangeToken {
	cp := make([]ChangeToken, len(tokens))
	copy(cp, tokens)
	return &CombinedChangeToken{tokens: cp}
}

func (c *CombinedChangeToken) HasChanged() bool {
	for _, t := range c.tokens {
		if t.HasChanged() {
			return true
		}
	}
	return false
}

func (c *CombinedChangeToken) ActiveChangeCallbacks() bool {
	for _, t := range c.tokens {
		if t.ActiveChangeCallbacks() {
			return true
		}
	}
	return false
}

// RegisterChangeCallback registers callback on every inner token that
// supports active callbacks. The returned unregister function releases
// each inner subscription in order; it is safe to call concurrently with
// firing (CancellationSource.Register already handles that race).
func (c *CombinedChangeToken) RegisterChangeCallback(callback func()) (unregister func()) {
	var unregisters []func()

	for _, t := range c.tokens {
		if !t.ActiveChangeCallbacks() {
			continue
		}
		unregisters = append(unregisters, t.RegisterChangeCallback(callback))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for _, u := range unregisters {
				u()
			}
		})
	}
}

var (
	_ FileProvider = (*CombinedFileProvider)(nil)
	_ ChangeToken  = (*CombinedChangeToken)(nil)
)
