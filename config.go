package changefs

import (
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

// Config holds the environment-tunable knobs for this package's watchers.
// Loaded the same way the teacher's filekit.Config is: via beaver-kit's
// struct-tag env binder, with a package-specific prefix.
type Config struct {
	// PollingInterval is the default tick period for PollingFileWatcher.
	// Floored to PollingIntervalFloor regardless of what's configured.
	PollingInterval time.Duration `env:"CHANGEFS_POLLING_INTERVAL,default:4s"`

	// EagerEnable, if true, enables the physical watcher's underlying OS
	// watcher as soon as it's constructed instead of waiting for the first
	// registered filter. Mostly useful to avoid the first Watch call
	// paying the enable latency.
	EagerEnable bool `env:"CHANGEFS_EAGER_ENABLE,default:false"`

	// FileInfoCacheSize and DirectoryCacheSize bound the two LRU caches a
	// CachingFileProvider keeps.
	FileInfoCacheSize  int `env:"CHANGEFS_FILE_INFO_CACHE_SIZE,default:4096"`
	DirectoryCacheSize int `env:"CHANGEFS_DIRECTORY_CACHE_SIZE,default:1024"`
}

// PollingIntervalFloor is the minimum tick period PollingFileWatcher will
// honor, per spec.md §4.6, regardless of configuration.
const PollingIntervalFloor = 500 * time.Millisecond

// GetConfig returns Config loaded from the environment.
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	if cfg.PollingInterval < PollingIntervalFloor {
		cfg.PollingInterval = PollingIntervalFloor
	}
	return cfg, nil
}
