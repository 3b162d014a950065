package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "CLIPD"
	defaultHTTPAddress     = "127.0.0.1:7233"
	defaultDatabasePath    = "clipd.db"
	defaultCacheDir        = "cache"
	defaultLogLevel        = "info"
	defaultPollIntervalMS  = 500
	defaultSelfWriteMS     = 300
	defaultDedupWindowSecs = 2.0
	defaultDedupCapacity   = 20
	defaultCacheMaxEntries = 256
	defaultCacheMaxBytes   = 64 << 20
	defaultColorStrategy   = "average"
)

// AppConfig captures runtime configuration for the daemon. Every component
// receives the options it needs at construction; nothing reads ambient
// global state.
type AppConfig struct {
	HTTPAddress         string
	DatabasePath        string
	CacheDir            string
	LogLevel            string
	PollInterval        time.Duration
	SelfWriteGrace      time.Duration
	DedupWindow         time.Duration
	DedupCapacity       int
	ExcludedBundleIDs   []string
	EnableLinkEnrich    bool
	ColorStrategy       string
	CacheMaxEntries     int
	CacheMaxBytes       int64
	DeleteLockedOnPurge bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("cache.dir", defaultCacheDir)
	configViper.SetDefault("cache.max_entries", defaultCacheMaxEntries)
	configViper.SetDefault("cache.max_bytes", defaultCacheMaxBytes)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("poll.interval_ms", defaultPollIntervalMS)
	configViper.SetDefault("poll.self_write_grace_ms", defaultSelfWriteMS)
	configViper.SetDefault("dedup.window_seconds", defaultDedupWindowSecs)
	configViper.SetDefault("dedup.capacity", defaultDedupCapacity)
	configViper.SetDefault("exclude.bundle_ids", []string{})
	configViper.SetDefault("enrich.links", true)
	configViper.SetDefault("color.strategy", defaultColorStrategy)
	configViper.SetDefault("retention.delete_locked_on_purge", false)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:         configViper.GetString("http.address"),
		DatabasePath:        configViper.GetString("database.path"),
		CacheDir:            configViper.GetString("cache.dir"),
		LogLevel:            configViper.GetString("log.level"),
		PollInterval:        time.Duration(configViper.GetInt("poll.interval_ms")) * time.Millisecond,
		SelfWriteGrace:      time.Duration(configViper.GetInt("poll.self_write_grace_ms")) * time.Millisecond,
		DedupWindow:         time.Duration(configViper.GetFloat64("dedup.window_seconds") * float64(time.Second)),
		DedupCapacity:       configViper.GetInt("dedup.capacity"),
		ExcludedBundleIDs:   configViper.GetStringSlice("exclude.bundle_ids"),
		EnableLinkEnrich:    configViper.GetBool("enrich.links"),
		ColorStrategy:       configViper.GetString("color.strategy"),
		CacheMaxEntries:     configViper.GetInt("cache.max_entries"),
		CacheMaxBytes:       configViper.GetInt64("cache.max_bytes"),
		DeleteLockedOnPurge: configViper.GetBool("retention.delete_locked_on_purge"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll.interval_ms must be positive")
	}
	if c.SelfWriteGrace < 0 {
		return fmt.Errorf("poll.self_write_grace_ms must not be negative")
	}
	if c.DedupWindow <= 0 {
		return fmt.Errorf("dedup.window_seconds must be positive")
	}
	return nil
}
