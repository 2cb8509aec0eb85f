package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const envPrefix = "STOREFRONT"

// Loader reads the YAML config, the optional per-environment overlay and
// STOREFRONT_* environment variables
type Loader struct {
	v *viper.Viper

	mu      sync.RWMutex
	current *Config
}

// envKeys lists the keys that can be set from the environment even when the
// config file omits them
var envKeys = []string{
	"server.port", "server.mode",
	"database.host", "database.port", "database.username", "database.password", "database.dbname",
	"redis.host", "redis.port", "redis.password",
	"log.level", "log.format",
	"security.jwt.secret",
	"tracing.enabled", "tracing.endpoint",
	"notification.max_favorites_per_check",
	"order.node_id",
}

// NewLoader prepares a loader. An empty configPath searches ./configs and
// /etc/storefront for config.yaml.
func NewLoader(configPath string) *Loader {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("/etc/storefront")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	return &Loader{v: v}
}

// Load reads every source, applies defaults and validates
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if used := l.v.ConfigFileUsed(); used != "" {
		overlay := filepath.Join(filepath.Dir(used), fmt.Sprintf("config.%s.yaml", Env()))
		if _, err := os.Stat(overlay); err == nil {
			l.v.SetConfigFile(overlay)
			err := l.v.MergeInConfig()
			l.v.SetConfigFile(used)
			if err != nil {
				return nil, fmt.Errorf("failed to merge %s: %w", overlay, err)
			}
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully loaded config
func (l *Loader) Current() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// ConfigFileUsed returns the base file path, empty when running on env only
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Watch reloads on file change and hands the new config to onChange.
// Invalid edits are reported through onError and the previous config stays current.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		cfg, err := l.Load()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

// Load is a shortcut for NewLoader(configPath).Load()
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// Env returns STOREFRONT_ENV, "dev" when unset
func Env() string {
	if env := os.Getenv(envPrefix + "_ENV"); env != "" {
		return env
	}
	return "dev"
}

// IsProduction returns true if running in production mode
func IsProduction() bool {
	env := Env()
	return env == "prod" || env == "production"
}
