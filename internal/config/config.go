package config

import (
	"fmt"
	"time"
)

// Config represents the global configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Log          LogConfig          `mapstructure:"log"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Tracing      TracingConfig      `mapstructure:"tracing"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Security     SecurityConfig     `mapstructure:"security"`
	Notification NotificationConfig `mapstructure:"notification"`
	Order        OrderConfig        `mapstructure:"order"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderMB    int           `mapstructure:"max_header_mb"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	Loc             string        `mapstructure:"loc"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig represents Redis configuration
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// QueueConfig in-process event queue
type QueueConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// TracingConfig represents tracing configuration
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// LimitRule token bucket parameters
type LimitRule struct {
	RPS   float64       `mapstructure:"rps"`
	Burst int           `mapstructure:"burst"`
	TTL   time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig represents rate limiting configuration
type RateLimitConfig struct {
	Enabled bool      `mapstructure:"enabled"`
	Global  LimitRule `mapstructure:"global"`
	PerIP   LimitRule `mapstructure:"per_ip"`
	// PriceCheck bounds POST /notifications/check per user
	PriceCheck LimitRule `mapstructure:"price_check"`
}

// JWTConfig token settings
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expire     time.Duration `mapstructure:"expire"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
	Issuer     string        `mapstructure:"issuer"`
}

// CORSConfig cross-origin settings
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AllowOrigins     []string      `mapstructure:"allow_origins"`
	AllowMethods     []string      `mapstructure:"allow_methods"`
	AllowHeaders     []string      `mapstructure:"allow_headers"`
	ExposeHeaders    []string      `mapstructure:"expose_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	JWT              JWTConfig     `mapstructure:"jwt"`
	CORS             CORSConfig    `mapstructure:"cors"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LoginLockout     time.Duration `mapstructure:"login_lockout"`
	AdminEmails      []string      `mapstructure:"admin_emails"`
}

// NotificationConfig price-drop detector settings
type NotificationConfig struct {
	MaxFavoritesPerCheck int           `mapstructure:"max_favorites_per_check"`
	Locale               string        `mapstructure:"locale"`
	CurrencySymbol       string        `mapstructure:"currency_symbol"`
	CheckLockTTL         time.Duration `mapstructure:"check_lock_ttl"`
	// AsyncPriceDrop routes price-change side effects through the queue
	AsyncPriceDrop bool `mapstructure:"async_price_drop"`
}

// OrderConfig checkout settings
type OrderConfig struct {
	NodeID int64 `mapstructure:"node_id"`
}

// GetAddr returns the server address
func (s ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetDSN returns the database DSN
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=true&loc=%s&timeout=10s&readTimeout=30s&writeTimeout=30s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.Loc)
}

// GetAddr returns the Redis address
func (r RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}
	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if c.Notification.MaxFavoritesPerCheck <= 0 {
		return fmt.Errorf("notification.max_favorites_per_check must be positive")
	}
	if c.Order.NodeID < 0 || c.Order.NodeID > 1023 {
		return fmt.Errorf("order.node_id must be within [0, 1023]")
	}
	return nil
}

// SetDefaults fills zero values
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Server.MaxHeaderMB == 0 {
		c.Server.MaxHeaderMB = 1
	}

	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "UTC"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = time.Hour
	}
	if c.Database.ConnMaxIdleTime == 0 {
		c.Database.ConnMaxIdleTime = 10 * time.Minute
	}
	if c.Database.SlowThreshold == 0 {
		c.Database.SlowThreshold = 200 * time.Millisecond
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}

	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.MaxRetries == 0 {
		c.Redis.MaxRetries = 3
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.PoolTimeout == 0 {
		c.Redis.PoolTimeout = 4 * time.Second
	}

	if c.Queue.BufferSize == 0 {
		c.Queue.BufferSize = 1000
	}
	if c.Queue.PublishTimeout == 0 {
		c.Queue.PublishTimeout = 5 * time.Second
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "storefront"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "storefront-api"
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = 0.1
	}

	if c.RateLimit.Global.RPS == 0 {
		c.RateLimit.Global.RPS = 1000
	}
	if c.RateLimit.Global.Burst == 0 {
		c.RateLimit.Global.Burst = 2000
	}
	if c.RateLimit.PerIP.RPS == 0 {
		c.RateLimit.PerIP.RPS = 20
	}
	if c.RateLimit.PerIP.Burst == 0 {
		c.RateLimit.PerIP.Burst = 40
	}
	if c.RateLimit.PerIP.TTL == 0 {
		c.RateLimit.PerIP.TTL = 10 * time.Minute
	}
	if c.RateLimit.PriceCheck.RPS == 0 {
		c.RateLimit.PriceCheck.RPS = 0.2
	}
	if c.RateLimit.PriceCheck.Burst == 0 {
		c.RateLimit.PriceCheck.Burst = 3
	}
	if c.RateLimit.PriceCheck.TTL == 0 {
		c.RateLimit.PriceCheck.TTL = 30 * time.Minute
	}

	if c.Security.JWT.Expire == 0 {
		c.Security.JWT.Expire = 2 * time.Hour
	}
	if c.Security.JWT.RefreshTTL == 0 {
		c.Security.JWT.RefreshTTL = 7 * 24 * time.Hour
	}
	if c.Security.JWT.Issuer == "" {
		c.Security.JWT.Issuer = "storefront"
	}
	if c.Security.CORS.MaxAge == 0 {
		c.Security.CORS.MaxAge = 12 * time.Hour
	}
	if c.Security.MaxLoginAttempts == 0 {
		c.Security.MaxLoginAttempts = 5
	}
	if c.Security.LoginLockout == 0 {
		c.Security.LoginLockout = 15 * time.Minute
	}

	if c.Notification.MaxFavoritesPerCheck == 0 {
		c.Notification.MaxFavoritesPerCheck = 500
	}
	if c.Notification.Locale == "" {
		c.Notification.Locale = "en"
	}
	if c.Notification.CurrencySymbol == "" {
		c.Notification.CurrencySymbol = "$"
	}
	if c.Notification.CheckLockTTL == 0 {
		c.Notification.CheckLockTTL = 30 * time.Second
	}
}
