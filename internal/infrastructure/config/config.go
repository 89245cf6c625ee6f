package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Supported backfill cost policies
const (
	CostPolicyCostOrPrice = "cost_or_price"
	CostPolicyCostOnly    = "cost_only"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Valuation ValuationConfig `mapstructure:"valuation"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	Output string `mapstructure:"output"` // stdout, stderr, or file path
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	Path            string `mapstructure:"path"` // sqlite file or ":memory:"
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
	LogLevel        string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	MaxBodySize    int64         `mapstructure:"max_body_size"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
}

// TelemetryConfig selects the OTLP signals. Enabled turns on traces.
type TelemetryConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	CollectorEndpoint string        `mapstructure:"collector_endpoint"`
	SamplingRatio     float64       `mapstructure:"sampling_ratio"`
	ServiceName       string        `mapstructure:"service_name"`
	Insecure          bool          `mapstructure:"insecure"`
	MetricsEnabled    bool          `mapstructure:"metrics_enabled"`
	MetricsInterval   time.Duration `mapstructure:"metrics_interval"`
	LogsEnabled       bool          `mapstructure:"logs_enabled"`
	DBTraceEnabled    bool          `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool          `mapstructure:"db_log_full_sql"` // bind values in spans, never in production
	DBSlowQueryThresh time.Duration `mapstructure:"db_slow_query_threshold"`
}

// ValuationConfig holds cost layer and ledger settings
type ValuationConfig struct {
	LockTimeout            time.Duration `mapstructure:"lock_timeout"`      // SET LOCAL lock_timeout per transaction
	OperationTimeout       time.Duration `mapstructure:"operation_timeout"` // one unit of work, retries included
	MaxRetries             int           `mapstructure:"max_retries"`
	RetryBackoff           time.Duration `mapstructure:"retry_backoff"` // doubled per retry
	BackfillCostPolicy     string        `mapstructure:"backfill_cost_policy"`
	BackfillReference      string        `mapstructure:"backfill_reference"`
	DistributedLockEnabled bool          `mapstructure:"distributed_lock_enabled"`
	DistributedLockTTL     time.Duration `mapstructure:"distributed_lock_ttl"`
}

// defaults registers every key, which is also what lets AutomaticEnv
// override keys that have no value in config.toml.
var defaults = map[string]any{
	"app.name": "erp-valuation",
	"app.env":  "development",
	"app.port": "8080",

	"database.driver":             DriverPostgres,
	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "erp",
	"database.sslmode":            "disable",
	"database.path":               "valuation.db",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,
	"database.log_level":          "warn",

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.max_body_size":    1 << 20,
	"http.trusted_proxies":  []string{},

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "erp-valuation",
	"telemetry.insecure":                false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_interval":        time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.db_slow_query_threshold": 200 * time.Millisecond,

	"valuation.lock_timeout":             2 * time.Second,
	"valuation.operation_timeout":        5 * time.Second,
	"valuation.max_retries":              3,
	"valuation.retry_backoff":            50 * time.Millisecond,
	"valuation.backfill_cost_policy":     CostPolicyCostOrPrice,
	"valuation.backfill_reference":       "MIGRATION",
	"valuation.distributed_lock_enabled": false,
	"valuation.distributed_lock_ttl":     10 * time.Second,
}

// Load reads config.toml from . or /app, then lets ERP_-prefixed environment
// variables override it (ERP_DATABASE_PASSWORD sets database.password).
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ERP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate reports every problem at once
func (c *Config) validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	db := c.Database
	check(db.Driver == DriverPostgres || db.Driver == DriverSQLite,
		"database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, db.Driver)
	check(db.MaxOpenConns > 0, "database.max_open_conns must be positive")
	check(db.MaxIdleConns >= 0, "database.max_idle_conns cannot be negative")
	check(db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)", db.MaxIdleConns, db.MaxOpenConns)

	if c.App.Env == "production" {
		check(db.Driver == DriverPostgres, "database.driver must be postgres in production")
		check(db.Password != "", "database.password is required in production")
		check(db.SSLMode != "disable", "database.sslmode cannot be 'disable' in production")
		check(!c.Telemetry.DBLogFullSQL, "telemetry.db_log_full_sql must be false in production")
	}

	check(c.Telemetry.SamplingRatio >= 0 && c.Telemetry.SamplingRatio <= 1,
		"telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)

	val := c.Valuation
	check(val.MaxRetries >= 0, "valuation.max_retries cannot be negative")
	check(val.LockTimeout >= 0 && val.OperationTimeout >= 0 && val.RetryBackoff >= 0,
		"valuation timeouts cannot be negative")
	check(val.LockTimeout <= val.OperationTimeout,
		"valuation.lock_timeout (%s) cannot exceed valuation.operation_timeout (%s)", val.LockTimeout, val.OperationTimeout)
	check(val.BackfillCostPolicy == CostPolicyCostOrPrice || val.BackfillCostPolicy == CostPolicyCostOnly,
		"valuation.backfill_cost_policy must be %q or %q, got %q", CostPolicyCostOrPrice, CostPolicyCostOnly, val.BackfillCostPolicy)
	check(len(val.BackfillReference) <= 100, "valuation.backfill_reference cannot exceed 100 characters")
	check(!val.DistributedLockEnabled || val.DistributedLockTTL > 0,
		"valuation.distributed_lock_ttl must be positive when distributed locks are enabled")

	return errors.Join(errs...)
}

// DSN returns the driver connection string. Postgres credentials are escaped.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == DriverSQLite {
		return d.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Addr returns the Redis host:port address
func (r *RedisConfig) Addr() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
