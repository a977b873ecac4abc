// Package config loads board configuration from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/warp/backorder-board/completion"
	"github.com/warp/backorder-board/provider"
)

// EnvPrefix prefixes every environment override (BOARD_DATABASE_SERVER, ...).
const EnvPrefix = "BOARD"

// Config holds all configuration for the board.
type Config struct {
	App      AppConfig
	Data     DataConfig
	Tracking TrackingConfig
	Refresh  RefreshConfig
	Database DatabaseConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

type AppConfig struct {
	Listen      string
	OfflineMode bool
}

type DataConfig struct {
	Dir string
}

type TrackingConfig struct {
	RebuildWindowDays int
	CleanupInterval   time.Duration
	RetentionDays     int
}

type RefreshConfig struct {
	Enabled  bool
	Interval time.Duration
	MaxAge   time.Duration
}

type DatabaseConfig struct {
	Driver         string
	DSN            string
	Server         string
	Port           int
	Name           string
	Username       string
	Password       string
	Schema         string
	View           string
	Timeout        time.Duration
	Retries        int
	RetryDelay     time.Duration
	OrderStatus    string
	OccurrenceType string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type HTTPConfig struct {
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with BOARD_ prefix
// 2. path, or board.{yaml,toml} in ., ./config and the home directory
// 3. Built-in defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("board")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "board"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine: defaults and env vars apply.
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	dataDir, err := homedir.Expand(v.GetString("data.dir"))
	if err != nil {
		return nil, fmt.Errorf("expand data.dir: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Listen:      v.GetString("app.listen"),
			OfflineMode: v.GetBool("app.offline_mode"),
		},
		Data: DataConfig{Dir: dataDir},
		Tracking: TrackingConfig{
			RebuildWindowDays: v.GetInt("tracking.rebuild_window_days"),
			CleanupInterval:   v.GetDuration("tracking.cleanup_interval"),
			RetentionDays:     v.GetInt("tracking.retention_days"),
		},
		Refresh: RefreshConfig{
			Enabled:  v.GetBool("refresh.enabled"),
			Interval: v.GetDuration("refresh.interval"),
			MaxAge:   v.GetDuration("refresh.max_age"),
		},
		Database: DatabaseConfig{
			Driver:         v.GetString("database.driver"),
			DSN:            v.GetString("database.dsn"),
			Server:         v.GetString("database.server"),
			Port:           v.GetInt("database.port"),
			Name:           v.GetString("database.name"),
			Username:       v.GetString("database.username"),
			Password:       v.GetString("database.password"),
			Schema:         v.GetString("database.schema"),
			View:           v.GetString("database.view"),
			Timeout:        v.GetDuration("database.timeout"),
			Retries:        v.GetInt("database.retries"),
			RetryDelay:     v.GetDuration("database.retry_delay"),
			OrderStatus:    v.GetString("database.order_status"),
			OccurrenceType: v.GetString("database.occurrence_type"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:        v.GetDuration("http.read_timeout"),
			WriteTimeout:       v.GetDuration("http.write_timeout"),
			IdleTimeout:        v.GetDuration("http.idle_timeout"),
			CORSAllowedOrigins: v.GetStringSlice("http.cors_allowed_origins"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.listen", ":5003")
	v.SetDefault("app.offline_mode", false)

	v.SetDefault("data.dir", "data")

	v.SetDefault("tracking.rebuild_window_days", 30)
	v.SetDefault("tracking.cleanup_interval", 6*time.Hour)
	v.SetDefault("tracking.retention_days", 90)

	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.interval", 3*time.Minute)
	v.SetDefault("refresh.max_age", 3*time.Minute)

	v.SetDefault("database.driver", provider.DriverSQLServer)
	v.SetDefault("database.port", 1433)
	v.SetDefault("database.schema", "dbo")
	v.SetDefault("database.view", "VIEW_PB_NF_Cancelada")
	v.SetDefault("database.timeout", 30*time.Second)
	v.SetDefault("database.retries", 3)
	v.SetDefault("database.retry_delay", 5*time.Second)
	v.SetDefault("database.order_status", "Conferido")
	v.SetDefault("database.occurrence_type", "Espera por Produto")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.cors_allowed_origins", []string{"*"})
}

// Validate rejects settings the board cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Data.Dir == "" {
		problems = append(problems, "data.dir is required")
	}
	if c.Tracking.RebuildWindowDays < 0 {
		problems = append(problems, "tracking.rebuild_window_days must not be negative")
	}
	if c.Tracking.RetentionDays < 0 {
		problems = append(problems, "tracking.retention_days must not be negative")
	}
	if c.Tracking.CleanupInterval <= 0 {
		problems = append(problems, "tracking.cleanup_interval must be positive")
	}
	if c.Refresh.Enabled && c.Refresh.Interval <= 0 {
		problems = append(problems, "refresh.interval must be positive")
	}
	if c.Refresh.MaxAge < 0 {
		problems = append(problems, "refresh.max_age must not be negative")
	}
	if c.Database.Retries < 1 {
		problems = append(problems, "database.retries must be at least 1")
	}
	if err := c.Database.SQL().Validate(); err != nil {
		problems = append(problems, "database: "+err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// SQL converts the database section to provider settings.
func (d DatabaseConfig) SQL() provider.SQLConfig {
	return provider.SQLConfig{
		Driver:         d.Driver,
		DSN:            d.DSN,
		Server:         d.Server,
		Port:           d.Port,
		Database:       d.Name,
		Username:       d.Username,
		Password:       d.Password,
		Schema:         d.Schema,
		View:           d.View,
		Timeout:        d.Timeout,
		Retries:        d.Retries,
		RetryDelay:     d.RetryDelay,
		OrderStatus:    d.OrderStatus,
		OccurrenceType: d.OccurrenceType,
	}
}

// TrackerConfig converts the tracking section.
func (t TrackingConfig) TrackerConfig() completion.TrackerConfig {
	return completion.TrackerConfig{
		RebuildWindowDays: t.RebuildWindowDays,
		CleanupInterval:   t.CleanupInterval,
		RetentionDays:     t.RetentionDays,
	}
}
