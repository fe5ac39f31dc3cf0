package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr           string        `mapstructure:"addr"`
		LogLevel       string        `mapstructure:"log_level"`
		ContentTimeout time.Duration `mapstructure:"content_timeout"`
	} `mapstructure:"server"`

	Storage struct {
		Driver     string `mapstructure:"driver"` // sqlite | postgres | memory
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"storage"`

	Postgres struct {
		Host         string `mapstructure:"host"`
		Port         int    `mapstructure:"port"`
		User         string `mapstructure:"user"`
		Password     string `mapstructure:"password"`
		DBName       string `mapstructure:"db_name"`
		SSLMode      string `mapstructure:"ssl_mode"`
		MaxOpenConns int    `mapstructure:"max_open_conns"`
		MaxIdleConns int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"postgres"`

	Listener struct {
		Channel          string `mapstructure:"channel"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"listener"`

	Attribution struct {
		DevKey         string        `mapstructure:"dev_key"`
		AppID          string        `mapstructure:"app_id"`
		ConfirmBaseURL string        `mapstructure:"confirm_base_url"`
		Timeout        time.Duration `mapstructure:"timeout"`
		ConfirmDelay   time.Duration `mapstructure:"confirm_delay"`
		ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	} `mapstructure:"attribution"`

	Backend struct {
		BaseURL string        `mapstructure:"base_url"`
		Path    string        `mapstructure:"path"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"backend"`

	Device struct {
		Locale        string        `mapstructure:"locale"`
		AdvertisingID string        `mapstructure:"advertising_id"`
		AppUserID     string        `mapstructure:"app_user_id"`
		ProbeHosts    []string      `mapstructure:"probe_hosts"`
		ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
		ProfilePath   string        `mapstructure:"profile_path"`
	} `mapstructure:"device"`

	Notifications struct {
		SkipDeferral      time.Duration `mapstructure:"skip_deferral"`
		RationaleDeferral time.Duration `mapstructure:"rationale_deferral"`
	} `mapstructure:"notifications"`

	Ingest struct {
		RatePerSecond float64 `mapstructure:"rate_per_second"`
		Burst         int     `mapstructure:"burst"`
	} `mapstructure:"ingest"`
}

// keys are registered so APP_* env vars are visible to Unmarshal
// even when no config file is present.
var keys = []string{
	"server.addr", "server.log_level", "server.content_timeout",
	"storage.driver", "storage.sqlite_path",
	"postgres.host", "postgres.port", "postgres.user", "postgres.password",
	"postgres.db_name", "postgres.ssl_mode", "postgres.max_open_conns", "postgres.max_idle_conns",
	"listener.channel", "listener.reconnect_seconds",
	"attribution.dev_key", "attribution.app_id", "attribution.confirm_base_url",
	"attribution.timeout", "attribution.confirm_delay", "attribution.confirm_timeout",
	"backend.base_url", "backend.path", "backend.timeout",
	"device.locale", "device.advertising_id", "device.app_user_id",
	"device.probe_hosts", "device.probe_timeout", "device.profile_path",
	"notifications.skip_deferral", "notifications.rationale_deferral",
	"ingest.rate_per_second", "ingest.burst",
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
	// an explicit 0s disables the organic confirmation delay
	v.SetDefault("attribution.confirm_delay", "5s")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = "127.0.0.1:8080" }
	if c.Server.ContentTimeout <= 0 { c.Server.ContentTimeout = 2 * time.Minute }
	if c.Storage.Driver == "" { c.Storage.Driver = "sqlite" }
	if c.Storage.SQLitePath == "" { c.Storage.SQLitePath = "data/state.db" }
	if c.Postgres.Port == 0 { c.Postgres.Port = 5432 }
	if c.Postgres.SSLMode == "" { c.Postgres.SSLMode = "disable" }
	if c.Postgres.MaxOpenConns == 0 { c.Postgres.MaxOpenConns = 10 }
	if c.Postgres.MaxIdleConns == 0 { c.Postgres.MaxIdleConns = 2 }
	if c.Listener.Channel == "" { c.Listener.Channel = "content_override" }
	if c.Listener.ReconnectSeconds <= 0 { c.Listener.ReconnectSeconds = 5 }
	if c.Attribution.ConfirmBaseURL == "" { c.Attribution.ConfirmBaseURL = "https://gcdsdk.appsflyer.com/install_data/v4.0" }
	if c.Attribution.Timeout <= 0 { c.Attribution.Timeout = 30 * time.Second }
	if c.Attribution.ConfirmDelay < 0 { c.Attribution.ConfirmDelay = 0 }
	if c.Attribution.ConfirmTimeout <= 0 { c.Attribution.ConfirmTimeout = 15 * time.Second }
	if c.Backend.Path == "" { c.Backend.Path = "config.php" }
	if c.Backend.Timeout <= 0 { c.Backend.Timeout = 20 * time.Second }
	if len(c.Device.ProbeHosts) == 0 { c.Device.ProbeHosts = []string{"1.1.1.1:443", "8.8.8.8:53"} }
	if c.Device.ProbeTimeout <= 0 { c.Device.ProbeTimeout = 2 * time.Second }
	if c.Device.ProfilePath == "" { c.Device.ProfilePath = "configs/profile.yaml" }
	if c.Notifications.SkipDeferral <= 0 { c.Notifications.SkipDeferral = 72 * time.Hour }
	if c.Notifications.RationaleDeferral <= 0 { c.Notifications.RationaleDeferral = 30 * 24 * time.Hour }
	if c.Ingest.RatePerSecond <= 0 { c.Ingest.RatePerSecond = 20 }
	if c.Ingest.Burst <= 0 { c.Ingest.Burst = 40 }
}

func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.DBName,
		c.Postgres.SSLMode,
	)
}

func (c Config) Backoff() time.Duration { return time.Duration(c.Listener.ReconnectSeconds) * time.Second }
