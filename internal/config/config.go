package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var validate = validator.New()

type AppConfig struct {
	Port        string        `mapstructure:"port" validate:"required,numeric"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout" validate:"gt=0"`

	// RegistryPath is the JSON file holding the resort catalog.
	RegistryPath string `mapstructure:"registry_path" validate:"required"`

	// BotHandle is the chat handle the bot logs its own messages under.
	BotHandle string `mapstructure:"bot_handle" validate:"required"`

	Log       LogConfig       `mapstructure:"log"`
	ClimaCell ClimaCellConfig `mapstructure:"climacell"`
	Store     StoreConfig     `mapstructure:"store"`
	Minio     MinioConfig     `mapstructure:"minio"`

	// FetchInterval controls the forecast prefetch of the starred resorts (0 = off).
	FetchInterval time.Duration `mapstructure:"fetch_interval" validate:"gte=0"`

	// Groups are named resort key lists, e.g. "starred" and "alberta".
	Groups map[string][]string `mapstructure:"groups"`
}

type LogConfig struct {
	Path       string `mapstructure:"path" validate:"required"`
	Level      string `mapstructure:"level" validate:"oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	Name       string `mapstructure:"name" validate:"required"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"` // 0 = keep backups forever
	Truncate   bool   `mapstructure:"truncate"`

	// UploadInterval is how often the log is shipped to object storage (0 = off).
	UploadInterval time.Duration `mapstructure:"upload_interval" validate:"gte=0"`
	LedgerPath     string        `mapstructure:"ledger_path" validate:"required"`
}

type ClimaCellConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	RealtimeURL       string  `mapstructure:"realtime_url" validate:"omitempty,url"`
	NowcastURL        string  `mapstructure:"nowcast_url" validate:"omitempty,url"`
	HourlyURL         string  `mapstructure:"hourly_url" validate:"omitempty,url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
}

type StoreConfig struct {
	MaxHistory int           `mapstructure:"max_history" validate:"gte=0"` // 0 = unlimited
	MaxAge     time.Duration `mapstructure:"max_age" validate:"gte=0"`     // 0 = unlimited
}

// MinioConfig points at the S3-compatible log archive. An empty endpoint disables shipping.
type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key" validate:"required_with=Endpoint"`
	SecretKey string `mapstructure:"secret_key" validate:"required_with=Endpoint"`
	Bucket    string `mapstructure:"bucket" validate:"required_with=Endpoint"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether log shipping has somewhere to go.
func (m MinioConfig) Enabled() bool {
	return m.Endpoint != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("http_timeout", 10*time.Second)
	v.SetDefault("registry_path", "skiResorts.json")
	v.SetDefault("bot_handle", "SnowBot#0001")
	v.SetDefault("fetch_interval", 0)

	v.SetDefault("log.path", "discord.log")
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.name", "snowbot")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.truncate", true)
	v.SetDefault("log.upload_interval", 300*time.Second)
	v.SetDefault("log.ledger_path", "s3_logs.csv")

	v.SetDefault("climacell.api_key", "")
	v.SetDefault("climacell.realtime_url", "")
	v.SetDefault("climacell.nowcast_url", "")
	v.SetDefault("climacell.hourly_url", "")
	v.SetDefault("climacell.requests_per_second", 0)

	v.SetDefault("store.max_history", 4) // a few fetches per resort and horizon
	v.SetDefault("store.max_age", 24*time.Hour)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "snowbot-logs")
	v.SetDefault("minio.region", "ca-central-1")
	v.SetDefault("minio.use_ssl", true)

	v.SetDefault("groups.starred", []string{"lakeLouise", "sunshine", "fernie", "revelstoke", "whistler"})
	v.SetDefault("groups.alberta", []string{"lakeLouise", "sunshine", "nakiska", "castleMountain", "norquay"})
}

// Load builds the configuration from defaults, the optional YAML file at
// configFile, and the environment (after loading envFiles, if any exist).
// Environment variables use the upper-cased key with "." replaced by "_",
// e.g. CLIMACELL_API_KEY or LOG_UPLOAD_INTERVAL.
//
// With a config file, relative registry, log and ledger paths are resolved
// against the file's directory. Without one they are left relative, so they
// follow the working directory of the command that loaded them.
func Load(configFile string, envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if configFile != "" {
		dir := filepath.Dir(configFile)
		for _, p := range []*string{&cfg.RegistryPath, &cfg.Log.Path, &cfg.Log.LedgerPath} {
			*p = resolve(dir, *p)
		}
	}

	return &cfg, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// Group returns the resort keys configured under name.
func (c *AppConfig) Group(name string) ([]string, bool) {
	keys, ok := c.Groups[name]
	return keys, ok
}
