package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Security SecurityConfig `mapstructure:"security"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Sizing   SizingConfig   `mapstructure:"sizing"`
	Enhance  EnhanceConfig  `mapstructure:"enhance"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SecurityConfig struct {
	// APIKey is the single shared free-tier secret. All holders share one
	// quota bucket named KeyName.
	APIKey         string   `mapstructure:"api_key"`
	KeyName        string   `mapstructure:"key_name"`
	EnableCORS     bool     `mapstructure:"enable_cors"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type QuotaConfig struct {
	RedisURL   string        `mapstructure:"redis_url"`
	DailyLimit int64         `mapstructure:"daily_limit"`
	BucketTTL  time.Duration `mapstructure:"bucket_ttl"`
	// FailOpen admits requests when the counter store is absent or erroring.
	// Correct for a free tier; set false before reusing this for paid quotas.
	FailOpen bool `mapstructure:"fail_open"`
}

type UploadConfig struct {
	MaxFileSize  int64    `mapstructure:"max_file_size"`
	MinFileSize  int64    `mapstructure:"min_file_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type SizingConfig struct {
	MaxInputPixels int `mapstructure:"max_input_pixels"`
	MinHeight      int `mapstructure:"min_height"`
}

type EnhanceConfig struct {
	BackendURL     string        `mapstructure:"backend_url"`
	DefaultVersion string        `mapstructure:"default_version"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Output        string `mapstructure:"output"`
	ConsoleOutput bool   `mapstructure:"console_output"`
	MaxSize       int    `mapstructure:"max_size"`
	MaxBackups    int    `mapstructure:"max_backups"`
	MaxAge        int    `mapstructure:"max_age"`
	Compress      bool   `mapstructure:"compress"`
}

// Load loads the configuration from file and environment
func Load() (*Config, error) {
	bindEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// bindEnv maps the environment variables the deployment contract promises.
func bindEnv() {
	viper.BindEnv("security.api_key", "FREE_API_KEY")
	viper.BindEnv("quota.daily_limit", "FREE_DAILY_LIMIT")
	viper.BindEnv("quota.redis_url", "REDIS_URL")
	viper.BindEnv("enhance.backend_url", "ENHANCE_BACKEND_URL")
	viper.BindEnv("logging.level", "LOG_LEVEL")
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 60 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 120 * time.Second
	}

	if cfg.Security.APIKey == "" {
		cfg.Security.APIKey = "freeApiluminascalem!+|I1,R1u31C_V"
	}
	if cfg.Security.KeyName == "" {
		cfg.Security.KeyName = "freeApiluminascalem"
	}
	if cfg.Security.AllowedOrigins == nil {
		cfg.Security.AllowedOrigins = []string{"*"}
		cfg.Security.EnableCORS = true
	}

	if cfg.Quota.DailyLimit == 0 {
		cfg.Quota.DailyLimit = 10000
	}
	if cfg.Quota.BucketTTL == 0 {
		// 36h covers clock/timezone skew at day boundaries without
		// accumulating stale buckets.
		cfg.Quota.BucketTTL = 36 * time.Hour
	}
	if !viper.IsSet("quota.fail_open") {
		cfg.Quota.FailOpen = true
	}

	if cfg.Upload.MaxFileSize == 0 {
		cfg.Upload.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.Upload.MinFileSize == 0 {
		cfg.Upload.MinFileSize = 100
	}
	if cfg.Upload.AllowedTypes == nil {
		cfg.Upload.AllowedTypes = []string{"image/jpeg", "image/png", "image/webp", "image/tiff"}
	}

	if cfg.Sizing.MaxInputPixels == 0 {
		cfg.Sizing.MaxInputPixels = 1500 * 1500
	}
	if cfg.Sizing.MinHeight == 0 {
		cfg.Sizing.MinHeight = 300
	}

	if cfg.Enhance.DefaultVersion == "" {
		cfg.Enhance.DefaultVersion = "v1.4"
	}
	if cfg.Enhance.Timeout == 0 {
		cfg.Enhance.Timeout = 120 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "logs/enhance-api.log"
	}
	cfg.Logging.ConsoleOutput = true
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 10
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 30
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Quota.DailyLimit < 1 {
		return fmt.Errorf("invalid daily limit: %d", cfg.Quota.DailyLimit)
	}
	if cfg.Upload.MinFileSize >= cfg.Upload.MaxFileSize {
		return fmt.Errorf("min file size %d must be below max %d",
			cfg.Upload.MinFileSize, cfg.Upload.MaxFileSize)
	}
	if cfg.Sizing.MaxInputPixels < 1 {
		return fmt.Errorf("invalid max input pixels: %d", cfg.Sizing.MaxInputPixels)
	}
	return nil
}
