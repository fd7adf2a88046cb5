// Package config loads reader settings from an optional YAML file, an
// optional .env file and JUNIPER_READER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/FocuswithJustin/JuniperReader/core/content"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

const (
	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "JUNIPER_READER"

	// FileName is the config file searched for when no path is given.
	FileName = "juniper-reader"

	// DotEnvFile is loaded from the working directory when present.
	DotEnvFile = ".env"
)

// Config holds all reader settings.
type Config struct {
	Mode   string       `mapstructure:"mode"`    // dev or packaged
	DevDir string       `mapstructure:"dev_dir"` // development content root
	Root   string       `mapstructure:"root"`    // explicit content root, overrides mode
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`

	// File is the config file that was read, empty if none.
	File string `mapstructure:"-"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds settings of the serve command.
type ServerConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	RateLimit       int             `mapstructure:"rate_limit"` // requests per minute, 0 disables
	RateLimitBurst  int             `mapstructure:"rate_limit_burst"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	WebSocket       WebSocketConfig `mapstructure:"websocket"`
}

// WebSocketConfig holds invoke bridge limits.
type WebSocketConfig struct {
	MaxMessageRate int   `mapstructure:"max_message_rate"`
	MaxMessageSize int64 `mapstructure:"max_message_size"`
}

// Load reads configuration. An explicit path must exist; without one,
// juniper-reader.yaml is looked up in . and ./config and may be absent.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading %s: %w", DotEnvFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	logging.Debug("configuration loaded", "file", cfg.File, "mode", cfg.Mode)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "dev")
	v.SetDefault("dev_dir", content.DefaultDevDir)
	v.SetDefault("root", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 1420)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.websocket.max_message_rate", 20)
	v.SetDefault("server.websocket.max_message_size", 16<<10)
}

// RootConfig returns the content root settings.
func (c *Config) RootConfig() (content.RootConfig, error) {
	mode, err := content.ParseMode(c.Mode)
	if err != nil {
		return content.RootConfig{}, err
	}
	return content.RootConfig{
		Mode:     mode,
		DevDir:   c.DevDir,
		Override: c.Root,
	}, nil
}

// InitLogging applies the log settings to the default logger.
func (c *Config) InitLogging() error {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(c.Log.Format)
	if err != nil {
		return err
	}
	logging.InitLogger(level, format)
	return nil
}
