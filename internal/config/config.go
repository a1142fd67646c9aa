// Package config loads runtime configuration from a yaml file with
// environment overrides (FB_ prefix, "__" as section separator, e.g.
// FB_BOT__CHANNEL_ID overrides bot.channel_id).
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FB_"

// Config contains everything both binaries need. Token is the shared
// bearer secret checked by the API and presented by the bot.
type Config struct {
	Token    string    `koanf:"token"`
	LogLevel string    `koanf:"log_level"`
	API      APIConfig `koanf:"api"`
	Bot      BotConfig `koanf:"bot"`
}

// APIConfig configures the record service.
type APIConfig struct {
	Addr   string `koanf:"addr"`
	DBPath string `koanf:"db_path"`
}

// BotConfig configures the notifier poller.
type BotConfig struct {
	TelegramToken  string        `koanf:"telegram_token"`
	ChannelID      int64         `koanf:"channel_id"`
	APIBaseURL     string        `koanf:"api_base_url"`
	PollInterval   time.Duration `koanf:"poll_interval"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	ThumbnailURL   string        `koanf:"thumbnail_url"`
	StartupText    string        `koanf:"startup_text"`
}

func defaults() Config {
	return Config{
		LogLevel: "info",
		API: APIConfig{
			Addr:   ":8080",
			DBPath: "./firstblood.db",
		},
		Bot: BotConfig{
			APIBaseURL:     "http://localhost:8080",
			PollInterval:   10 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
	}
}

// Load reads the config file (optional when path is empty) and applies
// environment overrides on top of the defaults.
func Load(path string) (Config, error) {
	cfg := defaults()
	k := koanf.New(".")

	if strings.TrimSpace(path) != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, err
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return Config{}, err
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateAPI checks the settings the record service cannot run without.
func (c Config) ValidateAPI() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("token is required")
	}
	if strings.TrimSpace(c.API.DBPath) == "" {
		return errors.New("api.db_path is required")
	}
	if strings.TrimSpace(c.API.Addr) == "" {
		return errors.New("api.addr is required")
	}
	return nil
}

// ValidateBot checks the settings the poller cannot run without.
func (c Config) ValidateBot() error {
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("token is required")
	}
	if strings.TrimSpace(c.Bot.TelegramToken) == "" {
		return errors.New("bot.telegram_token is required")
	}
	if c.Bot.ChannelID == 0 {
		return errors.New("bot.channel_id is required")
	}
	if strings.TrimSpace(c.Bot.APIBaseURL) == "" {
		return errors.New("bot.api_base_url is required")
	}
	if c.Bot.PollInterval <= 0 {
		return errors.New("bot.poll_interval must be positive")
	}
	return nil
}
