package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds runtime settings and flags.
type Config struct {
	DSN      string         `yaml:"dsn"`       // postgres URL, sqlite path or "memory"
	StateKey string         `yaml:"state_key"` // key of the save-state blob
	Theme    string         `yaml:"theme"`
	Seed     string         `yaml:"seed"` // optional; random per process when empty
	AI       AIConfig       `yaml:"ai"`
	Log      LogConfig      `yaml:"log"`
	Surprise SurpriseConfig `yaml:"surprise"`
	Wave     WaveConfig     `yaml:"wave"`
	Telegram TelegramConfig `yaml:"telegram"`
}

type AIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

// SurpriseConfig tunes the level-2 check-in.
type SurpriseConfig struct {
	CheckInterval time.Duration `yaml:"check_interval"`
	DisplayDelay  time.Duration `yaml:"display_delay"`
	MinIdle       time.Duration `yaml:"min_idle"`
	MaxIdle       time.Duration `yaml:"max_idle"`
}

type WaveConfig struct {
	CountdownSeconds int `yaml:"countdown_seconds"`
}

type TelegramConfig struct {
	Token    string `yaml:"token"`
	ChatID   int64  `yaml:"chat_id"`
	Schedule string `yaml:"schedule"` // cron spec for the surprise check
}

// ValidThemes lists the palettes the UI ships.
var ValidThemes = []string{"catppuccin", "dracula", "gruvbox", "solarized_dark"}

// DefaultDir is where the database, config and logs live unless overridden.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rewire"
	}
	return filepath.Join(home, ".rewire")
}

// DefaultConfigPath is the YAML file read when --config is not given.
func DefaultConfigPath() string { return filepath.Join(DefaultDir(), "config.yaml") }

func DefaultConfig() Config {
	dir := DefaultDir()
	return Config{
		DSN:      filepath.Join(dir, "rewire.db"),
		StateKey: "rewireQuestState",
		Theme:    "catppuccin",
		AI:       AIConfig{Model: "gemini-2.5-flash"},
		Log:      LogConfig{File: filepath.Join(dir, "rewire.log")},
		Surprise: SurpriseConfig{
			CheckInterval: time.Minute,
			DisplayDelay:  time.Second,
			MinIdle:       time.Hour,
			MaxIdle:       2 * time.Hour,
		},
		Wave:     WaveConfig{CountdownSeconds: 90},
		Telegram: TelegramConfig{Schedule: "@every 1m"},
	}
}

// Load layers defaults, the YAML file at path (missing is fine), .env and the
// process environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()
	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := firstEnv("REWIRE_DSN", "DATABASE_URL"); v != "" {
		c.DSN = v
	}
	if v := firstEnv("GEMINI_API_KEY", "API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("REWIRE_MODEL"); v != "" {
		c.AI.Model = v
	}
	if v := os.Getenv("REWIRE_THEME"); v != "" {
		c.Theme = v
	}
	if v := os.Getenv("REWIRE_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if os.Getenv("REWIRE_DEBUG") == "1" {
		c.Log.Debug = true
	}
	if v := os.Getenv("REWIRE_SEED"); v != "" {
		c.Seed = v
	}
	if v := os.Getenv("TG_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("TG_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TG_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// Validate rejects settings the app cannot run with.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("dsn must not be empty")
	}
	s := c.Surprise
	if s.CheckInterval <= 0 || s.DisplayDelay < 0 || s.MinIdle <= 0 {
		return fmt.Errorf("surprise durations must be positive")
	}
	if s.MinIdle >= s.MaxIdle {
		return fmt.Errorf("surprise.min_idle (%s) must be below surprise.max_idle (%s)", s.MinIdle, s.MaxIdle)
	}
	if c.Wave.CountdownSeconds <= 0 {
		return fmt.Errorf("wave.countdown_seconds must be positive")
	}
	for _, t := range ValidThemes {
		if t == c.Theme {
			return nil
		}
	}
	return fmt.Errorf("unknown theme %q", c.Theme)
}

// ValidateTelegram checks the settings the bot front end needs.
func (c Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TG_TOKEN is not set")
	}
	if c.Telegram.ChatID == 0 {
		return fmt.Errorf("TG_CHAT_ID is not set")
	}
	if c.Telegram.Schedule == "" {
		return fmt.Errorf("telegram.schedule must not be empty")
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
