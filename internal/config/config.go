package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tatianab/grammrpg/internal/models"
)

// Config holds the application configuration.
type Config struct {
	// GeminiAPIKey is optional; without it stories continue with the
	// offline fallback line.
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	Model        string        `env:"GRAMMRPG_MODEL" envDefault:"gemini-2.5-flash"`
	Temperature  float32       `env:"GRAMMRPG_TEMPERATURE" envDefault:"0.9"`
	TurnDelay    time.Duration `env:"GRAMMRPG_TURN_DELAY" envDefault:"1s"`
	Mode         string        `env:"GRAMMRPG_MODE" envDefault:"spell"`

	SaveDir    string `env:"GRAMMRPG_SAVE_DIR" envDefault:".saves"`
	DBPath     string `env:"GRAMMRPG_DB_PATH" envDefault:".saves/items.db"`
	Dictionary string `env:"GRAMMRPG_DICTIONARY"`

	LogFile  string `env:"GRAMMRPG_LOG_FILE" envDefault:".saves/game.log"`
	LogLevel string `env:"GRAMMRPG_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that env parsing cannot express.
func (c *Config) Validate() error {
	if c.TurnDelay < 0 {
		return fmt.Errorf("GRAMMRPG_TURN_DELAY must not be negative, got %s", c.TurnDelay)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("GRAMMRPG_TEMPERATURE must be within [0, 2], got %v", c.Temperature)
	}
	if _, err := models.ParseGameplayMode(c.Mode); err != nil {
		return fmt.Errorf("GRAMMRPG_MODE: %w", err)
	}
	return nil
}

// GameplayMode returns the configured starting mode.
func (c *Config) GameplayMode() models.GameplayMode {
	mode, err := models.ParseGameplayMode(c.Mode)
	if err != nil {
		return models.SpellingCheck
	}
	return mode
}
