package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hanzihelper/vocabsync/pkg/cedict"
)

// Config holds all configuration read from the environment.
type Config struct {
	DBPath      string `envconfig:"DB_PATH" default:"vocabsync.db"`
	CedictURL   string `envconfig:"CEDICT_URL"`
	CedictCache string `envconfig:"CEDICT_CACHE" default:"cedict_cache.txt.gz"`
	BatchSize   int    `envconfig:"BATCH_SIZE" default:"500"`

	// CronSchedule drives the optional scheduled re-import mode.
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
}

// Load reads configuration from the environment, with an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, err
	}
	if c.CedictURL == "" {
		c.CedictURL = cedict.DefaultURL
	}
	return &c, nil
}
