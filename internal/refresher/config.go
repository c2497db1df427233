package refresher

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/star/passwatch/internal/celestrak"
)

// Config controls one refresher run.
type Config struct {
	SnapshotPath    string        `env:"TLEFETCH_SNAPSHOT_PATH"    envDefault:"static/tle_data.json"`
	LogPath         string        `env:"TLEFETCH_LOG_PATH"         envDefault:"tle_fetcher.cron.log"`
	CatalogPath     string        `env:"TLEFETCH_CATALOG_PATH"`
	DirectURL       string        `env:"TLEFETCH_DIRECT_URL"`
	MirrorURL       string        `env:"TLEFETCH_MIRROR_URL"`
	Timeout         time.Duration `env:"TLEFETCH_TIMEOUT"          envDefault:"30s"`
	Concurrency     int           `env:"TLEFETCH_CONCURRENCY"      envDefault:"4"`
	ArchiveDir      string        `env:"TLEFETCH_ARCHIVE_DIR"`
	ArchiveKeep     int           `env:"TLEFETCH_ARCHIVE_KEEP"     envDefault:"5"`
	MetricsTextfile string        `env:"TLEFETCH_METRICS_TEXTFILE"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DirectURL == "" {
		c.DirectURL = celestrak.DefaultDirectURL
	}
	if c.MirrorURL == "" {
		c.MirrorURL = celestrak.DefaultMirrorURL
	}
	if c.Timeout <= 0 {
		c.Timeout = celestrak.DefaultTimeout
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.ArchiveKeep < 1 {
		c.ArchiveKeep = 5
	}
}
