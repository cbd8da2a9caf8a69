package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN,required"`
	AdminUserIDs     []int64 `env:"ADMIN_USER_IDS" envSeparator:","`
	PrimaryAdminID   int64   `env:"PRIMARY_ADMIN_ID"`

	// Lyrics
	GeniusAPIToken string `env:"GENIUS_API_TOKEN"`

	// Storage
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/bot.db"`
	TempDir      string `env:"TEMP_DIR" envDefault:"temp"`
	DownloadsDir string `env:"DOWNLOADS_DIR" envDefault:"downloads"`

	// Access gate: what a failed membership check means for non-admins.
	MembershipFailOpen bool `env:"MEMBERSHIP_FAIL_OPEN" envDefault:"true"`

	// How long the "processing" status message survives after a delivery.
	StatusMessageTTL time.Duration `env:"STATUS_MESSAGE_TTL" envDefault:"30s"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
