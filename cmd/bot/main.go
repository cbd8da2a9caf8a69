package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"tunebot/internal/auth"
	"tunebot/internal/config"
	"tunebot/internal/lyrics"
	"tunebot/internal/media"
	"tunebot/internal/scheduler"
	"tunebot/internal/storage"
	"tunebot/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	for _, dir := range []string{cfg.TempDir, cfg.DownloadsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}

	gate := auth.NewGate(cfg.PrimaryAdminID, cfg.AdminUserIDs, store, nil)
	gate.FailOpen = cfg.MembershipFailOpen

	mediaSvc := media.NewService(cfg.TempDir)

	var lyricsClient *lyrics.Client
	if cfg.GeniusAPIToken != "" {
		lyricsClient = lyrics.NewClient(cfg.GeniusAPIToken)
	} else {
		log.Println("GENIUS_API_TOKEN not set, lyrics lookup disabled")
	}

	bot, err := telegram.New(
		cfg.TelegramBotToken,
		gate,
		store,
		mediaSvc,
		lyricsClient,
		cfg.StatusMessageTTL,
	)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	sched := scheduler.New()
	sched.SetReportFunction(bot.DailyReport)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	bot.Start(context.Background())
}
