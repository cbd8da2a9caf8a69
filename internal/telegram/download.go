package telegram

import (
	"context"
	"fmt"
	"log"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tunebot/internal/session"
)

// deliver runs Fetching → Delivering → PromoShown → Done for an already
// resolved target. On fetch failure the session is left untouched so the user
// can retry the same selection.
func (b *Bot) deliver(ctx context.Context, chatID int64, messageID int, userID int64, item session.Candidate, wantVideo bool) {
	format := "mp3"
	noun := "audio"
	if wantVideo {
		format = "mp4"
		noun = "video"
	}

	b.editText(chatID, messageID, fmt.Sprintf(
		"⏳ Processing your %s download…\n\n🎵 %s\n\nPlease wait, this may take a few moments.",
		noun, truncate(item.Title, 50)))

	var (
		path string
		err  error
	)
	if wantVideo {
		path, err = b.media.FetchVideo(ctx, item.SourceLink)
	} else {
		path, err = b.media.FetchAudio(ctx, item.SourceLink)
	}
	if err != nil {
		log.Printf("fetch %s (%s) for %d failed: %v", item.SourceLink, format, userID, err)
		b.editText(chatID, messageID, "❌ Download failed. Please try again.")
		return
	}
	// Cleanup is attempted unconditionally, even if sending fails midway.
	defer b.media.Cleanup(path)

	b.editText(chatID, messageID, fmt.Sprintf("📤 Uploading your %s…", noun))

	caption := deliveryCaption(item, format, fileSizeMB(path))
	if wantVideo {
		err = b.sendVideoFile(chatID, path, caption)
	} else {
		err = b.sendAudioFile(chatID, path, caption, item.Title, item.Channel)
	}
	if err != nil {
		log.Printf("send %s to %d failed: %v", noun, userID, err)
		b.editText(chatID, messageID, "❌ Could not send the file. Please try again.")
		return
	}

	// Bookkeeping failures never reverse a completed delivery.
	nonCritical("record download", b.store.AppendDownload(ctx, userID, item.Title, format, ""))

	b.editText(chatID, messageID, "✅ Download complete! Your file has been sent above. 🎵")

	b.sendPromo(ctx, chatID)

	// Done: drop the status message after a fixed delay, whether or not the
	// user is still around.
	_ = b.deferFn(b.statusTTL, func() {
		del := tgbotapi.NewDeleteMessage(chatID, messageID)
		_, err := b.s.Request(del)
		nonCritical("delete status message", err)
	})
}

func (b *Bot) sendAudioFile(chatID int64, path, caption, title, performer string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Caption = caption
	audio.Title = title
	audio.Performer = performer
	_, err := b.s.Send(audio)
	return err
}

func (b *Bot) sendVideoFile(chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true
	_, err := b.s.Send(video)
	return err
}

// sendPromo shows the current promo banner, when one exists. Every failure on
// this path is swallowed: promo display is best-effort and must never affect
// the delivery outcome.
func (b *Bot) sendPromo(ctx context.Context, chatID int64) {
	promo, err := b.store.CurrentPromo(ctx)
	if err != nil {
		nonCritical("load promo", err)
		return
	}
	if promo == nil {
		return
	}

	if _, err := b.s.Send(tgbotapi.NewMessage(chatID, "━━━━━━━━━━━━━━━━━━━")); err != nil {
		nonCritical("send promo separator", err)
		return
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(promo.FileID))
	photo.Caption = promo.Caption
	if _, err := b.s.Send(photo); err != nil {
		nonCritical("send promo", err)
	}
}

func fileSizeMB(path string) float64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return float64(info.Size()) / (1024 * 1024)
}
