package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tunebot/internal/lyrics"
	"tunebot/internal/media"
	"tunebot/internal/session"
)

// Telegram rejects callback data longer than 64 bytes, which would fail the
// whole keyboard send.
const maxCallbackData = 64

// callbackData joins action and payload, trimming the payload to stay inside
// the Telegram limit without splitting a UTF-8 rune.
func callbackData(action, payload string) string {
	data := action + ":" + payload
	if len(data) <= maxCallbackData {
		return data
	}
	cut := maxCallbackData - len(action) - 1
	b := []byte(payload)[:cut]
	for len(b) > 0 {
		if r, _ := utf8.DecodeLastRune(b); r != utf8.RuneError {
			break
		}
		b = b[:len(b)-1]
	}
	return action + ":" + string(b)
}

func candidateFromVideo(v media.Video) session.Candidate {
	return session.Candidate{
		ID:         v.ID,
		Title:      v.Title,
		Channel:    v.Channel,
		SourceLink: v.URL,
	}
}

func candidatesFromVideos(videos []media.Video) []session.Candidate {
	out := make([]session.Candidate, 0, len(videos))
	for _, v := range videos {
		out = append(out, candidateFromVideo(v))
	}
	return out
}

// resultsKeyboard renders one audio and one video action per candidate, plus
// the lyrics bridge and a search-again row.
func resultsKeyboard(items []session.Candidate, query string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, item := range items {
		title := buttonTitle(item.Title)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 "+title,
				fmt.Sprintf("%s:%s:%d", cbAudio, item.ID, i)),
		))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📹 "+title+" (video)",
				fmt.Sprintf("%s:%s:%d", cbVideo, item.ID, i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📝 Get lyrics", callbackData(cbGetLyrics, query)),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Search again", cbSearchAgain),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// audioOnlyKeyboard is the lyrics-bridge variant: audio actions only.
func audioOnlyKeyboard(items []session.Candidate, query string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, item := range items {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 "+buttonTitle(item.Title),
				fmt.Sprintf("%s:%s:%d", cbAudio, item.ID, i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Back to lyrics", callbackData(cbGetLyrics, query)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Download audio", cbURLAudio),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📹 Download video", cbURLVideo),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", cbCancel),
		),
	)
}

func lyricsKeyboard(downloadQuery string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 Download audio", callbackData(cbLyricsDl, downloadQuery)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔍 Search again", cbLyricsAgain),
		),
	)
}

func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("YouTube 🎬", "menu_youtube"),
			tgbotapi.NewInlineKeyboardButtonData("Lyrics 📝", "menu_lyrics"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Top Charts 📈", "menu_top"),
			tgbotapi.NewInlineKeyboardButtonData("My Downloads 📂", "menu_downloads"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬆️ Close", "menu_close"),
		),
	)
}

func formatLyricsInfo(info *lyrics.Info) string {
	album := info.Album
	if album == "" {
		album = "Unknown album"
	}
	release := info.ReleaseDate
	if release == "" {
		release = "Unknown"
	}
	return fmt.Sprintf(`🎵 %s
👤 Artist: %s
💿 Album: %s
📅 Released: %s

🔗 Full lyrics: %s`, info.Title, info.Artist, album, release, info.URL)
}

func deliveryCaption(item session.Candidate, format string, sizeMB float64) string {
	icon := "🎵"
	if format == "mp4" {
		icon = "📹"
	}
	caption := fmt.Sprintf("%s %s\n📺 Channel: %s", icon, truncate(item.Title, 60), item.Channel)
	if sizeMB > 0 {
		caption += fmt.Sprintf("\n📦 Size: %.2f MB", sizeMB)
	}
	return caption
}

// buttonTitle shortens a title and strips characters Telegram renders oddly
// in button labels.
func buttonTitle(title string) string {
	title = truncate(title, 50)
	replacer := strings.NewReplacer("*", "", "_", "", "[", "", "]", "")
	return replacer.Replace(title)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func durationSuffix(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%d:%02d)", seconds/60, seconds%60)
}
