package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tunebot/internal/session"
)

// Callback data prefixes. Candidate selections carry the video id for log
// context and the list index that is validated against the session store.
const (
	cbAudio       = "dl_audio"
	cbVideo       = "dl_video"
	cbURLAudio    = "url_audio"
	cbURLVideo    = "url_video"
	cbCancel      = "cancel"
	cbGetLyrics   = "get_lyrics"
	cbLyricsDl    = "lyrics_dl"
	cbSearchAgain = "search_again"
	cbLyricsAgain = "lyrics_again"
)

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	if err := b.store.UpsertUser(ctx, from.ID, from.UserName, from.FirstName, from.LastName); err != nil {
		log.Printf("failed to upsert user %d: %v", from.ID, err)
	}

	welcome := fmt.Sprintf(`🎵 Welcome to the music bot, %s!

I download audio and video from YouTube and look up lyrics.

How to use:
• Send me a song name: "Despacito"
• Send me a YouTube link: https://youtu.be/...
• /search <song> — search for songs
• /lyrics <song> — find lyrics info

Choose a result, pick audio or video, and I'll send the file. 🎶`, from.FirstName)
	b.sendText(msg.Chat.ID, welcome)
}

func (b *Bot) handleHelp(chatID, userID int64) {
	help := `🔰 Commands

/search <song> — search YouTube for songs
/lyrics <song> — search for song lyrics
/musicmenu — show the music menu

Or just send a song name or a YouTube link.`

	if b.gate.IsAdmin(userID) {
		help += `

🛡 Admin commands:
/admin — admin control panel
/broadcast <msg> — message all users
/users — user statistics
/stats — download statistics
/admins — list admins
/setchannel @channel — require channel membership
/clearchannel — remove the requirement
/addpromo — set promo banner (reply to a photo)
/delpromo — remove promo banner`
	}
	if b.gate.IsPrimaryAdmin(userID) {
		help += `
/addadmin <id> — add admin (primary only)
/deladmin <id> — remove admin (primary only)`
	}
	b.sendText(chatID, help)
}

func (b *Bot) sendMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "🎶 Music Menu\n\nChoose an option:")
	msg.ReplyMarkup = menuKeyboard()
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send menu: %v", err)
	}
}

// handleSearch runs the fresh-search flow: Searching → NoResults | Listed.
func (b *Bot) handleSearch(ctx context.Context, chatID, userID int64, query string) {
	nonCritical("touch user", b.store.TouchUser(ctx, userID))

	statusID := b.sendText(chatID, fmt.Sprintf("🔍 Searching for: %s…", query))

	videos, err := b.media.Search(ctx, query, searchResultLimit)
	if err != nil {
		log.Printf("search %q failed: %v", query, err)
		b.editText(chatID, statusID, "❌ Search failed. Please try again later.")
		return
	}
	if len(videos) == 0 {
		// NoResults is terminal: nothing is written to the session store.
		b.editText(chatID, statusID, "❌ No results found. Please try a different search term.")
		return
	}

	list := session.CandidateList{Items: candidatesFromVideos(videos), Query: query}
	b.sessions.Put(userID, list)

	text := fmt.Sprintf("🎵 Search results for: %s\n\nChoose a song to download:", query)
	b.editTextWithKeyboard(chatID, statusID, text, resultsKeyboard(list.Items, query))
}

// handleSourceLink runs the direct-link flow: the single described item goes
// into the session as a resolved target awaiting confirmation.
func (b *Bot) handleSourceLink(ctx context.Context, chatID, userID int64, link string) {
	nonCritical("touch user", b.store.TouchUser(ctx, userID))

	statusID := b.sendText(chatID, "🔍 Processing link…")

	video, err := b.media.Describe(ctx, link)
	if err != nil {
		log.Printf("describe %s failed: %v", link, err)
		b.editText(chatID, statusID, "❌ Could not read that link. Please check the URL.")
		return
	}

	b.sessions.Put(userID, session.ResolvedTarget{
		Item:       candidateFromVideo(*video),
		SourceLink: link,
	})

	text := fmt.Sprintf("🎵 Found:\n📺 %s\n👤 By: %s%s\n\nDownload this?",
		truncate(video.Title, 80), video.Channel, durationSuffix(video.Duration))
	b.editTextWithKeyboard(chatID, statusID, text, confirmKeyboard())
}

// handleLyricsSearch looks up song metadata and offers a download bridge.
func (b *Bot) handleLyricsSearch(ctx context.Context, chatID, userID int64, query string) {
	nonCritical("touch user", b.store.TouchUser(ctx, userID))

	statusID := b.sendText(chatID, fmt.Sprintf("🔍 Searching lyrics for: %s…", query))
	b.renderLyrics(ctx, chatID, statusID, query)
}

func (b *Bot) renderLyrics(ctx context.Context, chatID int64, messageID int, query string) {
	if b.lyrics == nil {
		b.editText(chatID, messageID, "📝 Lyrics lookup is not configured on this bot.")
		return
	}
	info, err := b.lyrics.Find(ctx, query)
	if err != nil {
		log.Printf("lyrics search %q failed: %v", query, err)
		b.editText(chatID, messageID, "❌ Lyrics search failed. Please try again later.")
		return
	}
	if info == nil {
		b.editText(chatID, messageID, "❌ No lyrics found. Please try a different search term.")
		return
	}
	b.editTextWithKeyboard(chatID, messageID, formatLyricsInfo(info),
		lyricsKeyboard(info.Title+" "+info.Artist))
}

func (b *Bot) sendJoinPrompt(ctx context.Context, chatID int64) {
	channel := b.gate.ForcedChannel(ctx)
	if channel == "" {
		b.sendText(chatID, "🔒 You are not allowed to use this bot right now.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"🔒 Channel membership required\n\nTo use this bot, join %s and then send /start again.", channel))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📢 Join channel", "https://t.me/"+strings.TrimPrefix(channel, "@")),
		),
	)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send join prompt: %v", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		nonCritical("answer callback", err)
	}
	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	userID := cb.From.ID

	data := cb.Data
	action, payload := data, ""
	if i := strings.Index(data, ":"); i >= 0 {
		action, payload = data[:i], data[i+1:]
	}

	switch action {
	case cbAudio, cbVideo:
		b.handleSelection(ctx, chatID, messageID, userID, action, payload)
	case cbURLAudio, cbURLVideo:
		b.handleURLSelection(ctx, chatID, messageID, userID, action)
	case cbCancel:
		b.editText(chatID, messageID, "❌ Download cancelled.")
	case cbGetLyrics:
		b.editText(chatID, messageID, fmt.Sprintf("🔍 Searching lyrics for: %s…", payload))
		b.renderLyrics(ctx, chatID, messageID, payload)
	case cbLyricsDl:
		b.handleLyricsDownload(ctx, chatID, messageID, userID, payload)
	case cbSearchAgain, cbLyricsAgain:
		b.editText(chatID, messageID, "🔍 Send me a song name or a YouTube link.")
	default:
		if strings.HasPrefix(action, "menu_") {
			b.handleMenuCallback(chatID, messageID, action)
			return
		}
		if strings.HasPrefix(action, "admin_") {
			b.handleAdminCallback(ctx, chatID, messageID, userID, action)
			return
		}
		log.Printf("unknown callback %q from %d", data, userID)
	}
}

// handleSelection resolves a candidate chosen from a listed search result.
// The target is snapshotted here, before the fetch starts, so a newer search
// by the same user cannot change what this request delivers.
func (b *Bot) handleSelection(ctx context.Context, chatID int64, messageID int, userID int64, action, payload string) {
	parts := strings.Split(payload, ":")
	if len(parts) != 2 {
		log.Printf("malformed selection payload %q from %d", payload, userID)
		return
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		log.Printf("malformed selection index %q from %d", parts[1], userID)
		return
	}

	candidate, err := b.sessions.ResolveCandidate(userID, index)
	if err != nil {
		b.editText(chatID, messageID, selectionErrorText(err))
		return
	}

	b.deliver(ctx, chatID, messageID, userID, candidate, action == cbVideo)
}

// handleURLSelection resolves the confirm step of the direct-link flow.
func (b *Bot) handleURLSelection(ctx context.Context, chatID int64, messageID int, userID int64, action string) {
	target, err := b.sessions.ResolveTarget(userID)
	if err != nil {
		b.editText(chatID, messageID, selectionErrorText(err))
		return
	}
	item := target.Item
	if target.SourceLink != "" {
		item.SourceLink = target.SourceLink
	}
	b.deliver(ctx, chatID, messageID, userID, item, action == cbURLVideo)
}

// handleLyricsDownload bridges a lyrics hit back into the search flow with
// the smaller re-search cap.
func (b *Bot) handleLyricsDownload(ctx context.Context, chatID int64, messageID int, userID int64, query string) {
	b.editText(chatID, messageID, fmt.Sprintf("🔍 Searching YouTube for: %s…", query))

	videos, err := b.media.Search(ctx, query, lyricsResultLimit)
	if err != nil {
		log.Printf("lyrics-download search %q failed: %v", query, err)
		b.editText(chatID, messageID, "❌ Search failed. Please try again later.")
		return
	}
	if len(videos) == 0 {
		b.editText(chatID, messageID, "❌ No results found for this song.")
		return
	}

	list := session.CandidateList{Items: candidatesFromVideos(videos), Query: query}
	b.sessions.Put(userID, list)

	text := fmt.Sprintf("🎵 Results for: %s\n\nChoose a song to download as audio:", query)
	b.editTextWithKeyboard(chatID, messageID, text, audioOnlyKeyboard(list.Items, query))
}

func (b *Bot) handleMenuCallback(chatID int64, messageID int, action string) {
	texts := map[string]string{
		"menu_youtube":   "🎬 YouTube search\n\nSend a song name or a YouTube link.",
		"menu_lyrics":    "📝 Lyrics search\n\nUse /lyrics <song name>.",
		"menu_top":       "📈 Top charts\n\nComing soon!",
		"menu_downloads": "📂 My downloads\n\nComing soon!",
		"menu_close":     "⬆️ Send a song name whenever you are ready.",
	}
	if text, ok := texts[action]; ok {
		b.editText(chatID, messageID, text)
	}
}

func selectionErrorText(err error) string {
	switch {
	case errors.Is(err, session.ErrExpired):
		return "❌ Session expired. Please search again."
	case errors.Is(err, session.ErrInvalidSelection):
		return "❌ Invalid selection. Please search again."
	default:
		return "❌ Something went wrong. Please search again."
	}
}
