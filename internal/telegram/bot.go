// Package telegram hosts the bot transport and the download workflow: it
// routes commands, free text and button callbacks to handlers that drive the
// session store, the media and lyrics collaborators and the persistent store.
package telegram

import (
	"context"
	"log"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tunebot/internal/auth"
	"tunebot/internal/lyrics"
	"tunebot/internal/media"
	"tunebot/internal/scheduler"
	"tunebot/internal/session"
	"tunebot/internal/storage"
)

// Candidate list caps for fresh searches and the lyrics bridge.
const (
	searchResultLimit = 8
	lyricsResultLimit = 3
)

type mediaService interface {
	Search(ctx context.Context, query string, maxResults int) ([]media.Video, error)
	Describe(ctx context.Context, url string) (*media.Video, error)
	FetchAudio(ctx context.Context, url string) (string, error)
	FetchVideo(ctx context.Context, url string) (string, error)
	Cleanup(path string)
}

type lyricsClient interface {
	Find(ctx context.Context, query string) (*lyrics.Info, error)
}

type Bot struct {
	api      *tgbotapi.BotAPI
	s        sender
	gate     *auth.Gate
	store    *storage.Store
	sessions *session.Store
	media    mediaService
	lyrics   lyricsClient

	statusTTL time.Duration
	deferFn   scheduler.Deferrer
}

func New(botToken string, gate *auth.Gate, store *storage.Store, med mediaService, lyr *lyrics.Client, statusTTL time.Duration) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	gate.SetChecker(memberChecker{api: api})
	b := &Bot{
		api:       api,
		s:         botAPISender{api: api},
		gate:      gate,
		store:     store,
		sessions:  session.NewStore(),
		media:     med,
		statusTTL: statusTTL,
		deferFn:   scheduler.After,
	}
	if lyr != nil {
		b.lyrics = lyr
	}
	return b, nil
}

// Start consumes updates until the channel closes. Each update is handled on
// its own goroutine so one user's fetch never blocks another user's search.
func (b *Bot) Start(ctx context.Context) {
	b.setCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	log.Printf("bot started as @%s", b.api.Self.UserName)
	for update := range updates {
		upd := update
		go b.handleUpdate(ctx, upd)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic while handling update: %v", r)
			if chatID := updateChatID(update); chatID != 0 {
				b.sendText(chatID, "⚠️ An error occurred while processing your request. Please try again.")
			}
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	b.handleText(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	args := msg.CommandArguments()

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "help":
		b.handleHelp(chatID, userID)
	case "musicmenu":
		b.sendMenu(chatID)
	case "search":
		if !b.requireAccess(ctx, chatID, userID) {
			return
		}
		if args == "" {
			b.sendText(chatID, "Please provide a song name to search.\n\nExample: /search despacito")
			return
		}
		b.handleSearch(ctx, chatID, userID, args)
	case "lyrics":
		if !b.requireAccess(ctx, chatID, userID) {
			return
		}
		if args == "" {
			b.sendText(chatID, "Please provide a song name to search for lyrics.\n\nExample: /lyrics despacito")
			return
		}
		b.handleLyricsSearch(ctx, chatID, userID, args)
	case "broadcast":
		b.handleBroadcast(ctx, msg)
	case "users":
		b.handleUsers(ctx, chatID, userID)
	case "stats":
		b.handleStats(ctx, chatID, userID)
	case "admins":
		b.handleAdmins(chatID, userID)
	case "setchannel":
		b.handleSetChannel(ctx, msg)
	case "clearchannel":
		b.handleClearChannel(ctx, chatID, userID)
	case "addpromo":
		b.handleAddPromo(ctx, msg)
	case "delpromo":
		b.handleDelPromo(ctx, chatID, userID)
	case "admin":
		b.handleAdminPanel(chatID, userID)
	case "addadmin":
		b.handleAddAdmin(ctx, msg)
	case "deladmin":
		b.handleDelAdmin(ctx, msg)
	}
}

// handleText treats free text as either a direct link or a search query.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.requireAccess(ctx, chatID, userID) {
		return
	}

	text := msg.Text
	if text == "" {
		return
	}
	if media.IsSourceURL(text) {
		b.handleSourceLink(ctx, chatID, userID, text)
		return
	}
	b.handleSearch(ctx, chatID, userID, text)
}

// requireAccess runs the gate and, when the user is blocked, sends the
// join-channel prompt. Admin commands do their own admin check instead.
func (b *Bot) requireAccess(ctx context.Context, chatID, userID int64) bool {
	if b.gate.Allowed(ctx, userID) {
		return true
	}
	b.sendJoinPrompt(ctx, chatID)
	return false
}

func (b *Bot) setCommands() {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Start the bot"},
		tgbotapi.BotCommand{Command: "help", Description: "Show help message"},
		tgbotapi.BotCommand{Command: "search", Description: "Search for songs"},
		tgbotapi.BotCommand{Command: "lyrics", Description: "Search for lyrics"},
	)
	if _, err := b.s.Request(cfg); err != nil {
		log.Printf("failed to set bot commands: %v", err)
	}
}

// sendText sends a plain message, logging failures.
func (b *Bot) sendText(chatID int64, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := b.s.Send(msg)
	if err != nil {
		log.Printf("failed to send message to %d: %v", chatID, err)
		return 0
	}
	return sent.MessageID
}

// editText rewrites an earlier message in place.
func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.s.Send(edit); err != nil {
		log.Printf("failed to edit message %d in %d: %v", messageID, chatID, err)
	}
}

func (b *Bot) editTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	if _, err := b.s.Send(edit); err != nil {
		log.Printf("failed to edit message %d in %d: %v", messageID, chatID, err)
	}
}

// nonCritical logs failures of best-effort side effects. Callers on this path
// must never surface the error to the user.
func nonCritical(action string, err error) {
	if err != nil {
		log.Printf("non-critical: %s: %v", action, err)
	}
}

func updateChatID(update tgbotapi.Update) int64 {
	if update.Message != nil {
		return update.Message.Chat.ID
	}
	if update.CallbackQuery != nil && update.CallbackQuery.Message != nil {
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}
