package telegram

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"tunebot/internal/auth"
)

const broadcastProgressEvery = 50

func (b *Bot) requireAdmin(chatID, userID int64) bool {
	if b.gate.IsAdmin(userID) {
		return true
	}
	b.sendText(chatID, "⛔ This command is for administrators only.")
	return false
}

func (b *Bot) requirePrimaryAdmin(chatID, userID int64) bool {
	if b.gate.IsPrimaryAdmin(userID) {
		return true
	}
	b.sendText(chatID, "⛔ Only the primary administrator can do that.")
	return false
}

// handleBroadcast sends the message text to every active user. Delivery
// failures are counted and the failing users are marked inactive; a single
// failure never stops the run.
func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	if !b.requireAdmin(chatID, userID) {
		return
	}
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.sendText(chatID, "Usage: /broadcast <message>")
		return
	}

	ids, err := b.store.ActiveUserIDs(ctx)
	if err != nil {
		log.Printf("broadcast: list users: %v", err)
		b.sendText(chatID, "⚠️ Could not load the user list.")
		return
	}
	if len(ids) == 0 {
		b.sendText(chatID, "There is nobody to broadcast to yet.")
		return
	}

	statusID := b.sendText(chatID, fmt.Sprintf("📢 Broadcasting to %d users…", len(ids)))
	sent, failed := 0, 0
	for i, id := range ids {
		if _, err := b.s.Send(tgbotapi.NewMessage(id, "📢 "+text)); err != nil {
			failed++
			log.Printf("broadcast: send to %d: %v", id, err)
			nonCritical("mark user inactive", b.store.MarkUserInactive(ctx, id))
		} else {
			sent++
		}
		if (i+1)%broadcastProgressEvery == 0 {
			b.editText(chatID, statusID,
				fmt.Sprintf("📢 Broadcasting… %d/%d (failed: %d)", i+1, len(ids), failed))
		}
	}
	b.editText(chatID, statusID,
		fmt.Sprintf("📢 Broadcast finished.\n✅ Sent: %d\n❌ Failed: %d", sent, failed))
}

func (b *Bot) handleUsers(ctx context.Context, chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	total, active, err := b.store.UserCounts(ctx)
	if err != nil {
		log.Printf("users: count: %v", err)
		b.sendText(chatID, "⚠️ Could not load user counts.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("👥 Users\n\nTotal: %d\nActive: %d\nInactive: %d",
		total, active, total-active))
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	text, err := b.statsText(ctx)
	if err != nil {
		log.Printf("stats: %v", err)
		b.sendText(chatID, "⚠️ Could not load statistics.")
		return
	}
	b.sendText(chatID, text)
}

func (b *Bot) statsText(ctx context.Context) (string, error) {
	total, active, err := b.store.UserCounts(ctx)
	if err != nil {
		return "", fmt.Errorf("count users: %w", err)
	}
	stats, err := b.store.DownloadStats(ctx)
	if err != nil {
		return "", fmt.Errorf("download stats: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Bot statistics\n\n👥 Users: %d (%d active)\n", total, active)
	fmt.Fprintf(&sb, "⬇️ Downloads: %d total, %d today\n", stats.Total, stats.Today)
	if len(stats.Formats) > 0 {
		sb.WriteString("\nBy format:\n")
		for _, format := range []string{"mp3", "mp4"} {
			if n, ok := stats.Formats[format]; ok {
				fmt.Fprintf(&sb, "  %s: %d\n", format, n)
			}
		}
		var rest []string
		for format := range stats.Formats {
			if format != "mp3" && format != "mp4" {
				rest = append(rest, format)
			}
		}
		sort.Strings(rest)
		for _, format := range rest {
			fmt.Fprintf(&sb, "  %s: %d\n", format, stats.Formats[format])
		}
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func (b *Bot) handleAdmins(chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	var sb strings.Builder
	sb.WriteString("👮 Administrators\n\n")
	for _, id := range b.gate.Admins() {
		if b.gate.IsPrimaryAdmin(id) {
			fmt.Fprintf(&sb, "• %d (primary)\n", id)
		} else {
			fmt.Fprintf(&sb, "• %d\n", id)
		}
	}
	b.sendText(chatID, strings.TrimRight(sb.String(), "\n"))
}

func (b *Bot) handleSetChannel(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.requireAdmin(chatID, msg.From.ID) {
		return
	}
	channel := strings.TrimSpace(msg.CommandArguments())
	if channel == "" {
		b.sendText(chatID, "Usage: /setchannel @channelname")
		return
	}
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}
	if err := b.store.SetSetting(ctx, auth.ForcedChannelKey, channel); err != nil {
		log.Printf("setchannel: %v", err)
		b.sendText(chatID, "⚠️ Could not save the channel.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("✅ Users must now be members of %s.", channel))
}

func (b *Bot) handleClearChannel(ctx context.Context, chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	if err := b.store.DeleteSetting(ctx, auth.ForcedChannelKey); err != nil {
		log.Printf("clearchannel: %v", err)
		b.sendText(chatID, "⚠️ Could not clear the channel requirement.")
		return
	}
	b.sendText(chatID, "✅ Channel requirement removed. The bot is open to everyone.")
}

// handleAddPromo stores a new promo banner from a replied-to photo. The new
// banner replaces whatever was active before.
func (b *Bot) handleAddPromo(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.requireAdmin(chatID, msg.From.ID) {
		return
	}
	reply := msg.ReplyToMessage
	if reply == nil || len(reply.Photo) == 0 {
		b.sendText(chatID, "Reply to a photo with /addpromo [caption] to set the promo banner.")
		return
	}
	// The last photo size is the largest one Telegram offers.
	fileID := reply.Photo[len(reply.Photo)-1].FileID
	caption := strings.TrimSpace(msg.CommandArguments())
	if caption == "" {
		caption = reply.Caption
	}
	if err := b.store.ReplacePromo(ctx, fileID, caption); err != nil {
		log.Printf("addpromo: %v", err)
		b.sendText(chatID, "⚠️ Could not save the promo banner.")
		return
	}
	b.sendText(chatID, "✅ Promo banner saved. It will be shown after every download.")
}

func (b *Bot) handleDelPromo(ctx context.Context, chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	n, err := b.store.DeleteAllPromos(ctx)
	if err != nil {
		log.Printf("delpromo: %v", err)
		b.sendText(chatID, "⚠️ Could not delete the promo banner.")
		return
	}
	if n == 0 {
		b.sendText(chatID, "There is no promo banner to delete.")
		return
	}
	b.sendText(chatID, "✅ Promo banner removed.")
}

func (b *Bot) handleAdminPanel(chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", "admin_stats"),
			tgbotapi.NewInlineKeyboardButtonData("👥 Users", "admin_users"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📢 Broadcast", "admin_broadcast"),
			tgbotapi.NewInlineKeyboardButtonData("🖼 Promo", "admin_promo"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔒 Channel gate", "admin_channel"),
		),
	}
	if b.gate.IsPrimaryAdmin(userID) {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👮 Manage admins", "admin_manage"),
		))
	}
	msg := tgbotapi.NewMessage(chatID, "⚙️ Admin panel")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send admin panel: %v", err)
	}
}

func (b *Bot) handleAdminCallback(ctx context.Context, chatID int64, messageID int, userID int64, action string) {
	if !b.gate.IsAdmin(userID) {
		return
	}
	switch action {
	case "admin_stats":
		text, err := b.statsText(ctx)
		if err != nil {
			log.Printf("admin stats: %v", err)
			text = "⚠️ Could not load statistics."
		}
		b.editText(chatID, messageID, text)
	case "admin_users":
		total, active, err := b.store.UserCounts(ctx)
		if err != nil {
			log.Printf("admin users: %v", err)
			b.editText(chatID, messageID, "⚠️ Could not load user counts.")
			return
		}
		b.editText(chatID, messageID, fmt.Sprintf("👥 Users\n\nTotal: %d\nActive: %d", total, active))
	case "admin_broadcast":
		b.editText(chatID, messageID, "Send /broadcast <message> to message every active user.")
	case "admin_promo":
		b.editText(chatID, messageID,
			"Reply to a photo with /addpromo [caption] to set the banner.\nUse /delpromo to remove it.")
	case "admin_channel":
		channel := b.gate.ForcedChannel(ctx)
		if channel == "" {
			b.editText(chatID, messageID, "No channel requirement is set.\nUse /setchannel @name to add one.")
		} else {
			b.editText(chatID, messageID, fmt.Sprintf(
				"Users must join %s.\nUse /clearchannel to lift the requirement.", channel))
		}
	case "admin_manage":
		if !b.gate.IsPrimaryAdmin(userID) {
			return
		}
		b.editText(chatID, messageID,
			"Use /addadmin <user id> and /deladmin <user id> to manage administrators.")
	default:
		log.Printf("unknown admin callback %q from %d", action, userID)
	}
}

func (b *Bot) handleAddAdmin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.requirePrimaryAdmin(chatID, msg.From.ID) {
		return
	}
	id, ok := parseUserIDArg(msg.CommandArguments())
	if !ok {
		b.sendText(chatID, "Usage: /addadmin <user id>")
		return
	}
	added, err := b.gate.AddAdmin(ctx, id)
	if err != nil {
		log.Printf("addadmin: %v", err)
		b.sendText(chatID, "⚠️ Could not save the admin list.")
		return
	}
	if !added {
		b.sendText(chatID, fmt.Sprintf("%d is already an administrator.", id))
		return
	}
	b.sendText(chatID, fmt.Sprintf("✅ %d is now an administrator.", id))
}

func (b *Bot) handleDelAdmin(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.requirePrimaryAdmin(chatID, msg.From.ID) {
		return
	}
	id, ok := parseUserIDArg(msg.CommandArguments())
	if !ok {
		b.sendText(chatID, "Usage: /deladmin <user id>")
		return
	}
	removed, err := b.gate.RemoveAdmin(ctx, id)
	if err != nil {
		log.Printf("deladmin: %v", err)
		b.sendText(chatID, "⚠️ Could not save the admin list.")
		return
	}
	if !removed {
		b.sendText(chatID, fmt.Sprintf("%d is not a removable administrator.", id))
		return
	}
	b.sendText(chatID, fmt.Sprintf("✅ %d is no longer an administrator.", id))
}

func parseUserIDArg(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// DailyReport formats the stats summary for the scheduled evening report and
// sends it to every administrator.
func (b *Bot) DailyReport(ctx context.Context) error {
	text, err := b.statsText(ctx)
	if err != nil {
		return fmt.Errorf("build daily report: %w", err)
	}
	for _, id := range b.gate.Admins() {
		if _, err := b.s.Send(tgbotapi.NewMessage(id, "🌙 Daily report\n\n"+text)); err != nil {
			log.Printf("daily report: send to %d: %v", id, err)
		}
	}
	return nil
}
