package telegram

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

func (s botAPISender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.api.Request(c)
}

// memberChecker implements auth.MembershipChecker with a chat-member lookup.
type memberChecker struct{ api *tgbotapi.BotAPI }

func (c memberChecker) IsMember(_ context.Context, channel string, userID int64) (bool, error) {
	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, err
	}
	switch member.Status {
	case "member", "administrator", "creator":
		return true, nil
	}
	return false, nil
}
