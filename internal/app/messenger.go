package app

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/adminbot/core/telegram/helpers"
	"github.com/m3rciful/adminbot/internal/chat"
)

// botAPI is the slice of *tele.Bot the messenger uses.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// Messenger implements chat.Messenger on top of telebot.
type Messenger struct {
	api  botAPI
	self func() int64
}

// NewMessenger adapts bot.
func NewMessenger(bot *tele.Bot) *Messenger {
	return &Messenger{
		api: bot,
		self: func() int64 {
			if bot.Me == nil {
				return 0
			}
			return bot.Me.ID
		},
	}
}

// Send delivers msg as HTML.
func (m *Messenger) Send(ctx context.Context, chatID int64, msg chat.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := m.api.Send(tele.ChatID(chatID), msg.Text, tghelpers.Options(msg))
	return apiError(err)
}

// Delete removes a message.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.api.Delete(&tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID})
	return apiError(err)
}

// Self returns the bot's user id.
func (m *Messenger) Self(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	id := m.self()
	if id == 0 {
		return 0, errors.New("app: bot identity unknown")
	}
	return id, nil
}

// ChatMember reports the standing of userID in chatID.
func (m *Messenger) ChatMember(ctx context.Context, chatID, userID int64) (chat.Member, error) {
	if err := ctx.Err(); err != nil {
		return chat.Member{}, err
	}
	cm, err := m.api.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return chat.Member{}, apiError(err)
	}
	return chat.Member{
		Status:        memberStatus(cm.Role),
		CanChangeInfo: cm.Rights.CanChangeInfo,
	}, nil
}

func memberStatus(role tele.MemberStatus) chat.MemberStatus {
	switch role {
	case tele.Creator:
		return chat.StatusCreator
	case tele.Administrator:
		return chat.StatusAdministrator
	case tele.Left:
		return chat.StatusLeft
	case tele.Kicked:
		return chat.StatusKicked
	default:
		return chat.StatusMember
	}
}

// rawAPIError matches the error telebot builds for descriptions it has no
// sentinel for.
var rawAPIError = regexp.MustCompile(`telegram: (.+) \((\d{3})\)$`)

// apiError maps telebot errors to chat.APIError. Transport errors pass
// through unchanged.
func apiError(err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &chat.APIError{
			Code:        429,
			Description: "Too Many Requests",
			RetryAfter:  time.Duration(flood.RetryAfter) * time.Second,
		}
	}
	var te *tele.Error
	if errors.As(err, &te) {
		return &chat.APIError{Code: te.Code, Description: te.Description}
	}
	if m := rawAPIError.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[2])
		return &chat.APIError{Code: code, Description: m[1]}
	}
	return err
}
