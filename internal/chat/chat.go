// Package chat holds the transport-neutral types the conversational core
// works with. The telebot adapter in internal/app translates to and from them.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/adminbot/core/telegram/reply"
)

// Event is one inbound text message.
type Event struct {
	UpdateID  int
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
	FirstName string
	Username  string
}

// Outbound message types are shared with the telebot helpers in core.
type (
	Button   = reply.Button
	Keyboard = reply.Keyboard
	Message  = reply.Message
)

// Text builds a message without keyboard.
func Text(format string, args ...any) Message {
	if len(args) == 0 {
		return Message{Text: format}
	}
	return Message{Text: fmt.Sprintf(format, args...)}
}

// MemberStatus mirrors the chat member statuses the bot cares about.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Member is the bot's (or a user's) standing in a chat.
type Member struct {
	Status        MemberStatus
	CanChangeInfo bool
}

// Privileged reports whether the member is an administrator or the creator.
func (m Member) Privileged() bool {
	return m.Status == StatusAdministrator || m.Status == StatusCreator
}

// Messenger is the outbound messaging capability.
type Messenger interface {
	Send(ctx context.Context, chatID int64, msg Message) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Self(ctx context.Context) (int64, error)
	ChatMember(ctx context.Context, chatID, userID int64) (Member, error)
}

// APIError is a platform error with its HTTP-like code.
type APIError struct {
	Code        int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "chat api error %d", e.Code)
	if e.Description != "" {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	if e.RetryAfter > 0 {
		fmt.Fprintf(&b, " (retry after %s)", e.RetryAfter)
	}
	return b.String()
}
