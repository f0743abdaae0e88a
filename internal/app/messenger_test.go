package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/internal/chat"
)

type fakeBot struct {
	sendErr   error
	deleteErr error
	member    *tele.ChatMember
	memberErr error

	sentTo   tele.Recipient
	sentText any
	deleted  tele.Editable
}

func (b *fakeBot) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	b.sentTo, b.sentText = to, what
	return &tele.Message{}, b.sendErr
}

func (b *fakeBot) Delete(msg tele.Editable) error {
	b.deleted = msg
	return b.deleteErr
}

func (b *fakeBot) ChatMemberOf(_, _ tele.Recipient) (*tele.ChatMember, error) {
	return b.member, b.memberErr
}

func newTestMessenger(bot *fakeBot, self int64) *Messenger {
	return &Messenger{api: bot, self: func() int64 { return self }}
}

func TestMessengerSend(t *testing.T) {
	bot := &fakeBot{}
	m := newTestMessenger(bot, 99)

	require.NoError(t, m.Send(context.Background(), 5, chat.Text("hi")))
	assert.Equal(t, "5", bot.sentTo.Recipient())
	assert.Equal(t, "hi", bot.sentText)

	bot.sendErr = tele.FloodError{RetryAfter: 3}
	err := m.Send(context.Background(), 5, chat.Text("hi"))
	var apiErr *chat.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Code)
	assert.Equal(t, 3*time.Second, apiErr.RetryAfter)

	bot.sendErr = &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	err = m.Send(context.Background(), 5, chat.Text("hi"))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 403, apiErr.Code)
	assert.Contains(t, apiErr.Description, "blocked")

	transport := errors.New("connection reset")
	bot.sendErr = transport
	assert.ErrorIs(t, m.Send(context.Background(), 5, chat.Text("hi")), transport)
}

func TestMessengerHonoursCancelledContext(t *testing.T) {
	bot := &fakeBot{}
	m := newTestMessenger(bot, 99)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Send(ctx, 5, chat.Text("hi")), context.Canceled)
	assert.Nil(t, bot.sentTo)
	_, err := m.Self(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessengerDelete(t *testing.T) {
	bot := &fakeBot{}
	m := newTestMessenger(bot, 99)

	require.NoError(t, m.Delete(context.Background(), -100, 12))
	id, chatID := bot.deleted.MessageSig()
	assert.Equal(t, "12", id)
	assert.Equal(t, int64(-100), chatID)
}

func TestMessengerChatMember(t *testing.T) {
	bot := &fakeBot{member: &tele.ChatMember{Role: tele.Administrator}}
	bot.member.Rights.CanChangeInfo = true
	m := newTestMessenger(bot, 99)

	got, err := m.ChatMember(context.Background(), -1001234567890, 99)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusAdministrator, got.Status)
	assert.True(t, got.CanChangeInfo)
	assert.True(t, got.Privileged())

	bot.member = nil
	bot.memberErr = &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	_, err = m.ChatMember(context.Background(), -1001234567890, 99)
	var apiErr *chat.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
}

func TestMessengerChatMemberUnmappedDescriptions(t *testing.T) {
	bot := &fakeBot{}
	m := newTestMessenger(bot, 99)

	cases := []struct {
		desc string
		code int
	}{
		{"Bad Request: member list is inaccessible", 400},
		{"Forbidden: bot is not a member of the supergroup chat", 403},
	}
	for _, tc := range cases {
		bot.memberErr = fmt.Errorf("telegram: %s (%d)", tc.desc, tc.code)
		_, err := m.ChatMember(context.Background(), -1001234567890, 99)
		var apiErr *chat.APIError
		require.ErrorAs(t, err, &apiErr, tc.desc)
		assert.Equal(t, tc.code, apiErr.Code)
		assert.Equal(t, tc.desc, apiErr.Description)
	}

	bot.memberErr = errors.New("telegram: unknown error")
	_, err := m.ChatMember(context.Background(), -1001234567890, 99)
	var apiErr *chat.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestMemberStatus(t *testing.T) {
	cases := map[tele.MemberStatus]chat.MemberStatus{
		tele.Creator:       chat.StatusCreator,
		tele.Administrator: chat.StatusAdministrator,
		tele.Member:        chat.StatusMember,
		tele.Left:          chat.StatusLeft,
		tele.Kicked:        chat.StatusKicked,
		tele.Restricted:    chat.StatusMember,
	}
	for in, want := range cases {
		assert.Equal(t, want, memberStatus(in), string(in))
	}
}

func TestMessengerSelf(t *testing.T) {
	id, err := newTestMessenger(&fakeBot{}, 99).Self(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), id)

	_, err = newTestMessenger(&fakeBot{}, 0).Self(context.Background())
	assert.Error(t, err)
}
