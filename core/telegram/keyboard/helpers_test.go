package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adminbot/core/telegram/reply"
)

func TestMarkupInline(t *testing.T) {
	m := Markup(&reply.Keyboard{Rows: [][]reply.Button{
		{{Text: "Reply", Unique: "reply", Data: "42|q1"}},
		{{Text: "Site", URL: "https://example.com"}, {Text: "Back", Unique: "back"}},
	}})
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)

	reply := m.InlineKeyboard[0][0]
	assert.Equal(t, "reply", reply.Unique)
	assert.Equal(t, "42|q1", reply.Data)
	assert.Equal(t, "https://example.com", m.InlineKeyboard[1][0].URL)
	assert.Equal(t, "back", m.InlineKeyboard[1][1].Unique)
}

func TestMarkupReplyAndRemove(t *testing.T) {
	m := Markup(&reply.Keyboard{ReplyRows: [][]string{{"💰 Balance", "🎧 Support"}, {"Cancel"}}})
	require.NotNil(t, m)
	assert.True(t, m.ResizeKeyboard)
	require.Len(t, m.ReplyKeyboard, 2)
	assert.Equal(t, "🎧 Support", m.ReplyKeyboard[0][1].Text)

	assert.True(t, Markup(&reply.Keyboard{Remove: true}).RemoveKeyboard)
	assert.Nil(t, Markup(nil))
	assert.Nil(t, Markup(&reply.Keyboard{}))
}
