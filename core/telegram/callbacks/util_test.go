package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	key, payload := ParseCallbackData(&tele.Callback{Data: "\freply|42|q1"})
	assert.Equal(t, "reply", key)
	assert.Equal(t, "42|q1", payload)

	key, payload = ParseCallbackData(&tele.Callback{Data: "\fback"})
	assert.Equal(t, "back", key)
	assert.Empty(t, payload)

	key, payload = ParseCallbackData(&tele.Callback{Unique: "balance", Data: "7"})
	assert.Equal(t, "balance", key)
	assert.Equal(t, "7", payload)

	key, payload = ParseCallbackData(nil)
	assert.Empty(t, key)
	assert.Empty(t, payload)
}
