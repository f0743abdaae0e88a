// Package callbacks decodes telebot callback data.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// ParseCallbackData splits callback data into its unique key and payload.
// Telebot encodes data buttons as "\f<unique>|<payload>"; the payload may
// itself contain '|'.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	raw := strings.TrimPrefix(cb.Data, "\f")
	unique, payload, _ := strings.Cut(raw, "|")
	if cb.Unique != "" {
		// telebot already stripped the unique from Data.
		return cb.Unique, cb.Data
	}
	return strings.TrimSpace(unique), payload
}

// CallbackKey returns the unique key of the callback.
func CallbackKey(c tele.Context) string {
	key, _ := ParseCallbackData(c.Callback())
	return key
}

// CallbackPayload returns the payload following the unique key.
func CallbackPayload(c tele.Context) string {
	_, payload := ParseCallbackData(c.Callback())
	return payload
}
