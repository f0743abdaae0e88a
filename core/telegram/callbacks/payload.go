package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// PayloadInt64 parses callback payload as int64.
func PayloadInt64(c tele.Context) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(CallbackPayload(c)), 10, 64)
}

// PayloadString returns the trimmed payload and whether it is non-empty.
func PayloadString(c tele.Context) (string, bool) {
	p := strings.TrimSpace(CallbackPayload(c))
	return p, p != ""
}
