// Package format renders user-supplied text for Telegram's HTML parse mode.
package format

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML escapes text for inclusion in an HTML message.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var markupRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\*(.*?)\*`), "<b>$1</b>"},
	{regexp.MustCompile(`_(.*?)_`), "<i>$1</i>"},
	{regexp.MustCompile("``(.*?)``"), "<code>$1</code>"},
}

// ApplyMarkup converts the lightweight admin markup to HTML: *bold*,
// _italic_ and ``mono``. Rules apply in that order and match the shortest
// span on one line. The input is not escaped.
func ApplyMarkup(s string) string {
	for _, rule := range markupRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	return s
}

// IsValidURL reports whether s is an absolute http or https URL with a host.
func IsValidURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// UserLink renders a mention of a user by id.
func UserLink(userID int64, name string) string {
	if strings.TrimSpace(name) == "" {
		name = fmt.Sprintf("%d", userID)
	}
	return fmt.Sprintf("<a href='tg://user?id=%d'>%s</a>", userID, EscapeHTML(name))
}
