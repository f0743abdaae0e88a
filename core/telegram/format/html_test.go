package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyMarkup(t *testing.T) {
	assert.Equal(t, "<b>hi</b> <i>there</i> <code>code</code>", ApplyMarkup("*hi* _there_ ``code``"))
	assert.Equal(t, "<b>a</b> and <b>b</b>", ApplyMarkup("*a* and *b*"))
	assert.Equal(t, "plain *unclosed", ApplyMarkup("plain *unclosed"))
	assert.Equal(t, "*multi\nline*", ApplyMarkup("*multi\nline*"))
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "&lt;b&gt;Tom &amp; &quot;Jerry&quot; &#39;x&#39;&lt;/b&gt;", EscapeHTML(`<b>Tom & "Jerry" 'x'</b>`))
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL("https://example.com/x"))
	assert.True(t, IsValidURL("http://t.me/channel"))
	assert.False(t, IsValidURL("ftp://example.com"))
	assert.False(t, IsValidURL("https://"))
	assert.False(t, IsValidURL("example.com"))
}

func TestUserLink(t *testing.T) {
	assert.Equal(t, "<a href='tg://user?id=5'>A&lt;B</a>", UserLink(5, "A<B"))
	assert.Equal(t, "<a href='tg://user?id=5'>5</a>", UserLink(5, ""))
}
