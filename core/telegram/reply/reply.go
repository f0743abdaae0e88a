// Package reply describes outbound messages independently of the bot
// library that delivers them.
package reply

// Button is an inline callback button. Unique selects the callback handler,
// Data carries its payload.
type Button struct {
	Text   string
	Unique string
	Data   string
	// URL turns the button into a link; Unique and Data are ignored.
	URL string
}

// Keyboard is a grid of inline buttons. ReplyRows, when set, renders a reply
// keyboard of plain text buttons instead. Remove hides any reply keyboard.
type Keyboard struct {
	Rows      [][]Button
	ReplyRows [][]string
	Remove    bool
}

// Empty reports whether the keyboard renders nothing.
func (k *Keyboard) Empty() bool {
	return k == nil || (len(k.Rows) == 0 && len(k.ReplyRows) == 0 && !k.Remove)
}

// Message is an outbound HTML message.
type Message struct {
	Text     string
	Keyboard *Keyboard
}
