package reply

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyboardEmpty(t *testing.T) {
	var nilKB *Keyboard
	assert.True(t, nilKB.Empty())
	assert.True(t, (&Keyboard{}).Empty())
	assert.False(t, (&Keyboard{Remove: true}).Empty())
	assert.False(t, (&Keyboard{ReplyRows: [][]string{{"Cancel"}}}).Empty())
	assert.False(t, (&Keyboard{Rows: [][]Button{{{Text: "Back", Unique: "back"}}}}).Empty())
}
