// Package keyboard converts transport-neutral keyboards to telebot markup.
package keyboard

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/telegram/reply"
)

// Markup converts kb. Inline rows win over reply rows when both are set; a
// nil or empty keyboard yields nil.
func Markup(kb *reply.Keyboard) *tele.ReplyMarkup {
	if kb.Empty() {
		return nil
	}
	switch {
	case kb.Remove:
		return RemoveKeyboard()
	case len(kb.Rows) > 0:
		return InlineRows(kb.Rows...)
	case len(kb.ReplyRows) > 0:
		return ReplyButtons(kb.ReplyRows...)
	}
	return nil
}

// RemoveKeyboard returns a markup that hides the keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard from rows of labels.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineRows builds an inline keyboard. Buttons with a URL open it; the rest
// carry callback data as unique|data.
func InlineRows(rows ...[]reply.Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			if btn.URL != "" {
				r = append(r, *markup.URL(btn.Text, btn.URL).Inline())
				continue
			}
			var data []string
			if btn.Data != "" {
				data = []string{btn.Data}
			}
			r = append(r, *markup.Data(btn.Text, btn.Unique, data...).Inline())
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}
