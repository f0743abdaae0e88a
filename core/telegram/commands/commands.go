// Package commands describes slash commands registered with the bot.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command and its metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly wraps the handler with the admin check and hides the
	// command from the public menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are plain texts, such as reply keyboard labels, that run the
	// command too.
	Aliases []string
}
