// Package flows implements the transition behind each intent target.
package flows

import (
	"context"

	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/chat"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/menu"
	"github.com/m3rciful/adminbot/internal/store"
	"github.com/m3rciful/adminbot/internal/support"
)

// Store is the persistence the flows mutate.
type Store interface {
	FindUser(ctx context.Context, id int64) (store.User, error)
	AddBalance(ctx context.Context, id int64, amount float64) (float64, error)
	FindTask(ctx context.Context, id string) (store.Task, error)
	UpdateTaskField(ctx context.Context, id string, field store.TaskField, value string) error
	AddAdmin(ctx context.Context, id string) (bool, error)
	AddChannel(ctx context.Context, id string) (bool, error)
	InsertSocialSite(ctx context.Context, buttonText, url string) (store.SocialSite, error)
}

// Admins answers admin membership questions.
type Admins interface {
	IsConfigured(id string) bool
	IsAdmin(ctx context.Context, userID int64) bool
}

// Relay is the support query relay.
type Relay interface {
	Submit(ctx context.Context, from chat.Event, text string) (support.Submission, error)
	Resolve(ctx context.Context, userID int64, queryID, answer string) error
}

// Views renders menus.
type Views interface {
	Main(isAdmin bool) menu.View
	AdminSettings(ctx context.Context) (menu.View, error)
	UserSettings(u store.User) menu.View
	SocialSites(ctx context.Context) (menu.View, error)
	Invalidate()
}

// Flows holds the collaborators shared by every handler.
type Flows struct {
	store     Store
	admins    Admins
	relay     Relay
	views     Views
	messenger chat.Messenger
}

// New builds Flows.
func New(st Store, admins Admins, relay Relay, views Views, messenger chat.Messenger) *Flows {
	return &Flows{store: st, admins: admins, relay: relay, views: views, messenger: messenger}
}

// Routes returns every route in dispatch order.
func (f *Flows) Routes() []dispatch.Route {
	return []dispatch.Route{
		f.UserLookup(),
		f.Balance(),
		f.Support(),
		f.ReplyToQuery(),
		f.EditTask(state.TargetEditTaskName, store.TaskName),
		f.EditTask(state.TargetEditTaskMessage, store.TaskMessage),
		f.EditTask(state.TargetEditTaskMediaURL, store.TaskMediaURL),
		f.AddAdmin(),
		f.AddChannel(),
		f.AddSocial(),
	}
}

// send delivers msgs in order and stops at the first failure.
func (f *Flows) send(ctx context.Context, chatID int64, msgs ...chat.Message) error {
	for _, m := range msgs {
		if err := f.messenger.Send(ctx, chatID, m); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flows) mainMenu(ctx context.Context, userID int64) chat.Message {
	return f.views.Main(f.admins.IsAdmin(ctx, userID)).Message()
}

func withKeyboard(text string, kb *chat.Keyboard) chat.Message {
	return chat.Message{Text: text, Keyboard: kb}
}

func button(text, unique, data string) *chat.Keyboard {
	return &chat.Keyboard{Rows: [][]chat.Button{{{Text: text, Unique: unique, Data: data}}}}
}
