package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adminbot/core/logger"
	coretelegram "github.com/m3rciful/adminbot/core/telegram"
	"github.com/m3rciful/adminbot/core/telegram/callbacks"
	"github.com/m3rciful/adminbot/core/telegram/commands"
	"github.com/m3rciful/adminbot/core/telegram/format"
	tghelpers "github.com/m3rciful/adminbot/core/telegram/helpers"
	"github.com/m3rciful/adminbot/core/telegram/middleware"
	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/chat"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/menu"
	"github.com/m3rciful/adminbot/internal/store"
	"github.com/m3rciful/adminbot/internal/support"
)

// Back commands recorded with intents.
const (
	backMain  = "/start"
	backAdmin = "/admin"
)

const (
	unknownText    = "🤔 I didn't get that. Use the menu below."
	unknownDoc     = "⚠️ Files are not accepted here."
	accessDenied   = "⛔ This action is for admins only."
	slowDown       = "⏳ Too many messages. Slow down a little."
	taskNotFound   = "⚠️ Task not found !"
	userNotFound   = "⚠️ User not found in bot database."
	invalidPayload = "⚠️ Invalid selection."
)

// Users is the user and task persistence the handlers read.
type Users interface {
	UpsertUser(ctx context.Context, u store.User) error
	FindUser(ctx context.Context, id int64) (store.User, error)
	FindTask(ctx context.Context, id string) (store.Task, error)
}

// Intents is the dispatcher surface the handlers use.
type Intents interface {
	Expect(ctx context.Context, userID int64, target state.Target, payload state.Payload, back string)
	Cancel(ctx context.Context, userID int64) (state.Intent, bool)
	Dispatch(ctx context.Context, ev chat.Event) dispatch.Result
}

// Admins decides access to admin-only handlers.
type Admins interface {
	IsAdmin(ctx context.Context, userID int64) bool
}

// Handlers binds commands and callbacks to the conversational core.
type Handlers struct {
	users   Users
	admins  Admins
	intents Intents
	menu    *menu.Menu
}

// NewHandlers builds Handlers.
func NewHandlers(users Users, admins Admins, intents Intents, views *menu.Menu) *Handlers {
	return &Handlers{users: users, admins: admins, intents: intents, menu: views}
}

// Register adds every command and callback to reg.
func (h *Handlers) Register(reg *coretelegram.Registry) error {
	cmds := map[string]commands.Command{
		"/start": {Handler: h.start, Description: "Open the main menu"},
		"/help": {
			Handler:     h.help,
			Description: "Contact the admins",
			Aliases:     []string{menu.SupportText},
		},
		"/balance": {
			Handler:     h.balance,
			Description: "Show your balance",
			Aliases:     []string{menu.BalanceText},
		},
		"/social": {
			Handler:     h.social,
			Description: "Our social sites",
			Aliases:     []string{menu.SocialText},
		},
		"/cancel": {Handler: h.cancel, Description: "Cancel the current action"},
		"/admin": {
			Handler:     h.admin,
			Description: "Admin settings",
			AdminOnly:   true,
			Aliases:     []string{menu.AdminText},
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		Checker:  h.admins,
		OnReject: h.denied,
	})
	cbs := []struct {
		key   string
		fn    tele.HandlerFunc
		admin bool
	}{
		{menu.CbSupport, h.supportCallback, false},
		{menu.CbBack, h.backCallback, false},
		{menu.CbAdminUser, h.prompt(state.TargetAdminUserID, "<b>👤 Send the user ID.</b>"), true},
		{menu.CbBalance, h.balanceCallback, true},
		{menu.CbReply, h.replyCallback, true},
		{menu.CbAddAdmin, h.prompt(state.TargetAddAdminID, "<b>➕ Send the user ID of the new admin.</b>"), true},
		{menu.CbAddChannel, h.prompt(state.TargetChannelID, "<b>📢 Send the channel ID.</b>\n\nThe bot must be an admin there."), true},
		{menu.CbAddSocial, h.prompt(state.TargetAddSocial, "<b>🔗 Send the button as</b> <code>Text - https://url</code>"), true},
		{menu.CbTasks, h.tasks, true},
		{menu.CbEditTask, h.editTask, true},
		{menu.CbEditName, h.editField(state.TargetEditTaskName, store.TaskName), true},
		{menu.CbEditMessage, h.editField(state.TargetEditTaskMessage, store.TaskMessage), true},
		{menu.CbEditMedia, h.editField(state.TargetEditTaskMediaURL, store.TaskMediaURL), true},
	}
	for _, cb := range cbs {
		fn := cb.fn
		if cb.admin {
			fn = adminOnly(fn)
		}
		if err := reg.RegisterCallback(cb.key, fn); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.unknown)
	return nil
}

// HandleText feeds text to the sender's pending intent. Cancel and Back are
// recognised first and always handled.
func (h *Handlers) HandleText(c tele.Context) (bool, error) {
	ev := eventFrom(c)
	if ev.UserID == 0 {
		return false, nil
	}
	ctx := tghelpers.BuildContext(c)
	switch strings.TrimSpace(ev.Text) {
	case menu.CancelText:
		return true, h.cancel(c)
	case menu.BackText:
		return true, h.back(ctx, c)
	}
	res := h.intents.Dispatch(ctx, ev)
	return res.Outcome == dispatch.Handled, nil
}

// Limited answers updates dropped by the rate limiter.
func (h *Handlers) Limited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: slowDown})
	}
	return tghelpers.SendHTML(c, chat.Text(slowDown))
}

// unknown answers text nothing claimed.
func (h *Handlers) unknown(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	return tghelpers.SendHTML(c, withText(h.mainMenu(ctx, c), unknownText))
}

// UnknownDocument answers file uploads.
func (h *Handlers) UnknownDocument(c tele.Context) error {
	return tghelpers.SendHTML(c, chat.Text(unknownDoc))
}

func (h *Handlers) denied(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: accessDenied, ShowAlert: true})
	}
	return tghelpers.SendHTML(c, chat.Text(accessDenied))
}

func (h *Handlers) start(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "start")
	u := c.Sender()
	if u == nil {
		return nil
	}
	if err := h.users.UpsertUser(ctx, store.User{ID: u.ID, FirstName: u.FirstName, Username: u.Username}); err != nil {
		return err
	}
	h.intents.Cancel(ctx, u.ID)
	welcome := fmt.Sprintf("<b>👋 Welcome, %s!</b>", format.UserLink(u.ID, u.FirstName))
	return tghelpers.SendHTML(c, withText(h.mainMenu(ctx, c), welcome))
}

func (h *Handlers) help(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "help")
	u := c.Sender()
	if u == nil {
		return nil
	}
	h.intents.Expect(ctx, u.ID, state.TargetSupport, nil, backMain)
	return tghelpers.SendHTML(c, h.menu.SupportPrompt(u.ID).Message())
}

func (h *Handlers) balance(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "balance")
	u := c.Sender()
	if u == nil {
		return nil
	}
	user, err := h.users.FindUser(ctx, u.ID)
	if errors.Is(err, store.ErrNotFound) {
		user = store.User{ID: u.ID, FirstName: u.FirstName, Username: u.Username}
		err = h.users.UpsertUser(ctx, user)
	}
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, h.menu.Balance(user).Message())
}

func (h *Handlers) social(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "social")
	v, err := h.menu.SocialSites(ctx)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, v.Message())
}

func (h *Handlers) admin(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "admin")
	v, err := h.menu.AdminSettings(ctx)
	if err != nil {
		return err
	}
	return tghelpers.SendHTML(c, v.Message())
}

// cancel drops the intent and hides the prompt keyboard.
func (h *Handlers) cancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if u := c.Sender(); u != nil {
		h.intents.Cancel(ctx, u.ID)
	}
	return tghelpers.SendHTML(c, menu.Cancelled().Message())
}

// back drops the intent and returns to the main menu. Admins also get the
// admin panel.
func (h *Handlers) back(ctx context.Context, c tele.Context) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	h.intents.Cancel(ctx, u.ID)
	msgs := []chat.Message{h.mainMenu(ctx, c)}
	if h.admins.IsAdmin(ctx, u.ID) {
		v, err := h.menu.AdminSettings(ctx)
		if err != nil {
			return err
		}
		msgs = append(msgs, v.Message())
	}
	return tghelpers.SendAll(c, msgs...)
}

func (h *Handlers) backCallback(c tele.Context) error {
	return h.back(tghelpers.WithHandler(c, "callback.back"), c)
}

func (h *Handlers) supportCallback(c tele.Context) error {
	return h.help(c)
}

// prompt registers target for the sender and asks for the input.
func (h *Handlers) prompt(target state.Target, text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return h.expect(c, target, nil, text)
	}
}

func (h *Handlers) expect(c tele.Context, target state.Target, payload state.Payload, text string) error {
	u := c.Sender()
	if u == nil {
		return nil
	}
	ctx := tghelpers.WithHandler(c, "callback."+string(target))
	h.intents.Expect(ctx, u.ID, target, payload, backAdmin)
	return tghelpers.SendHTML(c, menu.Prompt(text, true).Message())
}

func (h *Handlers) balanceCallback(c tele.Context) error {
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return tghelpers.SendHTML(c, chat.Text(invalidPayload))
	}
	ctx := tghelpers.BuildContext(c)
	user, err := h.users.FindUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return tghelpers.SendHTML(c, chat.Text(userNotFound))
	}
	if err != nil {
		return err
	}
	text := fmt.Sprintf("<b>💰 Send the amount to add for %s.</b>\n\nCurrent balance : <code>%s</code>\nUse a negative number to subtract.",
		format.UserLink(user.ID, user.FirstName), formatBalance(user.BalanceValue()))
	return h.expect(c, state.TargetBalanceAmount, state.Payload{state.KeyUserID: userID}, text)
}

func (h *Handlers) replyCallback(c tele.Context) error {
	userID, queryID, err := support.ParseReplyData(callbacks.CallbackPayload(c))
	if err != nil {
		return tghelpers.SendHTML(c, chat.Text(invalidPayload))
	}
	text := fmt.Sprintf("<b>✉️ Send your reply to query <code>%s</code>.</b>", format.EscapeHTML(queryID))
	return h.expect(c, state.TargetReplyToQuery, state.Payload{
		state.KeyUserID:  userID,
		state.KeyQueryID: queryID,
	}, text)
}

func (h *Handlers) tasks(c tele.Context) error {
	ctx := tghelpers.WithHandler(c, "callback.tasks")
	v, err := h.menu.Tasks(ctx)
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, v.Message())
}

func (h *Handlers) editTask(c tele.Context) error {
	taskID, ok := callbacks.PayloadString(c)
	if !ok {
		return tghelpers.SendHTML(c, chat.Text(taskNotFound))
	}
	ctx := tghelpers.WithHandler(c, "callback.edit_task")
	t, err := h.users.FindTask(ctx, taskID)
	if errors.Is(err, store.ErrNotFound) {
		return tghelpers.SendHTML(c, chat.Text(taskNotFound))
	}
	if err != nil {
		return err
	}
	return tghelpers.EditOrSendHTML(c, h.menu.Task(t).Message())
}

func (h *Handlers) editField(target state.Target, field store.TaskField) tele.HandlerFunc {
	return func(c tele.Context) error {
		taskID, ok := callbacks.PayloadString(c)
		if !ok {
			return tghelpers.SendHTML(c, chat.Text(taskNotFound))
		}
		text := fmt.Sprintf("<b>✏️ Send the new %s.</b>", fieldNouns[field])
		if field == store.TaskMessage {
			text += "\n\nUse *bold*, _italic_ and `code`."
		}
		return h.expect(c, target, state.Payload{state.KeyTaskID: taskID}, text)
	}
}

func (h *Handlers) mainMenu(ctx context.Context, c tele.Context) chat.Message {
	admin := false
	if u := c.Sender(); u != nil {
		admin = h.admins.IsAdmin(ctx, u.ID)
	}
	return h.menu.Main(admin).Message()
}

func withText(msg chat.Message, text string) chat.Message {
	msg.Text = text
	return msg
}

func eventFrom(c tele.Context) chat.Event {
	ev := chat.Event{UpdateID: c.Update().ID, Text: c.Text()}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
		ev.FirstName = u.FirstName
		ev.Username = u.Username
	}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}
	if m := c.Message(); m != nil {
		ev.MessageID = m.ID
	}
	return ev
}

var fieldNouns = map[store.TaskField]string{
	store.TaskName:     "task name",
	store.TaskMessage:  "task message",
	store.TaskMediaURL: "media URL",
}

func formatBalance(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func logRegistered(ctx context.Context, reg *coretelegram.Registry) {
	logger.LogEvent(ctx, logger.TWire, slog.LevelInfo, "handlers.registered",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
}
