// Package menu renders the bot's views. Lists that change rarely are read
// through a TTL cache and invalidated after writes.
package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/adminbot/core/telegram/format"
	"github.com/m3rciful/adminbot/internal/cache"
	"github.com/m3rciful/adminbot/internal/chat"
	"github.com/m3rciful/adminbot/internal/store"
)

// Escape texts recognised before intent dispatch.
const (
	CancelText = "Cancel"
	BackText   = "Back"
)

// Main menu entries, matched as command aliases.
const (
	BalanceText = "💰 Balance"
	SupportText = "🎧 Support"
	SocialText  = "🔗 Social Sites"
	AdminText   = "⚙️ Admin Panel"
)

// Callback uniques of menu buttons.
const (
	CbAdminUser   = "admin_user"
	CbBalance     = "balance"
	CbSupport     = "support"
	CbReply       = "reply"
	CbAddAdmin    = "add_admin"
	CbAddChannel  = "add_channel"
	CbAddSocial   = "add_social"
	CbTasks       = "tasks"
	CbEditTask    = "edit_task"
	CbEditName    = "edit_name"
	CbEditMessage = "edit_message"
	CbEditMedia   = "edit_media"
	CbBack        = "back"
)

const (
	keyChannels = "channels"
	keySites    = "social_sites"
	keyTasks    = "tasks"
)

// View is a rendered message.
type View struct {
	Text     string
	Keyboard *chat.Keyboard
}

// Message converts the view for sending.
func (v View) Message() chat.Message {
	return chat.Message{Text: v.Text, Keyboard: v.Keyboard}
}

// Source reads the lists shown in menus.
type Source interface {
	Channels(ctx context.Context) ([]store.Channel, error)
	SocialSites(ctx context.Context) ([]store.SocialSite, error)
	Tasks(ctx context.Context) ([]store.Task, error)
	CountUsers(ctx context.Context) (int, error)
}

// Backlog reports unanswered support queries per user.
type Backlog interface {
	Backlog(userID int64) int
}

// Menu renders views.
type Menu struct {
	src      Source
	backlog  Backlog
	channels *cache.Cache[[]store.Channel]
	sites    *cache.Cache[[]store.SocialSite]
	tasks    *cache.Cache[[]store.Task]
}

// New builds a Menu. observe, when non-nil, returns a hit/miss callback per
// cache name.
func New(src Source, backlog Backlog, ttl time.Duration, observe func(name string) func(hit bool)) *Menu {
	opt := func(name string) []cache.Option {
		if observe == nil {
			return nil
		}
		return []cache.Option{cache.WithObserver(observe(name))}
	}
	return &Menu{
		src:      src,
		backlog:  backlog,
		channels: cache.New[[]store.Channel](ttl, opt(keyChannels)...),
		sites:    cache.New[[]store.SocialSite](ttl, opt(keySites)...),
		tasks:    cache.New[[]store.Task](ttl, opt(keyTasks)...),
	}
}

// Invalidate drops every cached list.
func (m *Menu) Invalidate() {
	m.channels.Forget(keyChannels)
	m.sites.Forget(keySites)
	m.tasks.Forget(keyTasks)
}

// Main is the reply keyboard menu.
func (m *Menu) Main(isAdmin bool) View {
	rows := [][]string{{BalanceText, SupportText}, {SocialText}}
	if isAdmin {
		rows = append(rows, []string{AdminText})
	}
	return View{Text: "Main Menu", Keyboard: &chat.Keyboard{ReplyRows: rows}}
}

// Prompt asks for the next text message and offers the escape button.
func Prompt(text string, admin bool) View {
	escape := CancelText
	if admin {
		escape = BackText
	}
	return View{Text: text, Keyboard: &chat.Keyboard{ReplyRows: [][]string{{escape}}}}
}

// Cancelled confirms a cancel and hides the reply keyboard.
func Cancelled() View {
	return View{Text: "action cancelled.", Keyboard: &chat.Keyboard{Remove: true}}
}

// AdminSettings is the admin panel.
func (m *Menu) AdminSettings(ctx context.Context) (View, error) {
	users, err := m.src.CountUsers(ctx)
	if err != nil {
		return View{}, fmt.Errorf("menu: admin settings: %w", err)
	}
	channels, err := m.channels.GetOrCompute(ctx, keyChannels, m.src.Channels)
	if err != nil {
		return View{}, fmt.Errorf("menu: admin settings: %w", err)
	}
	var b strings.Builder
	b.WriteString("<b>⚙️ Admin Settings</b>\n\n")
	fmt.Fprintf(&b, "👥 Users : <code>%d</code>\n", users)
	fmt.Fprintf(&b, "📢 Channels : <code>%d</code>", len(channels))
	for _, c := range channels {
		fmt.Fprintf(&b, "\n• <code>%s</code>", format.EscapeHTML(c.ID))
	}
	kb := &chat.Keyboard{Rows: [][]chat.Button{
		{{Text: "👤 User Settings", Unique: CbAdminUser}},
		{{Text: "➕ Add Admin", Unique: CbAddAdmin}, {Text: "📢 Add Channel", Unique: CbAddChannel}},
		{{Text: "🔗 Add Social", Unique: CbAddSocial}, {Text: "📝 Tasks", Unique: CbTasks}},
	}}
	return View{Text: b.String(), Keyboard: kb}, nil
}

// UserSettings shows one user to an admin.
func (m *Menu) UserSettings(u store.User) View {
	var b strings.Builder
	b.WriteString("<b>👤 User Settings</b>\n\n")
	fmt.Fprintf(&b, "🆔 ID : <code>%d</code>\n", u.ID)
	fmt.Fprintf(&b, "🙎 Name : %s\n", format.UserLink(u.ID, u.FirstName))
	if u.Username != "" {
		fmt.Fprintf(&b, "📛 Username : @%s\n", format.EscapeHTML(u.Username))
	}
	fmt.Fprintf(&b, "💰 Balance : ₹%s", formatAmount(u.BalanceValue()))
	if m.backlog != nil {
		fmt.Fprintf(&b, "\n📨 Pending queries : %d", m.backlog.Backlog(u.ID))
	}
	kb := &chat.Keyboard{Rows: [][]chat.Button{
		{{Text: "💰 Change Balance", Unique: CbBalance, Data: fmt.Sprintf("%d", u.ID)}},
		{{Text: "↩️ Back", Unique: CbBack}},
	}}
	return View{Text: b.String(), Keyboard: kb}
}

// Balance is the user's own balance view.
func (m *Menu) Balance(u store.User) View {
	return View{Text: fmt.Sprintf("<b>💰 Balance : ₹%s</b>", formatAmount(u.BalanceValue()))}
}

// SocialSites lists the link buttons.
func (m *Menu) SocialSites(ctx context.Context) (View, error) {
	sites, err := m.sites.GetOrCompute(ctx, keySites, m.src.SocialSites)
	if err != nil {
		return View{}, fmt.Errorf("menu: social sites: %w", err)
	}
	if len(sites) == 0 {
		return View{Text: "<b>🔗 Social Sites</b>\n\nNo links yet."}, nil
	}
	buttons := make([]chat.Button, 0, len(sites))
	for _, s := range sites {
		buttons = append(buttons, chat.Button{Text: s.ButtonText, URL: s.URL})
	}
	return View{
		Text:     "<b>🔗 Social Sites</b>",
		Keyboard: &chat.Keyboard{Rows: Paginate(buttons)},
	}, nil
}

// Tasks lists tasks with an edit button each.
func (m *Menu) Tasks(ctx context.Context) (View, error) {
	tasks, err := m.tasks.GetOrCompute(ctx, keyTasks, m.src.Tasks)
	if err != nil {
		return View{}, fmt.Errorf("menu: tasks: %w", err)
	}
	if len(tasks) == 0 {
		return View{Text: "<b>📝 Tasks</b>\n\nNo tasks configured."}, nil
	}
	buttons := make([]chat.Button, 0, len(tasks))
	for _, t := range tasks {
		buttons = append(buttons, chat.Button{Text: t.Name, Unique: CbEditTask, Data: t.ID})
	}
	rows := Paginate(buttons)
	rows = append(rows, []chat.Button{{Text: "↩️ Back", Unique: CbBack}})
	return View{Text: "<b>📝 Tasks</b>", Keyboard: &chat.Keyboard{Rows: rows}}, nil
}

// Task shows a task with its edit actions.
func (m *Menu) Task(t store.Task) View {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>📝 %s</b>\n\n", format.EscapeHTML(t.Name))
	b.WriteString(t.MessageText)
	if t.MediaURL != "" {
		fmt.Fprintf(&b, "\n\n🖼 Media : %s", format.EscapeHTML(t.MediaURL))
	}
	kb := &chat.Keyboard{Rows: [][]chat.Button{
		{{Text: "✏️ Name", Unique: CbEditName, Data: t.ID}, {Text: "✏️ Message", Unique: CbEditMessage, Data: t.ID}},
		{{Text: "✏️ Media URL", Unique: CbEditMedia, Data: t.ID}},
		{{Text: "↩️ Back", Unique: CbTasks}},
	}}
	return View{Text: b.String(), Keyboard: kb}
}

// SupportPrompt asks for a support query and shows the user's backlog.
func (m *Menu) SupportPrompt(userID int64) View {
	text := "<b>🎧 Send your message for the admins.</b>"
	if m.backlog != nil {
		if n := m.backlog.Backlog(userID); n > 0 {
			text += fmt.Sprintf("\n\nℹ️ Unanswered queries : %d", n)
		}
	}
	return Prompt(text, false)
}

// Paginate lays items out with the first one alone and the rest in pairs.
func Paginate[T any](items []T) [][]T {
	if len(items) == 0 {
		return nil
	}
	rows := [][]T{{items[0]}}
	for i := 1; i < len(items); i += 2 {
		end := min(i+2, len(items))
		rows = append(rows, items[i:end])
	}
	return rows
}

func formatAmount(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
