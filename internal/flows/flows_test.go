package flows

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/chat"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/menu"
	"github.com/m3rciful/adminbot/internal/store"
	"github.com/m3rciful/adminbot/internal/support"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[int64]store.User
	tasks    map[string]store.Task
	admins   []string
	channels []store.Channel
	sites    []store.SocialSite
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[int64]store.User{}, tasks: map[string]store.Task{}}
}

func (s *fakeStore) FindUser(_ context.Context, id int64) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) AddBalance(_ context.Context, id int64, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	u.Balance = sql.NullFloat64{Float64: u.Balance.Float64 + amount, Valid: true}
	s.users[id] = u
	return u.Balance.Float64, nil
}

func (s *fakeStore) FindTask(_ context.Context, id string) (store.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return store.Task{}, store.ErrNotFound
	}
	return t, nil
}

func (s *fakeStore) UpdateTaskField(_ context.Context, id string, field store.TaskField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	switch field {
	case store.TaskName:
		t.Name = value
	case store.TaskMessage:
		t.MessageText = value
	case store.TaskMediaURL:
		t.MediaURL = value
	}
	s.tasks[id] = t
	return nil
}

func (s *fakeStore) AddAdmin(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a == id {
			return false, nil
		}
	}
	s.admins = append(s.admins, id)
	return true, nil
}

func (s *fakeStore) AddChannel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.channels {
		if c.ID == id {
			return false, nil
		}
	}
	s.channels = append(s.channels, store.Channel{ID: id})
	return true, nil
}

func (s *fakeStore) InsertSocialSite(_ context.Context, buttonText, url string) (store.SocialSite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	site := store.SocialSite{ID: "site-" + buttonText, ButtonText: buttonText, URL: url}
	s.sites = append(s.sites, site)
	return site, nil
}

func (s *fakeStore) Channels(context.Context) ([]store.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Channel(nil), s.channels...), nil
}

func (s *fakeStore) SocialSites(context.Context) ([]store.SocialSite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.SocialSite(nil), s.sites...), nil
}

func (s *fakeStore) Tasks(context.Context) ([]store.Task, error) { return nil, nil }

func (s *fakeStore) CountUsers(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), nil
}

type fakeAdmins struct {
	configured map[string]bool
	ids        []int64
}

func (a fakeAdmins) IsConfigured(id string) bool { return a.configured[id] }

func (a fakeAdmins) IsAdmin(_ context.Context, userID int64) bool {
	for _, id := range a.ids {
		if id == userID {
			return true
		}
	}
	return false
}

func (a fakeAdmins) Recipients(context.Context) []int64 { return a.ids }

type fakeMessenger struct {
	mu        sync.Mutex
	sent      map[int64][]chat.Message
	deleted   []int
	member    chat.Member
	memberErr error
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[chatID] = append(m.sent[chatID], msg)
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) Self(context.Context) (int64, error) { return 999, nil }

func (m *fakeMessenger) ChatMember(context.Context, int64, int64) (chat.Member, error) {
	return m.member, m.memberErr
}

func (m *fakeMessenger) texts(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent[chatID]))
	for _, msg := range m.sent[chatID] {
		out = append(out, msg.Text)
	}
	return out
}

const adminID = int64(1)

type harness struct {
	store     *fakeStore
	messenger *fakeMessenger
	intents   *state.MemoryStore
	relay     *support.Relay
	disp      *dispatch.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:     newFakeStore(),
		messenger: &fakeMessenger{sent: map[int64][]chat.Message{}},
		intents:   state.NewMemoryStore(),
	}
	admins := fakeAdmins{configured: map[string]bool{"1": true}, ids: []int64{adminID}}
	h.relay = support.NewRelay(admins, h.messenger, support.Options{
		NewID: func(int) (string, error) { return "q1", nil },
	})
	views := menu.New(h.store, h.relay, 0, nil)
	f := New(h.store, admins, h.relay, views, h.messenger)
	disp, err := dispatch.New(h.intents, h.messenger, f.Routes())
	require.NoError(t, err)
	h.disp = disp
	return h
}

func (h *harness) expect(userID int64, target state.Target, payload state.Payload) {
	h.disp.Expect(context.Background(), userID, target, payload, "")
}

func (h *harness) send(userID int64, text string) dispatch.Result {
	return h.disp.Dispatch(context.Background(), chat.Event{
		UserID: userID, ChatID: userID, MessageID: 77, Text: text, FirstName: "Ann", Username: "ann",
	})
}

func (h *harness) pending(userID int64) bool {
	_, ok := h.intents.Get(userID)
	return ok
}

func TestRoutesCoverEveryTarget(t *testing.T) {
	h := newHarness(t)
	f := New(h.store, fakeAdmins{}, h.relay, menu.New(h.store, nil, 0, nil), h.messenger)
	got := map[state.Target]bool{}
	for _, r := range f.Routes() {
		got[r.Target] = true
	}
	for _, target := range []state.Target{
		state.TargetAdminUserID, state.TargetBalanceAmount, state.TargetSupport, state.TargetReplyToQuery,
		state.TargetAddAdminID, state.TargetChannelID, state.TargetAddSocial,
		state.TargetEditTaskName, state.TargetEditTaskMessage, state.TargetEditTaskMediaURL,
	} {
		assert.True(t, got[target], target)
	}
}

func TestUserLookup(t *testing.T) {
	h := newHarness(t)
	h.store.users[7] = store.User{ID: 7, FirstName: "Bob"}

	h.expect(adminID, state.TargetAdminUserID, nil)
	res := h.send(adminID, "abc")
	assert.Equal(t, dispatch.KindValidation, res.Kind)
	assert.True(t, h.pending(adminID))

	res = h.send(adminID, "8")
	assert.Equal(t, dispatch.KindNotFound, res.Kind)
	assert.True(t, h.pending(adminID))

	res = h.send(adminID, " 7 ")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.False(t, h.pending(adminID))
	texts := h.messenger.texts(adminID)
	assert.Contains(t, texts[len(texts)-2], "<code>7</code>")
	assert.Equal(t, "User Settings.", texts[len(texts)-1])
}

func TestBalanceAddsToUnsetBalance(t *testing.T) {
	h := newHarness(t)
	h.store.users[7] = store.User{ID: 7}

	h.expect(adminID, state.TargetBalanceAmount, state.Payload{state.KeyUserID: int64(7)})
	res := h.send(adminID, "50")

	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.False(t, h.pending(adminID))
	assert.InDelta(t, 50, h.store.users[7].BalanceValue(), 0.0001)
	texts := h.messenger.texts(adminID)
	require.Len(t, texts, 2)
	assert.Equal(t, "✅ Balance Added : +₹50\n", texts[0])
	assert.Contains(t, texts[1], "₹50")
}

func TestBalanceRejectsOutOfRangeAmount(t *testing.T) {
	h := newHarness(t)
	h.store.users[7] = store.User{ID: 7, Balance: sql.NullFloat64{Float64: 10, Valid: true}}

	h.expect(adminID, state.TargetBalanceAmount, state.Payload{state.KeyUserID: int64(7)})
	for _, input := range []string{"1000000001", "-1000000001", "ten", "NaN"} {
		res := h.send(adminID, input)
		assert.Equal(t, dispatch.KindValidation, res.Kind, input)
	}

	assert.True(t, h.pending(adminID))
	assert.InDelta(t, 10, h.store.users[7].BalanceValue(), 0.0001)
	assert.Equal(t, "⚠️ Invalid amount !\n\nUse numbers between -1B and 1B", h.messenger.texts(adminID)[0])

	res := h.send(adminID, "-5")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.Equal(t, "✅ Balance Added : ₹-5\n", h.messenger.texts(adminID)[4])
}

func TestBalanceWithoutTargetUserConsumes(t *testing.T) {
	h := newHarness(t)

	h.expect(adminID, state.TargetBalanceAmount, nil)
	res := h.send(adminID, "50")
	assert.Equal(t, dispatch.KindNotFound, res.Kind)
	assert.False(t, h.pending(adminID))
	assert.Equal(t, []string{"⚠️ Invalid user selection."}, h.messenger.texts(adminID))

	h.expect(adminID, state.TargetBalanceAmount, state.Payload{state.KeyUserID: "404"})
	res = h.send(adminID, "50")
	assert.Equal(t, dispatch.KindNotFound, res.Kind)
	assert.False(t, h.pending(adminID))
	assert.Equal(t, "⚠️ User not found in the database.", h.messenger.texts(adminID)[1])
}

func TestSupportSubmitAndCapacity(t *testing.T) {
	h := newHarness(t)
	const userID = int64(42)

	h.expect(userID, state.TargetSupport, nil)
	res := h.send(userID, "my order is late")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.False(t, h.pending(userID))
	assert.Equal(t, []int{77}, h.messenger.deleted)
	assert.Equal(t, 1, h.relay.Backlog(userID))
	assert.Equal(t, "<b>✅ Message delivered to admins.\n\nℹ️ Query ID : <code>q1</code></b>", h.messenger.texts(userID)[0])
	require.Len(t, h.messenger.sent[adminID], 1)

	h.expect(userID, state.TargetSupport, nil)
	res = h.send(userID, "again")
	assert.Equal(t, dispatch.KindCapacity, res.Kind)
	assert.False(t, h.pending(userID))
	texts := h.messenger.texts(userID)
	assert.Equal(t, "<b>⚠️ Please wait for existing queries to be answered.</b>", texts[len(texts)-1])
	assert.Len(t, h.messenger.sent[adminID], 1)
}

func TestReplyToQueryResolves(t *testing.T) {
	h := newHarness(t)
	const userID = int64(42)
	h.expect(userID, state.TargetSupport, nil)
	h.send(userID, "help")
	require.Equal(t, 1, h.relay.Backlog(userID))

	h.expect(adminID, state.TargetReplyToQuery, state.Payload{state.KeyUserID: userID, state.KeyQueryID: "q1"})
	res := h.send(adminID, "on its way")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.Zero(t, h.relay.Backlog(userID))

	userTexts := h.messenger.texts(userID)
	assert.Contains(t, userTexts[len(userTexts)-1], "on its way")
	adminMsgs := h.messenger.sent[adminID]
	confirm := adminMsgs[len(adminMsgs)-2]
	assert.Equal(t, "<b>✅ Message delivered to the user.</b>", confirm.Text)
	assert.Equal(t, "42|q1", confirm.Keyboard.Rows[0][0].Data)
}

func TestEditTaskMessageAppliesMarkup(t *testing.T) {
	h := newHarness(t)
	h.store.tasks["t1"] = store.Task{ID: "t1", Name: "Follow"}

	h.expect(adminID, state.TargetEditTaskMessage, state.Payload{state.KeyTaskID: "t1"})
	res := h.send(adminID, "*hi* _there_ ``code``")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.Equal(t, "<b>hi</b> <i>there</i> <code>code</code>", h.store.tasks["t1"].MessageText)
	msg := h.messenger.sent[adminID][0]
	assert.Equal(t, "<b>✅ MessageText updated.</b>", msg.Text)
	assert.Equal(t, "t1", msg.Keyboard.Rows[0][0].Data)

	h.expect(adminID, state.TargetEditTaskName, state.Payload{state.KeyTaskID: "gone"})
	res = h.send(adminID, "x")
	assert.Equal(t, dispatch.KindNotFound, res.Kind)
	assert.False(t, h.pending(adminID))
	assert.Equal(t, "⚠️ Task not found !", h.messenger.texts(adminID)[1])
}

func TestAddAdmin(t *testing.T) {
	h := newHarness(t)

	h.expect(adminID, state.TargetAddAdminID, nil)
	res := h.send(adminID, "1")
	assert.Equal(t, dispatch.KindDuplicate, res.Kind)
	assert.False(t, h.pending(adminID))
	assert.Equal(t, "⚠️ 1 is already a configured admin !", h.messenger.texts(adminID)[0])
	assert.Empty(t, h.store.admins)

	h.expect(adminID, state.TargetAddAdminID, nil)
	res = h.send(adminID, "555")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.Equal(t, []string{"555"}, h.store.admins)
	assert.Equal(t, "✅ 555 added as an admin.", h.messenger.texts(adminID)[1])

	h.expect(adminID, state.TargetAddAdminID, nil)
	res = h.send(adminID, "555")
	assert.Equal(t, dispatch.KindDuplicate, res.Kind)
	assert.False(t, h.pending(adminID))
	texts := h.messenger.texts(adminID)
	assert.Equal(t, "⚠️ 555 is already an admin !", texts[len(texts)-1])
	assert.Equal(t, []string{"555"}, h.store.admins)
}

func TestAddChannel(t *testing.T) {
	h := newHarness(t)

	h.expect(adminID, state.TargetChannelID, nil)
	res := h.send(adminID, "123456")
	assert.Equal(t, dispatch.KindValidation, res.Kind)
	assert.Equal(t, "⚠️ Invalid channel ID format !\n\nUse : <code>-1001234567890</code>", h.messenger.texts(adminID)[0])
	assert.True(t, h.pending(adminID))

	h.messenger.member = chat.Member{Status: chat.StatusMember}
	h.send(adminID, "-1009876543210")
	assert.Equal(t, "⚠️ The bot is not an admin. Promote it.", h.messenger.texts(adminID)[1])

	h.messenger.member = chat.Member{Status: chat.StatusAdministrator}
	h.send(adminID, "-1009876543210")
	assert.True(t, strings.Contains(h.messenger.texts(adminID)[2], "'Change Channel Info'"))
	assert.Empty(t, h.store.channels)
	assert.True(t, h.pending(adminID))

	h.messenger.member = chat.Member{Status: chat.StatusAdministrator, CanChangeInfo: true}
	res = h.send(adminID, "-1009876543210")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	assert.False(t, h.pending(adminID))
	assert.Equal(t, []store.Channel{{ID: "-1009876543210"}}, h.store.channels)
	assert.Equal(t, "✅ Channel added.", h.messenger.texts(adminID)[3])
}

func TestAddChannelPlatformErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind string
		want string
	}{
		{&chat.APIError{Code: 403, Description: "Forbidden"}, dispatch.KindValidation, "⚠️ Bot is not in this channel!"},
		{&chat.APIError{Code: 400, Description: "chat not found"}, dispatch.KindValidation, "⚠️ Telegram API error : <code>chat not found</code>"},
		{errors.New("network down"), dispatch.KindFailure, "⚠️ Internal error !"},
	}
	for _, tc := range cases {
		h := newHarness(t)
		h.messenger.memberErr = tc.err
		h.expect(adminID, state.TargetChannelID, nil)
		res := h.send(adminID, "-1009876543210")
		assert.Equal(t, tc.kind, res.Kind)
		assert.Equal(t, []string{tc.want}, h.messenger.texts(adminID))
		assert.Empty(t, h.store.channels)
	}
}

func TestAddSocial(t *testing.T) {
	h := newHarness(t)

	h.expect(adminID, state.TargetAddSocial, nil)
	for _, bad := range []string{"no separator", "-https://example.com", "Join-example.com", "Join-ftp://example.com"} {
		res := h.send(adminID, bad)
		assert.Equal(t, dispatch.KindValidation, res.Kind, bad)
	}
	assert.Empty(t, h.store.sites)

	res := h.send(adminID, "Join - https://example.com/x")
	assert.Equal(t, dispatch.KindOK, res.Kind)
	require.Len(t, h.store.sites, 1)
	assert.Equal(t, "Join", h.store.sites[0].ButtonText)
	assert.Equal(t, "https://example.com/x", h.store.sites[0].URL)

	msgs := h.messenger.sent[adminID]
	assert.Equal(t, "✅ https://example.com/x has been added to bot", msgs[len(msgs)-2].Text)
	assert.Equal(t, "https://example.com/x", msgs[len(msgs)-1].Keyboard.Rows[0][0].URL)
}

func TestParseSocialSplitsAtFirstDash(t *testing.T) {
	label, url, ok := parseSocial("Join-https://my-site.example.com/a-b")
	require.True(t, ok)
	assert.Equal(t, "Join", label)
	assert.Equal(t, "https://my-site.example.com/a-b", url)
}
