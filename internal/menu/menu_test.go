package menu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adminbot/internal/store"
)

type fakeSource struct {
	channels []store.Channel
	sites    []store.SocialSite
	reads    int
}

func (f *fakeSource) Channels(context.Context) ([]store.Channel, error) {
	f.reads++
	return f.channels, nil
}

func (f *fakeSource) SocialSites(context.Context) ([]store.SocialSite, error) {
	f.reads++
	return f.sites, nil
}

func (f *fakeSource) Tasks(context.Context) ([]store.Task, error) { return nil, nil }

func (f *fakeSource) CountUsers(context.Context) (int, error) { return 3, nil }

type backlog map[int64]int

func (b backlog) Backlog(id int64) int { return b[id] }

func TestPaginate(t *testing.T) {
	assert.Nil(t, Paginate([]int{}))
	assert.Equal(t, [][]int{{1}}, Paginate([]int{1}))
	assert.Equal(t, [][]int{{1}, {2, 3}, {4}}, Paginate([]int{1, 2, 3, 4}))
	assert.Equal(t, [][]int{{1}, {2, 3}, {4, 5}}, Paginate([]int{1, 2, 3, 4, 5}))
}

func TestSocialSitesCachedUntilInvalidated(t *testing.T) {
	src := &fakeSource{sites: []store.SocialSite{{ButtonText: "Join", URL: "https://example.com"}}}
	m := New(src, nil, time.Minute, nil)
	ctx := context.Background()

	v, err := m.SocialSites(ctx)
	require.NoError(t, err)
	require.NotNil(t, v.Keyboard)
	assert.Equal(t, "https://example.com", v.Keyboard.Rows[0][0].URL)

	src.sites = append(src.sites, store.SocialSite{ButtonText: "News", URL: "https://news.example.com"})
	v, err = m.SocialSites(ctx)
	require.NoError(t, err)
	assert.Len(t, v.Keyboard.Rows, 1)
	assert.Equal(t, 1, src.reads)

	m.Invalidate()
	v, err = m.SocialSites(ctx)
	require.NoError(t, err)
	assert.Len(t, v.Keyboard.Rows, 2)
}

func TestAdminSettingsListsChannels(t *testing.T) {
	src := &fakeSource{channels: []store.Channel{{ID: "-1001234567890"}}}
	m := New(src, nil, time.Minute, nil)
	v, err := m.AdminSettings(context.Background())
	require.NoError(t, err)
	assert.Contains(t, v.Text, "Users : <code>3</code>")
	assert.Contains(t, v.Text, "-1001234567890")
	assert.Equal(t, CbAdminUser, v.Keyboard.Rows[0][0].Unique)
}

func TestUserSettingsShowsBalanceAndBacklog(t *testing.T) {
	m := New(&fakeSource{}, backlog{9: 1}, time.Minute, nil)
	v := m.UserSettings(store.User{ID: 9, FirstName: "Kim"})
	assert.Contains(t, v.Text, "Balance : ₹0")
	assert.Contains(t, v.Text, "Pending queries : 1")
	assert.Equal(t, "9", v.Keyboard.Rows[0][0].Data)
}

func TestMainMenuAdminRow(t *testing.T) {
	m := New(&fakeSource{}, nil, time.Minute, nil)
	assert.Len(t, m.Main(false).Keyboard.ReplyRows, 2)
	assert.Equal(t, []string{AdminText}, m.Main(true).Keyboard.ReplyRows[2])
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0", formatAmount(0))
	assert.Equal(t, "50", formatAmount(50))
	assert.Equal(t, "29.5", formatAmount(29.5))
	assert.Equal(t, "-1.25", formatAmount(-1.25))
}
