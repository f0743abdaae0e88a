package flows

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/m3rciful/adminbot/core/telegram/format"
	"github.com/m3rciful/adminbot/core/telegram/state"
	"github.com/m3rciful/adminbot/internal/chat"
	"github.com/m3rciful/adminbot/internal/dispatch"
	"github.com/m3rciful/adminbot/internal/menu"
)

var channelIDPattern = regexp.MustCompile(`^-100\d{10}$`)

// AddAdmin appends the id the admin sends to the persisted admin set.
func (f *Flows) AddAdmin() dispatch.Route {
	return dispatch.Route{
		Target:      state.TargetAddAdminID,
		Name:        "add_admin",
		FailureText: "⚠️ Unable to add admin. Contact DevOps.",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			id := strings.TrimSpace(t.Event.Text)
			if id == "" {
				return dispatch.Invalid("⚠️ Please send a user ID.")
			}
			t.Consume()
			shown := format.EscapeHTML(id)
			if f.admins.IsConfigured(id) {
				return dispatch.Exists(fmt.Sprintf("⚠️ %s is already a configured admin !", shown))
			}
			added, err := f.store.AddAdmin(ctx, id)
			if err != nil {
				return err
			}
			if !added {
				return dispatch.Exists(fmt.Sprintf("⚠️ %s is already an admin !", shown))
			}
			settings, err := f.views.AdminSettings(ctx)
			if err != nil {
				return err
			}
			return f.send(ctx, t.Event.ChatID,
				withKeyboard(fmt.Sprintf("✅ %s added as an admin.", shown), f.views.Main(true).Keyboard),
				settings.Message(),
			)
		},
	}
}

// AddChannel registers a channel once the bot holds the rights it needs there.
func (f *Flows) AddChannel() dispatch.Route {
	return dispatch.Route{
		Target:      state.TargetChannelID,
		Name:        "add_channel",
		FailureText: "⚠️ Internal error !",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			raw := strings.TrimSpace(t.Event.Text)
			if !channelIDPattern.MatchString(raw) {
				return dispatch.Invalid("⚠️ Invalid channel ID format !\n\nUse : <code>-1001234567890</code>")
			}
			channelID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return dispatch.Invalid("⚠️ Invalid channel ID format !\n\nUse : <code>-1001234567890</code>")
			}

			self, err := f.messenger.Self(ctx)
			if err != nil {
				return channelError(err)
			}
			member, err := f.messenger.ChatMember(ctx, channelID, self)
			if err != nil {
				return channelError(err)
			}
			if !member.Privileged() {
				return dispatch.Invalid("⚠️ The bot is not an admin. Promote it.")
			}
			if missing := missingRights(member); len(missing) > 0 {
				return dispatch.Invalid(fmt.Sprintf(
					"⚠️ The bot lacks the following admin rights :-\n\n%s.\n\nPlease add the rights and resend chat Id !",
					strings.Join(missing, ", ")))
			}

			if _, err := f.store.AddChannel(ctx, raw); err != nil {
				return err
			}
			t.Consume()
			f.views.Invalidate()
			return f.send(ctx, t.Event.ChatID,
				withKeyboard("✅ Channel added.", button("Go Back", menu.CbBack, "")),
				f.views.Main(true).Message(),
			)
		},
	}
}

func missingRights(m chat.Member) []string {
	var missing []string
	if !m.CanChangeInfo {
		missing = append(missing, "'Change Channel Info'")
	}
	return missing
}

// channelError turns platform failures during the rights check into replies
// the admin can act on. Unclassified errors stay internal.
func channelError(err error) error {
	var apiErr *chat.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("channel rights check: %w", err)
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests:
		msg := "⚠️ Too many requests. Try again later."
		if apiErr.RetryAfter > 0 {
			msg = fmt.Sprintf("⚠️ Too many requests. Try again in %d s.", int(apiErr.RetryAfter.Seconds()))
		}
		return dispatch.Invalid(msg)
	case http.StatusForbidden:
		return dispatch.Invalid("⚠️ Bot is not in this channel!")
	case http.StatusBadRequest:
		return dispatch.Invalid(fmt.Sprintf("⚠️ Telegram API error : <code>%s</code>", format.EscapeHTML(apiErr.Description)))
	}
	return fmt.Errorf("channel rights check: %w", err)
}

// AddSocial stores a "<label>-<url>" link button.
func (f *Flows) AddSocial() dispatch.Route {
	return dispatch.Route{
		Target: state.TargetAddSocial,
		Name:   "add_social",
		Handle: func(ctx context.Context, t *dispatch.Turn) error {
			label, url, ok := parseSocial(t.Event.Text)
			if !ok {
				return dispatch.Invalid("⚠️ Please send a valid button text & url !")
			}
			if _, err := f.store.InsertSocialSite(ctx, label, url); err != nil {
				return err
			}
			t.Consume()
			f.views.Invalidate()
			sites, err := f.views.SocialSites(ctx)
			if err != nil {
				return err
			}
			return f.send(ctx, t.Event.ChatID,
				chat.Message{Text: fmt.Sprintf("✅ %s has been added to bot", format.EscapeHTML(url))},
				sites.Message(),
			)
		},
	}
}

// parseSocial splits at the first '-': the label comes before it, the URL
// after.
func parseSocial(text string) (string, string, bool) {
	label, url, found := strings.Cut(text, "-")
	label, url = strings.TrimSpace(label), strings.TrimSpace(url)
	if !found || label == "" || url == "" {
		return "", "", false
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", "", false
	}
	if !format.IsValidURL(url) {
		return "", "", false
	}
	return label, url, true
}
