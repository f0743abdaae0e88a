// Package support relays user queries to every admin and routes admin
// answers back. Each user may hold a bounded number of unanswered queries.
package support

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/m3rciful/adminbot/core/logger"
	"github.com/m3rciful/adminbot/core/telegram/format"
	"github.com/m3rciful/adminbot/internal/chat"
)

const (
	// DefaultCap is the number of unanswered queries a user may hold.
	DefaultCap = 1
	// DefaultIDLength is the length of generated query ids.
	DefaultIDLength = 10

	// ReplyCallback is the callback unique of the admin "Reply" button.
	ReplyCallback = "reply"
	// HelpCallback is the callback unique that starts a new support query.
	HelpCallback = "support"
)

var (
	// ErrCapacity is returned by Submit when the user already holds the
	// maximum number of unanswered queries.
	ErrCapacity = errors.New("support: pending query limit reached")
	// ErrUndelivered is returned by Submit when no admin received the query.
	ErrUndelivered = errors.New("support: query not delivered to any admin")
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Admins lists the users a query is fanned out to.
type Admins interface {
	Recipients(ctx context.Context) []int64
}

// Sender is the outbound message capability the relay needs.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg chat.Message) error
}

// Observer receives relay metrics.
type Observer interface {
	SupportQuery(event string)
	SupportSend(ok bool)
}

// Options tune a Relay. Zero values select the defaults.
type Options struct {
	Cap      int
	IDLength int
	// NewID generates query ids of length n.
	NewID    func(n int) (string, error)
	Observer Observer
}

// Delivery is the outcome of one fan-out send.
type Delivery struct {
	ChatID int64
	Err    error
}

// OK reports whether the message was sent.
func (d Delivery) OK() bool { return d.Err == nil }

// Submission describes an accepted query.
type Submission struct {
	QueryID    string
	Deliveries []Delivery
}

// Delivered counts successful sends.
func (s Submission) Delivered() int {
	n := 0
	for _, d := range s.Deliveries {
		if d.OK() {
			n++
		}
	}
	return n
}

// Relay tracks outstanding queries per user.
type Relay struct {
	admins   Admins
	sender   Sender
	cap      int
	idLength int
	newID    func(n int) (string, error)
	observer Observer

	mu      sync.Mutex
	pending map[int64]map[string]struct{}
}

// NewRelay builds a Relay.
func NewRelay(admins Admins, sender Sender, opts Options) *Relay {
	if opts.Cap <= 0 {
		opts.Cap = DefaultCap
	}
	if opts.IDLength <= 0 {
		opts.IDLength = DefaultIDLength
	}
	if opts.NewID == nil {
		opts.NewID = RandomID
	}
	return &Relay{
		admins:   admins,
		sender:   sender,
		cap:      opts.Cap,
		idLength: opts.IDLength,
		newID:    opts.NewID,
		observer: opts.Observer,
		pending:  make(map[int64]map[string]struct{}),
	}
}

// Submit admits a query from the sender of ev and fans text out to every
// admin. A full backlog yields ErrCapacity with nothing sent or recorded.
// When no admin received the message the id is withdrawn and ErrUndelivered
// is returned together with the per-admin outcomes.
func (r *Relay) Submit(ctx context.Context, from chat.Event, text string) (Submission, error) {
	id, err := r.admit(from.UserID)
	if err != nil {
		r.observe(func(o Observer) { o.SupportQuery("rejected") })
		return Submission{}, err
	}

	recipients := r.admins.Recipients(ctx)
	sub := Submission{
		QueryID:    id,
		Deliveries: FanOut(ctx, r.sender, recipients, adminMessage(from, id, text)),
	}
	for _, d := range sub.Deliveries {
		ok := d.OK()
		r.observe(func(o Observer) { o.SupportSend(ok) })
	}

	delivered := sub.Delivered()
	attrs := []slog.Attr{
		slog.String("query_id", id),
		slog.Int64("user_id", from.UserID),
		slog.Int("recipients", len(recipients)),
		slog.Int("delivered", delivered),
		slog.Int("failed", len(sub.Deliveries)-delivered),
	}
	if delivered == 0 {
		r.withdraw(from.UserID, id)
		r.observe(func(o Observer) { o.SupportQuery("undelivered") })
		logger.LogEvent(ctx, logger.SUP, slog.LevelError, "support.undelivered", attrs...)
		return sub, ErrUndelivered
	}
	level := slog.LevelInfo
	if delivered < len(sub.Deliveries) {
		level = slog.LevelWarn
	}
	r.observe(func(o Observer) { o.SupportQuery("submitted") })
	logger.LogEvent(ctx, logger.SUP, level, "support.submitted", attrs...)
	return sub, nil
}

func (r *Relay) admit(userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.pending[userID]
	if len(set) >= r.cap {
		return "", ErrCapacity
	}
	id, err := r.newID(r.idLength)
	if err != nil {
		return "", fmt.Errorf("support: generate query id: %w", err)
	}
	if set == nil {
		set = make(map[string]struct{}, 1)
		r.pending[userID] = set
	}
	set[id] = struct{}{}
	return id, nil
}

func (r *Relay) withdraw(userID int64, queryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(userID, queryID)
}

func (r *Relay) removeLocked(userID int64, queryID string) {
	set, ok := r.pending[userID]
	if !ok {
		return
	}
	delete(set, queryID)
	if len(set) == 0 {
		delete(r.pending, userID)
	}
}

// Resolve delivers an admin answer to userID and marks queryID answered.
// An unknown queryID still delivers the answer. On send failure the backlog
// is left untouched and the error returned.
func (r *Relay) Resolve(ctx context.Context, userID int64, queryID, answer string) error {
	if err := r.sender.Send(ctx, userID, userMessage(answer)); err != nil {
		logger.LogEvent(ctx, logger.SUP, slog.LevelWarn, "support.resolve_failed",
			slog.Int64("user_id", userID),
			slog.String("query_id", queryID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("support: deliver answer: %w", err)
	}
	r.mu.Lock()
	r.removeLocked(userID, queryID)
	r.mu.Unlock()
	r.observe(func(o Observer) { o.SupportQuery("resolved") })
	logger.LogEvent(ctx, logger.SUP, slog.LevelInfo, "support.resolved",
		slog.Int64("user_id", userID),
		slog.String("query_id", queryID),
	)
	return nil
}

// Backlog returns the number of unanswered queries of userID.
func (r *Relay) Backlog(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending[userID])
}

// Outstanding returns the unanswered query ids of userID, sorted.
func (r *Relay) Outstanding(userID int64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.pending[userID]))
	for id := range r.pending[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Relay) observe(fn func(Observer)) {
	if r.observer != nil {
		fn(r.observer)
	}
}

// FanOut sends msg to each recipient in order and reports every outcome.
// A failed send does not stop the remaining ones.
func FanOut(ctx context.Context, sender Sender, recipients []int64, msg chat.Message) []Delivery {
	out := make([]Delivery, 0, len(recipients))
	for _, id := range recipients {
		if err := ctx.Err(); err != nil {
			out = append(out, Delivery{ChatID: id, Err: err})
			continue
		}
		err := sender.Send(ctx, id, msg)
		if err != nil {
			logger.LogEvent(ctx, logger.SUP, slog.LevelWarn, "support.fanout_failed",
				slog.Int64("chat_id", id),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
		out = append(out, Delivery{ChatID: id, Err: err})
	}
	return out
}

// ReplyData encodes the payload of the admin "Reply" button.
func ReplyData(userID int64, queryID string) string {
	return strconv.FormatInt(userID, 10) + "|" + queryID
}

// ParseReplyData decodes a ReplyData payload.
func ParseReplyData(data string) (int64, string, error) {
	rawUser, queryID, ok := strings.Cut(data, "|")
	if !ok || queryID == "" {
		return 0, "", fmt.Errorf("support: malformed reply payload %q", data)
	}
	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("support: malformed reply user id: %w", err)
	}
	return userID, queryID, nil
}

func adminMessage(from chat.Event, queryID, text string) chat.Message {
	username := ""
	if from.Username != "" {
		username = "@" + format.EscapeHTML(from.Username)
	}
	body := fmt.Sprintf("<b>🙎🏻‍♂️ Query <code>%s</code> Received From %s :- %s</b>\n\n<code>%s</code>",
		queryID, format.UserLink(from.UserID, from.FirstName), username, format.EscapeHTML(text))
	return chat.Message{
		Text: body,
		Keyboard: &chat.Keyboard{Rows: [][]chat.Button{{
			{Text: "Reply", Unique: ReplyCallback, Data: ReplyData(from.UserID, queryID)},
		}}},
	}
}

func userMessage(answer string) chat.Message {
	return chat.Message{
		Text: "<b>📨 Important Admin Message :-</b>\n\n" + format.EscapeHTML(answer),
		Keyboard: &chat.Keyboard{Rows: [][]chat.Button{{
			{Text: "Send Reply", Unique: HelpCallback},
		}}},
	}
}

// RandomID returns n characters drawn uniformly from [0-9a-z].
func RandomID(n int) (string, error) {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = idAlphabet[v.Int64()]
	}
	return string(b), nil
}
