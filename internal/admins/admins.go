// Package admins merges the statically configured admin ids with the list
// persisted in storage.
package admins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/m3rciful/adminbot/core/logger"
)

// ErrMalformedAdminList is returned for persisted values that are neither a
// list of ids nor a comma-delimited string.
var ErrMalformedAdminList = errors.New("admins: malformed admin list")

// Set holds admin ids in their string form.
type Set map[string]struct{}

// Has reports membership.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of ids.
func (s Set) Len() int { return len(s) }

// Sorted returns the ids in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Source reads the persisted admin record. found is false when no record
// exists yet.
type Source interface {
	AdminList(ctx context.Context) (raw string, found bool, err error)
}

// Resolver computes the combined admin set on every call.
type Resolver struct {
	static []int64
	source Source
}

// NewResolver builds a Resolver. source may be nil, in which case only the
// static ids count.
func NewResolver(static []int64, source Source) *Resolver {
	return &Resolver{static: slices.Clone(static), source: source}
}

// Combined returns the union of static and persisted admins. A storage error
// or malformed persisted value degrades to the static part and is logged.
func (r *Resolver) Combined(ctx context.Context) Set {
	set := make(Set, len(r.static))
	for _, id := range r.static {
		set[strconv.FormatInt(id, 10)] = struct{}{}
	}
	stored, err := r.Stored(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.ADM, slog.LevelWarn, "admins.degraded",
			slog.String("err", err.Error()),
			slog.Int("static", len(r.static)),
		)
		return set
	}
	for _, id := range stored {
		set[id] = struct{}{}
	}
	return set
}

// Stored returns the persisted admin ids, failing on storage errors and
// malformed values.
func (r *Resolver) Stored(ctx context.Context) ([]string, error) {
	if r.source == nil {
		return nil, nil
	}
	raw, found, err := r.source.AdminList(ctx)
	if err != nil {
		return nil, fmt.Errorf("admins: read persisted list: %w", err)
	}
	if !found {
		return nil, nil
	}
	return ParseList(raw)
}

// IsConfigured reports whether id is one of the static admins.
func (r *Resolver) IsConfigured(id string) bool {
	for _, s := range r.static {
		if strconv.FormatInt(s, 10) == id {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID belongs to the combined set.
func (r *Resolver) IsAdmin(ctx context.Context, userID int64) bool {
	if userID == 0 {
		return false
	}
	if slices.Contains(r.static, userID) {
		return true
	}
	return r.Combined(ctx).Has(strconv.FormatInt(userID, 10))
}

// Recipients returns the numeric members of the combined set in ascending
// order. Ids that are not integers cannot be messaged and are skipped.
func (r *Resolver) Recipients(ctx context.Context) []int64 {
	set := r.Combined(ctx)
	out := make([]int64, 0, len(set))
	for id := range set {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			logger.LogEvent(ctx, logger.ADM, slog.LevelWarn, "admins.skip_recipient",
				slog.String("admin_id", logger.SanitizeLimit(id, 64)),
			)
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// ParseList decodes a persisted admin value: a JSON array of strings or
// numbers, a comma-delimited string, or empty.
func ParseList(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		return parseJSONList(trimmed)
	case '{':
		return nil, fmt.Errorf("%w: object", ErrMalformedAdminList)
	case '"':
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedAdminList, err)
		}
		return splitCSV(s), nil
	}
	return splitCSV(trimmed), nil
}

func parseJSONList(raw string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAdminList, err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				out = append(out, s)
			}
		case json.Number:
			out = append(out, v.String())
		default:
			return nil, fmt.Errorf("%w: element of type %T", ErrMalformedAdminList, item)
		}
	}
	return out, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EncodeList renders ids as the JSON array stored by AddAdmin.
func EncodeList(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, _ := json.Marshal(ids)
	return string(b)
}
