package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/m3rciful/adminbot/core/database"
	"github.com/m3rciful/adminbot/internal/admins"
)

// AdminList returns the raw persisted admin value. found is false when no
// admin record exists.
func (s *Store) AdminList(ctx context.Context) (string, bool, error) {
	var raw sql.NullString
	err := s.get(ctx, &raw, `SELECT admins FROM admin_settings WHERE id = 1`)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read admins: %w", err)
	}
	return raw.String, true, nil
}

// AddAdmin adds id to the persisted admin set. added is false when id was
// already present. The admin row is locked for the read-modify-write so
// concurrent adds all land.
func (s *Store) AddAdmin(ctx context.Context, id string) (added bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: add admin: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Seed the row so concurrent writers contend on one locked record.
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO admin_settings (id, admins) VALUES (1, '[]')
		ON CONFLICT (id) DO NOTHING`))
	if err != nil {
		return false, fmt.Errorf("store: add admin: seed: %w", err)
	}

	query := `SELECT admins FROM admin_settings WHERE id = 1`
	if s.db.DriverName() == database.DriverPostgres {
		query += ` FOR UPDATE`
	}
	var raw sql.NullString
	if err = tx.GetContext(ctx, &raw, tx.Rebind(query)); err != nil {
		return false, fmt.Errorf("store: add admin: read: %w", err)
	}
	current, err := admins.ParseList(raw.String)
	if err != nil {
		return false, fmt.Errorf("store: add admin: %w", err)
	}
	if slices.Contains(current, id) {
		return false, tx.Rollback()
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE admin_settings SET admins = ? WHERE id = 1`),
		admins.EncodeList(append(current, id)))
	if err != nil {
		return false, fmt.Errorf("store: add admin: write: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("store: add admin: commit: %w", err)
	}
	return true, nil
}

// Channel is a registered channel.
type Channel struct {
	ID string `db:"id"`
}

// AddChannel registers a channel id. added is false when it already existed.
func (s *Store) AddChannel(ctx context.Context, id string) (bool, error) {
	n, err := s.exec(ctx, "add_channel", `INSERT INTO channels (id) VALUES (?) ON CONFLICT (id) DO NOTHING`, id)
	return n > 0, err
}

// Channels lists channels in registration order.
func (s *Store) Channels(ctx context.Context) ([]Channel, error) {
	var out []Channel
	if err := s.db.SelectContext(ctx, &out, `SELECT id FROM channels ORDER BY added_at, id`); err != nil {
		return nil, fmt.Errorf("store: list channels: %w", err)
	}
	return out, nil
}

// SocialSite is a link button shown to users.
type SocialSite struct {
	ID         string `db:"id"`
	ButtonText string `db:"button_text"`
	URL        string `db:"url"`
}

// InsertSocialSite stores a new link under a fresh id.
func (s *Store) InsertSocialSite(ctx context.Context, buttonText, url string) (SocialSite, error) {
	site := SocialSite{ID: uuid.NewString(), ButtonText: buttonText, URL: url}
	_, err := s.exec(ctx, "insert_social_site",
		`INSERT INTO social_sites (id, button_text, url) VALUES (?, ?, ?)`, site.ID, site.ButtonText, site.URL)
	if err != nil {
		return SocialSite{}, err
	}
	return site, nil
}

// SocialSites lists links oldest first.
func (s *Store) SocialSites(ctx context.Context) ([]SocialSite, error) {
	var out []SocialSite
	if err := s.db.SelectContext(ctx, &out, `SELECT id, button_text, url FROM social_sites ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("store: list social sites: %w", err)
	}
	return out, nil
}
