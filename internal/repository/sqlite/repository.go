// Package sqlite implements the repository interfaces on a single SQLite
// database. Writes for a guild are serialized by the indexer; readers run
// concurrently under WAL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/repository"
)

// Repository implements repository.Repository for SQLite.
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS snitches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guild_id INTEGER NOT NULL,
	world TEXT NOT NULL,
	x INTEGER NOT NULL,
	y INTEGER NOT NULL,
	z INTEGER NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	group_name TEXT NOT NULL DEFAULT '',
	channel_id INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	UNIQUE (guild_id, world, x, y, z)
);

CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	snitch_id INTEGER NOT NULL REFERENCES snitches(id) ON DELETE CASCADE,
	guild_id INTEGER NOT NULL,
	message_id INTEGER NOT NULL,
	username TEXT NOT NULL,
	action TEXT NOT NULL,
	t INTEGER NOT NULL,
	UNIQUE (snitch_id, message_id)
);

CREATE INDEX IF NOT EXISTS idx_events_guild_t ON events (guild_id, t);
CREATE INDEX IF NOT EXISTS idx_events_username ON events (guild_id, username);

CREATE TABLE IF NOT EXISTS channels (
	channel_id INTEGER PRIMARY KEY,
	guild_id INTEGER NOT NULL,
	last_indexed_id INTEGER,
	everyone INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_channels_guild ON channels (guild_id);

CREATE TABLE IF NOT EXISTS channel_roles (
	channel_id INTEGER NOT NULL REFERENCES channels(channel_id) ON DELETE CASCADE,
	role_id INTEGER NOT NULL,
	PRIMARY KEY (channel_id, role_id)
);

CREATE TABLE IF NOT EXISTS custom_commands (
	guild_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	base_command TEXT NOT NULL,
	args TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (guild_id, name)
);

CREATE TABLE IF NOT EXISTS template_configs (
	guild_id INTEGER PRIMARY KEY,
	sample TEXT NOT NULL,
	tokens TEXT NOT NULL
);
`

// InitSchema creates the tables on first use.
func (r *Repository) InitSchema(ctx context.Context) error {
	if _, err := r.client.DB().ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	r.log.Info("SQLite schema initialized successfully")
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.DB().PingContext(ctx)
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.client.Close()
}

const upsertSnitchQuery = `
INSERT INTO snitches (guild_id, world, x, y, z, name, group_name, channel_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (guild_id, world, x, y, z) DO UPDATE SET
	name = CASE WHEN excluded.name != '' THEN excluded.name ELSE snitches.name END,
	group_name = CASE WHEN excluded.group_name != '' THEN excluded.group_name ELSE snitches.group_name END,
	channel_id = CASE WHEN snitches.channel_id <= 0 AND excluded.channel_id > 0
		THEN excluded.channel_id ELSE snitches.channel_id END
RETURNING id
`

// UpsertSnitch creates or merges a snitch by its location identity. The name
// follows the newest non-empty report; the group is only ever upgraded, never
// cleared by a report that omits it. The origin channel of the first chat
// report sticks: a synthetic import channel (id <= 0) is promoted to the
// first real chat channel that reports the location, since visibility is
// derived from the origin channel's role set.
func (r *Repository) UpsertSnitch(ctx context.Context, guildID int64, identity domain.SnitchIdentity, name, group string, channelID int64) (int64, error) {
	return upsertSnitchTx(ctx, r.client.DB(), guildID, identity, name, group, channelID)
}

// execer covers both *sql.DB and *sql.Tx so the upsert can run inside a
// batch transaction.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSnitchTx(ctx context.Context, db execer, guildID int64, identity domain.SnitchIdentity, name, group string, channelID int64) (int64, error) {
	var id int64
	err := db.QueryRowContext(ctx, upsertSnitchQuery,
		guildID, identity.World, identity.X, identity.Y, identity.Z,
		name, group, channelID, time.Now().UnixMilli(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert snitch: %w", err)
	}
	return id, nil
}

// ListSnitches returns every snitch known for the guild.
func (r *Repository) ListSnitches(ctx context.Context, guildID int64) ([]domain.Snitch, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT id, guild_id, world, x, y, z, name, group_name, channel_id, created_at
		FROM snitches WHERE guild_id = ? ORDER BY id ASC`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snitches: %w", err)
	}
	defer rows.Close()

	var snitches []domain.Snitch
	for rows.Next() {
		var s domain.Snitch
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.GuildID, &s.World, &s.X, &s.Y, &s.Z,
			&s.Name, &s.Group, &s.ChannelID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan snitch row: %w", err)
		}
		s.CreatedAt = time.UnixMilli(createdAt)
		snitches = append(snitches, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snitch rows: %w", err)
	}
	return snitches, nil
}

// CommitBatch writes a batch's snitches, events and channel cursor in one
// transaction. The INSERT OR IGNORE on (snitch_id, message_id) makes
// reprocessing the same message range a no-op.
func (r *Repository) CommitBatch(ctx context.Context, batch repository.IndexBatch) (int, error) {
	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	for _, ev := range batch.Events {
		snitchID, err := upsertSnitchTx(ctx, tx, batch.GuildID, ev.Identity(), ev.SnitchName, ev.Group, ev.ChannelID)
		if err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO events (snitch_id, guild_id, message_id, username, action, t)
			VALUES (?, ?, ?, ?, ?, ?)`,
			snitchID, batch.GuildID, ev.MessageID, ev.Username, ev.Action, ev.Timestamp.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("failed to insert event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += int(n)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE channels SET last_indexed_id = ? WHERE channel_id = ?`,
		batch.Cursor, batch.ChannelID); err != nil {
		return 0, fmt.Errorf("failed to advance cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}

// QueryEvents returns the guild's events matching the filter, timestamp
// ascending with message id as the deterministic tie-break. Every call
// re-scans; no cursor state is shared between queries.
func (r *Repository) QueryEvents(ctx context.Context, guildID int64, filter repository.EventFilter) ([]domain.Event, error) {
	query := `
		SELECT e.id, e.snitch_id, e.guild_id, e.message_id, e.username, e.action, e.t
		FROM events e
		JOIN snitches s ON s.id = e.snitch_id
		WHERE e.guild_id = ?`
	args := []any{guildID}

	if !filter.Start.IsZero() {
		query += " AND e.t >= ?"
		args = append(args, filter.Start.UnixMilli())
	}
	if !filter.End.IsZero() {
		query += " AND e.t <= ?"
		args = append(args, filter.End.UnixMilli())
	}
	if len(filter.Users) > 0 {
		query += " AND e.username IN (" + placeholders(len(filter.Users)) + ")"
		for _, u := range filter.Users {
			args = append(args, u)
		}
	}
	if len(filter.Groups) > 0 {
		query += " AND s.group_name IN (" + placeholders(len(filter.Groups)) + ")"
		for _, g := range filter.Groups {
			args = append(args, g)
		}
	}
	if len(filter.SnitchIDs) > 0 {
		query += " AND e.snitch_id IN (" + placeholders(len(filter.SnitchIDs)) + ")"
		for _, id := range filter.SnitchIDs {
			args = append(args, id)
		}
	}
	if len(filter.ChannelIDs) > 0 {
		query += " AND s.channel_id IN (" + placeholders(len(filter.ChannelIDs)) + ")"
		for _, id := range filter.ChannelIDs {
			args = append(args, id)
		}
	}

	query += " ORDER BY e.t ASC, e.message_id ASC"

	rows, err := r.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// MostRecentEvent returns the guild's newest event.
func (r *Repository) MostRecentEvent(ctx context.Context, guildID int64) (*domain.Event, error) {
	row := r.client.DB().QueryRowContext(ctx, `
		SELECT id, snitch_id, guild_id, message_id, username, action, t
		FROM events WHERE guild_id = ?
		ORDER BY t DESC, message_id DESC LIMIT 1`, guildID)

	var ev domain.Event
	var t int64
	err := row.Scan(&ev.ID, &ev.SnitchID, &ev.GuildID, &ev.MessageID, &ev.Username, &ev.Action, &t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query most recent event: %w", err)
	}
	ev.Timestamp = time.UnixMilli(t)
	return &ev, nil
}

// WipeGuild deletes the guild's events and snitches and resets its channel
// cursors. Channel registrations and role sets survive.
func (r *Repository) WipeGuild(ctx context.Context, guildID int64) error {
	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin wipe transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snitches WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("failed to delete snitches: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE channels SET last_indexed_id = NULL WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("failed to reset cursors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe: %w", err)
	}

	r.log.Info("Wiped guild index", zap.Int64("guild_id", guildID))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var ev domain.Event
	var t int64
	if err := row.Scan(&ev.ID, &ev.SnitchID, &ev.GuildID, &ev.MessageID,
		&ev.Username, &ev.Action, &t); err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}
	ev.Timestamp = time.UnixMilli(t)
	return &ev, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
