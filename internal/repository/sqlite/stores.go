package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tybug/snitchvisbot/internal/domain"
)

// AddChannel registers a channel as a snitch-notification source. Re-adding
// an existing channel is a no-op so repeated setup runs are harmless.
func (r *Repository) AddChannel(ctx context.Context, ch domain.Channel) error {
	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cursor any
	if ch.LastIndexedID != nil {
		cursor = *ch.LastIndexedID
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO channels (channel_id, guild_id, last_indexed_id, everyone)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (channel_id) DO NOTHING`,
		ch.ID, ch.GuildID, cursor, ch.Everyone); err != nil {
		return fmt.Errorf("failed to insert channel: %w", err)
	}

	for _, roleID := range ch.RoleIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO channel_roles (channel_id, role_id) VALUES (?, ?)`,
			ch.ID, roleID); err != nil {
			return fmt.Errorf("failed to insert channel role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit channel: %w", err)
	}
	return nil
}

// RemoveChannel unregisters a channel. Role rows cascade.
func (r *Repository) RemoveChannel(ctx context.Context, channelID int64) error {
	if _, err := r.client.DB().ExecContext(ctx,
		`DELETE FROM channels WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	return nil
}

// GetChannel returns one registered channel with its role set.
func (r *Repository) GetChannel(ctx context.Context, channelID int64) (*domain.Channel, error) {
	row := r.client.DB().QueryRowContext(ctx, `
		SELECT channel_id, guild_id, last_indexed_id, everyone
		FROM channels WHERE channel_id = ?`, channelID)

	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadRoles(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// ListChannels returns all registered channels for the guild, roles included.
func (r *Repository) ListChannels(ctx context.Context, guildID int64) ([]domain.Channel, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT channel_id, guild_id, last_indexed_id, everyone
		FROM channels WHERE guild_id = ? ORDER BY channel_id ASC`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, *ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel rows: %w", err)
	}

	for i := range channels {
		if err := r.loadRoles(ctx, &channels[i]); err != nil {
			return nil, err
		}
	}
	return channels, nil
}

// SetChannelRoles replaces the channel's authorized role set.
func (r *Repository) SetChannelRoles(ctx context.Context, channelID int64, roleIDs []int64, everyone bool) error {
	tx, err := r.client.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE channels SET everyone = ? WHERE channel_id = ?`, everyone, channelID); err != nil {
		return fmt.Errorf("failed to update channel: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM channel_roles WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("failed to clear channel roles: %w", err)
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_roles (channel_id, role_id) VALUES (?, ?)`,
			channelID, roleID); err != nil {
			return fmt.Errorf("failed to insert channel role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit channel roles: %w", err)
	}
	return nil
}

// AddChannelRoles grants additional roles, keeping existing ones. Used by
// repeated imports to layer a tiered permission hierarchy.
func (r *Repository) AddChannelRoles(ctx context.Context, channelID int64, roleIDs []int64) error {
	for _, roleID := range roleIDs {
		if _, err := r.client.DB().ExecContext(ctx, `
			INSERT OR IGNORE INTO channel_roles (channel_id, role_id) VALUES (?, ?)`,
			channelID, roleID); err != nil {
			return fmt.Errorf("failed to add channel role: %w", err)
		}
	}
	return nil
}

func (r *Repository) loadRoles(ctx context.Context, ch *domain.Channel) error {
	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT role_id FROM channel_roles WHERE channel_id = ? ORDER BY role_id ASC`, ch.ID)
	if err != nil {
		return fmt.Errorf("failed to query channel roles: %w", err)
	}
	defer rows.Close()

	ch.RoleIDs = nil
	for rows.Next() {
		var roleID int64
		if err := rows.Scan(&roleID); err != nil {
			return fmt.Errorf("failed to scan role row: %w", err)
		}
		ch.RoleIDs = append(ch.RoleIDs, roleID)
	}
	return rows.Err()
}

func scanChannel(row rowScanner) (*domain.Channel, error) {
	var ch domain.Channel
	var cursor sql.NullInt64
	if err := row.Scan(&ch.ID, &ch.GuildID, &cursor, &ch.Everyone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan channel row: %w", err)
	}
	if cursor.Valid {
		ch.LastIndexedID = &cursor.Int64
	}
	return &ch, nil
}

// SaveCommand stores or replaces a tenant-defined command alias.
func (r *Repository) SaveCommand(ctx context.Context, cmd domain.CustomCommand) error {
	args, err := json.Marshal(cmd.Args)
	if err != nil {
		return fmt.Errorf("failed to marshal command args: %w", err)
	}

	if _, err := r.client.DB().ExecContext(ctx, `
		INSERT INTO custom_commands (guild_id, name, base_command, args)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, name) DO UPDATE SET
			base_command = excluded.base_command,
			args = excluded.args`,
		cmd.GuildID, cmd.Name, cmd.BaseCommand, string(args)); err != nil {
		return fmt.Errorf("failed to save command: %w", err)
	}
	return nil
}

// GetCommand looks up an alias by exact name within the guild.
func (r *Repository) GetCommand(ctx context.Context, guildID int64, name string) (*domain.CustomCommand, error) {
	row := r.client.DB().QueryRowContext(ctx, `
		SELECT guild_id, name, base_command, args
		FROM custom_commands WHERE guild_id = ? AND name = ?`, guildID, name)

	var cmd domain.CustomCommand
	var args string
	err := row.Scan(&cmd.GuildID, &cmd.Name, &cmd.BaseCommand, &args)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan command row: %w", err)
	}
	if err := json.Unmarshal([]byte(args), &cmd.Args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command args: %w", err)
	}
	return &cmd, nil
}

// DeleteCommand removes an alias.
func (r *Repository) DeleteCommand(ctx context.Context, guildID int64, name string) error {
	if _, err := r.client.DB().ExecContext(ctx,
		`DELETE FROM custom_commands WHERE guild_id = ? AND name = ?`, guildID, name); err != nil {
		return fmt.Errorf("failed to delete command: %w", err)
	}
	return nil
}

// ListCommands returns all aliases defined by the guild.
func (r *Repository) ListCommands(ctx context.Context, guildID int64) ([]domain.CustomCommand, error) {
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT guild_id, name, base_command, args
		FROM custom_commands WHERE guild_id = ? ORDER BY name ASC`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var cmds []domain.CustomCommand
	for rows.Next() {
		var cmd domain.CustomCommand
		var args string
		if err := rows.Scan(&cmd.GuildID, &cmd.Name, &cmd.BaseCommand, &args); err != nil {
			return nil, fmt.Errorf("failed to scan command row: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &cmd.Args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal command args: %w", err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

// SaveTemplate stores the guild's relay template, replacing any previous one.
// The compiled token list is persisted so matching never recompiles.
func (r *Repository) SaveTemplate(ctx context.Context, tmpl domain.Template) error {
	tokens, err := json.Marshal(tmpl.Tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal template tokens: %w", err)
	}

	if _, err := r.client.DB().ExecContext(ctx, `
		INSERT INTO template_configs (guild_id, sample, tokens)
		VALUES (?, ?, ?)
		ON CONFLICT (guild_id) DO UPDATE SET
			sample = excluded.sample,
			tokens = excluded.tokens`,
		tmpl.GuildID, tmpl.Sample, string(tokens)); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// GetTemplate returns the guild's template, or domain.ErrNotFound.
func (r *Repository) GetTemplate(ctx context.Context, guildID int64) (*domain.Template, error) {
	row := r.client.DB().QueryRowContext(ctx,
		`SELECT guild_id, sample, tokens FROM template_configs WHERE guild_id = ?`, guildID)

	var tmpl domain.Template
	var tokens string
	err := row.Scan(&tmpl.GuildID, &tmpl.Sample, &tokens)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template row: %w", err)
	}
	if err := json.Unmarshal([]byte(tokens), &tmpl.Tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template tokens: %w", err)
	}
	return &tmpl, nil
}

// DeleteTemplate removes the guild's template.
func (r *Repository) DeleteTemplate(ctx context.Context, guildID int64) error {
	if _, err := r.client.DB().ExecContext(ctx,
		`DELETE FROM template_configs WHERE guild_id = ?`, guildID); err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	return nil
}
