// Package importer merges a foreign snitchmod database into the registry.
// Designed to be run repeatedly with different group/role pairs against the
// same file to build a tiered permission hierarchy; the registry's identity
// merge keeps that idempotent.
package importer

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/repository"
)

// Importer reads foreign snitch records and feeds them to the registry.
type Importer struct {
	repo repository.Repository
	log  *zap.Logger
}

// New creates an importer.
func New(repo repository.Repository, log *zap.Logger) *Importer {
	return &Importer{
		repo: repo,
		log:  log,
	}
}

// foreignSnitch is one row of the snitchmod snitches_v2 table.
type foreignSnitch struct {
	World string
	X     int
	Y     int
	Z     int
	Group string
	Name  string
}

// ImportSnitches merges the snitchmod database at path into the guild's
// registry. Only snitches whose reinforcement group is in groups are taken
// (nil means all). The given roles are granted on each imported snitch's
// channel mapping; snitches with no chat-originated channel get a synthetic
// per-guild mapping. Returns the number of snitches that were new.
func (im *Importer) ImportSnitches(ctx context.Context, path string, guildID int64, groups []string, roleIDs []int64) (int, error) {
	foreign, err := readForeign(ctx, path, groups)
	if err != nil {
		return 0, err
	}

	// location → existing snitch, to distinguish new snitches from merges
	// and to find each snitch's chat-originated channel
	existing := make(map[domain.SnitchIdentity]domain.Snitch)
	known, err := im.repo.ListSnitches(ctx, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to list snitches: %w", err)
	}
	for _, s := range known {
		existing[s.Identity()] = s
	}

	syntheticID := syntheticChannelID(guildID)
	syntheticNeeded := false
	added := 0
	grantChannels := make(map[int64]bool)

	for _, fs := range foreign {
		identity := domain.SnitchIdentity{World: fs.World, X: fs.X, Y: fs.Y, Z: fs.Z}

		channelID := syntheticID
		prev, known := existing[identity]
		if known && prev.ChannelID != 0 && prev.ChannelID != syntheticID {
			channelID = prev.ChannelID
		} else {
			syntheticNeeded = true
		}

		if _, err := im.repo.UpsertSnitch(ctx, guildID, identity, fs.Name, fs.Group, channelID); err != nil {
			return added, err
		}
		if !known {
			added++
		}
		grantChannels[channelID] = true
	}

	if syntheticNeeded {
		err := im.repo.AddChannel(ctx, domain.Channel{ID: syntheticID, GuildID: guildID})
		if err != nil {
			return added, fmt.Errorf("failed to create synthetic channel: %w", err)
		}
	}
	for channelID := range grantChannels {
		if err := im.repo.AddChannelRoles(ctx, channelID, roleIDs); err != nil {
			return added, err
		}
	}

	im.log.Info("Imported snitches",
		zap.Int64("guild_id", guildID),
		zap.Int("added", added),
		zap.Int("seen", len(foreign)))
	return added, nil
}

// syntheticChannelID derives a stable pseudo-channel id for imported
// snitches that never appeared in chat. Negative so it can never collide
// with a real platform snowflake.
func syntheticChannelID(guildID int64) int64 {
	return -guildID
}

func readForeign(ctx context.Context, path string, groups []string) ([]foreignSnitch, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open foreign database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT world, x, y, z, group_name, name FROM snitches_v2`)
	if err != nil {
		return nil, fmt.Errorf("failed to read snitches_v2: %w", err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}

	var out []foreignSnitch
	for rows.Next() {
		var fs foreignSnitch
		var group, name sql.NullString
		if err := rows.Scan(&fs.World, &fs.X, &fs.Y, &fs.Z, &group, &name); err != nil {
			return nil, fmt.Errorf("failed to scan foreign snitch: %w", err)
		}
		fs.Group = group.String
		fs.Name = name.String

		if len(wanted) > 0 && !wanted[fs.Group] {
			continue
		}
		out = append(out, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating foreign snitches: %w", err)
	}
	return out, nil
}
