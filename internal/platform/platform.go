// Package platform defines the chat-platform boundary. The gateway
// connection itself lives outside the core; everything here is the minimal
// surface the indexer and service layer need from it.
package platform

import (
	"context"
	"time"
)

// Message is one raw chat message as delivered by the platform. IDs are
// snowflakes: unique and monotonically increasing within a channel, which is
// what makes them usable as index cursors.
type Message struct {
	ID        int64
	ChannelID int64
	GuildID   int64
	AuthorID  int64
	Content   string
	Embeds    []Embed
	Timestamp time.Time
}

// Embed is the rich-content shape of a relay message. Relays frequently post
// the snitch ping inside an embed instead of plain text.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
}

// EmbedField is a single name/value pair inside an embed.
type EmbedField struct {
	Name  string
	Value string
}

// ChannelRef identifies a channel on the platform.
type ChannelRef struct {
	GuildID   int64
	ChannelID int64
}

// Client is the chat-platform API the core depends on. Calls are blocking
// and may fail transiently; retry discipline is the caller's.
type Client interface {
	// FetchHistory returns up to limit messages from the channel with ids
	// strictly greater than after, oldest first. after == 0 means from the
	// beginning of history.
	FetchHistory(ctx context.Context, ref ChannelRef, after int64, limit int) ([]Message, error)

	// FetchRecent returns the channel's newest messages, up to limit. Used
	// to probe whether a channel carries snitch pings.
	FetchRecent(ctx context.Context, ref ChannelRef, limit int) ([]Message, error)

	// GetRoles returns the role ids held by the user in the guild.
	GetRoles(ctx context.Context, guildID, userID int64) ([]int64, error)

	// PostArtifact uploads rendered content to the channel.
	PostArtifact(ctx context.Context, ref ChannelRef, name string, content []byte) error
}
