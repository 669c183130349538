package repository

import (
	"context"
	"time"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/parser"
)

// EventFilter restricts a guild's event query. Zero times mean unbounded,
// empty slices mean unrestricted.
type EventFilter struct {
	Start      time.Time
	End        time.Time
	Users      []string
	Groups     []string
	SnitchIDs  []int64
	ChannelIDs []int64
}

// IndexBatch is one atomically committed unit of indexing work: the parsed
// events of a message batch plus the cursor the channel advances to. Writing
// the rows and the cursor in the same transaction is what keeps a crash from
// ever advancing the cursor past unwritten data.
type IndexBatch struct {
	GuildID   int64
	ChannelID int64
	Events    []*parser.ParsedEvent
	Cursor    int64
}

// SnitchRegistry is the canonical store of known snitches.
type SnitchRegistry interface {
	// UpsertSnitch creates the snitch if its location is unknown, otherwise
	// refreshes the name and upgrades the group when the new report
	// supplies one. It returns the snitch id either way.
	UpsertSnitch(ctx context.Context, guildID int64, identity domain.SnitchIdentity, name, group string, channelID int64) (int64, error)

	// ListSnitches returns every snitch known for the guild.
	ListSnitches(ctx context.Context, guildID int64) ([]domain.Snitch, error)
}

// EventStore is the append-only per-snitch event log.
type EventStore interface {
	// CommitBatch writes the batch's snitches, events and cursor in one
	// transaction. Events whose (snitch, message) pair already exists are
	// skipped, so reprocessing a message range is idempotent. It returns
	// the number of newly inserted events.
	CommitBatch(ctx context.Context, batch IndexBatch) (int, error)

	// QueryEvents returns the guild's events matching the filter, ordered
	// by timestamp ascending with message id as tie-break.
	QueryEvents(ctx context.Context, guildID int64, filter EventFilter) ([]domain.Event, error)

	// MostRecentEvent returns the guild's newest event, or
	// domain.ErrNotFound when the guild has none.
	MostRecentEvent(ctx context.Context, guildID int64) (*domain.Event, error)

	// WipeGuild deletes all events and snitches for the guild and resets
	// every channel cursor to null. Used only by a confirmed full reindex
	// or an explicit tenant wipe.
	WipeGuild(ctx context.Context, guildID int64) error
}

// ChannelStore persists registered snitch channels and their role sets.
type ChannelStore interface {
	AddChannel(ctx context.Context, ch domain.Channel) error
	RemoveChannel(ctx context.Context, channelID int64) error
	GetChannel(ctx context.Context, channelID int64) (*domain.Channel, error)
	ListChannels(ctx context.Context, guildID int64) ([]domain.Channel, error)

	// SetChannelRoles replaces the channel's authorized role set.
	SetChannelRoles(ctx context.Context, channelID int64, roleIDs []int64, everyone bool) error

	// AddChannelRoles grants additional roles without touching existing
	// ones. Used by the importer to build tiered permissions.
	AddChannelRoles(ctx context.Context, channelID int64, roleIDs []int64) error
}

// CommandStore persists tenant-defined command aliases.
type CommandStore interface {
	SaveCommand(ctx context.Context, cmd domain.CustomCommand) error
	GetCommand(ctx context.Context, guildID int64, name string) (*domain.CustomCommand, error)
	DeleteCommand(ctx context.Context, guildID int64, name string) error
	ListCommands(ctx context.Context, guildID int64) ([]domain.CustomCommand, error)
}

// TemplateStore persists each guild's compiled relay template.
type TemplateStore interface {
	SaveTemplate(ctx context.Context, tmpl domain.Template) error
	GetTemplate(ctx context.Context, guildID int64) (*domain.Template, error)
	DeleteTemplate(ctx context.Context, guildID int64) error
}

// Repository is the full persistence surface.
type Repository interface {
	SnitchRegistry
	EventStore
	ChannelStore
	CommandStore
	TemplateStore

	// InitSchema creates the tables on first use.
	InitSchema(ctx context.Context) error

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying database.
	Close() error
}
