package domain

import "time"

// SnitchIdentity uniquely locates a snitch within a guild. Identity is by
// position; the snitch name is informational and may change across reports.
type SnitchIdentity struct {
	World string
	X     int
	Y     int
	Z     int
}

// Snitch represents a registered world location whose activity is monitored.
type Snitch struct {
	ID        int64
	GuildID   int64
	World     string
	X         int
	Y         int
	Z         int
	Name      string
	Group     string
	ChannelID int64
	CreatedAt time.Time
}

// Identity returns the location tuple that identifies this snitch within its
// guild.
func (s *Snitch) Identity() SnitchIdentity {
	return SnitchIdentity{World: s.World, X: s.X, Y: s.Y, Z: s.Z}
}

// Event represents a single reported activity at a snitch.
type Event struct {
	ID        int64
	SnitchID  int64
	GuildID   int64
	MessageID int64
	Username  string
	Action    string
	Timestamp time.Time
}

// Known action keywords from the default notification format. The set is
// open: templates may introduce additional actions.
const (
	ActionEnter  = "enter"
	ActionLogin  = "login"
	ActionLogout = "logout"
	ActionDeath  = "death"
	ActionPlace  = "place"
)

// Channel is a chat channel registered as a snitch-notification source.
type Channel struct {
	ID      int64
	GuildID int64
	// LastIndexedID is the id of the last message committed by the indexer,
	// nil if the channel has never been indexed.
	LastIndexedID *int64
	// Everyone marks the channel as visible to every user regardless of
	// roles.
	Everyone bool
	RoleIDs  []int64
}

// CustomCommand is a tenant-defined alias that expands into a built-in
// command invocation with stored arguments.
type CustomCommand struct {
	GuildID     int64
	Name        string
	BaseCommand string
	Args        []string
}

// Template holds a guild's compiled relay-format template alongside the
// sample it was compiled from.
type Template struct {
	GuildID int64
	Sample  string
	Tokens  []TemplateToken
}

// TemplateToken is one element of a compiled template: either a literal
// segment that must appear verbatim, or a named field slot.
type TemplateToken struct {
	Literal string `json:"literal,omitempty"`
	Field   string `json:"field,omitempty"`
}
