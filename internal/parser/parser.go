// Package parser turns raw chat messages into structured snitch events. Most
// messages in a channel are unrelated chatter, so a non-match is a nil
// result, never an error.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/platform"
)

// ParsedEvent is the candidate produced from one matching message. The
// indexer upserts the snitch and appends the event from it.
type ParsedEvent struct {
	MessageID int64
	ChannelID int64
	GuildID   int64

	Username   string
	Action     string
	SnitchName string
	Group      string
	World      string
	X          int
	Y          int
	Z          int
	Timestamp  time.Time
}

// Identity returns the location tuple of the snitch this event belongs to.
func (e *ParsedEvent) Identity() domain.SnitchIdentity {
	return domain.SnitchIdentity{World: e.World, X: e.X, Y: e.Y, Z: e.Z}
}

// Default notification format, as posted by the vanilla relay:
// "* Username entered snitch at snitchName [world x y z]".
// The leading asterisk and surrounding markdown vary by relay, so both are
// stripped before matching. The action phrase is an open set: the three
// vanilla phrases map to canonical actions, anything else is kept verbatim.
var defaultFormat = regexp.MustCompile(
	`^(?:\* )?(\S+) (entered|logged in to|logged out in|.+?) snitch at (\S*) \[(\S+) (-?\d+) (-?\d+) (-?\d+)\]$`)

var defaultActions = map[string]string{
	"entered":       domain.ActionEnter,
	"logged in to":  domain.ActionLogin,
	"logged out in": domain.ActionLogout,
}

var markdownStripper = strings.NewReplacer("`", "", "**", "", "__", "", "~~", "", "\\", "")

// Parser matches messages against the default notification format and, when
// present, a guild's compiled relay template.
type Parser struct{}

// New creates a parser.
func New() *Parser {
	return &Parser{}
}

// Parse extracts a snitch event from msg, trying the default format first
// and then the guild template. It returns nil when nothing matches. Relay
// messages delivered as embeds are matched with the same grammar against the
// embed description and field values.
func (p *Parser) Parse(msg platform.Message, tmpl *domain.Template) *ParsedEvent {
	for _, text := range candidateTexts(msg) {
		if ev := p.parseText(text, msg, tmpl); ev != nil {
			return ev
		}
	}
	return nil
}

func (p *Parser) parseText(text string, msg platform.Message, tmpl *domain.Template) *ParsedEvent {
	text = strings.TrimSpace(markdownStripper.Replace(text))
	if text == "" {
		return nil
	}

	if ev := parseDefault(text, msg); ev != nil {
		return ev
	}
	if tmpl != nil {
		if ev := matchTemplate(tmpl.Tokens, text, msg); ev != nil {
			return ev
		}
	}
	return nil
}

// candidateTexts yields every text shape a relay message can carry: the plain
// content, then each embed's description and field values.
func candidateTexts(msg platform.Message) []string {
	texts := []string{msg.Content}
	for _, embed := range msg.Embeds {
		if embed.Description != "" {
			texts = append(texts, embed.Description)
		}
		for _, field := range embed.Fields {
			texts = append(texts, field.Value)
		}
	}
	return texts
}

func parseDefault(text string, msg platform.Message) *ParsedEvent {
	m := defaultFormat.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	action := m[2]
	if canonical, ok := defaultActions[action]; ok {
		action = canonical
	}

	x, err := strconv.Atoi(m[5])
	if err != nil {
		return nil
	}
	y, err := strconv.Atoi(m[6])
	if err != nil {
		return nil
	}
	z, err := strconv.Atoi(m[7])
	if err != nil {
		return nil
	}

	return &ParsedEvent{
		MessageID:  msg.ID,
		ChannelID:  msg.ChannelID,
		GuildID:    msg.GuildID,
		Username:   m[1],
		Action:     action,
		SnitchName: m[3],
		World:      m[4],
		X:          x,
		Y:          y,
		Z:          z,
		Timestamp:  msg.Timestamp,
	}
}
