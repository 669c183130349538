package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/platform"
)

// Template field names accepted in an admin-supplied sample message.
const (
	fieldUsername = "username"
	fieldAction   = "action"
	fieldSnitch   = "snitch"
	fieldGroup    = "group"
	fieldWorld    = "world"
	fieldX        = "x"
	fieldY        = "y"
	fieldZ        = "z"
)

var templateFields = map[string]bool{
	fieldUsername: true,
	fieldAction:   true,
	fieldSnitch:   true,
	fieldGroup:    true,
	fieldWorld:    true,
	fieldX:        true,
	fieldY:        true,
	fieldZ:        true,
}

// CompileTemplate turns an admin-supplied sample such as
//
//	[{group}] {username} {action} at {snitch} ({x},{y},{z})
//
// into an ordered token list of literals and field slots. Matching later is
// positional substring extraction, so no user-supplied code ever runs. The
// sample must name all three coordinates and the username; adjacent field
// slots with no literal between them would be ambiguous and are rejected.
func CompileTemplate(sample string) ([]domain.TemplateToken, error) {
	var tokens []domain.TemplateToken
	seen := map[string]bool{}
	rest := sample

	for {
		open := strings.Index(rest, "{")
		if open == -1 {
			if rest != "" {
				tokens = append(tokens, domain.TemplateToken{Literal: rest})
			}
			break
		}

		closing := strings.Index(rest[open:], "}")
		if closing == -1 {
			return nil, domain.Validationf("unclosed `{` in template at position %d", len(sample)-len(rest)+open)
		}
		closing += open

		if open > 0 {
			tokens = append(tokens, domain.TemplateToken{Literal: rest[:open]})
		}

		field := rest[open+1 : closing]
		if !templateFields[field] {
			return nil, domain.Validationf("unknown template field `{%s}`", field)
		}
		if seen[field] {
			return nil, domain.Validationf("template field `{%s}` appears twice", field)
		}
		seen[field] = true

		if n := len(tokens); n > 0 && tokens[n-1].Field != "" {
			return nil, domain.Validationf("template fields `{%s}` and `{%s}` must be separated by literal text",
				tokens[n-1].Field, field)
		}

		tokens = append(tokens, domain.TemplateToken{Field: field})
		rest = rest[closing+1:]
	}

	for _, required := range []string{fieldUsername, fieldX, fieldY, fieldZ} {
		if !seen[required] {
			return nil, domain.Validationf("template must contain `{%s}`", required)
		}
	}

	return tokens, nil
}

// matchTemplate extracts fields from text by walking the compiled token list:
// literals anchor positions, field values are the substrings between them.
// A trailing field slot consumes the remainder of the line.
func matchTemplate(tokens []domain.TemplateToken, text string, msg platform.Message) *ParsedEvent {
	fields := map[string]string{}
	rest := text

	for i, tok := range tokens {
		if tok.Literal != "" {
			idx := strings.Index(rest, tok.Literal)
			if idx == -1 {
				return nil
			}
			// A leading literal must anchor at the start; any text before a
			// later literal belongs to the preceding field slot.
			if i == 0 && idx != 0 {
				return nil
			}
			if i > 0 && tokens[i-1].Field != "" {
				fields[tokens[i-1].Field] = rest[:idx]
			} else if idx != 0 {
				return nil
			}
			rest = rest[idx+len(tok.Literal):]
			continue
		}

		if i == len(tokens)-1 {
			fields[tok.Field] = rest
			rest = ""
		}
	}

	// a trailing literal must consume the line; leftover text is not a match
	if rest != "" {
		return nil
	}

	username := strings.TrimSpace(fields[fieldUsername])
	if username == "" {
		return nil
	}

	x, err := strconv.Atoi(strings.TrimSpace(fields[fieldX]))
	if err != nil {
		return nil
	}
	y, err := strconv.Atoi(strings.TrimSpace(fields[fieldY]))
	if err != nil {
		return nil
	}
	z, err := strconv.Atoi(strings.TrimSpace(fields[fieldZ]))
	if err != nil {
		return nil
	}

	action := strings.TrimSpace(fields[fieldAction])
	if action == "" {
		action = domain.ActionEnter
	}

	world := strings.TrimSpace(fields[fieldWorld])
	if world == "" {
		world = "world"
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return &ParsedEvent{
		MessageID:  msg.ID,
		ChannelID:  msg.ChannelID,
		GuildID:    msg.GuildID,
		Username:   username,
		Action:     action,
		SnitchName: strings.TrimSpace(fields[fieldSnitch]),
		Group:      strings.TrimSpace(fields[fieldGroup]),
		World:      world,
		X:          x,
		Y:          y,
		Z:          z,
		Timestamp:  ts,
	}
}
