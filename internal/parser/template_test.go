package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tybug/snitchvisbot/internal/domain"
)

func TestCompileTemplate_Tokens(t *testing.T) {
	tokens, err := CompileTemplate("{username} hit {snitch} at {x} {y} {z}")
	require.NoError(t, err)

	assert.Equal(t, []domain.TemplateToken{
		{Field: "username"},
		{Literal: " hit "},
		{Field: "snitch"},
		{Literal: " at "},
		{Field: "x"},
		{Literal: " "},
		{Field: "y"},
		{Literal: " "},
		{Field: "z"},
	}, tokens)
}

func TestCompileTemplate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		sample string
	}{
		{"unknown field", "{username} {player} {x} {y} {z}"},
		{"duplicate field", "{username} {username} at {x} {y} {z}"},
		{"adjacent fields", "{username}{action} at {x} {y} {z}"},
		{"unclosed brace", "{username at {x} {y} {z}"},
		{"missing username", "{action} at {x} {y} {z}"},
		{"missing coordinate", "{username} at {x} {y}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileTemplate(tt.sample)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "expected a validation error, got %v", err)
		})
	}
}

func TestMatchTemplate_TrailingField(t *testing.T) {
	tokens, err := CompileTemplate("{x} {y} {z} by {username}")
	require.NoError(t, err)

	ev := matchTemplate(tokens, "10 64 -30 by Mallory", message(""))
	require.NotNil(t, ev)
	assert.Equal(t, "Mallory", ev.Username)
	assert.Equal(t, 10, ev.X)
	assert.Equal(t, 64, ev.Y)
	assert.Equal(t, -30, ev.Z)
	// unfilled optional fields fall back to defaults
	assert.Equal(t, domain.ActionEnter, ev.Action)
	assert.Equal(t, "world", ev.World)
}

func TestMatchTemplate_RejectsTrailingText(t *testing.T) {
	tokens, err := CompileTemplate("{username} at {x} {y} {z}!")
	require.NoError(t, err)

	ev := matchTemplate(tokens, "Alice at 1 2 3!", message(""))
	require.NotNil(t, ev)
	assert.Equal(t, "Alice", ev.Username)

	assert.Nil(t, matchTemplate(tokens, "Alice at 1 2 3! trailing garbage", message("")),
		"text after the final literal is not a match")
}

func TestMatchTemplate_NoMatch(t *testing.T) {
	tokens, err := CompileTemplate("ping: {username} at {x} {y} {z}")
	require.NoError(t, err)

	assert.Nil(t, matchTemplate(tokens, "something else entirely", message("")))
	assert.Nil(t, matchTemplate(tokens, "ping: Alice at one two three", message("")))
}
