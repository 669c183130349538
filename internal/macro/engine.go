package macro

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/repository"
)

// Engine stores and expands tenant-defined command aliases.
type Engine struct {
	store repository.CommandStore
	log   *zap.Logger
}

// NewEngine creates a macro engine.
func NewEngine(store repository.CommandStore, log *zap.Logger) *Engine {
	return &Engine{
		store: store,
		log:   log,
	}
}

// Define stores an alias mapping name to a built-in base command with stored
// argument tokens. The base must be a built-in: aliasing another alias is
// rejected so expansion never recurses. The alias name may shadow a built-in
// for the tenant. Stored tokens are validated against the base's schema up
// front so a broken alias fails at definition time, not at use.
func (e *Engine) Define(ctx context.Context, guildID int64, name, base string, storedArgs []string) error {
	cmd := Lookup(base)
	if cmd == nil {
		if existing, err := e.store.GetCommand(ctx, guildID, base); err == nil && existing != nil {
			return domain.Validationf("`%s` is itself a custom command; aliases must target a built-in command", base)
		}
		return domain.Validationf("unknown base command `%s`", base)
	}

	if _, err := cmd.ParseArgs(storedArgs); err != nil {
		return err
	}

	if err := e.store.SaveCommand(ctx, domain.CustomCommand{
		GuildID:     guildID,
		Name:        name,
		BaseCommand: base,
		Args:        storedArgs,
	}); err != nil {
		return fmt.Errorf("failed to save custom command: %w", err)
	}

	e.log.Info("Defined custom command",
		zap.Int64("guild_id", guildID),
		zap.String("name", name),
		zap.String("base", base))
	return nil
}

// Remove deletes an alias.
func (e *Engine) Remove(ctx context.Context, guildID int64, name string) error {
	return e.store.DeleteCommand(ctx, guildID, name)
}

// List returns the guild's aliases.
func (e *Engine) List(ctx context.Context, guildID int64) ([]domain.CustomCommand, error) {
	return e.store.ListCommands(ctx, guildID)
}

// Expand resolves an alias by exact name within the guild and merges its
// stored tokens with the runtime tokens: a flag present at runtime overrides
// the stored value for that flag, all other stored flags are retained, and
// runtime-only flags are appended. Returns domain.ErrNotFound when the guild
// has no alias by that name; the caller then treats name as a built-in.
func (e *Engine) Expand(ctx context.Context, guildID int64, name string, runtimeArgs []string) (string, []string, error) {
	alias, err := e.store.GetCommand(ctx, guildID, name)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, domain.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to look up custom command: %w", err)
	}

	merged := MergeTokens(Lookup(alias.BaseCommand), alias.Args, runtimeArgs)
	return alias.BaseCommand, merged, nil
}

// MergeTokens merges stored and runtime flag tokens. Both inputs are split
// into flag groups (a flag plus its following values); stored groups keep
// their order, runtime groups override same-flag stored groups in place, and
// the rest are appended in runtime order. cmd, when known, canonicalizes
// flag spellings so `-s` stored and `--size` at runtime count as the same
// flag.
func MergeTokens(cmd *Command, stored, runtime []string) []string {
	storedGroups := splitGroups(cmd, stored)
	runtimeGroups := splitGroups(cmd, runtime)

	runtimeByFlag := make(map[string]int, len(runtimeGroups))
	for i, g := range runtimeGroups {
		runtimeByFlag[g.flag] = i
	}

	var merged []string
	used := make(map[int]bool)
	for _, g := range storedGroups {
		if i, ok := runtimeByFlag[g.flag]; ok {
			merged = append(merged, runtimeGroups[i].tokens...)
			used[i] = true
			continue
		}
		merged = append(merged, g.tokens...)
	}
	for i, g := range runtimeGroups {
		if !used[i] {
			merged = append(merged, g.tokens...)
		}
	}
	return merged
}

type flagGroup struct {
	// flag is the canonical name when the command schema knows the flag,
	// otherwise the raw token spelling.
	flag   string
	tokens []string
}

func splitGroups(cmd *Command, tokens []string) []flagGroup {
	canonical := func(token string) string {
		if cmd != nil {
			if f, ok := cmd.resolveFlag(token); ok {
				return f.name()
			}
		}
		return token
	}

	var groups []flagGroup
	i := 0
	for i < len(tokens) {
		if !isFlag(tokens[i]) {
			// stray leading values group under the empty flag
			g := flagGroup{flag: ""}
			for i < len(tokens) && !isFlag(tokens[i]) {
				g.tokens = append(g.tokens, tokens[i])
				i++
			}
			groups = append(groups, g)
			continue
		}

		g := flagGroup{flag: canonical(tokens[i]), tokens: []string{tokens[i]}}
		i++
		for i < len(tokens) && !isFlag(tokens[i]) {
			g.tokens = append(g.tokens, tokens[i])
			i++
		}
		groups = append(groups, g)
	}
	return groups
}
