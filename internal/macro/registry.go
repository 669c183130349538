// Package macro stores and expands tenant-defined command aliases on top of
// a fixed registry of built-in commands. Built-ins are a closed set resolved
// by id, never by runtime string evaluation; the alias layer is a second
// (tenant, name) lookup layered on top.
package macro

import (
	"strings"

	"github.com/tybug/snitchvisbot/internal/domain"
)

// Built-in command ids.
const (
	CmdRender      = "render"
	CmdEvents      = "events"
	CmdSnitches    = "snitches"
	CmdChannels    = "channels"
	CmdIndex       = "index"
	CmdFullReindex = "full-reindex"
	CmdPermissions = "permissions"
)

// Flag describes one accepted flag of a built-in command.
type Flag struct {
	Short string
	Long  string
	// Bool flags take no value.
	Bool bool
	// Variadic flags greedily consume values until the next flag.
	Variadic bool
}

// Command is one built-in command: an id plus its argument schema.
type Command struct {
	ID    string
	Flags []Flag
}

// queryFlags are shared by every command that resolves a filter query.
var queryFlags = []Flag{
	{Short: "-p", Long: "--past"},
	{Long: "--start"},
	{Long: "--end"},
	{Short: "-u", Long: "--users", Variadic: true},
	{Short: "-g", Long: "--groups", Variadic: true},
	{Short: "-b", Long: "--bounds", Variadic: true},
}

// builtins is the fixed command registry.
var builtins = map[string]*Command{
	CmdRender: {
		ID: CmdRender,
		Flags: append([]Flag{
			{Short: "-a", Long: "--all-snitches", Bool: true},
			{Short: "-s", Long: "--size"},
			{Short: "-f", Long: "--fps"},
			{Short: "-d", Long: "--duration"},
			{Long: "--fade"},
		}, queryFlags...),
	},
	CmdEvents:   {ID: CmdEvents, Flags: queryFlags},
	CmdSnitches: {ID: CmdSnitches, Flags: queryFlags},
	CmdChannels: {ID: CmdChannels},
	CmdIndex:    {ID: CmdIndex},
	CmdFullReindex: {
		ID:    CmdFullReindex,
		Flags: []Flag{{Short: "-y", Long: "--confirm", Bool: true}},
	},
	CmdPermissions: {ID: CmdPermissions},
}

// Lookup returns the built-in command with the given id, or nil.
func Lookup(id string) *Command {
	return builtins[id]
}

// IsBuiltin reports whether id names a built-in command.
func IsBuiltin(id string) bool {
	_, ok := builtins[id]
	return ok
}

// resolveFlag canonicalizes a flag token to its long (or only) spelling.
func (c *Command) resolveFlag(token string) (Flag, bool) {
	for _, f := range c.Flags {
		if token == f.Short || token == f.Long {
			return f, true
		}
	}
	return Flag{}, false
}

func (f Flag) name() string {
	if f.Long != "" {
		return strings.TrimPrefix(f.Long, "--")
	}
	return strings.TrimPrefix(f.Short, "-")
}

// ParseArgs validates tokens against the command's schema and returns flag
// values keyed by canonical flag name. Bool flags map to an empty slice.
func (c *Command) ParseArgs(tokens []string) (map[string][]string, error) {
	values := make(map[string][]string)

	i := 0
	for i < len(tokens) {
		token := tokens[i]
		if !isFlag(token) {
			return nil, domain.Validationf("invalid positional parameter `%s`", token)
		}

		flag, ok := c.resolveFlag(token)
		if !ok {
			return nil, domain.Validationf("invalid argument `%s`", token)
		}
		i++

		name := flag.name()
		if _, dup := values[name]; dup {
			return nil, domain.Validationf("`%s` specified twice", token)
		}

		switch {
		case flag.Bool:
			values[name] = []string{}
		case flag.Variadic:
			var vals []string
			for i < len(tokens) && !isFlag(tokens[i]) {
				vals = append(vals, tokens[i])
				i++
			}
			values[name] = vals
		default:
			if i >= len(tokens) || isFlag(tokens[i]) {
				return nil, domain.Validationf("`%s` requires a parameter", token)
			}
			values[name] = []string{tokens[i]}
			i++
		}
	}

	return values, nil
}

func isFlag(token string) bool {
	if !strings.HasPrefix(token, "-") {
		return false
	}
	// negative numbers are values, not flags
	if len(token) > 1 && token[1] >= '0' && token[1] <= '9' {
		return false
	}
	return true
}
