// Package service wires the query resolver, permission engine, stores and
// renderer together: it is the command layer's single entry point for reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/macro"
	"github.com/tybug/snitchvisbot/internal/permission"
	"github.com/tybug/snitchvisbot/internal/platform"
	"github.com/tybug/snitchvisbot/internal/queryargs"
	"github.com/tybug/snitchvisbot/internal/render"
	"github.com/tybug/snitchvisbot/internal/repository"

	"github.com/tybug/snitchvisbot/internal/config"
)

// Service executes permission-scoped queries and renders.
type Service struct {
	repo     repository.Repository
	chat     platform.Client
	resolver *queryargs.Resolver
	perms    *permission.Engine
	macros   *macro.Engine
	renderer render.Renderer
	cfg      config.QueryConfig
	log      *zap.Logger
}

// New creates a service.
func New(repo repository.Repository, chat platform.Client, macros *macro.Engine, renderer render.Renderer, cfg config.QueryConfig, log *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		chat:     chat,
		resolver: queryargs.NewResolver(cfg),
		perms:    permission.New(),
		macros:   macros,
		renderer: renderer,
		cfg:      cfg,
		log:      log,
	}
}

// ExpandCommand resolves a possibly-aliased command name for the guild and
// validates the merged tokens against the base command's schema. A name with
// no alias is treated as a built-in directly; a tenant alias shadows a
// built-in of the same name.
func (s *Service) ExpandCommand(ctx context.Context, guildID int64, name string, tokens []string) (string, map[string][]string, error) {
	base, merged, err := s.macros.Expand(ctx, guildID, name, tokens)
	if errors.Is(err, domain.ErrNotFound) {
		base, merged = name, tokens
	} else if err != nil {
		return "", nil, err
	}

	cmd := macro.Lookup(base)
	if cmd == nil {
		return "", nil, domain.Validationf("unknown command `%s`", name)
	}

	values, err := cmd.ParseArgs(merged)
	if err != nil {
		return "", nil, err
	}
	return base, values, nil
}

// queryScope is the resolved, permission-filtered working set for one read.
type queryScope struct {
	query    *queryargs.Query
	events   []domain.Event
	snitches map[int64]domain.Snitch
	visible  map[int64]bool
}

func (s *Service) resolveScope(ctx context.Context, guildID, userID int64, args queryargs.Args) (*queryScope, error) {
	var latest *time.Time
	recent, err := s.repo.MostRecentEvent(ctx, guildID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if recent != nil {
		latest = &recent.Timestamp
	}

	query, err := s.resolver.Resolve(args, time.Now().UTC(), latest)
	if err != nil {
		return nil, err
	}

	channels, err := s.repo.ListChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	roles, err := s.chat.GetRoles(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user roles: %w", err)
	}
	visible := s.perms.VisibleChannelIDs(channels, roles)

	scope := &queryScope{query: query, visible: visible, snitches: map[int64]domain.Snitch{}}

	allSnitches, err := s.repo.ListSnitches(ctx, guildID)
	if err != nil {
		return nil, err
	}
	for _, snitch := range allSnitches {
		scope.snitches[snitch.ID] = snitch
	}

	if len(visible) == 0 {
		return scope, nil
	}

	channelIDs := make([]int64, 0, len(visible))
	for id := range visible {
		channelIDs = append(channelIDs, id)
	}

	events, err := s.repo.QueryEvents(ctx, guildID, repository.EventFilter{
		Start:      query.Start,
		End:        query.End,
		Users:      query.Users,
		Groups:     query.Groups,
		ChannelIDs: channelIDs,
	})
	if err != nil {
		return nil, err
	}

	// the channel filter above already scopes the query; the explicit pass
	// keeps every read path behind the same predicate
	scope.events = s.perms.FilterEvents(events, scope.snitches, visible)
	return scope, nil
}

// QueryEvents returns the permission-filtered events matching args for the
// user.
func (s *Service) QueryEvents(ctx context.Context, guildID, userID int64, args queryargs.Args) ([]domain.Event, error) {
	scope, err := s.resolveScope(ctx, guildID, userID, args)
	if err != nil {
		return nil, err
	}
	return scope.events, nil
}

// ListSnitches returns the snitches visible to the user.
func (s *Service) ListSnitches(ctx context.Context, guildID, userID int64) ([]domain.Snitch, error) {
	snitches, err := s.repo.ListSnitches(ctx, guildID)
	if err != nil {
		return nil, err
	}
	channels, err := s.repo.ListChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	roles, err := s.chat.GetRoles(ctx, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user roles: %w", err)
	}
	visible := s.perms.VisibleChannelIDs(channels, roles)
	return s.perms.FilterSnitches(snitches, visible), nil
}

// ListChannels returns the guild's registered channels with their role sets,
// the data behind both the channel listing and the permission report.
func (s *Service) ListChannels(ctx context.Context, guildID int64) ([]domain.Channel, error) {
	return s.repo.ListChannels(ctx, guildID)
}

// Visualize resolves args into a render input and invokes the renderer. The
// renderer input is fully permission-filtered; bounds are computed from the
// selected events unless an explicit rectangle was given.
func (s *Service) Visualize(ctx context.Context, guildID, userID int64, values map[string][]string) (*render.Artifact, error) {
	args, err := argsFromValues(values)
	if err != nil {
		return nil, err
	}
	opts, err := optionsFromValues(values)
	if err != nil {
		return nil, err
	}

	scope, err := s.resolveScope(ctx, guildID, userID, args)
	if err != nil {
		return nil, err
	}

	var points []queryargs.Point
	usersSeen := map[string]bool{}
	var users []string
	for _, ev := range scope.events {
		snitch := scope.snitches[ev.SnitchID]
		points = append(points, queryargs.Point{X: snitch.X, Z: snitch.Z})
		if !usersSeen[ev.Username] {
			usersSeen[ev.Username] = true
			users = append(users, ev.Username)
		}
	}
	bounds := queryargs.ComputeBounds(args.Bounds, points, s.cfg)

	var snitches []domain.Snitch
	for _, snitch := range scope.snitches {
		if !scope.visible[snitch.ChannelID] {
			continue
		}
		if opts.AllSnitches || bounds.Contains(snitch.X, snitch.Z) {
			snitches = append(snitches, snitch)
		}
	}
	// map iteration order would vary between runs of the same query
	sort.Slice(snitches, func(i, j int) bool { return snitches[i].ID < snitches[j].ID })

	input := render.Input{
		Events:   scope.events,
		Snitches: snitches,
		Users:    users,
		Bounds:   bounds,
		Start:    scope.query.Start,
		End:      scope.query.End,
		Options:  opts,
	}

	s.log.Info("Rendering query",
		zap.Int64("guild_id", guildID),
		zap.Int("events", len(scope.events)),
		zap.Int("snitches", len(snitches)))

	artifact, err := s.renderer.Render(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to render: %w", err)
	}
	return artifact, nil
}
