package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/config"
	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/parser"
	"github.com/tybug/snitchvisbot/internal/repository"
)

func newTestRepository(t *testing.T) *Repository {
	return newTestRepositoryConns(t, 1)
}

func newTestRepositoryConns(t *testing.T, maxOpenConns int) *Repository {
	t.Helper()

	cfg := &config.DBConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		BusyTimeoutMS: 5000,
		MaxOpenConns:  maxOpenConns,
	}
	client, err := NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	repo := NewRepository(client, zap.NewNop())
	require.NoError(t, repo.InitSchema(context.Background()))
	return repo
}

func parsedEvent(messageID int64, username string, x, z int) *parser.ParsedEvent {
	return &parser.ParsedEvent{
		MessageID:  messageID,
		ChannelID:  100,
		GuildID:    1,
		Username:   username,
		Action:     domain.ActionEnter,
		SnitchName: "base",
		World:      "world",
		X:          x,
		Y:          64,
		Z:          z,
		Timestamp:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(messageID) * time.Second),
	}
}

func addTestChannel(t *testing.T, repo *Repository, channelID int64) {
	t.Helper()
	require.NoError(t, repo.AddChannel(context.Background(), domain.Channel{
		ID: channelID, GuildID: 1, Everyone: true,
	}))
}

func TestUpsertSnitch_MergesByLocation(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	identity := domain.SnitchIdentity{World: "world", X: 10, Y: 64, Z: -20}

	id1, err := repo.UpsertSnitch(ctx, 1, identity, "old name", "", 100)
	require.NoError(t, err)

	// same location, new name and group: merged, not duplicated
	id2, err := repo.UpsertSnitch(ctx, 1, identity, "new name", "mta", 100)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	// empty name and group leave the stored values alone
	id3, err := repo.UpsertSnitch(ctx, 1, identity, "", "", 100)
	require.NoError(t, err)
	assert.Equal(t, id1, id3)

	snitches, err := repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snitches, 1)
	assert.Equal(t, "new name", snitches[0].Name)
	assert.Equal(t, "mta", snitches[0].Group)
}

func TestUpsertSnitch_DistinctLocations(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id1, err := repo.UpsertSnitch(ctx, 1, domain.SnitchIdentity{World: "world", X: 1, Y: 64, Z: 1}, "a", "", 100)
	require.NoError(t, err)
	id2, err := repo.UpsertSnitch(ctx, 1, domain.SnitchIdentity{World: "world", X: 1, Y: 65, Z: 1}, "a", "", 100)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2, "differing y is a different snitch")

	// same location in another guild is a different snitch
	id3, err := repo.UpsertSnitch(ctx, 2, domain.SnitchIdentity{World: "world", X: 1, Y: 64, Z: 1}, "a", "", 200)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func TestUpsertSnitch_ChatChannelReplacesSynthetic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	identity := domain.SnitchIdentity{World: "world", X: 10, Y: 64, Z: -20}

	// first seen via import, on the guild's synthetic channel
	id1, err := repo.UpsertSnitch(ctx, 1, identity, "base", "mta", -1)
	require.NoError(t, err)

	// a chat ping for the same location promotes it to the real channel
	id2, err := repo.UpsertSnitch(ctx, 1, identity, "base", "", 100)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	snitches, err := repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snitches, 1)
	assert.Equal(t, int64(100), snitches[0].ChannelID)

	// the first chat channel sticks: neither a later chat channel nor a
	// later import moves it
	_, err = repo.UpsertSnitch(ctx, 1, identity, "", "", 200)
	require.NoError(t, err)
	_, err = repo.UpsertSnitch(ctx, 1, identity, "", "", -1)
	require.NoError(t, err)

	snitches, err = repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snitches, 1)
	assert.Equal(t, int64(100), snitches[0].ChannelID)
}

func TestCommitBatch_IdempotentAndAdvancesCursor(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	addTestChannel(t, repo, 100)

	batch := repository.IndexBatch{
		GuildID:   1,
		ChannelID: 100,
		Events: []*parser.ParsedEvent{
			parsedEvent(10, "alice", 0, 0),
			parsedEvent(11, "bob", 0, 0),
		},
		Cursor: 11,
	}

	inserted, err := repo.CommitBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// reprocessing the same messages inserts nothing and keeps the cursor
	inserted, err = repo.CommitBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)

	events, err := repo.QueryEvents(ctx, 1, repository.EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	ch, err := repo.GetChannel(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, ch.LastIndexedID)
	assert.Equal(t, int64(11), *ch.LastIndexedID)
}

func TestCommitBatch_SameMessageDifferentSnitches(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	addTestChannel(t, repo, 100)

	// one relay message can report two snitches; both events survive dedup
	ev1 := parsedEvent(10, "alice", 0, 0)
	ev2 := parsedEvent(10, "alice", 50, 50)

	inserted, err := repo.CommitBatch(ctx, repository.IndexBatch{
		GuildID: 1, ChannelID: 100, Events: []*parser.ParsedEvent{ev1, ev2}, Cursor: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
}

func TestQueryEvents_FiltersAndOrdering(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	addTestChannel(t, repo, 100)

	_, err := repo.CommitBatch(ctx, repository.IndexBatch{
		GuildID:   1,
		ChannelID: 100,
		Events: []*parser.ParsedEvent{
			parsedEvent(30, "carol", 500, 500),
			parsedEvent(10, "alice", 0, 0),
			parsedEvent(20, "bob", 0, 0),
		},
		Cursor: 30,
	})
	require.NoError(t, err)

	events, err := repo.QueryEvents(ctx, 1, repository.EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int64{10, 20, 30}, []int64{
		events[0].MessageID, events[1].MessageID, events[2].MessageID,
	}, "timestamp ascending")

	events, err = repo.QueryEvents(ctx, 1, repository.EventFilter{Users: []string{"alice", "carol"}})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	cutoff := parsedEvent(20, "", 0, 0).Timestamp
	events, err = repo.QueryEvents(ctx, 1, repository.EventFilter{Start: cutoff})
	require.NoError(t, err)
	assert.Len(t, events, 2, "start bound is inclusive")

	// filtering by an unknown guild returns nothing
	events, err = repo.QueryEvents(ctx, 99, repository.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestMostRecentEvent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	addTestChannel(t, repo, 100)

	_, err := repo.MostRecentEvent(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.CommitBatch(ctx, repository.IndexBatch{
		GuildID:   1,
		ChannelID: 100,
		Events:    []*parser.ParsedEvent{parsedEvent(10, "alice", 0, 0), parsedEvent(20, "bob", 0, 0)},
		Cursor:    20,
	})
	require.NoError(t, err)

	ev, err := repo.MostRecentEvent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), ev.MessageID)
}

func TestWipeGuild(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	addTestChannel(t, repo, 100)

	_, err := repo.CommitBatch(ctx, repository.IndexBatch{
		GuildID:   1,
		ChannelID: 100,
		Events:    []*parser.ParsedEvent{parsedEvent(10, "alice", 0, 0)},
		Cursor:    10,
	})
	require.NoError(t, err)

	require.NoError(t, repo.WipeGuild(ctx, 1))

	events, err := repo.QueryEvents(ctx, 1, repository.EventFilter{})
	require.NoError(t, err)
	assert.Empty(t, events)

	snitches, err := repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, snitches)

	// the channel registration survives, only the cursor resets
	ch, err := repo.GetChannel(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, ch.LastIndexedID)
}

func TestChannelRoles(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.AddChannel(ctx, domain.Channel{
		ID: 200, GuildID: 1, RoleIDs: []int64{10},
	}))

	// re-adding an existing channel is a no-op
	require.NoError(t, repo.AddChannel(ctx, domain.Channel{
		ID: 200, GuildID: 1, Everyone: true,
	}))

	ch, err := repo.GetChannel(ctx, 200)
	require.NoError(t, err)
	assert.False(t, ch.Everyone)
	assert.Equal(t, []int64{10}, ch.RoleIDs)

	require.NoError(t, repo.AddChannelRoles(ctx, 200, []int64{10, 20}))
	ch, err = repo.GetChannel(ctx, 200)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{10, 20}, ch.RoleIDs)

	require.NoError(t, repo.SetChannelRoles(ctx, 200, []int64{30}, false))
	ch, err = repo.GetChannel(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, []int64{30}, ch.RoleIDs)

	require.NoError(t, repo.RemoveChannel(ctx, 200))
	_, err = repo.GetChannel(ctx, 200)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveChannel_CascadesRolesAcrossPool(t *testing.T) {
	// the default pool size, so cascade deletes must hold on every pooled
	// connection, not just the first one opened
	repo := newTestRepositoryConns(t, 4)
	ctx := context.Background()

	// churn through removals to touch more than one pool connection
	for i := 0; i < 8; i++ {
		require.NoError(t, repo.AddChannel(ctx, domain.Channel{
			ID: 200, GuildID: 1, RoleIDs: []int64{10},
		}))
		require.NoError(t, repo.RemoveChannel(ctx, 200))
	}

	// a re-registered channel starts with no role grants
	require.NoError(t, repo.AddChannel(ctx, domain.Channel{
		ID: 200, GuildID: 1, Everyone: true,
	}))
	ch, err := repo.GetChannel(ctx, 200)
	require.NoError(t, err)
	assert.Empty(t, ch.RoleIDs)
	assert.True(t, ch.Everyone)
}

func TestCommands(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	cmd := domain.CustomCommand{
		GuildID:     1,
		Name:        "rhq",
		BaseCommand: "render",
		Args:        []string{"--size", "1200"},
	}
	require.NoError(t, repo.SaveCommand(ctx, cmd))

	got, err := repo.GetCommand(ctx, 1, "rhq")
	require.NoError(t, err)
	assert.Equal(t, cmd, *got)

	// redefining replaces the stored args
	cmd.Args = []string{"--size", "800"}
	require.NoError(t, repo.SaveCommand(ctx, cmd))
	got, err = repo.GetCommand(ctx, 1, "rhq")
	require.NoError(t, err)
	assert.Equal(t, []string{"--size", "800"}, got.Args)

	// per-guild namespaces
	_, err = repo.GetCommand(ctx, 2, "rhq")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cmds, err := repo.ListCommands(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cmds, 1)

	require.NoError(t, repo.DeleteCommand(ctx, 1, "rhq"))
	_, err = repo.GetCommand(ctx, 1, "rhq")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTemplates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	tmpl := domain.Template{
		GuildID: 1,
		Sample:  "{username} at {x} {y} {z}",
		Tokens: []domain.TemplateToken{
			{Field: "username"},
			{Literal: " at "},
			{Field: "x"},
			{Literal: " "},
			{Field: "y"},
			{Literal: " "},
			{Field: "z"},
		},
	}
	require.NoError(t, repo.SaveTemplate(ctx, tmpl))

	got, err := repo.GetTemplate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, tmpl, *got)

	_, err = repo.GetTemplate(ctx, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.DeleteTemplate(ctx, 1))
	_, err = repo.GetTemplate(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
