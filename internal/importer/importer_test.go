package importer

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tybug/snitchvisbot/internal/config"
	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/repository"
	"github.com/tybug/snitchvisbot/internal/repository/sqlite"
)

type foreignRow struct {
	world string
	x     int
	y     int
	z     int
	group string
	name  string
}

func writeForeignDB(t *testing.T, rows []foreignRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snitchmod.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE snitches_v2 (
			world TEXT,
			x INTEGER,
			y INTEGER,
			z INTEGER,
			group_name TEXT,
			name TEXT
		)`)
	require.NoError(t, err)

	for _, row := range rows {
		_, err = db.Exec(
			`INSERT INTO snitches_v2 (world, x, y, z, group_name, name) VALUES (?, ?, ?, ?, ?, ?)`,
			row.world, row.x, row.y, row.z, row.group, row.name)
		require.NoError(t, err)
	}
	return path
}

func newTestRepo(t *testing.T) repository.Repository {
	t.Helper()

	cfg := &config.DBConfig{
		Path:          filepath.Join(t.TempDir(), "test.db"),
		BusyTimeoutMS: 5000,
		MaxOpenConns:  1,
	}
	client, err := sqlite.NewClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	repo := sqlite.NewRepository(client, zap.NewNop())
	require.NoError(t, repo.InitSchema(context.Background()))
	return repo
}

func TestImportSnitches(t *testing.T) {
	repo := newTestRepo(t)
	im := New(repo, zap.NewNop())
	ctx := context.Background()

	path := writeForeignDB(t, []foreignRow{
		{"world", 10, 64, -20, "mta", "base"},
		{"world", 500, 70, 500, "mta", "outpost"},
		{"world", -100, 64, -100, "allies", "border"},
	})

	added, err := im.ImportSnitches(ctx, path, 1, nil, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	snitches, err := repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snitches, 3)

	// all imports landed on the synthetic channel, with the roles granted
	ch, err := repo.GetChannel(ctx, -1)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ch.RoleIDs)
	assert.False(t, ch.Everyone)
}

func TestImportSnitches_GroupFilter(t *testing.T) {
	repo := newTestRepo(t)
	im := New(repo, zap.NewNop())
	ctx := context.Background()

	path := writeForeignDB(t, []foreignRow{
		{"world", 10, 64, -20, "mta", "base"},
		{"world", -100, 64, -100, "allies", "border"},
	})

	added, err := im.ImportSnitches(ctx, path, 1, []string{"mta"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	snitches, err := repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snitches, 1)
	assert.Equal(t, "mta", snitches[0].Group)
}

func TestImportSnitches_IdempotentAndTiered(t *testing.T) {
	repo := newTestRepo(t)
	im := New(repo, zap.NewNop())
	ctx := context.Background()

	path := writeForeignDB(t, []foreignRow{
		{"world", 10, 64, -20, "mta", "base"},
	})

	added, err := im.ImportSnitches(ctx, path, 1, []string{"mta"}, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// a second run with another role tiers the permissions, adds nothing
	added, err = im.ImportSnitches(ctx, path, 1, []string{"mta"}, []int64{20})
	require.NoError(t, err)
	assert.Equal(t, 0, added)

	snitches, err := repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, snitches, 1)

	ch, err := repo.GetChannel(ctx, -1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{10, 20}, ch.RoleIDs)
}

func TestImportSnitches_KeepsChatOriginChannel(t *testing.T) {
	repo := newTestRepo(t)
	im := New(repo, zap.NewNop())
	ctx := context.Background()

	// the snitch is already known from chat indexing on channel 100
	require.NoError(t, repo.AddChannel(ctx, domain.Channel{ID: 100, GuildID: 1}))
	identity := domain.SnitchIdentity{World: "world", X: 10, Y: 64, Z: -20}
	_, err := repo.UpsertSnitch(ctx, 1, identity, "base", "", 100)
	require.NoError(t, err)

	path := writeForeignDB(t, []foreignRow{
		{"world", 10, 64, -20, "mta", "base"},
	})

	added, err := im.ImportSnitches(ctx, path, 1, nil, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, 0, added, "already-known snitch merges instead of duplicating")

	// the group was upgraded and the roles granted on the origin channel
	snitches, err := repo.ListSnitches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, snitches, 1)
	assert.Equal(t, "mta", snitches[0].Group)
	assert.Equal(t, int64(100), snitches[0].ChannelID)

	ch, err := repo.GetChannel(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, ch.RoleIDs)
}

func TestImportSnitches_MissingFile(t *testing.T) {
	repo := newTestRepo(t)
	im := New(repo, zap.NewNop())

	_, err := im.ImportSnitches(context.Background(),
		filepath.Join(t.TempDir(), "nope.db"), 1, nil, nil)
	assert.Error(t, err)
}
