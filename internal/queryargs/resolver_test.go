package queryargs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tybug/snitchvisbot/internal/config"
	"github.com/tybug/snitchvisbot/internal/domain"
)

func newResolver() *Resolver {
	return NewResolver(config.QueryConfig{
		BoundsMargin:    50,
		FallbackBoxSize: 500,
		DefaultSpan:     30 * time.Minute,
	})
}

func TestResolve_Past(t *testing.T) {
	r := newResolver()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	q, err := r.Resolve(Args{Past: "1h30m"}, now, nil)
	require.NoError(t, err)
	assert.Equal(t, now, q.End)
	assert.Equal(t, now.Add(-5400*time.Second), q.Start)
}

func TestResolve_PastAll(t *testing.T) {
	r := newResolver()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	q, err := r.Resolve(Args{Past: "all"}, now, nil)
	require.NoError(t, err)
	assert.True(t, q.Start.IsZero())
	assert.Equal(t, now, q.End)
}

func TestResolve_ExplicitDates(t *testing.T) {
	r := newResolver()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	q, err := r.Resolve(Args{Start: "5/1/2024", End: "5/20/2024"}, now, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), q.Start)
	assert.Equal(t, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC), q.End)

	// only one side given: the other stays unbounded
	q, err = r.Resolve(Args{Start: "5/1/2024"}, now, nil)
	require.NoError(t, err)
	assert.False(t, q.Start.IsZero())
	assert.True(t, q.End.IsZero())
}

func TestResolve_Conflicts(t *testing.T) {
	r := newResolver()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := r.Resolve(Args{Past: "1d", Start: "5/1/2024"}, now, nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	_, err = r.Resolve(Args{Start: "5/20/2024", End: "5/1/2024"}, now, nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestResolve_DefaultWindowAnchoredAtLatestEvent(t *testing.T) {
	r := newResolver()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	latest := now.Add(-72 * time.Hour)

	q, err := r.Resolve(Args{}, now, &latest)
	require.NoError(t, err)
	assert.Equal(t, latest, q.End)
	assert.Equal(t, latest.Add(-30*time.Minute), q.Start)
}

func TestResolve_NoEventsAndNoBounds(t *testing.T) {
	r := newResolver()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := r.Resolve(Args{}, now, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve_CarriesFilters(t *testing.T) {
	r := newResolver()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rect := &Rect{MinX: -10, MinZ: -10, MaxX: 10, MaxZ: 10}

	q, err := r.Resolve(Args{
		Past:        "1d",
		Users:       []string{"alice", "bob"},
		Groups:      []string{"mta"},
		Bounds:      rect,
		AllSnitches: true,
	}, now, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, q.Users)
	assert.Equal(t, []string{"mta"}, q.Groups)
	assert.Equal(t, rect, q.Bounds)
	assert.True(t, q.AllSnitches)
}
