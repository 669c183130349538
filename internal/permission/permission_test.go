package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tybug/snitchvisbot/internal/domain"
)

func TestCanView(t *testing.T) {
	e := New()

	open := domain.Channel{ID: 1, Everyone: true}
	restricted := domain.Channel{ID: 2, RoleIDs: []int64{10, 20}}
	orphaned := domain.Channel{ID: 3}

	assert.True(t, e.CanView(open, nil), "open channels are visible without roles")
	assert.True(t, e.CanView(restricted, []int64{20, 99}))
	assert.False(t, e.CanView(restricted, []int64{99}))
	assert.False(t, e.CanView(restricted, nil))
	assert.False(t, e.CanView(orphaned, []int64{10}), "no roles and not open means nobody sees it")
}

func TestVisibleChannels(t *testing.T) {
	e := New()

	channels := []domain.Channel{
		{ID: 1, Everyone: true},
		{ID: 2, RoleIDs: []int64{10}},
		{ID: 3, RoleIDs: []int64{20}},
	}

	visible := e.VisibleChannels(channels, []int64{10})
	assert.Len(t, visible, 2)

	ids := e.VisibleChannelIDs(channels, []int64{10})
	assert.Equal(t, map[int64]bool{1: true, 2: true}, ids)
}

func TestFilterEvents(t *testing.T) {
	e := New()

	snitches := map[int64]domain.Snitch{
		100: {ID: 100, ChannelID: 1},
		101: {ID: 101, ChannelID: 2},
	}
	events := []domain.Event{
		{ID: 1, SnitchID: 100},
		{ID: 2, SnitchID: 101},
		{ID: 3, SnitchID: 999}, // snitch unknown: always excluded
	}

	out := e.FilterEvents(events, snitches, map[int64]bool{1: true})
	assert.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].ID)

	// no visible channels at all yields no events
	assert.Empty(t, e.FilterEvents(events, snitches, map[int64]bool{}))
}

func TestFilterSnitches(t *testing.T) {
	e := New()

	snitches := []domain.Snitch{
		{ID: 100, ChannelID: 1},
		{ID: 101, ChannelID: 2},
	}

	out := e.FilterSnitches(snitches, map[int64]bool{2: true})
	assert.Len(t, out, 1)
	assert.Equal(t, int64(101), out[0].ID)
}
