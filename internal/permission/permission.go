// Package permission computes per-user visibility over channels and events.
// Every read path goes through it; unauthorized data is silently excluded
// rather than reported.
package permission

import (
	"github.com/tybug/snitchvisbot/internal/domain"
)

// Engine maps channels to authorized roles and scopes reads to a user.
type Engine struct{}

// New creates a permission engine.
func New() *Engine {
	return &Engine{}
}

// CanView reports whether a user holding userRoles may view the channel:
// open channels are visible to everyone, otherwise the user needs at least
// one of the channel's roles.
func (e *Engine) CanView(ch domain.Channel, userRoles []int64) bool {
	if ch.Everyone {
		return true
	}
	for _, roleID := range ch.RoleIDs {
		for _, userRole := range userRoles {
			if roleID == userRole {
				return true
			}
		}
	}
	return false
}

// VisibleChannels returns the subset of channels the user may view.
func (e *Engine) VisibleChannels(channels []domain.Channel, userRoles []int64) []domain.Channel {
	var visible []domain.Channel
	for _, ch := range channels {
		if e.CanView(ch, userRoles) {
			visible = append(visible, ch)
		}
	}
	return visible
}

// VisibleChannelIDs is VisibleChannels reduced to an id set.
func (e *Engine) VisibleChannelIDs(channels []domain.Channel, userRoles []int64) map[int64]bool {
	ids := make(map[int64]bool)
	for _, ch := range e.VisibleChannels(channels, userRoles) {
		ids[ch.ID] = true
	}
	return ids
}

// FilterEvents keeps only events whose snitch's origin channel is in the
// visible set. snitches maps snitch id to its record.
func (e *Engine) FilterEvents(events []domain.Event, snitches map[int64]domain.Snitch, visibleChannels map[int64]bool) []domain.Event {
	var out []domain.Event
	for _, ev := range events {
		snitch, ok := snitches[ev.SnitchID]
		if !ok {
			continue
		}
		if visibleChannels[snitch.ChannelID] {
			out = append(out, ev)
		}
	}
	return out
}

// FilterSnitches keeps only snitches originating in a visible channel.
func (e *Engine) FilterSnitches(snitches []domain.Snitch, visibleChannels map[int64]bool) []domain.Snitch {
	var out []domain.Snitch
	for _, s := range snitches {
		if visibleChannels[s.ChannelID] {
			out = append(out, s)
		}
	}
	return out
}
