// Package queryargs resolves human-friendly filter arguments into a single
// canonical query consumed by the event store and the renderer.
package queryargs

import (
	"time"

	"github.com/tybug/snitchvisbot/internal/config"
	"github.com/tybug/snitchvisbot/internal/domain"
)

// Args are the raw filter arguments supplied by the caller, before
// resolution. Empty strings and nil slices mean "not given".
type Args struct {
	// Past is a relative duration ("1h30m") or the literal "all".
	Past string
	// Start and End are absolute dates, mm/dd/yyyy or mm/dd/yy.
	Start string
	End   string

	Users  []string
	Groups []string

	// Bounds is an explicit rectangle overriding automatic bounding-box
	// computation.
	Bounds *Rect

	// AllSnitches asks the renderer to draw every known snitch, not just
	// the ones with matching events.
	AllSnitches bool
}

// Query is the canonical resolved form. Zero times are unbounded.
type Query struct {
	Start time.Time
	End   time.Time

	Users  []string
	Groups []string

	Bounds      *Rect
	AllSnitches bool
}

// Resolver turns Args into a Query.
type Resolver struct {
	cfg config.QueryConfig
}

// NewResolver creates a resolver with the given defaults.
func NewResolver(cfg config.QueryConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve validates and canonicalizes args. now anchors relative durations;
// latest is the guild's most recent event time, used when the caller gives no
// time bounds at all (the window then reaches back the configured default
// span from that event). latest may be nil when the guild has no events.
func (r *Resolver) Resolve(args Args, now time.Time, latest *time.Time) (*Query, error) {
	q := &Query{
		Users:       args.Users,
		Groups:      args.Groups,
		Bounds:      args.Bounds,
		AllSnitches: args.AllSnitches,
	}

	hasPast := args.Past != ""
	hasDates := args.Start != "" || args.End != ""

	switch {
	case hasPast && hasDates:
		return nil, domain.Validationf("cannot combine a relative duration with explicit start/end dates")

	case hasPast:
		dur, unbounded, err := ParseDuration(args.Past)
		if err != nil {
			return nil, err
		}
		q.End = now
		if !unbounded {
			q.Start = now.Add(-dur)
		}

	case hasDates:
		if args.Start != "" {
			start, err := ParseDate(args.Start)
			if err != nil {
				return nil, err
			}
			q.Start = start
		}
		if args.End != "" {
			end, err := ParseDate(args.End)
			if err != nil {
				return nil, err
			}
			q.End = end
		}
		if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
			return nil, domain.Validationf("end date must not be before start date")
		}

	default:
		// No time bounds at all: anchor at the most recent event and reach
		// back the default span, however long ago that event was.
		if latest == nil {
			return nil, domain.ErrNotFound
		}
		q.End = *latest
		q.Start = latest.Add(-r.cfg.DefaultSpan)
	}

	return q, nil
}
