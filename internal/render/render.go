// Package render defines the boundary to the external visualization engine.
// The core's only obligation is producing a well-formed, permission-filtered
// input; rendering itself happens elsewhere.
package render

import (
	"context"
	"time"

	"github.com/tybug/snitchvisbot/internal/domain"
	"github.com/tybug/snitchvisbot/internal/queryargs"
)

// Options are renderer knobs passed through from command arguments.
type Options struct {
	// Size is the output edge length in pixels.
	Size int
	// FPS is the output frame rate.
	FPS int
	// Duration is the output length in seconds.
	Duration int
	// Fade is the percentage of the video an event highlight persists for.
	Fade float64
	// AllSnitches draws every known snitch, not only those with events.
	AllSnitches bool
}

// Input is everything the renderer needs for one run.
type Input struct {
	Events   []domain.Event
	Snitches []domain.Snitch
	Users    []string
	Bounds   queryargs.Rect
	Start    time.Time
	End      time.Time
	Options  Options
}

// Artifact is the rendered output.
type Artifact struct {
	Name    string
	Content []byte
}

// Renderer produces an artifact from a resolved, filtered query.
type Renderer interface {
	Render(ctx context.Context, input Input) (*Artifact, error)
}
