package queryargs

import (
	"strconv"

	"github.com/tybug/snitchvisbot/internal/config"
	"github.com/tybug/snitchvisbot/internal/domain"
)

// Rect is an axis-aligned rectangle in world coordinates (x/z plane).
type Rect struct {
	MinX int
	MinZ int
	MaxX int
	MaxZ int
}

// Contains reports whether the point lies inside the rectangle, edges
// included.
func (r Rect) Contains(x, z int) bool {
	return x >= r.MinX && x <= r.MaxX && z >= r.MinZ && z <= r.MaxZ
}

// ParseRect parses an explicit rectangle from two opposite corners given as
// four tokens: x1 z1 x2 z2. Corner order does not matter.
func ParseRect(tokens []string) (*Rect, error) {
	if len(tokens) != 4 {
		return nil, domain.Validationf("bounds require exactly four coordinates: x1 z1 x2 z2")
	}
	vals := make([]int, 4)
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, domain.Validationf("invalid coordinate `%s`", tok)
		}
		vals[i] = v
	}
	rect := &Rect{
		MinX: min(vals[0], vals[2]),
		MaxX: max(vals[0], vals[2]),
		MinZ: min(vals[1], vals[3]),
		MaxZ: max(vals[1], vals[3]),
	}
	return rect, nil
}

// Point is one event location used for bounding-box computation.
type Point struct {
	X int
	Z int
}

// ComputeBounds returns the rectangle the renderer should frame. An explicit
// rectangle wins outright. Otherwise the minimal rectangle containing every
// point is expanded by the configured margin; with no points at all a
// default-sized box centered at the origin is returned so an empty query
// still renders.
func ComputeBounds(explicit *Rect, points []Point, cfg config.QueryConfig) Rect {
	if explicit != nil {
		return *explicit
	}

	if len(points) == 0 {
		half := cfg.FallbackBoxSize / 2
		return Rect{MinX: -half, MinZ: -half, MaxX: half, MaxZ: half}
	}

	rect := Rect{
		MinX: points[0].X, MaxX: points[0].X,
		MinZ: points[0].Z, MaxZ: points[0].Z,
	}
	for _, p := range points[1:] {
		rect.MinX = min(rect.MinX, p.X)
		rect.MaxX = max(rect.MaxX, p.X)
		rect.MinZ = min(rect.MinZ, p.Z)
		rect.MaxZ = max(rect.MaxZ, p.Z)
	}

	rect.MinX -= cfg.BoundsMargin
	rect.MinZ -= cfg.BoundsMargin
	rect.MaxX += cfg.BoundsMargin
	rect.MaxZ += cfg.BoundsMargin
	return rect
}
