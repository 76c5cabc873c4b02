package geometry

import (
	"math"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Service answers the spatial questions validation needs: how far apart
// two based models are and whether terrain blocks their line of sight.
type Service interface {
	DistanceEdgeToEdge(a, b Placement) float64
	LineOfSight(p1, p2 state.Position, walls []state.Wall) bool
}

// Placement is a model's base at a board position.
type Placement struct {
	Position state.Position
	Base     state.BaseShape
}

func PlacementOf(m *state.Model) Placement {
	p := Placement{Base: m.Base}
	if m.Position != nil {
		p.Position = *m.Position
	}
	return p
}

// Measurer implements Service for circular and oval bases. Oval bases are
// approximated by their mean radius; good enough for range and coherency
// checks at tabletop tolerances.
type Measurer struct{}

func NewMeasurer() Measurer { return Measurer{} }

func radius(b state.BaseShape) float64 {
	switch b.Kind {
	case "oval":
		return (b.Width + b.Length) / 4
	default: // circle; Width is the diameter
		return b.Width / 2
	}
}

func (Measurer) DistanceEdgeToEdge(a, b Placement) float64 {
	dx := a.Position.X - b.Position.X
	dy := a.Position.Y - b.Position.Y
	d := math.Hypot(dx, dy) - radius(a.Base) - radius(b.Base)
	if d < 0 {
		return 0
	}
	return d
}

// LineOfSight reports whether the segment p1-p2 crosses none of the walls.
func (Measurer) LineOfSight(p1, p2 state.Position, walls []state.Wall) bool {
	for _, w := range walls {
		if segmentsIntersect(p1.X, p1.Y, p2.X, p2.Y, w.X1, w.Y1, w.X2, w.Y2) {
			return false
		}
	}
	return true
}

// segmentsIntersect uses orientation tests; collinear overlap counts as
// an intersection.
func segmentsIntersect(ax, ay, bx, by, cx, cy, dx, dy float64) bool {
	o1 := orient(ax, ay, bx, by, cx, cy)
	o2 := orient(ax, ay, bx, by, dx, dy)
	o3 := orient(cx, cy, dx, dy, ax, ay)
	o4 := orient(cx, cy, dx, dy, bx, by)
	if o1 != o2 && o3 != o4 {
		return true
	}
	if o1 == 0 && onSegment(ax, ay, bx, by, cx, cy) {
		return true
	}
	if o2 == 0 && onSegment(ax, ay, bx, by, dx, dy) {
		return true
	}
	if o3 == 0 && onSegment(cx, cy, dx, dy, ax, ay) {
		return true
	}
	if o4 == 0 && onSegment(cx, cy, dx, dy, bx, by) {
		return true
	}
	return false
}

func orient(ax, ay, bx, by, px, py float64) int {
	v := (bx-ax)*(py-ay) - (by-ay)*(px-ax)
	switch {
	case v > 1e-9:
		return 1
	case v < -1e-9:
		return -1
	}
	return 0
}

func onSegment(ax, ay, bx, by, px, py float64) bool {
	return math.Min(ax, bx)-1e-9 <= px && px <= math.Max(ax, bx)+1e-9 &&
		math.Min(ay, by)-1e-9 <= py && py <= math.Max(ay, by)+1e-9
}

// InTerrain reports whether a point sits inside a terrain footprint,
// which grants cover against shooting.
func InTerrain(p state.Position, t state.TerrainPiece) bool {
	return p.X >= t.MinX && p.X <= t.MaxX && p.Y >= t.MinY && p.Y <= t.MaxY
}

// InZone reports whether a point is inside a deployment zone.
func InZone(p state.Position, z state.DeployZone) bool {
	return p.X >= z.MinX && p.X <= z.MaxX && p.Y >= z.MinY && p.Y <= z.MaxY
}

// WithinObjective reports whether a model placement is in range of an
// objective marker.
func WithinObjective(pl Placement, o *state.Objective) bool {
	dx := pl.Position.X - o.Position.X
	dy := pl.Position.Y - o.Position.Y
	return math.Hypot(dx, dy)-radius(pl.Base) <= o.Radius
}
