// Package gdsgeom is the vector algebra and bounding-box kernel spec §4.5
// describes: a small 2D vector type, an axis-aligned bounding box with the
// usual union/update operations, and the recursive per-cell bounding-box
// composition that walks SREF transforms down the cell graph.
//
// Every operation here is pure math over already-validated data — no I/O,
// no logging. Callers must have run gdsvalidate first; recursing into a
// cycle is undefined here by design (spec §4.5/§9: "straightforward
// recursion when the loop detector has passed; otherwise callers must
// guard").
package gdsgeom

import (
	"math"

	"github.com/0mhu/gds-render-go/gdsmodel"
)

// Vec2 is a 2D vector in floating-point working units. Transform
// composition (rotation, scaling) always happens in doubles even though the
// underlying model coordinates are integers (spec §3).
type Vec2 struct {
	X, Y float64
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v.X - o.X, v.Y - o.Y} }

// Scale returns a new vector multiplied by a scalar, leaving v unchanged.
func (v Vec2) Scale(k float64) Vec2 { return Vec2{v.X * k, v.Y * k} }

func (v Vec2) Magnitude() float64 { return math.Hypot(v.X, v.Y) }

// Normalize scales v to unit length in place. A zero vector is left
// unchanged rather than dividing by zero.
func (v *Vec2) Normalize() {
	m := v.Magnitude()
	if m == 0 {
		return
	}
	v.X /= m
	v.Y /= m
}

// Rotate applies the standard 2x2 rotation matrix to v in place, rad
// radians counterclockwise.
func (v *Vec2) Rotate(rad float64) {
	s, c := math.Sincos(rad)
	x := v.X*c - v.Y*s
	y := v.X*s + v.Y*c
	v.X, v.Y = x, y
}

// ScaleInPlace applies a uniform scale to v in place.
func (v *Vec2) ScaleInPlace(k float64) {
	v.X *= k
	v.Y *= k
}

// FromPoint converts an integer model coordinate to working units.
func FromPoint(p gdsmodel.Point) Vec2 { return Vec2{X: float64(p.X), Y: float64(p.Y)} }

// BoundingBox is an axis-aligned box in the same floating-point working
// units as Vec2. The empty box has +Inf lower-left and -Inf upper-right so
// that union-by-component-wise-min/max composes correctly with no special
// casing at the call site (spec §4.5).
type BoundingBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Empty returns a prepared-empty bounding box.
func Empty() BoundingBox {
	return BoundingBox{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether no point has ever been unioned into b.
func (b BoundingBox) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY
}

// UpdatePoint unions a single point into b in place.
func (b *BoundingBox) UpdatePoint(x, y float64) {
	b.MinX = math.Min(b.MinX, x)
	b.MinY = math.Min(b.MinY, y)
	b.MaxX = math.Max(b.MaxX, x)
	b.MaxY = math.Max(b.MaxY, y)
}

// UpdateBox unions another box into b in place.
func (b *BoundingBox) UpdateBox(other BoundingBox) {
	if other.IsEmpty() {
		return
	}
	b.UpdatePoint(other.MinX, other.MinY)
	b.UpdatePoint(other.MaxX, other.MaxY)
}

// UpdatePolygon unions every vertex of a Boundary/Box element into b.
func (b *BoundingBox) UpdatePolygon(verts []gdsmodel.Point) {
	for _, p := range verts {
		b.UpdatePoint(float64(p.X), float64(p.Y))
	}
}

// UpdatePath unions a Path element's ink extent into b, approximated as a
// square of half-width centered on each vertex (rectangular thickening).
// This is a declared approximation (spec §4.5/§9): it does not compute true
// mitered or rounded segment geometry. The result encloses the exact ink
// extent for flush and round caps; square caps on a segment that is not
// axis-aligned can reach past it.
func (b *BoundingBox) UpdatePath(verts []gdsmodel.Point, width int32) {
	hw := math.Abs(float64(width)) / 2
	for _, p := range verts {
		x, y := float64(p.X), float64(p.Y)
		b.UpdatePoint(x-hw, y-hw)
		b.UpdatePoint(x+hw, y+hw)
	}
}

// Transform returns a new box enclosing b after flip-then-rotate-then-scale
// is applied to each of its four corners. Flip precedes rotation — the
// mandatory SREF ordering (spec §3/§9) — and uniform scale commutes with
// both, so its position in the pipeline doesn't affect the result.
// Translation is the caller's job (spec §4.5: "translate by R.origin").
func (b BoundingBox) Transform(magnification, angleDeg float64, flipX bool) BoundingBox {
	if b.IsEmpty() {
		return b
	}
	rad := angleDeg * math.Pi / 180
	corners := [4]Vec2{
		{b.MinX, b.MinY}, {b.MaxX, b.MinY},
		{b.MaxX, b.MaxY}, {b.MinX, b.MaxY},
	}
	out := Empty()
	for _, c := range corners {
		v := c
		if flipX {
			v.Y = -v.Y
		}
		v.Rotate(rad)
		v.ScaleInPlace(magnification)
		out.UpdatePoint(v.X, v.Y)
	}
	return out
}

// Translate returns a new box shifted by (dx, dy).
func (b BoundingBox) Translate(dx, dy float64) BoundingBox {
	if b.IsEmpty() {
		return b
	}
	return BoundingBox{
		MinX: b.MinX + dx, MinY: b.MinY + dy,
		MaxX: b.MaxX + dx, MaxY: b.MaxY + dy,
	}
}

// CellBoundingBox recursively computes cell's bounding box: its own
// graphics, unioned with every resolved child's box after that child's
// (|magnification|, angle, flipped) transform and origin translation (spec
// §4.5). cache memoizes per-cell results across the whole call tree — real
// hierarchies reuse the same leaf cells under many SREFs/AREFs, and without
// memoizing, a deep reference tree revisits the same subtree once per
// instantiation. Pass a fresh (or nil) cache per top-level call; a nil
// cache disables memoization.
//
// The caller must have run gdsvalidate first. A cell still flagged
// AffectedByLoop will recurse forever here; this function does not guard
// against it.
func CellBoundingBox(cell *gdsmodel.Cell, cache map[*gdsmodel.Cell]BoundingBox) BoundingBox {
	if cache != nil {
		if box, ok := cache[cell]; ok {
			return box
		}
	}

	box := Empty()
	for _, g := range cell.Graphics {
		switch g.Kind {
		case gdsmodel.KindPath:
			box.UpdatePath(g.Vertices, g.Width)
		default:
			box.UpdatePolygon(g.Vertices)
		}
	}
	for _, ref := range cell.Children {
		if ref.ResolvedCell == nil {
			continue
		}
		childBox := CellBoundingBox(ref.ResolvedCell, cache)
		if childBox.IsEmpty() {
			continue
		}
		transformed := childBox.Transform(math.Abs(ref.Magnification), ref.AngleDeg, ref.Flipped)
		translated := transformed.Translate(float64(ref.Origin.X), float64(ref.Origin.Y))
		box.UpdateBox(translated)
	}

	if cache != nil {
		cache[cell] = box
	}
	return box
}
