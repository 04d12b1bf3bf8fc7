package gdsgeom

import (
	"math"
	"testing"

	"github.com/0mhu/gds-render-go/gdsmodel"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < epsilon }

func TestVec2Basics(t *testing.T) {
	a := Vec2{X: 3, Y: 4}
	if a.Magnitude() != 5 {
		t.Fatalf("magnitude = %v, want 5", a.Magnitude())
	}
	sum := a.Add(Vec2{X: 1, Y: 1})
	if sum != (Vec2{X: 4, Y: 5}) {
		t.Fatalf("add = %+v", sum)
	}
	diff := a.Sub(Vec2{X: 1, Y: 1})
	if diff != (Vec2{X: 2, Y: 3}) {
		t.Fatalf("sub = %+v", diff)
	}
	n := a
	n.Normalize()
	if !almostEqual(n.Magnitude(), 1) {
		t.Fatalf("normalized magnitude = %v", n.Magnitude())
	}
}

func TestVec2RotateQuarterTurn(t *testing.T) {
	v := Vec2{X: 1, Y: 0}
	v.Rotate(math.Pi / 2)
	if !almostEqual(v.X, 0) || !almostEqual(v.Y, 1) {
		t.Fatalf("rotate 90deg = %+v", v)
	}
}

func TestBoundingBoxEmptyUnionsCleanly(t *testing.T) {
	b := Empty()
	if !b.IsEmpty() {
		t.Fatal("fresh box should be empty")
	}
	b.UpdatePoint(5, -5)
	if b.IsEmpty() {
		t.Fatal("box with a point is not empty")
	}
	if b.MinX != 5 || b.MaxX != 5 || b.MinY != -5 || b.MaxY != -5 {
		t.Fatalf("unexpected box: %+v", b)
	}
}

func TestBoundingBoxUpdatePolygon(t *testing.T) {
	b := Empty()
	b.UpdatePolygon([]gdsmodel.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}})
	if b.MinX != 0 || b.MinY != 0 || b.MaxX != 100 || b.MaxY != 100 {
		t.Fatalf("unexpected box: %+v", b)
	}
}

func TestBoundingBoxUpdatePathThickens(t *testing.T) {
	b := Empty()
	b.UpdatePath([]gdsmodel.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}, 10)
	if b.MinX != -5 || b.MinY != -5 || b.MaxX != 105 || b.MaxY != 5 {
		t.Fatalf("unexpected thickened box: %+v", b)
	}
}

func TestBoundingBoxUnionOfBoxes(t *testing.T) {
	a := BoundingBox{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	b := BoundingBox{MinX: 5, MinY: -5, MaxX: 20, MaxY: 5}
	a.UpdateBox(b)
	if a.MinX != 0 || a.MinY != -5 || a.MaxX != 20 || a.MaxY != 10 {
		t.Fatalf("unexpected union: %+v", a)
	}
}

// TestCellBoundingBoxWithSRefTransform is the spec's literal seed scenario:
// B holds an SREF to A at origin (10,20), angle 90, mag 2, flipped. B's
// bounding box must be A's box after flip-then-rotate-then-scale, then
// translated by the SREF's origin.
func TestCellBoundingBoxWithSRefTransform(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	a := lib.NewCell()
	a.Name = "A"
	g := a.AddGraphic(gdsmodel.KindBoundary)
	g.Vertices = []gdsmodel.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	b := lib.NewCell()
	b.Name = "B"
	ref := b.AddChild("A")
	ref.ResolvedCell = a
	ref.Origin = gdsmodel.Point{X: 10, Y: 20}
	ref.AngleDeg = 90
	ref.Magnification = 2
	ref.Flipped = true

	box := CellBoundingBox(b, nil)
	want := BoundingBox{MinX: 10, MinY: 20, MaxX: 30, MaxY: 40}
	if !almostEqual(box.MinX, want.MinX) || !almostEqual(box.MinY, want.MinY) ||
		!almostEqual(box.MaxX, want.MaxX) || !almostEqual(box.MaxY, want.MaxY) {
		t.Fatalf("got %+v, want %+v", box, want)
	}
}

func TestCellBoundingBoxMemoizes(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	leaf := lib.NewCell()
	leaf.Name = "LEAF"
	g := leaf.AddGraphic(gdsmodel.KindBoundary)
	g.Vertices = []gdsmodel.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}

	top := lib.NewCell()
	top.Name = "TOP"
	for i := 0; i < 3; i++ {
		ref := top.AddChild("LEAF")
		ref.ResolvedCell = leaf
		ref.Origin = gdsmodel.Point{X: int32(i) * 10, Y: 0}
	}

	cache := make(map[*gdsmodel.Cell]BoundingBox)
	box := CellBoundingBox(top, cache)
	if box.IsEmpty() {
		t.Fatal("expected non-empty box")
	}
	if _, ok := cache[leaf]; !ok {
		t.Fatal("expected leaf's box to be memoized")
	}
}

func TestCellBoundingBoxEmptyCellIsEmpty(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	empty := lib.NewCell()
	empty.Name = "EMPTY"
	box := CellBoundingBox(empty, nil)
	if !box.IsEmpty() {
		t.Fatalf("expected empty box, got %+v", box)
	}
}
