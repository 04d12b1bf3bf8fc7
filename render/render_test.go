package render

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/0mhu/gds-render-go/gdsgeom"
	"github.com/0mhu/gds-render-go/gdsmodel"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < epsilon }

func TestMatIdentity(t *testing.T) {
	v := Identity().Apply(gdsgeom.Vec2{X: 3, Y: 4})
	if v.X != 3 || v.Y != 4 {
		t.Fatalf("identity changed point: %+v", v)
	}
}

func TestMatConcatOrder(t *testing.T) {
	// translate(10,0) after rotate(90deg): point (1,0) -> rotate -> (0,1) -> translate -> (10,1)
	m := translate(10, 0).Concat(rotateDeg(90))
	v := m.Apply(gdsgeom.Vec2{X: 1, Y: 0})
	if !almostEqual(v.X, 10) || !almostEqual(v.Y, 1) {
		t.Fatalf("got %+v, want (10,1)", v)
	}
}

func TestWalkMatchesBoundingBoxTransform(t *testing.T) {
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

	box := gdsgeom.Empty()
	Walk(b, func(_ *gdsmodel.Graphic, verts []gdsgeom.Vec2) {
		for _, v := range verts {
			box.UpdatePoint(v.X, v.Y)
		}
	})

	want := gdsgeom.BoundingBox{MinX: 10, MinY: 20, MaxX: 30, MaxY: 40}
	if !almostEqual(box.MinX, want.MinX) || !almostEqual(box.MinY, want.MinY) ||
		!almostEqual(box.MaxX, want.MaxX) || !almostEqual(box.MaxY, want.MaxY) {
		t.Fatalf("Walk-derived box = %+v, want %+v", box, want)
	}
}

type stubRenderer struct {
	err error
}

func (s *stubRenderer) Render(report ProgressReporter, cell *gdsmodel.Cell, scale int) error {
	report.Report("working")
	return s.err
}

func TestRunAsyncDeliversResult(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()

	p := RunAsync(&stubRenderer{}, cell, 1)
	select {
	case err := <-p.Done():
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Done")
	}
}

func TestRunAsyncPropagatesError(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	want := errors.New("boom")

	p := RunAsync(&stubRenderer{err: want}, cell, 1)
	err := <-p.Done()
	if !errors.Is(err, want) {
		t.Fatalf("got %v, want %v", err, want)
	}
}

func TestProgressReportCoalesces(t *testing.T) {
	p := newProgress()
	p.Report("first")
	p.Report("second")
	p.Report("third")

	got := <-p.status
	if got != "third" {
		t.Fatalf("expected coalesced last value 'third', got %q", got)
	}
	select {
	case extra := <-p.status:
		t.Fatalf("expected only one coalesced value, got extra %q", extra)
	default:
	}
}
