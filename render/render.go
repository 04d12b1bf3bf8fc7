// Package render defines the output back-end contract (C6): the Renderer
// interface every concrete back-end implements, the coalescing async
// dispatch contract, and the transform-composition helper shared by the
// back-ends that need flattened world coordinates rather than native nested
// scopes.
package render

import (
	"math"

	"github.com/0mhu/gds-render-go/gdsgeom"
	"github.com/0mhu/gds-render-go/gdslayer"
	"github.com/0mhu/gds-render-go/gdsmodel"
)

// ProgressReporter receives coalesced status updates from a running render.
type ProgressReporter interface {
	Report(status string)
}

// Renderer is the abstract OutputRenderer contract from spec §4.6: one
// required capability, configured with an output path and a layer style
// table. report must not be nil: the back-ends in this module call
// report.Report without a nil check. RunAsync always supplies one.
type Renderer interface {
	Render(report ProgressReporter, cell *gdsmodel.Cell, scale int) error
}

// Base holds the two properties every concrete renderer is configured with
// (spec §4.6: "output_file_path and a LayerSettings reference"). Concrete
// back-ends embed it.
type Base struct {
	OutputFilePath string
	Layers         gdslayer.Snapshot
}

// OrderedLayers returns the configured layers in stack order, skipping any
// with Render=false (spec §4.7: "render flags off suppress the layer
// entirely").
func (b Base) OrderedLayers() []gdslayer.LayerInfo {
	all := b.Layers.Layers()
	out := make([]gdslayer.LayerInfo, 0, len(all))
	for _, l := range all {
		if l.Render {
			out = append(out, l)
		}
	}
	return out
}

// Progress is the single-slot, coalescing status channel spec §5 describes:
// "queued (coalesced — last message wins if the main thread has not yet
// drained)". Done fires exactly once with the render's final error (nil on
// success).
type Progress struct {
	status chan string
	done   chan error
}

func newProgress() *Progress {
	return &Progress{status: make(chan string, 1), done: make(chan error, 1)}
}

// Status returns the channel progress strings are delivered on. A reader
// that doesn't drain promptly only ever sees the most recent status, never
// a backlog.
func (p *Progress) Status() <-chan string { return p.status }

// Done returns the channel the render's terminal error arrives on, exactly
// once.
func (p *Progress) Done() <-chan error { return p.done }

// Report implements ProgressReporter by coalescing into the single slot:
// a non-blocking send, and if the slot is already full, drain-then-send so
// the newest status always wins.
func (p *Progress) Report(status string) {
	select {
	case p.status <- status:
		return
	default:
	}
	select {
	case <-p.status:
	default:
	}
	select {
	case p.status <- status:
	default:
	}
}

// RunAsync starts r.Render on its own goroutine and returns immediately
// with a Progress the caller drains. Cancellation is not supported (spec
// §5: "a started async render runs to completion").
func RunAsync(r Renderer, cell *gdsmodel.Cell, scale int) *Progress {
	p := newProgress()
	go func() {
		p.Report("starting")
		err := r.Render(p, cell, scale)
		p.done <- err
	}()
	return p
}

// Mat is a 2D affine transform (row-major, last row implicitly [0 0 1]):
//
//	x' = A*x + B*y + E
//	y' = C*x + D*y + F
//
// Used by back-ends that need a single flattened world coordinate per
// vertex (render/pdf, render/svg) rather than native nested transform
// scopes (render/tikz recurses against the model directly instead).
type Mat struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity transform.
func Identity() Mat { return Mat{A: 1, D: 1} }

func translate(dx, dy float64) Mat { return Mat{A: 1, D: 1, E: dx, F: dy} }

func rotateDeg(deg float64) Mat {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Mat{A: c, B: -s, C: s, D: c}
}

func scaleUniform(k float64) Mat { return Mat{A: k, D: k} }

func flipY() Mat { return Mat{A: 1, D: -1} }

// Concat returns the transform that applies child first, then m — m.Concat(child).Apply(p) == m.Apply(child.Apply(p)).
func (m Mat) Concat(child Mat) Mat {
	return Mat{
		A: m.A*child.A + m.B*child.C,
		B: m.A*child.B + m.B*child.D,
		C: m.C*child.A + m.D*child.C,
		D: m.C*child.B + m.D*child.D,
		E: m.A*child.E + m.B*child.F + m.E,
		F: m.C*child.E + m.D*child.F + m.F,
	}
}

// Apply transforms a single point.
func (m Mat) Apply(v gdsgeom.Vec2) gdsgeom.Vec2 {
	return gdsgeom.Vec2{X: m.A*v.X + m.B*v.Y + m.E, Y: m.C*v.X + m.D*v.Y + m.F}
}

// sRefMat builds the local placement matrix for one SREF level: flip before
// rotate before scale before translate (spec §3/§9's mandatory ordering).
//
// Magnification is used raw, sign included, matching cairo-renderer.c and
// latex-output.c — both render a negative magnification as a mirrored
// result rather than clamping it to |mag|. Only the bbox kernel
// (gdsgeom.CellBoundingBox) takes the absolute value, per spec.md's
// explicit "|R.mag|" bbox rule; that rule does not extend to rendering.
func sRefMat(ref *gdsmodel.CellRef) Mat {
	local := Identity()
	if ref.Flipped {
		local = flipY()
	}
	local = rotateDeg(ref.AngleDeg).Concat(local)
	local = scaleUniform(ref.Magnification).Concat(local)
	local = translate(float64(ref.Origin.X), float64(ref.Origin.Y)).Concat(local)
	return local
}

// Visit receives one graphic element with its vertices already transformed
// into absolute, flattened world coordinates.
type Visit func(g *gdsmodel.Graphic, worldVerts []gdsgeom.Vec2)

// Walk recursively visits every graphic reachable from cell, applying the
// accumulated SREF transform chain down the cell graph. The caller must
// have run gdsvalidate first; a cell left AffectedByLoop recurses forever.
func Walk(cell *gdsmodel.Cell, visit Visit) {
	walk(cell, Identity(), visit)
}

func walk(cell *gdsmodel.Cell, m Mat, visit Visit) {
	for _, g := range cell.Graphics {
		verts := make([]gdsgeom.Vec2, len(g.Vertices))
		for i, p := range g.Vertices {
			verts[i] = m.Apply(gdsgeom.FromPoint(p))
		}
		visit(g, verts)
	}
	for _, ref := range cell.Children {
		if ref.ResolvedCell == nil {
			continue
		}
		walk(ref.ResolvedCell, m.Concat(sRefMat(ref)), visit)
	}
}
