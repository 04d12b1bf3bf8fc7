// Package pdf is the PDF output back-end (spec §4.6), built on
// signintech/gopdf in place of the original's Cairo PDF surface: one
// gopdf page per render, one ink pass per layer in stack order,
// rectangles/polylines mapped from Boundary/Path/Box, canvas size derived
// from the cell's resolved bounding box.
package pdf

import (
	"fmt"

	"github.com/signintech/gopdf"

	"github.com/0mhu/gds-render-go/gdserrors"
	"github.com/0mhu/gds-render-go/gdsgeom"
	"github.com/0mhu/gds-render-go/gdslayer"
	"github.com/0mhu/gds-render-go/gdsmodel"
	"github.com/0mhu/gds-render-go/render"
)

// Renderer writes a cell as a single-page PDF, one layer per ink pass.
type Renderer struct {
	render.Base
	// Margin is extra whitespace, in points, added around the cell's
	// bounding box on every side.
	Margin float64
}

var _ render.Renderer = (*Renderer)(nil)

func (r *Renderer) Render(report render.ProgressReporter, cell *gdsmodel.Cell, scale int) error {
	if scale < 1 {
		return gdserrors.New(gdserrors.KindRenderer, "pdf.Render", fmt.Errorf("scale must be >= 1, got %d", scale))
	}
	if r.OutputFilePath == "" {
		return gdserrors.New(gdserrors.KindIO, "pdf.Render", fmt.Errorf("no output path configured"))
	}

	report.Report("computing bounding box")
	box := gdsgeom.CellBoundingBox(cell, make(map[*gdsmodel.Cell]gdsgeom.BoundingBox))
	if box.IsEmpty() {
		box = gdsgeom.BoundingBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	}

	width := (box.MaxX-box.MinX)/float64(scale) + 2*r.Margin
	height := (box.MaxY-box.MinY)/float64(scale) + 2*r.Margin

	gp := &gopdf.GoPdf{}
	gp.Start(gopdf.Config{PageSize: gopdf.Rect{W: width, H: height}})
	gp.AddPage()

	// gopdf's origin is top-left with y growing downward; GDSII's is
	// bottom-left with y growing upward. flip maps one to the other.
	flip := func(v gdsgeom.Vec2) (float64, float64) {
		x := (v.X-box.MinX)/float64(scale) + r.Margin
		y := height - ((v.Y-box.MinY)/float64(scale) + r.Margin)
		return x, y
	}

	for _, layer := range r.OrderedLayers() {
		report.Report(fmt.Sprintf("drawing layer %d", layer.Number))
		if err := r.paintLayer(gp, cell, scale, layer, flip); err != nil {
			return err
		}
	}

	report.Report("writing pdf")
	if err := gp.WritePdf(r.OutputFilePath); err != nil {
		return gdserrors.New(gdserrors.KindIO, "pdf.Render", err)
	}
	return nil
}

// paintLayer draws every graphic on the given layer number, flattening SREF
// transforms with render.Walk.
func (r *Renderer) paintLayer(gp *gopdf.GoPdf, cell *gdsmodel.Cell, scale int, layer gdslayer.LayerInfo, flip func(gdsgeom.Vec2) (float64, float64)) error {
	var paintErr error
	render.Walk(cell, func(g *gdsmodel.Graphic, verts []gdsgeom.Vec2) {
		if paintErr != nil || int16(layer.Number) != g.Layer || len(verts) == 0 {
			return
		}
		rgb8 := func(c float64) uint8 { return uint8(c * 255) }
		gp.SetFillColor(rgb8(layer.Color.R), rgb8(layer.Color.G), rgb8(layer.Color.B))
		gp.SetStrokeColor(rgb8(layer.Color.R), rgb8(layer.Color.G), rgb8(layer.Color.B))
		gp.SetTransparency(gopdf.Transparency{Alpha: layer.Color.A, BlendModeType: gopdf.Normal})

		points := make([]gopdf.Point, len(verts))
		for i, v := range verts {
			x, y := flip(v)
			points[i] = gopdf.Point{X: x, Y: y}
		}

		switch g.Kind {
		case gdsmodel.KindPath:
			gp.SetLineWidth(float64(g.Width) / float64(scale))
			for i := 0; i+1 < len(points); i++ {
				gp.Line(points[i].X, points[i].Y, points[i+1].X, points[i+1].Y)
			}
		default:
			if err := gp.Polygon(points, "F"); err != nil {
				paintErr = gdserrors.New(gdserrors.KindRenderer, "pdf.paintLayer", err)
			}
		}
	})
	return paintErr
}
