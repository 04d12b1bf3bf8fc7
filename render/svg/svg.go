// Package svg is the SVG output back-end (spec §4.6): one <g> per layer in
// stack order, one <path> per graphic, alpha carried as fill-opacity.
// Hand-rolled on encoding/xml rather than a dedicated SVG library, since
// none of the example pack pulls one in for this purpose.
package svg

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/0mhu/gds-render-go/gdserrors"
	"github.com/0mhu/gds-render-go/gdsgeom"
	"github.com/0mhu/gds-render-go/gdslayer"
	"github.com/0mhu/gds-render-go/gdsmodel"
	"github.com/0mhu/gds-render-go/render"
)

// Renderer writes a cell as a standalone SVG document.
type Renderer struct {
	render.Base
}

var _ render.Renderer = (*Renderer)(nil)

func (r *Renderer) Render(report render.ProgressReporter, cell *gdsmodel.Cell, scale int) error {
	if scale < 1 {
		return gdserrors.New(gdserrors.KindRenderer, "svg.Render", fmt.Errorf("scale must be >= 1, got %d", scale))
	}
	if r.OutputFilePath == "" {
		return gdserrors.New(gdserrors.KindIO, "svg.Render", fmt.Errorf("no output path configured"))
	}

	report.Report("computing bounding box")
	box := gdsgeom.CellBoundingBox(cell, make(map[*gdsmodel.Cell]gdsgeom.BoundingBox))
	if box.IsEmpty() {
		box = gdsgeom.BoundingBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}
	}

	f, err := os.Create(r.OutputFilePath)
	if err != nil {
		return gdserrors.New(gdserrors.KindIO, "svg.Render", err)
	}
	defer f.Close()

	report.Report("writing svg")
	if err := r.write(f, cell, scale, box); err != nil {
		return err
	}
	return nil
}

func (r *Renderer) write(w io.Writer, cell *gdsmodel.Cell, scale int, box gdsgeom.BoundingBox) error {
	width := (box.MaxX - box.MinX) / float64(scale)
	height := (box.MaxY - box.MinY) / float64(scale)

	io.WriteString(w, xml.Header)
	fmt.Fprintf(w, "<svg xmlns=%q width=%q height=%q viewBox=\"0 0 %g %g\">\n",
		"http://www.w3.org/2000/svg", fmt.Sprintf("%gpt", width), fmt.Sprintf("%gpt", height), width, height)

	flip := func(v gdsgeom.Vec2) (float64, float64) {
		x := (v.X - box.MinX) / float64(scale)
		y := height - (v.Y-box.MinY)/float64(scale)
		return x, y
	}

	for _, layer := range r.OrderedLayers() {
		if err := r.writeLayer(w, cell, scale, layer, flip); err != nil {
			return err
		}
	}

	io.WriteString(w, "</svg>\n")
	return nil
}

func (r *Renderer) writeLayer(w io.Writer, cell *gdsmodel.Cell, scale int, layer gdslayer.LayerInfo, flip func(gdsgeom.Vec2) (float64, float64)) error {
	fmt.Fprintf(w, "<g id=%q fill=\"rgb(%d,%d,%d)\" fill-opacity=\"%g\" stroke=\"rgb(%d,%d,%d)\">\n",
		fmt.Sprintf("layer%d", layer.Number),
		to255(layer.Color.R), to255(layer.Color.G), to255(layer.Color.B), layer.Color.A,
		to255(layer.Color.R), to255(layer.Color.G), to255(layer.Color.B),
	)

	var writeErr error
	render.Walk(cell, func(g *gdsmodel.Graphic, verts []gdsgeom.Vec2) {
		if writeErr != nil || int16(layer.Number) != g.Layer || len(verts) == 0 {
			return
		}
		pathData := buildPath(verts, flip, g.Kind != gdsmodel.KindPath)
		switch g.Kind {
		case gdsmodel.KindPath:
			width := float64(g.Width) / float64(scale)
			fmt.Fprintf(w, "<path d=%q fill=\"none\" stroke-width=\"%g\"/>\n", pathData, width)
		default:
			fmt.Fprintf(w, "<path d=%q stroke=\"none\"/>\n", pathData)
		}
	})

	io.WriteString(w, "</g>\n")
	return writeErr
}

// buildPath renders an SVG path data string, closing with Z for filled
// (non-Path) shapes and leaving open Paths unclosed.
func buildPath(verts []gdsgeom.Vec2, flip func(gdsgeom.Vec2) (float64, float64), closed bool) string {
	var b strings.Builder
	for i, v := range verts {
		x, y := flip(v)
		if i == 0 {
			fmt.Fprintf(&b, "M%g,%g", x, y)
		} else {
			fmt.Fprintf(&b, " L%g,%g", x, y)
		}
	}
	if closed {
		b.WriteString(" Z")
	}
	return b.String()
}

func to255(c float64) int { return int(c * 255) }
