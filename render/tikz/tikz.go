// Package tikz is the TikZ/LaTeX output back-end (spec §4.6): a text
// writer that walks the cell tree natively, emitting one nested
// \begin{scope} per SREF level (rather than flattening coordinates the way
// render/pdf and render/svg do) and one command per graphic: \fill for
// Boundary/Box, \draw for Path.
package tikz

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/0mhu/gds-render-go/gdserrors"
	"github.com/0mhu/gds-render-go/gdslayer"
	"github.com/0mhu/gds-render-go/gdsmodel"
	"github.com/0mhu/gds-render-go/render"
)

// Renderer writes a cell as a TikZ picture.
type Renderer struct {
	render.Base
	// Standalone wraps the output in a compilable \documentclass{standalone}
	// document (--tex-standalone/-a).
	Standalone bool
	// UseOCGLayers emits PDF OCG (Optional Content Group) layers via
	// \begin{ocg} instead of plain \pgfonlayer (--tex-layers/-l).
	UseOCGLayers bool
}

var _ render.Renderer = (*Renderer)(nil)

func (r *Renderer) Render(report render.ProgressReporter, cell *gdsmodel.Cell, scale int) error {
	if scale < 1 {
		return gdserrors.New(gdserrors.KindRenderer, "tikz.Render", fmt.Errorf("scale must be >= 1, got %d", scale))
	}
	if r.OutputFilePath == "" {
		return gdserrors.New(gdserrors.KindIO, "tikz.Render", fmt.Errorf("no output path configured"))
	}
	f, err := os.Create(r.OutputFilePath)
	if err != nil {
		return gdserrors.New(gdserrors.KindIO, "tikz.Render", err)
	}
	defer f.Close()

	report.Report("writing tikz preamble")
	w := bufio.NewWriter(f)
	if err := r.write(w, cell, scale, report); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return gdserrors.New(gdserrors.KindIO, "tikz.Render", err)
	}
	return nil
}

func (r *Renderer) write(w io.Writer, cell *gdsmodel.Cell, scale int, report render.ProgressReporter) error {
	layers := r.OrderedLayers()

	if r.Standalone {
		fmt.Fprintln(w, `\documentclass{standalone}`)
		fmt.Fprintln(w, `\usepackage{tikz}`)
		fmt.Fprintln(w, `\begin{document}`)
	}
	fmt.Fprintln(w, `\begin{tikzpicture}`)

	for _, l := range layers {
		fmt.Fprintf(w, "\\pgfdeclarelayer{layer%d}\n", l.Number)
		fmt.Fprintf(w, "\\definecolor{layer%dcolor}{rgb}{%g,%g,%g}\n", l.Number, l.Color.R, l.Color.G, l.Color.B)
	}
	if len(layers) > 0 {
		fmt.Fprint(w, "\\pgfsetlayers{main")
		for _, l := range layers {
			fmt.Fprintf(w, ",layer%d", l.Number)
		}
		fmt.Fprintln(w, "}")
	}

	report.Report("walking cell tree")
	if err := r.emitCell(w, cell, scale); err != nil {
		return err
	}

	fmt.Fprintln(w, `\end{tikzpicture}`)
	if r.Standalone {
		fmt.Fprintln(w, `\end{document}`)
	}
	return nil
}

func (r *Renderer) emitCell(w io.Writer, cell *gdsmodel.Cell, scale int) error {
	for _, g := range cell.Graphics {
		info := r.Layers.Lookup(int(g.Layer))
		if !info.Render {
			continue
		}
		r.emitGraphic(w, g, info, scale)
	}
	for _, ref := range cell.Children {
		if ref.ResolvedCell == nil {
			continue
		}
		fmt.Fprintf(w, "\\begin{scope}[shift={(%g,%g)},rotate=%g,yscale=%g,xscale=%g]\n",
			float64(ref.Origin.X)/float64(scale), float64(ref.Origin.Y)/float64(scale),
			ref.AngleDeg,
			signedScale(ref.Magnification, ref.Flipped, true),
			signedScale(ref.Magnification, ref.Flipped, false),
		)
		if err := r.emitCell(w, ref.ResolvedCell, scale); err != nil {
			return err
		}
		fmt.Fprintln(w, `\end{scope}`)
	}
	return nil
}

// signedScale returns the per-axis scale factor for a flip-before-rotate
// SREF: flipping mirrors the y axis, realized here as a negative yscale
// rather than a rotation, matching TikZ's own [xscale=][yscale=] knobs.
func signedScale(mag float64, flipped bool, yAxis bool) float64 {
	if yAxis && flipped {
		return -mag
	}
	return mag
}

func (r *Renderer) emitGraphic(w io.Writer, g *gdsmodel.Graphic, info gdslayer.LayerInfo, scale int) {
	if r.UseOCGLayers {
		fmt.Fprintf(w, "\\begin{ocg}{layer%d}{layer%d}{1}\n", g.Layer, g.Layer)
	} else {
		fmt.Fprintf(w, "\\begin{pgfonlayer}{layer%d}\n", g.Layer)
	}

	points := make([]string, len(g.Vertices))
	for i, p := range g.Vertices {
		points[i] = fmt.Sprintf("(%g,%g)", float64(p.X)/float64(scale), float64(p.Y)/float64(scale))
	}
	path := ""
	for i, p := range points {
		if i > 0 {
			path += " -- "
		}
		path += p
	}
	switch g.Kind {
	case gdsmodel.KindPath:
		fmt.Fprintf(w, "\\draw[color=layer%dcolor,opacity=%g,line width=%gpt] %s;\n",
			g.Layer, info.Color.A, float64(g.Width)/float64(scale), path)
	default:
		fmt.Fprintf(w, "\\fill[color=layer%dcolor,opacity=%g] %s -- cycle;\n", g.Layer, info.Color.A, path)
	}

	if r.UseOCGLayers {
		fmt.Fprintln(w, `\end{ocg}`)
	} else {
		fmt.Fprintln(w, `\end{pgfonlayer}`)
	}
}
