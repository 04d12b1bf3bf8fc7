package tikz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/0mhu/gds-render-go/gdslayer"
	"github.com/0mhu/gds-render-go/gdsmodel"
	"github.com/0mhu/gds-render-go/render"
)

type noopReporter struct{}

func (noopReporter) Report(string) {}

func renderBase(path string, settings *gdslayer.Settings) render.Base {
	return render.Base{OutputFilePath: path, Layers: settings.Snapshot()}
}

func TestRenderWritesExpectedStructure(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	cell.Name = "TOP"
	g := cell.AddGraphic(gdsmodel.KindBoundary)
	g.Layer = 1
	g.Vertices = []gdsmodel.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	settings := gdslayer.New()
	settings.Append(gdslayer.LayerInfo{Number: 1, Name: "metal1", Color: gdslayer.RGBA{R: 1, A: 0.5}, Render: true})

	dir := t.TempDir()
	path := filepath.Join(dir, "out.tex")
	r := &Renderer{Base: renderBase(path, settings)}

	if err := r.Render(noopReporter{}, cell, 1); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{`\begin{tikzpicture}`, `\pgfdeclarelayer{layer1}`, `\definecolor{layer1color}`, `\fill[color=layer1color`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSkipsDisabledLayer(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	g := cell.AddGraphic(gdsmodel.KindBoundary)
	g.Layer = 2
	g.Vertices = []gdsmodel.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}

	settings := gdslayer.New()
	settings.Append(gdslayer.LayerInfo{Number: 2, Render: false})

	dir := t.TempDir()
	path := filepath.Join(dir, "out.tex")
	r := &Renderer{Base: renderBase(path, settings)}

	if err := r.Render(noopReporter{}, cell, 1); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), `\fill`) {
		t.Fatalf("disabled layer must not be drawn:\n%s", data)
	}
}

func TestRenderRejectsZeroScale(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	r := &Renderer{Base: renderBase(filepath.Join(t.TempDir(), "out.tex"), gdslayer.New())}
	if err := r.Render(noopReporter{}, cell, 0); err == nil {
		t.Fatal("expected error for scale < 1")
	}
}
