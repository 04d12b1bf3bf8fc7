package svg

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

func TestRenderWritesWellFormedDocument(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	g := cell.AddGraphic(gdsmodel.KindBoundary)
	g.Layer = 3
	g.Vertices = []gdsmodel.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}

	settings := gdslayer.New()
	settings.Append(gdslayer.LayerInfo{Number: 3, Color: gdslayer.RGBA{R: 1, G: 0, B: 0, A: 1}, Render: true})

	path := filepath.Join(t.TempDir(), "out.svg")
	r := &Renderer{Base: render.Base{OutputFilePath: path, Layers: settings.Snapshot()}}

	if err := r.Render(noopReporter{}, cell, 1); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"<svg", `id="layer3"`, "<path d=", " Z\"", "</svg>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderPathElementNotClosed(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	g := cell.AddGraphic(gdsmodel.KindPath)
	g.Layer = 1
	g.Width = 2
	g.Vertices = []gdsmodel.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}

	settings := gdslayer.New()
	settings.Append(gdslayer.LayerInfo{Number: 1, Render: true})

	path := filepath.Join(t.TempDir(), "out.svg")
	r := &Renderer{Base: render.Base{OutputFilePath: path, Layers: settings.Snapshot()}}
	if err := r.Render(noopReporter{}, cell, 1); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), " Z\"") {
		t.Fatalf("open path must not be closed with Z:\n%s", data)
	}
}

func TestRenderSkipsDisabledLayer(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	g := cell.AddGraphic(gdsmodel.KindBoundary)
	g.Layer = 5
	g.Vertices = []gdsmodel.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}

	settings := gdslayer.New()
	settings.Append(gdslayer.LayerInfo{Number: 5, Render: false})

	path := filepath.Join(t.TempDir(), "out.svg")
	r := &Renderer{Base: render.Base{OutputFilePath: path, Layers: settings.Snapshot()}}
	if err := r.Render(noopReporter{}, cell, 1); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "<path") {
		t.Fatalf("disabled layer must not draw any path:\n%s", data)
	}
}

func TestRenderRejectsZeroScale(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	r := &Renderer{Base: render.Base{OutputFilePath: filepath.Join(t.TempDir(), "out.svg")}}
	if err := r.Render(noopReporter{}, cell, 0); err == nil {
		t.Fatal("expected error for scale < 1")
	}
}
