package ext

import (
	"testing"

	"github.com/0mhu/gds-render-go/gdsmodel"
)

type noopReporter struct{}

func (noopReporter) Report(string) {}

func TestRenderRejectsZeroScale(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	r := &Renderer{LibraryPath: "/does/not/matter"}
	if err := r.Render(noopReporter{}, cell, 0); err == nil {
		t.Fatal("expected error for scale < 1")
	}
}

func TestRenderRejectsMissingLibraryPath(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	r := &Renderer{}
	if err := r.Render(noopReporter{}, cell, 1); err == nil {
		t.Fatal("expected error for missing library path")
	}
}

func TestRenderRejectsUnloadableLibrary(t *testing.T) {
	lib := gdsmodel.NewLibrary()
	cell := lib.NewCell()
	r := &Renderer{LibraryPath: "/nonexistent/libdoesnotexist.so"}
	if err := r.Render(noopReporter{}, cell, 1); err == nil {
		t.Fatal("expected error for a shared object that cannot be loaded")
	}
}

func TestRunForkChildRejectsWrongArgCount(t *testing.T) {
	if err := RunForkChild([]string{"only", "two"}); err == nil {
		t.Fatal("expected error for wrong argument count")
	}
}
