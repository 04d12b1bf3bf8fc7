// Package ext is the external-renderer plugin host (spec §4.6): it loads a
// shared object with ebitengine/purego instead of cgo dlopen, resolves
// exported_init/exported_render_cell_to_file by name, and re-execs itself
// in a child process when the library also exports exported_fork_request.
//
// The original ABI passes a struct gds_cell* and a GList* of layer info
// directly; purego can marshal primitives and strings across the dlopen
// boundary but not arbitrary C struct/GList memory layouts without cgo.
// This host keeps the two function names and the fork-request signalling
// exactly as specified, but narrows the payload to primitives a shared
// library can reconstruct on its own: the cell name, a path to a CSV the
// host writes with gdslayer.SaveCSV (replacing the in-memory GList), the
// output path, and the scale. See DESIGN.md for the ABI deviation.
package ext

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/ebitengine/purego"

	"github.com/0mhu/gds-render-go/gdserrors"
	"github.com/0mhu/gds-render-go/gdslayer"
	"github.com/0mhu/gds-render-go/gdsmodel"
	"github.com/0mhu/gds-render-go/render"
)

// ForkChildFlag is the hidden CLI flag the CLI front-end dispatches to
// RunForkChild on, when render/ext has decided a library's call must run
// in a subprocess.
const ForkChildFlag = "--ext-fork-child"

const (
	initFuncName       = "exported_init"
	renderFuncName     = "exported_render_cell_to_file"
	forkRequestSymbol  = "exported_fork_request"
	hostVersionOptions = "gds-render-go"
)

// Renderer drives a single external shared object implementing the
// exported_init/exported_render_cell_to_file ABI.
type Renderer struct {
	render.Base
	// LibraryPath is the shared object to dlopen.
	LibraryPath string
	// OptionString is passed verbatim to exported_init
	// (--render-lib-params/-W).
	OptionString string
}

var _ render.Renderer = (*Renderer)(nil)

func (r *Renderer) Render(report render.ProgressReporter, cell *gdsmodel.Cell, scale int) error {
	if scale < 1 {
		return gdserrors.New(gdserrors.KindRenderer, "ext.Render", fmt.Errorf("scale must be >= 1, got %d", scale))
	}
	if r.LibraryPath == "" {
		return gdserrors.New(gdserrors.KindIO, "ext.Render", fmt.Errorf("no external renderer library configured"))
	}

	report.Report("loading external renderer")
	lib, err := purego.Dlopen(r.LibraryPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return gdserrors.New(gdserrors.KindRenderer, "ext.Render", fmt.Errorf("dlopen %s: %w", r.LibraryPath, err))
	}

	layerCSVPath, err := r.writeLayerCSV()
	if err != nil {
		return err
	}
	defer os.Remove(layerCSVPath)

	if symbolExists(lib, forkRequestSymbol) {
		report.Report("running external renderer in subprocess")
		return r.renderInChild(cell, scale, layerCSVPath)
	}

	report.Report("running external renderer in-process")
	return callLibrary(lib, r.OptionString, cell.Name, layerCSVPath, r.OutputFilePath, float64(scale))
}

func (r *Renderer) writeLayerCSV() (string, error) {
	f, err := os.CreateTemp("", "gds-render-go-layers-*.csv")
	if err != nil {
		return "", gdserrors.New(gdserrors.KindIO, "ext.writeLayerCSV", err)
	}
	defer f.Close()

	settings := gdslayer.New()
	for _, l := range r.Layers.Layers() {
		settings.Append(l)
	}
	if err := settings.SaveCSV(f); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// renderInChild re-execs the running binary with ForkChildFlag, passing the
// call's arguments as positional parameters; the child process is expected
// to dispatch to RunForkChild.
func (r *Renderer) renderInChild(cell *gdsmodel.Cell, scale int, layerCSVPath string) error {
	exe, err := os.Executable()
	if err != nil {
		return gdserrors.New(gdserrors.KindRenderer, "ext.renderInChild", err)
	}
	cmd := exec.CommandContext(context.Background(), exe,
		ForkChildFlag, r.LibraryPath, r.OptionString, cell.Name, layerCSVPath, r.OutputFilePath, fmt.Sprintf("%g", float64(scale)))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return gdserrors.New(gdserrors.KindRenderer, "ext.renderInChild", fmt.Errorf("subprocess render failed: %w", err))
	}
	return nil
}

// RunForkChild performs exactly the call renderInChild asked a subprocess
// to make. args is the command line after ForkChildFlag: libraryPath,
// optionString, cellName, layerCSVPath, outputFile, scale.
func RunForkChild(args []string) error {
	if len(args) != 6 {
		return gdserrors.New(gdserrors.KindRenderer, "ext.RunForkChild", fmt.Errorf("expected 6 arguments, got %d", len(args)))
	}
	libraryPath, optionString, cellName, layerCSVPath, outputFile, scaleStr := args[0], args[1], args[2], args[3], args[4], args[5]

	lib, err := purego.Dlopen(libraryPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return gdserrors.New(gdserrors.KindRenderer, "ext.RunForkChild", fmt.Errorf("dlopen %s: %w", libraryPath, err))
	}
	var scale float64
	if _, err := fmt.Sscanf(scaleStr, "%g", &scale); err != nil {
		return gdserrors.New(gdserrors.KindRenderer, "ext.RunForkChild", fmt.Errorf("parse scale: %w", err))
	}
	return callLibrary(lib, optionString, cellName, layerCSVPath, outputFile, scale)
}

func callLibrary(lib uintptr, optionString, cellName, layerCSVPath, outputFile string, scale float64) error {
	var initFn func(optionString, versionString string) int32
	purego.RegisterLibFunc(&initFn, lib, initFuncName)
	if rc := initFn(optionString, hostVersionOptions); rc != 0 {
		return gdserrors.New(gdserrors.KindRenderer, "ext.callLibrary", fmt.Errorf("%s returned %d", initFuncName, rc))
	}

	var renderFn func(cellName, layerCSVPath, outputFile string, scale float64) int32
	purego.RegisterLibFunc(&renderFn, lib, renderFuncName)
	if rc := renderFn(cellName, layerCSVPath, outputFile, scale); rc != 0 {
		return gdserrors.New(gdserrors.KindRenderer, "ext.callLibrary", fmt.Errorf("%s returned %d", renderFuncName, rc))
	}
	return nil
}

func symbolExists(lib uintptr, name string) bool {
	_, err := purego.Dlsym(lib, name)
	return err == nil
}
