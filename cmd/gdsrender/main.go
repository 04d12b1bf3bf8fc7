// Command gdsrender decodes a GDSII stream, validates its reference graph,
// and either prints an analysis of its cells or renders one cell to a PDF,
// SVG, TikZ, or externally-plugged output.
//
// Usage:
//
//	gdsrender [flags] <gdsii-file>
//	gdsrender --analyze <gdsii-file>
//	gdsrender --version
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/0mhu/gds-render-go/gdserrors"
	"github.com/0mhu/gds-render-go/gdslayer"
	"github.com/0mhu/gds-render-go/gdsmodel"
	"github.com/0mhu/gds-render-go/gdsparse"
	"github.com/0mhu/gds-render-go/gdsvalidate"
	"github.com/0mhu/gds-render-go/render"
	"github.com/0mhu/gds-render-go/render/ext"
	"github.com/0mhu/gds-render-go/render/pdf"
	"github.com/0mhu/gds-render-go/render/svg"
	"github.com/0mhu/gds-render-go/render/tikz"
)

// version is overwritten at build time via -ldflags.
var version = "dev"

// argError marks a failure that should exit 1, per spec's "argument error"
// exit code, distinct from a subsystem failure.
type argError struct{ msg string }

func (e *argError) Error() string { return e.msg }

type options struct {
	analyze        bool
	format         string
	renderers      []string
	outputFiles    []string
	mappingPath    string
	cellName       string
	scale          int
	texStandalone  bool
	texLayers      bool
	customRenderer string
	renderLibArgs  string
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == ext.ForkChildFlag {
		if err := ext.RunForkChild(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	log := logrus.StandardLogger()
	log.SetOutput(colorable.NewColorableStderr())
	log.SetFormatter(&logrus.TextFormatter{ForceColors: true, FullTimestamp: false})

	opts := &options{}
	root := newRootCmd(opts, log)
	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(opts *options, log *logrus.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gdsrender [flags] <gdsii-file>",
		Short:         "decode, validate, analyze and render GDSII layouts",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts, log)
		},
	}

	var showVersion bool
	cmd.Flags().BoolVarP(&showVersion, "version", "v", false, "print version and exit")
	cmd.Flags().BoolVarP(&opts.analyze, "analyze", "A", false, "analyze only, do not render")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "simple", "analysis output form: simple, pretty, cellsonly")
	cmd.Flags().StringArrayVarP(&opts.renderers, "renderer", "r", nil, "renderer to use: pdf, svg, tikz, ext (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.outputFiles, "output-file", "o", nil, "output path, paired positionally with --renderer (repeatable)")
	cmd.Flags().StringVarP(&opts.mappingPath, "mapping", "m", "", "layer color/style CSV mapping")
	cmd.Flags().StringVarP(&opts.cellName, "cell", "c", "", "cell to render (must exist in the first library)")
	cmd.Flags().IntVarP(&opts.scale, "scale", "s", 1, "integer divisor for output coordinates")
	cmd.Flags().BoolVarP(&opts.texStandalone, "tex-standalone", "a", false, "TikZ output is a compilable standalone document")
	cmd.Flags().BoolVarP(&opts.texLayers, "tex-layers", "l", false, "TikZ output uses PDF OCG layers")
	cmd.Flags().StringVarP(&opts.customRenderer, "custom-render-lib", "P", "", "shared object implementing the ext renderer ABI")
	cmd.Flags().StringVarP(&opts.renderLibArgs, "render-lib-params", "W", "", "opaque parameter string passed to exported_init")

	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Println("gdsrender", version)
			os.Exit(0)
		}
		if len(args) != 1 {
			return &argError{"exactly one GDSII file path is required"}
		}
		return nil
	}

	return cmd
}

func run(cmd *cobra.Command, args []string, opts *options, log *logrus.Logger) error {
	path := args[0]

	log.WithField("path", path).Info("parsing GDSII stream")
	result, err := gdsparse.ParseFile(path, gdsparse.Options{Simplify: true, Logger: log})
	if err != nil {
		return err
	}
	if len(result.Libraries) == 0 {
		return &argError{fmt.Sprintf("%s contains no libraries", path)}
	}

	for _, lib := range result.Libraries {
		gdsvalidate.Run(lib)
	}
	lib := result.Libraries[0]

	if opts.analyze {
		printAnalysis(lib, result.Stats[lib], opts.format)
		return nil
	}

	return renderCell(cmd, opts, log, lib)
}

func renderCell(cmd *cobra.Command, opts *options, log *logrus.Logger, lib *gdsmodel.Library) error {
	if opts.scale < 1 {
		return &argError{fmt.Sprintf("--scale must be >= 1, got %d", opts.scale)}
	}
	if len(opts.renderers) == 0 {
		return &argError{"at least one --renderer/-r is required when not --analyze"}
	}
	if len(opts.outputFiles) != len(opts.renderers) {
		return &argError{"--output-file/-o must be given once per --renderer/-r, in the same order"}
	}

	cell, err := selectCell(lib, opts.cellName)
	if err != nil {
		return err
	}

	layers := gdslayer.New()
	if opts.mappingPath != "" {
		f, err := os.Open(opts.mappingPath)
		if err != nil {
			return gdserrors.New(gdserrors.KindIO, "main.renderCell", err)
		}
		defer f.Close()
		if err := layers.LoadCSV(f, log); err != nil {
			return err
		}
	}
	snapshot := layers.Snapshot()

	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond)
	s.Writer = colorable.NewColorableStderr()

	for i, kind := range opts.renderers {
		r, err := buildRenderer(kind, opts, snapshot, opts.outputFiles[i])
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{"renderer": kind, "output": opts.outputFiles[i]}).Info("rendering cell")
		s.Start()
		if err := drainProgress(render.RunAsync(r, cell, opts.scale), s); err != nil {
			return err
		}
	}
	return nil
}

// drainProgress prints coalesced status updates on the spinner until the
// render finishes, then stops it and returns the render's terminal error.
func drainProgress(progress *render.Progress, s *spinner.Spinner) error {
	for {
		select {
		case status := <-progress.Status():
			s.Suffix = " " + status
		case err := <-progress.Done():
			s.Stop()
			return err
		}
	}
}

func buildRenderer(kind string, opts *options, layers gdslayer.Snapshot, outputFile string) (render.Renderer, error) {
	base := render.Base{OutputFilePath: outputFile, Layers: layers}
	switch kind {
	case "pdf":
		return &pdf.Renderer{Base: base}, nil
	case "svg":
		return &svg.Renderer{Base: base}, nil
	case "tikz":
		return &tikz.Renderer{Base: base, Standalone: opts.texStandalone, UseOCGLayers: opts.texLayers}, nil
	case "ext":
		if opts.customRenderer == "" {
			return nil, &argError{"--custom-render-lib/-P is required with --renderer ext"}
		}
		return &ext.Renderer{Base: base, LibraryPath: opts.customRenderer, OptionString: opts.renderLibArgs}, nil
	default:
		return nil, &argError{fmt.Sprintf("unknown renderer %q (want pdf, svg, tikz, or ext)", kind)}
	}
}

// selectCell finds name in lib, or returns an argError listing the nearest
// candidate names by prefix/substring match, mirroring the original's
// cell-not-found usability nicety.
func selectCell(lib *gdsmodel.Library, name string) (*gdsmodel.Cell, error) {
	if name == "" {
		if len(lib.Cells) == 0 {
			return nil, &argError{"library contains no cells"}
		}
		return lib.Cells[0], nil
	}
	if c := lib.CellByName(name); c != nil {
		return c, nil
	}

	var candidates []string
	for _, n := range lib.CellNames {
		if strings.Contains(strings.ToLower(n), strings.ToLower(name)) {
			candidates = append(candidates, n)
		}
	}
	sort.Strings(candidates)
	if len(candidates) == 0 {
		return nil, &argError{fmt.Sprintf("cell %q not found in first library", name)}
	}
	return nil, &argError{fmt.Sprintf("cell %q not found in first library; did you mean: %s", name, strings.Join(candidates, ", "))}
}

func printAnalysis(lib *gdsmodel.Library, stats gdsmodel.LibraryStats, format string) {
	out := colorable.NewColorableStdout()
	ok := color.New(color.FgGreen).SprintFunc()
	warn := color.New(color.FgYellow).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	switch format {
	case "cellsonly":
		for _, c := range lib.Cells {
			fmt.Fprintln(out, c.Name)
		}
		return
	case "pretty":
		fmt.Fprintf(out, "library %q (%d cells, unit %.0e m)\n", lib.Name, len(lib.Cells), lib.UnitInMeters)
		fmt.Fprintf(out, "totals: %d graphics, %d vertices, %d references\n\n", stats.Total.Graphics, stats.Total.Vertices, stats.Total.ChildRefs)
	}

	for _, c := range lib.Cells {
		status := ok("OK")
		if c.Checks.AffectedByLoop == 1 {
			status = fail("LOOP")
		} else if c.Checks.UnresolvedChildren > 0 {
			status = warn("UNRESOLVED")
		}
		cs := stats.PerCell[c.Name]
		fmt.Fprintf(out, "  %s  %-32s graphics=%d vertices=%d refs=%d unresolved=%d\n",
			status, c.Name, cs.Graphics, cs.Vertices, cs.ChildRefs, c.Checks.UnresolvedChildren)
	}
}

// exitCode maps a returned error to the process exit status: 1 for an
// argument error, a fixed code per gdserrors.Kind (see kindExitCode) for a
// subsystem error, and 1 for any other error.
func exitCode(err error) int {
	var ae *argError
	if errors.As(err, &ae) {
		return 1
	}
	var ge *gdserrors.Error
	if errors.As(err, &ge) {
		return kindExitCode(ge.Kind)
	}
	return 1
}

func kindExitCode(k gdserrors.Kind) int {
	switch k {
	case gdserrors.KindIO:
		return 2
	case gdserrors.KindMalformed:
		return 3
	case gdserrors.KindProtocol:
		return 4
	case gdserrors.KindLimit:
		return 5
	case gdserrors.KindRenderer:
		return 6
	default:
		return 1
	}
}
