// Package gdsmodel owns the hierarchical geometry entities a GDSII stream
// decodes into: libraries, cells, graphics, and cell references. See spec §3
// for the full data model and ownership rules.
//
// Construction happens exclusively during parsing (gdsparse), whose terminal
// pass also sets SREF ResolvedCell back-references. After parsing, only
// gdsvalidate mutates anything here (Checks fields); renderers must treat
// the model as read-only.
package gdsmodel

// Point is a signed-integer coordinate in database units.
type Point struct {
	X, Y int32
}

// CapStyle is a Path element's end-cap style. PATHTYPE variants beyond
// these three are out of scope, per spec Non-goals.
type CapStyle int

const (
	CapFlush CapStyle = iota
	CapRound
	CapSquare
)

// ElementKind distinguishes the three graphic variants a Cell can own.
type ElementKind int

const (
	KindBoundary ElementKind = iota
	KindPath
	KindBox
)

// Graphic is one drawable element: a closed Boundary, an open Path, or a
// Box (treated as a polygon by everything downstream of the parser).
type Graphic struct {
	Kind     ElementKind
	Layer    int16
	DataType uint16
	Vertices []Point

	// Path-only fields. Zero value for Boundary/Box.
	Width   int32
	CapType CapStyle
}

// CellRef is a resolved structure reference (SREF): one instantiation of a
// named cell with its placement transform. ResolvedCell is a non-owning
// back-reference into the parent library's cell list, set by gdsparse's
// resolution pass once the whole stream has been read; it is nil until
// then, and remains nil if the name never resolves.
//
// Flipped mirrors across the x-axis before Angle is applied — this order is
// mandatory per GDSII semantics and must never be swapped in gdsgeom.
type CellRef struct {
	RefName       string
	ResolvedCell  *Cell
	Origin        Point
	Flipped       bool
	AngleDeg      float64
	Magnification float64
}

// DefaultMagnification and DefaultAngleDeg are applied when an SREF/AREF
// omits the corresponding optional record.
const (
	DefaultMagnification = 1.0
	DefaultAngleDeg      = 0.0
)

// MaxNameLength is the maximum length, in bytes, of a cell or library name
// before gdsparse truncates and logs (spec §4.3 STRNAME/LIBNAME rule).
const MaxNameLength = 99

// CellChecks holds the validator's per-cell results. NotRun is the sentinel
// a field holds before the corresponding validator pass has executed.
const NotRun = -1

type CellChecks struct {
	UnresolvedChildren int
	AffectedByLoop     int

	// onStack is the validator's private DFS marker; it is never read by
	// anything outside gdsvalidate and never survives a single traversal.
	onStack bool
}

// OnStack reports the validator's internal per-traversal marker. Exported
// only so gdsvalidate (a separate package) can use Cell as its own stack
// bookkeeping without a parallel map; renderers must not read it.
func (c *CellChecks) OnStack() bool     { return c.onStack }
func (c *CellChecks) SetOnStack(v bool) { c.onStack = v }

// NewCellChecks returns a CellChecks with both counters at NotRun.
func NewCellChecks() CellChecks {
	return CellChecks{UnresolvedChildren: NotRun, AffectedByLoop: NotRun}
}

// Cell is a named container of geometry and sub-references: the structural
// unit of a library. Name uniqueness within a library is assumed by
// consumers but not enforced here (spec §3).
type Cell struct {
	Name       string
	ModTime    DateTime
	AccessTime DateTime
	Graphics   []*Graphic
	Children   []*CellRef
	ParentLib  *Library
	Checks     CellChecks
}

// DateTime mirrors the six-field GDSII date sextet (spec §4.1). Zero value
// means "not set" (e.g. a BGNSTR whose STRNAME never arrived).
type DateTime struct {
	Year, Month, Day, Hour, Minute, Second int
}

// Library owns every cell, and transitively every graphic and reference,
// decoded from one GDSII stream. CellNames mirrors Cell.Name for O(n) scans,
// per spec §3.
type Library struct {
	Name         string
	ModTime      DateTime
	AccessTime   DateTime
	UnitInMeters float64
	Cells        []*Cell
	CellNames    []string
}

// DefaultUnitInMeters is used when a library's UNITS record is absent or
// malformed (spec §3: "default 1e-8").
const DefaultUnitInMeters = 1e-8

// NewLibrary returns an empty library with the default DB unit.
func NewLibrary() *Library {
	return &Library{UnitInMeters: DefaultUnitInMeters}
}

// NewCell allocates a cell owned by lib, appends it to lib.Cells, and
// returns it. The caller is responsible for appending the cell's eventual
// name to lib.CellNames once STRNAME is parsed (mirrors the GDSII record
// order: BGNSTR precedes STRNAME).
func (lib *Library) NewCell() *Cell {
	c := &Cell{ParentLib: lib, Checks: NewCellChecks()}
	lib.Cells = append(lib.Cells, c)
	return c
}

// CellByName returns the cell with the given name, or nil if none matches.
// Linear scan, per spec §4.2 ("no invariants enforced beyond non-null
// owner"; uniqueness is a consumer assumption, not a structural guarantee).
func (lib *Library) CellByName(name string) *Cell {
	for _, c := range lib.Cells {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AddGraphic appends a new graphic of the given kind to c and returns it.
func (c *Cell) AddGraphic(kind ElementKind) *Graphic {
	g := &Graphic{Kind: kind}
	c.Graphics = append(c.Graphics, g)
	return g
}

// AddChild appends a new, as-yet-unresolved cell reference to c and returns
// it.
func (c *Cell) AddChild(refName string) *CellRef {
	r := &CellRef{
		RefName:       refName,
		Magnification: DefaultMagnification,
		AngleDeg:      DefaultAngleDeg,
	}
	c.Children = append(c.Children, r)
	return r
}

// LibraryStats is the parser's second terminal-pass output: cumulative
// vertex/graphic/reference totals per cell and for the whole library.
// Supplements spec §4.3's "compute cumulative counts" with the concrete
// shape the original's gds-statistics.c produces (see SPEC_FULL.md §4.9).
type LibraryStats struct {
	PerCell map[string]CellStats
	Total   CellStats
}

type CellStats struct {
	Graphics  int
	Vertices  int
	ChildRefs int
}

// ComputeStats walks every cell in lib and tallies graphics, vertices and
// child references, both per-cell and library-wide.
func ComputeStats(lib *Library) LibraryStats {
	stats := LibraryStats{PerCell: make(map[string]CellStats, len(lib.Cells))}
	for _, c := range lib.Cells {
		cs := CellStats{Graphics: len(c.Graphics), ChildRefs: len(c.Children)}
		for _, g := range c.Graphics {
			cs.Vertices += len(g.Vertices)
		}
		stats.PerCell[c.Name] = cs
		stats.Total.Graphics += cs.Graphics
		stats.Total.Vertices += cs.Vertices
		stats.Total.ChildRefs += cs.ChildRefs
	}
	return stats
}
