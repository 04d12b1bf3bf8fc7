package gdsvalidate

import (
	"testing"

	"github.com/0mhu/gds-render-go/gdsmodel"
)

func newLib() *gdsmodel.Library { return gdsmodel.NewLibrary() }

func addCell(lib *gdsmodel.Library, name string) *gdsmodel.Cell {
	c := lib.NewCell()
	c.Name = name
	lib.CellNames = append(lib.CellNames, name)
	return c
}

func link(from, to *gdsmodel.Cell) {
	ref := from.AddChild(to.Name)
	ref.ResolvedCell = to
}

func TestUnresolvedChildrenCountsDirectOnly(t *testing.T) {
	lib := newLib()
	a := addCell(lib, "A")
	b := addCell(lib, "B")
	link(a, b)
	a.AddChild("MISSING") // left unresolved on purpose

	Run(lib)

	if a.Checks.UnresolvedChildren != 1 {
		t.Fatalf("A.UnresolvedChildren = %d, want 1", a.Checks.UnresolvedChildren)
	}
	if b.Checks.UnresolvedChildren != 0 {
		t.Fatalf("B.UnresolvedChildren = %d, want 0", b.Checks.UnresolvedChildren)
	}
}

// TestTwoCellLoop is the spec's literal seed scenario: A references B, B
// references A. Both must end up flagged, and neither may stay at NotRun.
func TestTwoCellLoop(t *testing.T) {
	lib := newLib()
	a := addCell(lib, "A")
	b := addCell(lib, "B")
	link(a, b)
	link(b, a)

	Run(lib)

	if a.Checks.AffectedByLoop != 1 || b.Checks.AffectedByLoop != 1 {
		t.Fatalf("expected both cells flagged, got A=%d B=%d", a.Checks.AffectedByLoop, b.Checks.AffectedByLoop)
	}
}

func TestAcyclicGraphLeavesCellsClean(t *testing.T) {
	lib := newLib()
	a := addCell(lib, "A")
	b := addCell(lib, "B")
	c := addCell(lib, "C")
	link(a, b)
	link(b, c)

	Run(lib)

	for _, cell := range []*gdsmodel.Cell{a, b, c} {
		if cell.Checks.AffectedByLoop != 0 {
			t.Errorf("%s.AffectedByLoop = %d, want 0", cell.Name, cell.Checks.AffectedByLoop)
		}
	}
}

// TestDiamondSharedBetweenTwoCycles builds A<->B and A<->C, two independent
// 2-cycles sharing cell A. Every member of both cycles must end up flagged:
// a naive "abort the whole root on first hit" reading of the DFS can let a
// sibling branch's cycle go undetected when another branch is walked first.
func TestDiamondSharedBetweenTwoCycles(t *testing.T) {
	lib := newLib()
	a := addCell(lib, "A")
	b := addCell(lib, "B")
	c := addCell(lib, "C")
	link(a, b)
	link(b, a)
	link(a, c)
	link(c, a)

	Run(lib)

	for _, cell := range []*gdsmodel.Cell{a, b, c} {
		if cell.Checks.AffectedByLoop != 1 {
			t.Errorf("%s.AffectedByLoop = %d, want 1", cell.Name, cell.Checks.AffectedByLoop)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	lib := newLib()
	a := addCell(lib, "A")
	b := addCell(lib, "B")
	link(a, b)
	link(b, a)
	a.AddChild("GHOST")

	Run(lib)
	first := a.Checks
	Run(lib)
	second := a.Checks

	if first.UnresolvedChildren != second.UnresolvedChildren || first.AffectedByLoop != second.AffectedByLoop {
		t.Fatalf("Run is not idempotent: %+v vs %+v", first, second)
	}
}

func TestSelfReference(t *testing.T) {
	lib := newLib()
	a := addCell(lib, "A")
	link(a, a)

	Run(lib)

	if a.Checks.AffectedByLoop != 1 {
		t.Fatalf("self-referencing cell must be flagged, got %d", a.Checks.AffectedByLoop)
	}
}
