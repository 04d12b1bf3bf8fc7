package gdsmodel

import "testing"

func TestNewLibraryDefaultUnit(t *testing.T) {
	lib := NewLibrary()
	if lib.UnitInMeters != DefaultUnitInMeters {
		t.Fatalf("got %v, want %v", lib.UnitInMeters, DefaultUnitInMeters)
	}
}

func TestNewCellOwnership(t *testing.T) {
	lib := NewLibrary()
	c := lib.NewCell()
	c.Name = "A"
	lib.CellNames = append(lib.CellNames, c.Name)

	if c.ParentLib != lib {
		t.Fatal("cell's ParentLib must point back to owning library")
	}
	if len(lib.Cells) != 1 || lib.Cells[0] != c {
		t.Fatal("library must own the new cell")
	}
	if c.Checks.UnresolvedChildren != NotRun || c.Checks.AffectedByLoop != NotRun {
		t.Fatalf("fresh cell checks must start at NotRun, got %+v", c.Checks)
	}
}

func TestCellByName(t *testing.T) {
	lib := NewLibrary()
	a := lib.NewCell()
	a.Name = "A"
	lib.CellNames = append(lib.CellNames, a.Name)

	if lib.CellByName("A") != a {
		t.Fatal("expected to find cell A")
	}
	if lib.CellByName("MISSING") != nil {
		t.Fatal("expected nil for missing cell")
	}
}

func TestAddChildDefaults(t *testing.T) {
	lib := NewLibrary()
	c := lib.NewCell()
	ref := c.AddChild("OTHER")
	if ref.Magnification != DefaultMagnification || ref.AngleDeg != DefaultAngleDeg {
		t.Fatalf("unexpected defaults: %+v", ref)
	}
	if ref.ResolvedCell != nil {
		t.Fatal("a freshly added child must be unresolved")
	}
}

func TestComputeStats(t *testing.T) {
	lib := NewLibrary()
	a := lib.NewCell()
	a.Name = "A"
	g := a.AddGraphic(KindBoundary)
	g.Vertices = []Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	a.AddChild("B")

	stats := ComputeStats(lib)
	cs := stats.PerCell["A"]
	if cs.Graphics != 1 || cs.Vertices != 4 || cs.ChildRefs != 1 {
		t.Fatalf("unexpected per-cell stats: %+v", cs)
	}
	if stats.Total.Graphics != 1 || stats.Total.Vertices != 4 || stats.Total.ChildRefs != 1 {
		t.Fatalf("unexpected totals: %+v", stats.Total)
	}
}
