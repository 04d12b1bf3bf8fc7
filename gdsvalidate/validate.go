// Package gdsvalidate computes the two structural results spec §4.4 defines
// over a parsed library: per-cell unresolved-child counts, and which cells
// sit on a reference cycle.
//
// Both are written into gdsmodel.Cell.Checks in place — this package never
// builds its own parallel graph. Cycle detection uses an on-stack marker
// kept on the cell itself (gdsmodel.CellChecks.SetOnStack), not a
// global-visited set: a cell can be safely revisited from a second root once
// it is off the current path, which a global-visited flag would forbid.
package gdsvalidate

import "github.com/0mhu/gds-render-go/gdsmodel"

// Run validates every cell in lib, setting UnresolvedChildren and
// AffectedByLoop on each cell's Checks. Running it twice on the same library
// is idempotent: both passes recompute from scratch rather than
// accumulating onto a prior result.
func Run(lib *gdsmodel.Library) {
	countUnresolved(lib)
	detectLoops(lib)
}

// countUnresolved sets UnresolvedChildren to the number of direct children
// whose SREF name never resolved to a cell. Transitive unresolved
// references do not count against an ancestor (spec §4.4).
func countUnresolved(lib *gdsmodel.Library) {
	for _, c := range lib.Cells {
		n := 0
		for _, ref := range c.Children {
			if ref.ResolvedCell == nil {
				n++
			}
		}
		c.Checks.UnresolvedChildren = n
	}
}

// detectLoops runs one DFS per cell in lib, each starting from a clean
// on-stack state, and sets AffectedByLoop on every cell found sitting on a
// cycle. A cell reachable from no loop and reaching no loop ends at 0;
// nothing is left at NotRun once this returns.
func detectLoops(lib *gdsmodel.Library) {
	for _, c := range lib.Cells {
		c.Checks.AffectedByLoop = 0
	}
	for _, root := range lib.Cells {
		walk(root, make(map[*gdsmodel.Cell]bool))
	}
}

// walk enters node, pushes it onto the current path, and scans its resolved
// children. A child already on the path is a back edge: node itself is
// flagged affected_by_loop=1 and the scan over node's remaining children
// stops there — but the caller's own scan of its other children, and
// therefore the rest of this root's DFS, continues normally. Running the
// same check from every cell as its own root is what gives full coverage
// when two cycles share a cell: no single root's early stop can hide a
// cycle that a different root's traversal will still walk into.
//
// seen short-circuits re-descending into a subtree this root has already
// fully explored; it never substitutes for the on-stack check, which is
// what actually detects the loop.
func walk(node *gdsmodel.Cell, seen map[*gdsmodel.Cell]bool) {
	if seen[node] {
		return
	}
	seen[node] = true

	node.Checks.SetOnStack(true)
	for _, ref := range node.Children {
		child := ref.ResolvedCell
		if child == nil {
			continue
		}
		if child.Checks.OnStack() {
			node.Checks.AffectedByLoop = 1
			break
		}
		walk(child, seen)
	}
	node.Checks.SetOnStack(false)
}
