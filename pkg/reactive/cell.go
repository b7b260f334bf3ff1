package reactive

// Cell is the narrow capability interface for value cells ("refs").
// Cell construction lives outside this package; the virtualization layer
// only needs to recognize a cell, read through it and write through it.
//
// IsCell is a marker and must return true; it distinguishes deliberate
// cells from types that happen to have Value accessors.
type Cell interface {
	IsCell() bool
	CellValue() any
	SetCellValue(v any)
}

// isCell reports whether v satisfies the cell capability.
func isCell(v any) bool {
	c, ok := v.(Cell)
	return ok && c.IsCell()
}

// unwrapCell resolves a cell to its inner value. Non-cells pass through.
func unwrapCell(v any) any {
	if c, ok := v.(Cell); ok && c.IsCell() {
		return c.CellValue()
	}
	return v
}
