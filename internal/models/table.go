package models

import "sort"

// Table is an append-only ordered sequence of observations indexed by
// timestamp. Pipeline stages consume one table and produce a new one; a
// table is never mutated in place across stage boundaries, so callers may
// retain earlier tables safely.
type Table struct {
	rows []Observation
}

// NewTable creates a table from the given rows. The rows are copied.
func NewTable(rows ...Observation) *Table {
	t := &Table{rows: make([]Observation, len(rows))}
	copy(t.rows, rows)
	return t
}

// Append adds rows to the end of the table. Amortized O(1) per row.
func (t *Table) Append(rows ...Observation) {
	t.rows = append(t.rows, rows...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the row at position i.
func (t *Table) Row(i int) Observation {
	return t.rows[i]
}

// Rows returns a copy of the underlying rows in order.
func (t *Table) Rows() []Observation {
	out := make([]Observation, len(t.rows))
	copy(out, t.rows)
	return out
}

// Last returns the newest row, if any.
func (t *Table) Last() (Observation, bool) {
	if len(t.rows) == 0 {
		return Observation{}, false
	}
	return t.rows[len(t.rows)-1], true
}

// Clone returns an independent copy of the table.
func (t *Table) Clone() *Table {
	return NewTable(t.rows...)
}

// SortedByTime returns a new table with rows in ascending timestamp order.
// The sort is stable so duplicate timestamps keep their relative order.
func (t *Table) SortedByTime() *Table {
	out := t.Clone()
	sort.SliceStable(out.rows, func(i, j int) bool {
		return out.rows[i].Timestamp.Before(out.rows[j].Timestamp)
	})
	return out
}
