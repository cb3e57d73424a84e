// Package labels maps classifier output codes to prognosis names.
package labels

import "sort"

// Unknown is returned for any class code missing from the table.
const Unknown = "Unknown Prognosis"

// Table is an immutable code -> prognosis lookup.
type Table struct {
	names map[int]string
}

// New copies entries into a new Table.
func New(entries map[int]string) *Table {
	names := make(map[int]string, len(entries))
	for code, name := range entries {
		names[code] = name
	}
	return &Table{names: names}
}

// Resolve returns the prognosis for code, or Unknown.
func (t *Table) Resolve(code int) string {
	if name, ok := t.names[code]; ok {
		return name
	}
	return Unknown
}

func (t *Table) Has(code int) bool {
	_, ok := t.names[code]
	return ok
}

func (t *Table) Len() int {
	return len(t.names)
}

// Codes returns every known code in ascending order.
func (t *Table) Codes() []int {
	codes := make([]int, 0, len(t.names))
	for code := range t.names {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Values returns the distinct prognosis names in code order.
func (t *Table) Values() []string {
	seen := make(map[string]bool, len(t.names))
	out := make([]string, 0, len(t.names))
	for _, code := range t.Codes() {
		name := t.names[code]
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
