package regs

import (
	"log"
	"strconv"
)

// A Layout collects register entries in bus order. Offsets are running
// totals, so the order of Add calls is the register map.
type Layout struct {
	entries     []AccessEntry
	names       []string
	groupBase   int
	groupStride int
}

// NewLayout creates an empty layout.
func NewLayout() *Layout {
	return &Layout{}
}

// Len returns the number of registers laid out so far, which is also the
// index the next register gets.
func (l *Layout) Len() int {
	return len(l.entries)
}

// Add appends one register and returns its index.
func (l *Layout) Add(name string, e AccessEntry) int {
	l.entries = append(l.entries, e)
	l.names = append(l.names, name)

	return len(l.entries) - 1
}

// AddArray appends n registers named prefix_0 .. prefix_(n-1) and returns the
// index of the first one.
func (l *Layout) AddArray(prefix string, n int, entry func(i int) AccessEntry) int {
	base := len(l.entries)

	for i := 0; i < n; i++ {
		l.Add(prefix+"_"+strconv.Itoa(i), entry(i))
	}

	return base
}

// SetGroups declares that registers from base on form consecutive groups of
// stride registers. PostClearGroup uses it to find the group of a register.
func (l *Layout) SetGroups(base, stride int) {
	if stride <= 0 {
		log.Panicf("group stride must be positive, got %d", stride)
	}

	l.groupBase = base
	l.groupStride = stride
}

// Build freezes the layout into a Table.
func (l *Layout) Build() *Table {
	t := &Table{
		entries:     append([]AccessEntry(nil), l.entries...),
		names:       append([]string(nil), l.names...),
		index:       make(map[string]int, len(l.names)),
		groupBase:   l.groupBase,
		groupStride: l.groupStride,
	}

	for i, name := range t.names {
		if _, dup := t.index[name]; dup {
			log.Panicf("register %s laid out twice", name)
		}

		t.index[name] = i
	}

	for i, e := range t.entries {
		if e.Protected && (e.Protect < 0 || e.Protect >= len(t.entries)) {
			log.Panicf("register %s protected by invalid register %d",
				t.names[i], e.Protect)
		}

		if e.Post&PostClearGroup != 0 && (t.groupStride == 0 || i < t.groupBase) {
			log.Panicf("register %s clears a group but is outside any group",
				t.names[i])
		}
	}

	return t
}

// A Table is the immutable register map of a device: one entry and one
// name per 32-bit register.
type Table struct {
	entries     []AccessEntry
	names       []string
	index       map[string]int
	groupBase   int
	groupStride int
}

// Len returns the number of registers.
func (t *Table) Len() int {
	return len(t.entries)
}

// Entry returns the entry of register reg.
func (t *Table) Entry(reg int) AccessEntry {
	return t.entries[reg]
}

// Name returns the diagnostic name of register reg, or "?" if reg is out of
// range.
func (t *Table) Name(reg int) string {
	if reg < 0 || reg >= len(t.names) {
		return "?"
	}

	return t.names[reg]
}

// Index looks a register up by name.
func (t *Table) Index(name string) (int, bool) {
	i, ok := t.index[name]

	return i, ok
}

// Group returns the group index of reg as declared with Layout.SetGroups.
func (t *Table) Group(reg int) int {
	return (reg - t.groupBase) / t.groupStride
}
