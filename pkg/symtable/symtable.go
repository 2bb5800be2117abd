// Package symtable implements the code generator's single flat symbol table.
//
// The source this toolchain reimplements uses one global map keyed by name:
// every top-level declaration and every parameter share that namespace, and a
// later Define silently overwrites an earlier entry of the same name. This
// package preserves that observable behavior on purpose (see DESIGN.md); it
// does not implement lexical scoping.
package symtable

import (
	"fmt"
	"sort"
	"strings"
)

// Kind distinguishes how a symbol's Offset is interpreted.
type Kind int

const (
	VARIABLE  Kind = iota // Offset is a data-segment slot
	PARAMETER             // Offset is a signed BP-relative offset
	FUNCTION              // Offset unused; the code address is resolved at link time via Label
)

func (k Kind) String() string {
	switch k {
	case VARIABLE:
		return "VARIABLE"
	case PARAMETER:
		return "PARAMETER"
	case FUNCTION:
		return "FUNCTION"
	default:
		return "UNKNOWN"
	}
}

// Symbol is one entry of the table.
type Symbol struct {
	Kind            Kind
	Offset          int    // data slot / BP offset; ignored (0) for FUNCTION
	Label           string // mangled label, for FUNCTION
	IsArray         bool
	IsHeapAllocated bool
	IsFloat         bool
	ParamCount      int // only meaningful for FUNCTION
}

// Table is the single global flat symbol table.
type Table struct {
	symbols        map[string]Symbol
	nextMemoryAddr int
	structNames    map[string]bool // class/struct names, for constructor-call detection
}

// New returns an empty table.
func New() *Table {
	return &Table{
		symbols:     make(map[string]Symbol),
		structNames: make(map[string]bool),
	}
}

// DefineVariable allocates a fresh data-segment slot and records it.
// A later call with the same name overwrites the earlier symbol, matching
// the single flat-map behavior this table deliberately preserves.
func (t *Table) DefineVariable(name string, isArray, isHeapAllocated, isFloat bool) Symbol {
	sym := Symbol{
		Kind:            VARIABLE,
		Offset:          t.nextMemoryAddr,
		IsArray:         isArray,
		IsHeapAllocated: isHeapAllocated,
		IsFloat:         isFloat,
	}
	t.nextMemoryAddr++
	t.symbols[name] = sym
	return sym
}

// DefineParameter records a parameter at a fixed BP-relative offset.
// Per the calling convention, parameter i of N (0-based) sits at -(N-i+1).
func (t *Table) DefineParameter(name string, index, total int, isArray, isFloat bool) Symbol {
	sym := Symbol{
		Kind:    PARAMETER,
		Offset:  -(total - index + 1),
		IsArray: isArray,
		IsFloat: isFloat,
	}
	t.symbols[name] = sym
	return sym
}

// DefineFunction records a function under its mangled label.
func (t *Table) DefineFunction(name, label string, paramCount int) Symbol {
	sym := Symbol{Kind: FUNCTION, Label: label, ParamCount: paramCount}
	t.symbols[name] = sym
	return sym
}

// Lookup returns the symbol for name and whether it exists.
func (t *Table) Lookup(name string) (Symbol, bool) {
	sym, ok := t.symbols[name]
	return sym, ok
}

// MarkStruct records name as a known class/struct name.
func (t *Table) MarkStruct(name string) {
	t.structNames[name] = true
}

// IsStruct reports whether name was registered via MarkStruct.
func (t *Table) IsStruct(name string) bool {
	return t.structNames[name]
}

// String returns a deterministically ordered dump of the table, in the style
// of a debug pretty-printer: useful for -dump-ast style tooling, never parsed.
func (t *Table) String() string {
	var sb strings.Builder
	names := make([]string, 0, len(t.symbols))
	for name := range t.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sym := t.symbols[name]
		fmt.Fprintf(&sb, "  %-20s %-10s offset=%-4d label=%-20q array=%v heap=%v float=%v params=%d\n",
			name, sym.Kind, sym.Offset, sym.Label, sym.IsArray, sym.IsHeapAllocated, sym.IsFloat, sym.ParamCount)
	}
	return sb.String()
}
