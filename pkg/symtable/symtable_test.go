package symtable

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestDefineVariableAllocatesMonotonicSlots(t *testing.T) {
	tbl := New()
	a := tbl.DefineVariable("a", false, false, false)
	b := tbl.DefineVariable("b", false, false, false)
	be.Equal(t, a.Offset, 0)
	be.Equal(t, b.Offset, 1)
}

func TestDefineVariableOverwritesSameName(t *testing.T) {
	tbl := New()
	tbl.DefineVariable("x", false, false, false)
	second := tbl.DefineVariable("x", true, false, true)
	sym, ok := tbl.Lookup("x")
	be.Equal(t, ok, true)
	be.Equal(t, sym, second)
	be.Equal(t, sym.IsArray, true)
	be.Equal(t, sym.IsFloat, true)
}

func TestDefineParameterOffsets(t *testing.T) {
	tbl := New()
	a0 := tbl.DefineParameter("a0", 0, 3, false, false)
	a1 := tbl.DefineParameter("a1", 1, 3, false, false)
	a2 := tbl.DefineParameter("a2", 2, 3, false, false)
	be.Equal(t, a0.Offset, -4)
	be.Equal(t, a1.Offset, -3)
	be.Equal(t, a2.Offset, -2)
}

func TestDefineFunctionAndLookup(t *testing.T) {
	tbl := New()
	tbl.DefineFunction("fact", "fact_P1", 1)
	sym, ok := tbl.Lookup("fact")
	be.Equal(t, ok, true)
	be.Equal(t, sym.Kind, FUNCTION)
	be.Equal(t, sym.Label, "fact_P1")
	be.Equal(t, sym.ParamCount, 1)
}

func TestLookupMissing(t *testing.T) {
	tbl := New()
	_, ok := tbl.Lookup("missing")
	be.Equal(t, ok, false)
}

func TestMarkAndIsStruct(t *testing.T) {
	tbl := New()
	be.Equal(t, tbl.IsStruct("Point"), false)
	tbl.MarkStruct("Point")
	be.Equal(t, tbl.IsStruct("Point"), true)
}
