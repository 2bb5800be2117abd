package vm

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"

	"tinycxx/pkg/bytecode"
)

// asm is a tiny instruction-stream builder used only by these tests; the
// real emitter lives in pkg/codegen.
type asm struct {
	code []byte
}

func (a *asm) op(o bytecode.Op) *asm {
	a.code = append(a.code, byte(o))
	return a
}

func (a *asm) imm(o bytecode.Op, v int32) *asm {
	a.code = append(a.code, byte(o))
	a.code = bytecode.EmitInt32(a.code, v)
	return a
}

func newVMFromCode(code []byte, strs ...string) *VM {
	c := &bytecode.Container{Code: code, Strings: strs}
	v := New(c)
	var out strings.Builder
	v.Print = func(s string) { out.WriteString(s) }
	return v
}

func TestPushAddPrint(t *testing.T) {
	a := (&asm{}).imm(bytecode.PUSH, 10)
	a.imm(bytecode.PUSH, 20)
	a.op(bytecode.ADD)
	a.op(bytecode.PRINT)
	a.op(bytecode.HALT)

	var out strings.Builder
	v := New(&bytecode.Container{Code: a.code})
	v.Print = func(s string) { out.WriteString(s) }
	v.Run()

	be.Equal(t, v.ErrorFlag, false)
	be.Equal(t, out.String(), "30")
}

func TestDivisionByZeroFaults(t *testing.T) {
	a := (&asm{}).imm(bytecode.PUSH, 1)
	a.imm(bytecode.PUSH, 0)
	a.op(bytecode.DIV)
	a.op(bytecode.HALT)

	v := newVMFromCode(a.code)
	v.Run()

	be.Equal(t, v.ErrorFlag, true)
	be.Equal(t, strings.Contains(v.ErrorMsg, "Division by zero"), true)
}

func TestStackHygieneAfterCall(t *testing.T) {
	// fn (0 params): PUSH_BP; PUSH 42; POP_BP; RET
	fn := (&asm{}).op(bytecode.PUSH_BP)
	fn.imm(bytecode.PUSH, 42)
	fn.op(bytecode.POP_BP)
	fn.op(bytecode.RET)

	callSite := 0
	main := (&asm{}).imm(bytecode.CALL, 0)
	main.op(bytecode.HALT)
	target := int32(len(main.code))
	copy(main.code[callSite+1:callSite+5], bytecode.EmitInt32(nil, target))

	code := append(append([]byte{}, main.code...), fn.code...)
	v := newVMFromCode(code)
	v.Run()

	be.Equal(t, v.ErrorFlag, false)
	be.Equal(t, len(v.CallStack), 0)
	be.Equal(t, v.BP, 0)
	be.Equal(t, v.IntStack, []int32{0, 42})
}

func TestBPAddressing(t *testing.T) {
	// Callee expects 3 args at offsets -4,-3,-2; loads them back onto the
	// int stack in order and halts so the test can inspect the result.
	fn := (&asm{}).op(bytecode.PUSH_BP)
	fn.imm(bytecode.LOAD_BP, -4)
	fn.imm(bytecode.LOAD_BP, -3)
	fn.imm(bytecode.LOAD_BP, -2)
	fn.op(bytecode.HALT)

	main := (&asm{}).imm(bytecode.PUSH, 7)
	main.imm(bytecode.PUSH, 8)
	main.imm(bytecode.PUSH, 9)
	main.imm(bytecode.CALL, int32(len(main.code)+5))

	code := append(append([]byte{}, main.code...), fn.code...)
	v := newVMFromCode(code)
	v.Run()

	be.Equal(t, v.ErrorFlag, false)
	be.Equal(t, v.IntStack[len(v.IntStack)-3:], []int32{7, 8, 9})
}

func TestStoreIndirectConsumesValueAndAddress(t *testing.T) {
	// val, addr, STORE_INDIRECT should consume both and leave nothing behind;
	// codegen is responsible for its own DUP when it wants the value to
	// survive the store as an expression result.
	a := (&asm{}).imm(bytecode.PUSH, 42)
	a.imm(bytecode.PUSH, 100)
	a.op(bytecode.STORE_INDIRECT)
	a.op(bytecode.HALT)

	v := newVMFromCode(a.code)
	v.Run()

	be.Equal(t, v.ErrorFlag, false)
	be.Equal(t, len(v.IntStack), 0)
	val, ok := v.memLoad(100)
	be.Equal(t, ok, true)
	be.Equal(t, val, int32(42))
}

func TestFirstFitAllocationSplitsBlock(t *testing.T) {
	v := newVMFromCode(nil)
	v.HeapBlocks = []HeapBlock{
		{Start: 0, Size: 4, Allocated: false},
		{Start: 4, Size: 8, Allocated: false},
		{Start: 12, Size: 4, Allocated: false},
	}
	v.growHeap(20)

	addr := v.alloc(3)
	be.Equal(t, addr, int32(HeapBase+0))
	be.Equal(t, len(v.HeapBlocks), 4)
	be.Equal(t, v.HeapBlocks[0], HeapBlock{Start: 0, Size: 3, Allocated: true})
	be.Equal(t, v.HeapBlocks[1], HeapBlock{Start: 3, Size: 1, Allocated: false})
	be.Equal(t, v.HeapBlocks[2], HeapBlock{Start: 4, Size: 8, Allocated: false})
	be.Equal(t, v.HeapBlocks[3], HeapBlock{Start: 12, Size: 4, Allocated: false})
}

func TestFreeZeroesCells(t *testing.T) {
	v := newVMFromCode(nil)
	addr := v.alloc(3)
	v.memStore(addr, 5)
	v.memStore(addr+1, 6)
	v.memStore(addr+2, 7)

	ok := v.free(addr)
	be.Equal(t, ok, true)

	for i := int32(0); i < 3; i++ {
		val, _ := v.memLoad(addr + i)
		be.Equal(t, val, int32(0))
	}
}

func TestFreeOfNonAllocatedAddressFaults(t *testing.T) {
	v := newVMFromCode(nil)
	v.free(HeapBase + 5)
	be.Equal(t, v.ErrorFlag, true)
}

func TestFPUCircularity(t *testing.T) {
	v := newVMFromCode(nil)
	for i := 0; i < 8; i++ {
		v.fpush(float32(i))
	}
	var got []float32
	for i := 0; i < 8; i++ {
		got = append(got, v.fpop())
	}
	want := []float32{7, 6, 5, 4, 3, 2, 1, 0}
	be.Equal(t, got, want)
}

func TestCmpSetsSignOfDifference(t *testing.T) {
	a := (&asm{}).imm(bytecode.PUSH, 10)
	a.imm(bytecode.PUSH, 3)
	a.op(bytecode.CMP)
	a.op(bytecode.HALT)

	v := newVMFromCode(a.code)
	v.Run()
	be.Equal(t, v.CmpFlag, 1)
}

func TestJLBranchesOnCmpFlag(t *testing.T) {
	a := (&asm{}).imm(bytecode.PUSH, 3)
	a.imm(bytecode.PUSH, 10)
	a.op(bytecode.CMP) // 3-10 < 0
	jlSite := len(a.code)
	a.imm(bytecode.JL, 0)
	a.imm(bytecode.PUSH, 999) // skipped if JL taken
	a.op(bytecode.HALT)
	takenTarget := int32(len(a.code))
	a.imm(bytecode.PUSH, 111)
	a.op(bytecode.HALT)
	copy(a.code[jlSite+1:jlSite+5], bytecode.EmitInt32(nil, takenTarget))

	v := newVMFromCode(a.code)
	v.Run()
	be.Equal(t, v.IntStack, []int32{111})
}

func TestReturnWithEmptyCallStackFaults(t *testing.T) {
	a := (&asm{}).op(bytecode.RET)
	v := newVMFromCode(a.code)
	v.Run()
	be.Equal(t, v.ErrorFlag, true)
}

func TestStaticMemoryAutoGrows(t *testing.T) {
	v := newVMFromCode(nil)
	ok := v.memStore(2000, 77)
	be.Equal(t, ok, true)
	be.Equal(t, len(v.StaticMem) > 2000, true)
	val, ok := v.memLoad(2000)
	be.Equal(t, ok, true)
	be.Equal(t, val, int32(77))
}

func TestCustomGrowChunkControlsMemoryExpansion(t *testing.T) {
	v := newVMFromCode(nil)
	v.GrowChunk = 16
	v.StaticMem = make([]int32, 4)
	v.memStore(20, 1)
	be.Equal(t, len(v.StaticMem), 4+16*2)
}

func TestReset(t *testing.T) {
	v := newVMFromCode(nil)
	v.push(1)
	v.alloc(4)
	v.Reset()
	be.Equal(t, len(v.IntStack), 0)
	be.Equal(t, len(v.HeapBlocks), 0)
	be.Equal(t, v.Halted, false)
}
