// Package vm implements the stack-based virtual machine that executes a
// bytecode container: a separate integer operand stack, an 8-slot circular
// floating-point register stack, static and heap memory with a first-fit
// allocator, and a BP-chained call stack.
package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"tinycxx/pkg/bytecode"
)

// HeapBase is the first address routed to heap memory; addresses below it
// target static memory.
const HeapBase = 10000

const growChunk = 1024

// HeapBlock is one entry of the heap's free/allocated list.
type HeapBlock struct {
	Start     int
	Size      int
	Allocated bool
}

// Object is a reserved runtime representation; no opcode in the current set
// constructs one.
type Object struct {
	ClassName string
	Fields    map[string]int32
}

// Stats tracks execution counters surfaced by -s/--stats.
type Stats struct {
	InstructionsExecuted int64
	PeakStackSize        int
}

// VM is the full runtime state of a loaded program.
type VM struct {
	Code []byte
	IP   int

	IntStack []int32
	CallStack []callFrame
	BP int

	StaticMem []int32
	Heap      []int32
	HeapBlocks []HeapBlock

	FPU    [8]float32
	FPUTop int
	FPMem  []float32

	Strings []string

	CmpFlag int

	Objects      map[int32]*Object
	NextObjectID int32

	ErrorFlag bool
	ErrorMsg  string
	Halted    bool

	Stats Stats

	// GrowChunk is the number of cells appended each time static, heap, or
	// float memory needs to grow. Overridable by the CLI driver from
	// tinycxx.toml; defaults to growChunk.
	GrowChunk int

	// Input/output hooks, overridable by the CLI driver for testing.
	ReadLine func() (string, bool)
	Print    func(string)
}

type callFrame struct {
	ReturnIP int
	SavedBP  int
}

// New constructs a VM from a decoded container, with stdio-backed I/O.
func New(c *bytecode.Container) *VM {
	v := &VM{
		Code:       c.Code,
		Strings:    append([]string(nil), c.Strings...),
		StaticMem:  make([]int32, 1024),
		Heap:       make([]int32, 0),
		HeapBlocks: nil,
		Objects:    make(map[int32]*Object),
		GrowChunk:  growChunk,
	}
	return v
}

func (v *VM) fault(format string, args ...any) {
	v.ErrorFlag = true
	v.ErrorMsg = fmt.Sprintf(format, args...)
	v.Halted = true
	commonlog.NewInfoMessage(0, "vm fault: "+v.ErrorMsg)
}

// Reset zeros runtime state, preserving Code and Strings.
func (v *VM) Reset() {
	v.IP = 0
	v.IntStack = nil
	v.CallStack = nil
	v.BP = 0
	v.StaticMem = make([]int32, 1024)
	v.Heap = nil
	v.HeapBlocks = nil
	v.FPU = [8]float32{}
	v.FPUTop = 0
	v.FPMem = make([]float32, 1024)
	v.CmpFlag = 0
	v.Objects = make(map[int32]*Object)
	v.NextObjectID = 0
	v.ErrorFlag = false
	v.ErrorMsg = ""
	v.Halted = false
	v.Stats = Stats{}
}

//
// Integer stack
//

func (v *VM) push(x int32) {
	v.IntStack = append(v.IntStack, x)
	if len(v.IntStack) > v.Stats.PeakStackSize {
		v.Stats.PeakStackSize = len(v.IntStack)
	}
}

func (v *VM) pop() (int32, bool) {
	if len(v.IntStack) == 0 {
		v.fault("integer stack underflow")
		return 0, false
	}
	n := len(v.IntStack) - 1
	x := v.IntStack[n]
	v.IntStack = v.IntStack[:n]
	return x, true
}

//
// FPU circular register stack
//

func (v *VM) fpush(x float32) {
	v.FPUTop = (v.FPUTop - 1 + 8) % 8
	v.FPU[v.FPUTop] = x
}

func (v *VM) fpop() float32 {
	x := v.FPU[v.FPUTop]
	v.FPU[v.FPUTop] = 0
	v.FPUTop = (v.FPUTop + 1) % 8
	return x
}

//
// Memory routing
//

func (v *VM) chunk() int {
	if v.GrowChunk > 0 {
		return v.GrowChunk
	}
	return growChunk
}

func (v *VM) growStatic(upto int) {
	for len(v.StaticMem) <= upto {
		v.StaticMem = append(v.StaticMem, make([]int32, v.chunk())...)
	}
}

func (v *VM) growHeap(upto int) {
	for len(v.Heap) <= upto {
		v.Heap = append(v.Heap, make([]int32, v.chunk())...)
	}
}

func (v *VM) growFPMem(upto int) {
	for len(v.FPMem) <= upto {
		v.FPMem = append(v.FPMem, make([]float32, v.chunk())...)
	}
}

func (v *VM) memLoad(addr int32) (int32, bool) {
	if addr < 0 {
		v.fault("negative memory address %d", addr)
		return 0, false
	}
	if int(addr) < HeapBase {
		if int(addr) >= len(v.StaticMem) {
			v.fault("static memory read out of bounds: %d", addr)
			return 0, false
		}
		return v.StaticMem[addr], true
	}
	off := int(addr) - HeapBase
	if off >= len(v.Heap) {
		v.fault("heap memory read out of bounds: %d", addr)
		return 0, false
	}
	return v.Heap[off], true
}

func (v *VM) memStore(addr int32, val int32) bool {
	if addr < 0 {
		v.fault("negative memory address %d", addr)
		return false
	}
	if int(addr) < HeapBase {
		v.growStatic(int(addr))
		v.StaticMem[addr] = val
		return true
	}
	off := int(addr) - HeapBase
	v.growHeap(off)
	v.Heap[off] = val
	return true
}

//
// Heap allocator: first-fit, no coalescing
//

func (v *VM) alloc(size int32) int32 {
	if size < 0 {
		size = 0
	}
	n := int(size)
	for i, blk := range v.HeapBlocks {
		if !blk.Allocated && blk.Size >= n {
			if blk.Size > n {
				remainder := HeapBlock{Start: blk.Start + n, Size: blk.Size - n, Allocated: false}
				v.HeapBlocks[i].Size = n
				v.HeapBlocks[i].Allocated = true
				tail := append([]HeapBlock{remainder}, v.HeapBlocks[i+1:]...)
				v.HeapBlocks = append(v.HeapBlocks[:i+1], tail...)
			} else {
				v.HeapBlocks[i].Allocated = true
			}
			v.growHeap(blk.Start + n)
			return int32(HeapBase + blk.Start)
		}
	}
	start := 0
	if len(v.HeapBlocks) > 0 {
		last := v.HeapBlocks[len(v.HeapBlocks)-1]
		start = last.Start + last.Size
	}
	v.HeapBlocks = append(v.HeapBlocks, HeapBlock{Start: start, Size: n, Allocated: true})
	v.growHeap(start + n)
	return int32(HeapBase + start)
}

func (v *VM) free(addr int32) bool {
	start := int(addr) - HeapBase
	for i, blk := range v.HeapBlocks {
		if blk.Start == start && blk.Allocated {
			v.HeapBlocks[i].Allocated = false
			for j := 0; j < blk.Size; j++ {
				if blk.Start+j < len(v.Heap) {
					v.Heap[blk.Start+j] = 0
				}
			}
			return true
		}
	}
	v.fault("free of non-heap or non-allocated address %d", addr)
	return false
}

//
// Decoding
//

func (v *VM) readByte() (byte, bool) {
	if v.IP < 0 || v.IP >= len(v.Code) {
		v.fault("instruction pointer out of bounds: %d", v.IP)
		return 0, false
	}
	b := v.Code[v.IP]
	v.IP++
	return b, true
}

func (v *VM) readInt32() (int32, bool) {
	if v.IP < 0 || v.IP+4 > len(v.Code) {
		v.fault("unexpected end of bytecode reading operand at %d", v.IP)
		return 0, false
	}
	x := bytecode.ReadInt32(v.Code, v.IP)
	v.IP += 4
	return x, true
}

func (v *VM) readFloat32() (float32, bool) {
	if v.IP < 0 || v.IP+4 > len(v.Code) {
		v.fault("unexpected end of bytecode reading operand at %d", v.IP)
		return 0, false
	}
	x := bytecode.ReadFloat32(v.Code, v.IP)
	v.IP += 4
	return x, true
}

// Run steps the VM until it halts or faults.
func (v *VM) Run() {
	for !v.Halted && !v.ErrorFlag {
		v.Step()
	}
}

// Step executes a single instruction.
func (v *VM) Step() {
	if v.Halted || v.ErrorFlag {
		return
	}

	opByte, ok := v.readByte()
	if !ok {
		return
	}
	op := bytecode.Op(opByte)
	v.Stats.InstructionsExecuted++

	switch op {
	case bytecode.PUSH:
		imm, ok := v.readInt32()
		if !ok {
			return
		}
		v.push(imm)

	case bytecode.POP:
		v.pop()

	case bytecode.ADD, bytecode.SUB, bytecode.MUL, bytecode.DIV, bytecode.MOD:
		b, ok := v.pop()
		if !ok {
			return
		}
		a, ok := v.pop()
		if !ok {
			return
		}
		switch op {
		case bytecode.ADD:
			v.push(a + b)
		case bytecode.SUB:
			v.push(a - b)
		case bytecode.MUL:
			v.push(a * b)
		case bytecode.DIV:
			if b == 0 {
				v.fault("Division by zero")
				return
			}
			v.push(a / b)
		case bytecode.MOD:
			if b == 0 {
				v.fault("Division by zero")
				return
			}
			v.push(a % b)
		}

	case bytecode.DUP:
		x, ok := v.pop()
		if !ok {
			return
		}
		v.push(x)
		v.push(x)

	case bytecode.SWAP:
		b, ok := v.pop()
		if !ok {
			return
		}
		a, ok := v.pop()
		if !ok {
			return
		}
		v.push(b)
		v.push(a)

	case bytecode.PRINT:
		x, ok := v.pop()
		if !ok {
			return
		}
		v.output(fmt.Sprintf("%d", x))

	case bytecode.PRINT_STR:
		idx, ok := v.pop()
		if !ok {
			return
		}
		if idx < 0 || int(idx) >= len(v.Strings) {
			v.fault("invalid string index %d", idx)
			return
		}
		v.output(v.Strings[idx])

	case bytecode.INPUT_STR:
		line, hasLine := v.readLine()
		idx := int32(len(v.Strings))
		v.Strings = append(v.Strings, line)
		_ = hasLine
		v.push(idx)

	case bytecode.INPUT:
		line, _ := v.readLine()
		var n int32
		fmt.Sscanf(line, "%d", &n)
		v.push(n)

	case bytecode.JMP:
		target, ok := v.readInt32()
		if !ok {
			return
		}
		v.IP = int(target)

	case bytecode.JZ, bytecode.JNZ:
		target, ok := v.readInt32()
		if !ok {
			return
		}
		x, ok := v.pop()
		if !ok {
			return
		}
		if (op == bytecode.JZ && x == 0) || (op == bytecode.JNZ && x != 0) {
			v.IP = int(target)
		}

	case bytecode.JL, bytecode.JG, bytecode.JLE, bytecode.JGE:
		target, ok := v.readInt32()
		if !ok {
			return
		}
		take := false
		switch op {
		case bytecode.JL:
			take = v.CmpFlag < 0
		case bytecode.JG:
			take = v.CmpFlag > 0
		case bytecode.JLE:
			take = v.CmpFlag <= 0
		case bytecode.JGE:
			take = v.CmpFlag >= 0
		}
		if take {
			v.IP = int(target)
		}

	case bytecode.CMP:
		b, ok := v.pop()
		if !ok {
			return
		}
		a, ok := v.pop()
		if !ok {
			return
		}
		v.CmpFlag = signInt(a - b)

	case bytecode.CALL:
		target, ok := v.readInt32()
		if !ok {
			return
		}
		v.CallStack = append(v.CallStack, callFrame{ReturnIP: v.IP, SavedBP: v.BP})
		v.IP = int(target)

	case bytecode.RET:
		if len(v.CallStack) == 0 {
			v.fault("RET with empty call stack")
			return
		}
		n := len(v.CallStack) - 1
		frame := v.CallStack[n]
		v.CallStack = v.CallStack[:n]
		v.IP = frame.ReturnIP

	case bytecode.LOAD:
		addr, ok := v.readInt32()
		if !ok {
			return
		}
		x, ok := v.memLoad(addr)
		if !ok {
			return
		}
		v.push(x)

	case bytecode.STORE:
		addr, ok := v.pop()
		if !ok {
			return
		}
		val, ok := v.pop()
		if !ok {
			return
		}
		v.memStore(addr, val)

	case bytecode.LOAD_BP:
		off, ok := v.readInt32()
		if !ok {
			return
		}
		idx := v.BP + int(off)
		if idx < 0 || idx >= len(v.IntStack) {
			v.fault("invalid BP-relative load at offset %d", off)
			return
		}
		v.push(v.IntStack[idx])

	case bytecode.STORE_BP:
		off, ok := v.readInt32()
		if !ok {
			return
		}
		val, ok := v.pop()
		if !ok {
			return
		}
		idx := v.BP + int(off)
		if idx < 0 {
			v.fault("invalid BP-relative store at offset %d", off)
			return
		}
		for idx >= len(v.IntStack) {
			v.IntStack = append(v.IntStack, 0)
		}
		v.IntStack[idx] = val

	case bytecode.PUSH_BP:
		v.push(int32(v.BP))
		v.BP = len(v.IntStack)

	case bytecode.POP_BP:
		if v.BP-1 < 0 || v.BP-1 >= len(v.IntStack) {
			v.fault("invalid BP in POP_BP")
			return
		}
		v.BP = int(v.IntStack[v.BP-1])

	case bytecode.PUSH_STR:
		idx, ok := v.readInt32()
		if !ok {
			return
		}
		v.push(idx)

	case bytecode.LOAD_INDIRECT:
		addr, ok := v.pop()
		if !ok {
			return
		}
		x, ok := v.memLoad(addr)
		if !ok {
			return
		}
		v.push(x)

	case bytecode.STORE_INDIRECT:
		addr, ok := v.pop()
		if !ok {
			return
		}
		val, ok := v.pop()
		if !ok {
			return
		}
		if !v.memStore(addr, val) {
			return
		}

	case bytecode.ALLOC:
		size, ok := v.pop()
		if !ok {
			return
		}
		v.push(v.alloc(size))

	case bytecode.FREE:
		addr, ok := v.pop()
		if !ok {
			return
		}
		v.free(addr)

	case bytecode.FPUSH:
		imm, ok := v.readFloat32()
		if !ok {
			return
		}
		v.fpush(imm)

	case bytecode.FPOP:
		v.fpop()

	case bytecode.FADD, bytecode.FSUB, bytecode.FMUL, bytecode.FDIV:
		b := v.fpop()
		a := v.fpop()
		switch op {
		case bytecode.FADD:
			v.fpush(a + b)
		case bytecode.FSUB:
			v.fpush(a - b)
		case bytecode.FMUL:
			v.fpush(a * b)
		case bytecode.FDIV:
			if b == 0 {
				v.fault("Division by zero")
				return
			}
			v.fpush(a / b)
		}

	case bytecode.FLOAD:
		addr, ok := v.readInt32()
		if !ok {
			return
		}
		if addr < 0 {
			v.fault("negative float memory address %d", addr)
			return
		}
		v.growFPMem(int(addr))
		v.fpush(v.FPMem[addr])

	case bytecode.FSTORE:
		addr, ok := v.readInt32()
		if !ok {
			return
		}
		if addr < 0 {
			v.fault("negative float memory address %d", addr)
			return
		}
		v.growFPMem(int(addr))
		v.FPMem[addr] = v.fpop()

	case bytecode.FPRINT:
		x := v.fpop()
		v.output(formatFloat(x))

	case bytecode.FCMP:
		b := v.fpop()
		a := v.fpop()
		v.CmpFlag = signFloat(a - b)

	case bytecode.FNEG:
		v.fpush(-v.fpop())

	case bytecode.FDUP:
		x := v.fpop()
		v.fpush(x)
		v.fpush(x)

	case bytecode.INT_TO_FP:
		x, ok := v.pop()
		if !ok {
			return
		}
		v.fpush(float32(x))

	case bytecode.FP_TO_INT:
		x := v.fpop()
		v.push(int32(x))

	case bytecode.HALT:
		v.Halted = true

	default:
		v.fault("unknown opcode byte 0x%02X", opByte)
	}
}

func (v *VM) readLine() (string, bool) {
	if v.ReadLine == nil {
		return "", false
	}
	return v.ReadLine()
}

func (v *VM) output(s string) {
	if v.Print == nil {
		fmt.Print(s)
		return
	}
	v.Print(s)
}

func signInt(x int32) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	default:
		return 0
	}
}

func signFloat(x float32) int {
	switch {
	case x < 0:
		return -1
	case x > 0:
		return 1
	default:
		return 0
	}
}

func formatFloat(f float32) string {
	s := fmt.Sprintf("%g", f)
	return s
}
