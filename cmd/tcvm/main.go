// Command tcvm loads a bytecode container and executes it on the virtual
// machine.
package main

import (
	"bufio"
	"fmt"
	"os"

	"tinycxx/pkg/bytecode"
	"tinycxx/pkg/config"
	"tinycxx/pkg/utils"
	"tinycxx/pkg/vm"
)

const vmVersion = "1.0"

func printHelp() {
	fmt.Println("Usage: tcvm [options] <bytecode file>")
	fmt.Println("Options:")
	fmt.Println("  -h, --help            Show this help message")
	fmt.Println("  -d, --debug           Enable debug mode (load/start/finish banners; no per-instruction trace)")
	fmt.Println("  -s, --stats           Show execution statistics")
	fmt.Println("  --disassemble         Disassemble bytecode and exit")
	fmt.Println("  --dump-stack          Dump stack after execution")
	fmt.Println("  --dump-memory         Dump memory after execution")
	fmt.Println("  --version             Show version information")
}

func main() {
	var (
		showHelp        bool
		debugMode       bool
		showStats       bool
		disassembleOnly bool
		dumpStack       bool
		dumpMemory      bool
		bytecodeFile    string
	)

	args := os.Args[1:]
	for _, arg := range args {
		switch {
		case arg == "--version":
			fmt.Printf("tinycxx Virtual Machine version: %s\n", vmVersion)
			fmt.Println("Cross-platform stack-based bytecode interpreter")
			fmt.Println("Platform: Unix/Linux")
			return
		case arg == "-h" || arg == "--help":
			showHelp = true
		case arg == "-d" || arg == "--debug":
			debugMode = true
		case arg == "-s" || arg == "--stats":
			showStats = true
		case arg == "--disassemble":
			disassembleOnly = true
		case arg == "--dump-stack":
			dumpStack = true
		case arg == "--dump-memory":
			dumpMemory = true
		case len(arg) > 0 && arg[0] == '-':
			fmt.Fprintln(os.Stderr, "Unknown option:", arg)
			printHelp()
			os.Exit(1)
		default:
			bytecodeFile = arg
		}
	}

	if showHelp {
		printHelp()
		return
	}

	if bytecodeFile == "" {
		fmt.Fprintln(os.Stderr, "Error: No bytecode file specified")
		printHelp()
		os.Exit(1)
	}

	fullPath, baseDir, err := utils.GetPathInfo(bytecodeFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	cfg, err := config.FindAndLoad(baseDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if cfg.Runtime.Debug {
		debugMode = true
	}
	if cfg.Runtime.Stats {
		showStats = true
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	container, err := bytecode.Decode(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	if debugMode {
		fmt.Println("=== tinycxx Virtual Machine ===")
		fmt.Printf("Loading bytecode: %s\n\n", bytecodeFile)
	}

	if disassembleOnly {
		disassemble(container)
		return
	}

	m := vm.New(container)
	if n := cfg.Runtime.StaticMemInitialCells; n > len(m.StaticMem) {
		m.StaticMem = append(m.StaticMem, make([]int32, n-len(m.StaticMem))...)
	}
	if cfg.Runtime.HeapGrowChunk > 0 {
		m.GrowChunk = cfg.Runtime.HeapGrowChunk
	}
	stdin := bufio.NewReader(os.Stdin)
	m.ReadLine = func() (string, bool) {
		line, err := stdin.ReadString('\n')
		return trimNewline(line), err == nil
	}
	m.Print = func(s string) { fmt.Print(s) }

	if debugMode {
		fmt.Println("[Starting execution]")
		fmt.Println()
	}

	m.Run()

	if m.ErrorFlag {
		fmt.Fprintf(os.Stderr, "\nExecution failed: %s\n", m.ErrorMsg)
		os.Exit(1)
	}

	if debugMode {
		fmt.Println("\n[Execution completed]")
	}

	if dumpStack {
		dumpStackState(m)
	}
	if dumpMemory {
		dumpMemoryState(m)
	}
	if showStats {
		printStats(m)
	}
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func disassemble(c *bytecode.Container) {
	ip := 0
	for ip < len(c.Code) {
		op := bytecode.Op(c.Code[ip])
		if bytecode.HasOperand(op) {
			if ip+5 > len(c.Code) {
				fmt.Printf("%6d: %-14s <truncated>\n", ip, op)
				break
			}
			operand := bytecode.ReadInt32(c.Code, ip+1)
			fmt.Printf("%6d: %-14s %d\n", ip, op, operand)
			ip += 5
		} else {
			fmt.Printf("%6d: %s\n", ip, op)
			ip++
		}
	}
}

func dumpStackState(m *vm.VM) {
	fmt.Println("=== Stack dump ===")
	for i, v := range m.IntStack {
		marker := ""
		if i == m.BP {
			marker = " <- BP"
		}
		fmt.Printf("[%4d] %d%s\n", i, v, marker)
	}
}

func dumpMemoryState(m *vm.VM) {
	fmt.Println("=== Static memory dump ===")
	for i, v := range m.StaticMem {
		if v != 0 {
			fmt.Printf("[%4d] %d\n", i, v)
		}
	}
	fmt.Println("=== Heap dump ===")
	for _, blk := range m.HeapBlocks {
		state := "free"
		if blk.Allocated {
			state = "allocated"
		}
		fmt.Printf("block start=%d size=%d (%s)\n", blk.Start, blk.Size, state)
	}
}

func printStats(m *vm.VM) {
	fmt.Println("=== Execution statistics ===")
	fmt.Printf("Instructions executed: %d\n", m.Stats.InstructionsExecuted)
	fmt.Printf("Peak stack size: %d\n", m.Stats.PeakStackSize)
}
