// Command tccompile reads a source file, compiles it, and writes the
// resulting bytecode container to disk.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tinycxx/pkg/compiler"
	"tinycxx/pkg/config"
	"tinycxx/pkg/utils"
)

func printHelp() {
	fmt.Println("Usage: tccompile [options] <source file>")
	fmt.Println("Options:")
	fmt.Println("  -h, --help      Show this help message")
	fmt.Println("  -o <file>       Output bytecode file (default: <source>.tcb)")
	fmt.Println("  -v, --verbose   Print a summary of the generated container")
}

func main() {
	var (
		showHelp  bool
		verbose   bool
		outFile   string
		sourceArg string
	)

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			showHelp = true
		case arg == "-v" || arg == "--verbose":
			verbose = true
		case arg == "-o":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -o requires a file name")
				os.Exit(1)
			}
			i++
			outFile = args[i]
		case strings.HasPrefix(arg, "-"):
			fmt.Fprintln(os.Stderr, "Unknown option:", arg)
			printHelp()
			os.Exit(1)
		default:
			sourceArg = arg
		}
	}

	if showHelp {
		printHelp()
		return
	}

	if sourceArg == "" {
		fmt.Fprintln(os.Stderr, "Error: No source file specified")
		printHelp()
		os.Exit(1)
	}

	fullPath, baseDir, err := utils.GetPathInfo(sourceArg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "path error:", err)
		os.Exit(1)
	}

	cfg, err := config.FindAndLoad(baseDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		os.Exit(1)
	}

	result, err := compiler.Compile(string(data), sourceArg)
	if err != nil {
		os.Exit(1)
	}

	if !cfg.Build.WarningsAsNotes && len(result.Warnings) > 0 {
		fmt.Fprintln(os.Stderr, "Error: warnings are treated as errors by", filepath.Join(cfg.Dir, "tinycxx.toml"))
		os.Exit(1)
	}

	if outFile == "" {
		ext := filepath.Ext(sourceArg)
		outFile = strings.TrimSuffix(sourceArg, ext) + ".tcb"
	}

	if err := os.WriteFile(outFile, result.Bytes, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "write error:", err)
		os.Exit(1)
	}

	if verbose {
		fmt.Printf("Compiled %s -> %s (%d bytes, %d strings, %d warnings)\n",
			sourceArg, outFile, len(result.Bytes), len(result.Container.Strings), len(result.Warnings))
	}
}
