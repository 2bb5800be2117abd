// Package compiler wires the lexer, parser, and code generator into a
// single pipeline from source text to an encoded bytecode container.
package compiler

import (
	"fmt"
	"os"

	"tinycxx/pkg/bytecode"
	"tinycxx/pkg/codegen"
	"tinycxx/pkg/lexer"
	"tinycxx/pkg/parser"
)

// Result is everything a caller might want out of a successful compile: the
// encoded container bytes plus the warnings the code generator collected
// along the way.
type Result struct {
	Container *bytecode.Container
	Bytes     []byte
	Warnings  []string
}

// Compile runs the full pipeline over src. file names the source in lexer
// diagnostics; parser diagnostics carry line:col only.
func Compile(src string, file string) (*Result, error) {
	tokens, err := lexer.Lex(src, file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		return nil, err
	}

	prog, err := parser.Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		return nil, err
	}

	container, warnings, err := codegen.Generate(prog)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "codegen warning:", w)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		return nil, err
	}

	return &Result{
		Container: container,
		Bytes:     container.Encode(),
		Warnings:  warnings,
	}, nil
}
