// Package codegen walks a parsed AST once and emits a bytecode container: a
// deduplicated string pool plus an opcode stream. Labels are resolved in a
// second pass after the whole program has been emitted.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"tinycxx/pkg/ast"
	"tinycxx/pkg/bytecode"
	"tinycxx/pkg/symtable"
	"tinycxx/pkg/token"
)

// label tracks a symbolic code address and every operand slot that refers to
// it, to be patched once the address is known.
type label struct {
	address    int
	resolved   bool
	fixupSites []int
}

// Generator holds all state accumulated across a single Generate call.
type Generator struct {
	sym          *symtable.Table
	code         []byte
	strings      []string
	labels       map[string]*label
	labelCounter int
	tmpCounter   int
	arraySizes   map[string]int
	warnings     []string
}

// New returns a fresh Generator with an empty symbol table.
func New() *Generator {
	return &Generator{
		sym:        symtable.New(),
		labels:     make(map[string]*label),
		arraySizes: make(map[string]int),
	}
}

// Generate walks prog and returns the finished container.
func Generate(prog *ast.Program) (*bytecode.Container, []string, error) {
	g := New()
	if err := g.run(prog); err != nil {
		return nil, g.warnings, err
	}
	return &bytecode.Container{Strings: g.strings, Code: g.code}, g.warnings, nil
}

func (g *Generator) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	g.warnings = append(g.warnings, msg)
	commonlog.NewInfoMessage(0, "codegen: "+msg)
}

func (g *Generator) run(prog *ast.Program) error {
	g.emitCallLabel("main")
	g.emitByte(byte(bytecode.HALT))

	g.collectStructNames(prog.Top)

	for _, node := range prog.Top {
		if err := g.genTopLevel(node); err != nil {
			return err
		}
	}

	return g.resolveLabels()
}

func (g *Generator) collectStructNames(nodes []ast.Node) {
	for _, node := range nodes {
		switch n := node.(type) {
		case *ast.ClassDecl:
			g.sym.MarkStruct(n.Name)
		case *ast.StructDecl:
			g.sym.MarkStruct(n.Name)
		case *ast.NamespaceDecl:
			g.collectStructNames(n.Body)
		case *ast.TemplateDecl:
			g.collectStructNames([]ast.Node{n.Declaration})
		}
	}
}

//
// Emission primitives
//

func (g *Generator) emitByte(b byte) { g.code = append(g.code, b) }

func (g *Generator) emitOp(op bytecode.Op) { g.emitByte(byte(op)) }

func (g *Generator) emitOpInt32(op bytecode.Op, v int32) {
	g.emitByte(byte(op))
	g.code = bytecode.EmitInt32(g.code, v)
}

func (g *Generator) emitOpFloat32(op bytecode.Op, v float32) {
	g.emitByte(byte(op))
	g.code = bytecode.EmitFloat32(g.code, v)
}

// emitOpLabel emits op followed by a placeholder operand that resolves to
// name's address once known.
func (g *Generator) emitOpLabel(op bytecode.Op, name string) {
	g.emitByte(byte(op))
	lbl := g.labelFor(name)
	lbl.fixupSites = append(lbl.fixupSites, len(g.code))
	g.code = bytecode.EmitInt32(g.code, 0)
}

func (g *Generator) emitCallLabel(name string) { g.emitOpLabel(bytecode.CALL, name) }

func (g *Generator) labelFor(name string) *label {
	lbl, ok := g.labels[name]
	if !ok {
		lbl = &label{}
		g.labels[name] = lbl
	}
	return lbl
}

// newLabel returns a fresh internal label name under prefix.
func (g *Generator) newLabel(prefix string) string {
	g.labelCounter++
	return fmt.Sprintf("%s_%d", prefix, g.labelCounter)
}

// defineLabelHere binds name to the current emission offset.
func (g *Generator) defineLabelHere(name string) {
	lbl := g.labelFor(name)
	lbl.address = len(g.code)
	lbl.resolved = true
}

func (g *Generator) resolveLabels() error {
	var undefined []string
	for name, lbl := range g.labels {
		if !lbl.resolved {
			undefined = append(undefined, name)
			continue
		}
		for _, site := range lbl.fixupSites {
			addr := bytecode.EmitInt32(nil, int32(lbl.address))
			copy(g.code[site:site+4], addr)
		}
	}
	if len(undefined) > 0 {
		return fmt.Errorf("undefined label(s) referenced: %s", strings.Join(undefined, ", "))
	}
	return nil
}

// addString deduplicates s into the string pool, returning its index.
func (g *Generator) addString(s string) int {
	for i, existing := range g.strings {
		if existing == s {
			return i
		}
	}
	g.strings = append(g.strings, s)
	return len(g.strings) - 1
}

func (g *Generator) freshTempName(prefix string) string {
	g.tmpCounter++
	return fmt.Sprintf("__%s_%d", prefix, g.tmpCounter)
}

//
// Types
//

func typeTokensContainFloat(toks []token.Token) bool {
	for _, t := range toks {
		if t.Lexeme == "float" || t.Lexeme == "double" {
			return true
		}
	}
	return false
}

func mangleName(name string, paramCount int) string {
	if paramCount == 0 {
		return name
	}
	return name + "_P" + strconv.Itoa(paramCount)
}

//
// Top-level and member dispatch
//

func (g *Generator) genTopLevel(node ast.Node) error {
	switch n := node.(type) {
	case *ast.FunctionDecl:
		return g.genFunctionDecl(n)
	case *ast.ClassDecl:
		g.sym.MarkStruct(n.Name)
		for _, m := range n.Members {
			if err := g.genClassMember(n.Name, m); err != nil {
				return err
			}
		}
		return nil
	case *ast.StructDecl:
		g.sym.MarkStruct(n.Name)
		for _, m := range n.Members {
			if err := g.genClassMember(n.Name, m); err != nil {
				return err
			}
		}
		return nil
	case *ast.NamespaceDecl:
		for _, m := range n.Body {
			if err := g.genTopLevel(m); err != nil {
				return err
			}
		}
		return nil
	case *ast.TemplateDecl:
		return g.genTopLevel(n.Declaration)
	case *ast.IncludeDirective, *ast.UsingDirective, *ast.AccessSpec:
		return nil
	case *ast.VarDecl:
		return g.genVarDecl(n)
	case *ast.Block:
		for _, s := range n.Stmts {
			if err := g.genTopLevel(s); err != nil {
				return err
			}
		}
		return nil
	default:
		g.warn("unhandled top-level node %T", n)
		return nil
	}
}

func (g *Generator) genClassMember(className string, m ast.Node) error {
	switch mm := m.(type) {
	case *ast.FunctionDecl:
		return g.genFunctionDecl(mm)
	case *ast.VarDecl, *ast.AccessSpec:
		return nil
	default:
		g.warn("unhandled member of %s: %T", className, mm)
		return nil
	}
}

//
// Functions
//

func (g *Generator) genFunctionDecl(f *ast.FunctionDecl) error {
	mangled := mangleName(f.Name, len(f.Params))
	g.sym.DefineFunction(f.Name, mangled, len(f.Params))

	if f.Body == nil {
		return nil // prototype only
	}

	g.defineLabelHere(mangled)
	g.emitOp(bytecode.PUSH_BP)

	for i, param := range f.Params {
		// Parameters are always marshalled through IntStack (see genUserCall),
		// regardless of their declared type, so they are never classified as
		// float-valued here even when the declaration says float/double.
		g.sym.DefineParameter(param.Name, i, len(f.Params), false, false)
	}

	if err := g.genStmt(f.Body); err != nil {
		return err
	}

	g.emitOpInt32(bytecode.PUSH, 0)
	g.emitOp(bytecode.POP_BP)
	g.emitOp(bytecode.RET)
	return nil
}

//
// Statements
//

func (g *Generator) genStmt(node ast.Node) error {
	switch n := node.(type) {
	case *ast.Block:
		for _, s := range n.Stmts {
			if err := g.genStmt(s); err != nil {
				return err
			}
		}
		return nil
	case *ast.VarDecl:
		return g.genVarDecl(n)
	case *ast.If:
		return g.genIf(n)
	case *ast.While:
		return g.genWhile(n)
	case *ast.For:
		return g.genFor(n)
	case *ast.Return:
		return g.genReturn(n)
	case *ast.ExprStmt:
		return g.genExprStmt(n)
	case *ast.ClassDecl, *ast.StructDecl, *ast.FunctionDecl:
		return g.genTopLevel(n)
	case nil:
		return nil
	default:
		g.warn("unhandled statement %T", n)
		return nil
	}
}

func (g *Generator) genVarDecl(d *ast.VarDecl) error {
	isFloat := typeTokensContainFloat(d.TypeTokens)
	isStackArray := d.IsArray && !d.IsPointer

	if isStackArray {
		size := 1
		if lit, ok := d.ArraySize.(*ast.Literal); ok {
			if n, err := strconv.Atoi(lit.Text); err == nil && n > 0 {
				size = n
			}
		}
		base := g.sym.DefineVariable(d.Name, true, false, isFloat)
		g.arraySizes[d.Name] = size
		for i := 1; i < size; i++ {
			g.sym.DefineVariable(fmt.Sprintf("%s#%d", d.Name, i), false, false, isFloat)
		}
		if call, ok := d.Initializer.(*ast.CallExpr); ok {
			if id, ok := call.Callee.(*ast.Identifier); ok && id.Name == "__init_list" {
				for i, el := range call.Args {
					if i >= size {
						break
					}
					if err := g.genExprCoerceInt(el); err != nil {
						return err
					}
					g.emitOpInt32(bytecode.PUSH, int32(base.Offset+i))
					g.emitOp(bytecode.STORE_INDIRECT)
				}
			}
		}
		return nil
	}

	g.sym.DefineVariable(d.Name, false, d.IsPointer, isFloat)

	if d.Initializer == nil {
		return nil
	}
	valFloat, err := g.genExpr(d.Initializer)
	if err != nil {
		return err
	}
	sym, _ := g.sym.Lookup(d.Name)
	if isFloat {
		if !valFloat {
			g.emitOp(bytecode.INT_TO_FP)
		}
		g.emitOpInt32(bytecode.FSTORE, int32(sym.Offset))
		return nil
	}
	if valFloat {
		g.emitOp(bytecode.FP_TO_INT)
	}
	g.emitOpInt32(bytecode.PUSH, int32(sym.Offset))
	g.emitOp(bytecode.STORE)
	return nil
}

func (g *Generator) genIf(s *ast.If) error {
	if _, err := g.genExpr(s.Cond); err != nil {
		return err
	}
	elseLabel := g.newLabel("if_else")
	endLabel := g.newLabel("if_end")
	g.emitOpLabel(bytecode.JZ, elseLabel)
	if err := g.genStmt(s.Then); err != nil {
		return err
	}
	if s.Else != nil {
		g.emitOpLabel(bytecode.JMP, endLabel)
		g.defineLabelHere(elseLabel)
		if err := g.genStmt(s.Else); err != nil {
			return err
		}
		g.defineLabelHere(endLabel)
	} else {
		g.defineLabelHere(elseLabel)
	}
	return nil
}

func (g *Generator) genWhile(s *ast.While) error {
	startLabel := g.newLabel("while_start")
	endLabel := g.newLabel("while_end")
	g.defineLabelHere(startLabel)
	if _, err := g.genExpr(s.Cond); err != nil {
		return err
	}
	g.emitOpLabel(bytecode.JZ, endLabel)
	if err := g.genStmt(s.Body); err != nil {
		return err
	}
	g.emitOpLabel(bytecode.JMP, startLabel)
	g.defineLabelHere(endLabel)
	return nil
}

func (g *Generator) genFor(s *ast.For) error {
	if s.Cond == nil && s.Post != nil {
		if rangeIdent, ok := s.Post.(*ast.Identifier); ok {
			if size, ok := g.arraySizes[rangeIdent.Name]; ok {
				return g.genRangeFor(s, rangeIdent.Name, size)
			}
		}
		g.warn("range-based for over unknown-size range %s dropped", s.Post)
		return nil
	}

	if s.Init != nil {
		if err := g.genStmt(s.Init); err != nil {
			return err
		}
	}

	startLabel := g.newLabel("for_start")
	endLabel := g.newLabel("for_end")
	g.defineLabelHere(startLabel)
	if s.Cond != nil {
		if _, err := g.genExpr(s.Cond); err != nil {
			return err
		}
		g.emitOpLabel(bytecode.JZ, endLabel)
	}
	if err := g.genStmt(s.Body); err != nil {
		return err
	}
	if s.Post != nil {
		postFloat, err := g.genExpr(s.Post)
		if err != nil {
			return err
		}
		if postFloat {
			g.emitOp(bytecode.FPOP)
		} else {
			g.emitOp(bytecode.POP)
		}
	}
	g.emitOpLabel(bytecode.JMP, startLabel)
	g.defineLabelHere(endLabel)
	return nil
}

func (g *Generator) genRangeFor(s *ast.For, arrName string, size int) error {
	loopVar, ok := s.Init.(*ast.VarDecl)
	if !ok {
		g.warn("range-based for has unexpected loop-variable form %T", s.Init)
		return nil
	}
	idxName := g.freshTempName("range_idx")
	initDecl := &ast.VarDecl{Pos: s.Pos, TypeTokens: []token.Token{{Kind: token.TYPE_SPECIFIER, Lexeme: "int"}},
		Name: idxName, Initializer: &ast.Literal{Pos: s.Pos, Text: "0", Kind: ast.LitNumber}}
	cond := &ast.BinaryOp{Pos: s.Pos, Op: "<",
		Left:  &ast.Identifier{Pos: s.Pos, Name: idxName},
		Right: &ast.Literal{Pos: s.Pos, Text: strconv.Itoa(size), Kind: ast.LitNumber}}
	post := &ast.UnaryOp{Pos: s.Pos, Op: "++_post", Operand: &ast.Identifier{Pos: s.Pos, Name: idxName}}
	elemDecl := &ast.VarDecl{Pos: loopVar.Pos, TypeTokens: loopVar.TypeTokens, Name: loopVar.Name,
		Initializer: &ast.ArraySubscript{Pos: s.Pos,
			Array: &ast.Identifier{Pos: s.Pos, Name: arrName},
			Index: &ast.Identifier{Pos: s.Pos, Name: idxName}}}
	newBody := &ast.Block{Pos: s.Pos, Stmts: []ast.Node{elemDecl, s.Body}}
	return g.genFor(&ast.For{Pos: s.Pos, Init: initDecl, Cond: cond, Post: post, Body: newBody})
}

func (g *Generator) genReturn(s *ast.Return) error {
	if s.Expr != nil {
		valFloat, err := g.genExpr(s.Expr)
		if err != nil {
			return err
		}
		if valFloat {
			g.emitOp(bytecode.FP_TO_INT)
		}
	} else {
		g.emitOpInt32(bytecode.PUSH, 0)
	}
	g.emitOp(bytecode.POP_BP)
	g.emitOp(bytecode.RET)
	return nil
}

func (g *Generator) genExprStmt(s *ast.ExprStmt) error {
	if s.Expr == nil {
		return nil
	}
	isFloat, err := g.genExpr(s.Expr)
	if err != nil {
		return err
	}
	if isFloat {
		g.emitOp(bytecode.FPOP)
	} else {
		g.emitOp(bytecode.POP)
	}
	return nil
}

//
// Expressions: exprIsFloat (non-emitting classification)
//

func isCompoundAssignOp(op string) bool {
	switch op {
	case "+=", "-=", "*=", "/=", "%=":
		return true
	}
	return false
}

func (g *Generator) exprIsFloat(e ast.Expr) bool {
	switch v := e.(type) {
	case *ast.Literal:
		return v.IsFloat()
	case *ast.Identifier:
		sym, ok := g.sym.Lookup(v.Name)
		return ok && sym.IsFloat
	case *ast.BinaryOp:
		if v.Op == "=" || isCompoundAssignOp(v.Op) {
			return g.exprIsFloat(v.Left)
		}
		if v.Op == "<<" || v.Op == ">>" {
			return false
		}
		return g.exprIsFloat(v.Left) || g.exprIsFloat(v.Right)
	case *ast.UnaryOp:
		return g.exprIsFloat(v.Operand)
	case *ast.ArraySubscript:
		return g.exprIsFloat(v.Array)
	default:
		return false
	}
}

// genExprCoerceFloat evaluates e and guarantees the result lands on the FPU
// stack, widening with INT_TO_FP if e itself produced an integer.
func (g *Generator) genExprCoerceFloat(e ast.Expr) error {
	isFloat, err := g.genExpr(e)
	if err != nil {
		return err
	}
	if !isFloat {
		g.emitOp(bytecode.INT_TO_FP)
	}
	return nil
}

func (g *Generator) genExprCoerceInt(e ast.Expr) error {
	isFloat, err := g.genExpr(e)
	if err != nil {
		return err
	}
	if isFloat {
		g.emitOp(bytecode.FP_TO_INT)
	}
	return nil
}

//
// Expressions: emission
//

// genExpr emits code for e and returns whether the produced value lives on
// the FPU stack (true) or the integer stack (false).
func (g *Generator) genExpr(e ast.Expr) (bool, error) {
	switch v := e.(type) {
	case *ast.Literal:
		return g.genLiteral(v)
	case *ast.Identifier:
		return g.genIdentifierLoad(v)
	case *ast.UnaryOp:
		return g.genUnaryOp(v)
	case *ast.BinaryOp:
		return g.genBinaryOp(v)
	case *ast.CallExpr:
		return g.genCallExpr(v)
	case *ast.ArraySubscript:
		return g.genArraySubscriptLoad(v)
	case *ast.MemberAccess:
		g.warn("member access %s has no backing storage; yielding 0", v)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	default:
		g.warn("unhandled expression %T", v)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}
}

func (g *Generator) genLiteral(l *ast.Literal) (bool, error) {
	switch l.Kind {
	case ast.LitString:
		idx := g.addString(l.Text)
		g.emitOpInt32(bytecode.PUSH_STR, int32(idx))
		return false, nil
	case ast.LitChar:
		r := []rune(l.Text)
		var v int32
		if len(r) > 0 {
			v = int32(r[0])
		}
		g.emitOpInt32(bytecode.PUSH, v)
		return false, nil
	default:
		if l.Text == "true" {
			g.emitOpInt32(bytecode.PUSH, 1)
			return false, nil
		}
		if l.Text == "false" {
			g.emitOpInt32(bytecode.PUSH, 0)
			return false, nil
		}
		if l.IsFloat() {
			f, err := strconv.ParseFloat(l.Text, 32)
			if err != nil {
				g.warn("unparseable float literal %q, defaulting to 0", l.Text)
				f = 0
			}
			g.emitOpFloat32(bytecode.FPUSH, float32(f))
			return true, nil
		}
		n, err := strconv.ParseInt(strings.TrimRight(l.Text, "uUlL"), 0, 64)
		if err != nil {
			g.warn("unparseable integer literal %q, defaulting to 0", l.Text)
			n = 0
		}
		g.emitOpInt32(bytecode.PUSH, int32(n))
		return false, nil
	}
}

func (g *Generator) genIdentifierLoad(id *ast.Identifier) (bool, error) {
	if id.Name == "std::endl" {
		idx := g.addString("\n")
		g.emitOpInt32(bytecode.PUSH_STR, int32(idx))
		return false, nil
	}
	sym, ok := g.sym.Lookup(id.Name)
	if !ok {
		g.warn("undefined identifier %q, yielding 0", id.Name)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}
	switch sym.Kind {
	case symtable.PARAMETER:
		g.emitOpInt32(bytecode.LOAD_BP, int32(sym.Offset))
		return sym.IsFloat, nil
	case symtable.VARIABLE:
		if sym.IsArray {
			g.emitOpInt32(bytecode.PUSH, int32(sym.Offset))
			return false, nil
		}
		if sym.IsFloat {
			g.emitOpInt32(bytecode.FLOAD, int32(sym.Offset))
			return true, nil
		}
		g.emitOpInt32(bytecode.LOAD, int32(sym.Offset))
		return false, nil
	default:
		g.warn("identifier %q names a function; yielding 0", id.Name)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}
}

// genPointerValue pushes the address a pointer-typed or array-typed
// expression refers to: the value held by a pointer variable/parameter, or
// the static base address of a stack array.
func (g *Generator) genPointerValue(e ast.Expr) error {
	if id, ok := e.(*ast.Identifier); ok {
		sym, ok := g.sym.Lookup(id.Name)
		if !ok {
			g.warn("undefined identifier %q in pointer context, yielding 0", id.Name)
			g.emitOpInt32(bytecode.PUSH, 0)
			return nil
		}
		switch sym.Kind {
		case symtable.PARAMETER:
			g.emitOpInt32(bytecode.LOAD_BP, int32(sym.Offset))
			return nil
		case symtable.VARIABLE:
			if sym.IsArray {
				g.emitOpInt32(bytecode.PUSH, int32(sym.Offset))
				return nil
			}
			g.emitOpInt32(bytecode.LOAD, int32(sym.Offset))
			return nil
		}
	}
	if sub, ok := e.(*ast.ArraySubscript); ok {
		if err := g.genArrayAddress(sub); err != nil {
			return err
		}
		g.emitOp(bytecode.LOAD_INDIRECT)
		return nil
	}
	_, err := g.genExprCoerceIntVal(e)
	return err
}

func (g *Generator) genExprCoerceIntVal(e ast.Expr) (bool, error) {
	isFloat, err := g.genExpr(e)
	if err != nil {
		return false, err
	}
	if isFloat {
		g.emitOp(bytecode.FP_TO_INT)
	}
	return false, nil
}

// genArrayAddress pushes the element address of sub: base pointer + index.
func (g *Generator) genArrayAddress(sub *ast.ArraySubscript) error {
	if err := g.genPointerValue(sub.Array); err != nil {
		return err
	}
	if err := g.genExprCoerceInt(sub.Index); err != nil {
		return err
	}
	g.emitOp(bytecode.ADD)
	return nil
}

func (g *Generator) genArraySubscriptLoad(sub *ast.ArraySubscript) (bool, error) {
	if err := g.genArrayAddress(sub); err != nil {
		return false, err
	}
	g.emitOp(bytecode.LOAD_INDIRECT)
	return false, nil
}

// genStoreToLValue stores the value currently on top of the appropriate
// stack into target, per the generator's exact duplication convention: the
// stored value is left on the stack afterward.
func (g *Generator) genStoreToLValue(target ast.Expr, valueFloat bool) error {
	switch t := target.(type) {
	case *ast.Identifier:
		sym, ok := g.sym.Lookup(t.Name)
		if !ok {
			g.warn("assignment to undefined identifier %q ignored", t.Name)
			return nil
		}
		switch sym.Kind {
		case symtable.PARAMETER:
			if valueFloat && !sym.IsFloat {
				g.emitOp(bytecode.FP_TO_INT)
			} else if !valueFloat && sym.IsFloat {
				g.emitOp(bytecode.INT_TO_FP)
			}
			g.emitOp(bytecode.DUP)
			g.emitOpInt32(bytecode.STORE_BP, int32(sym.Offset))
			return nil
		case symtable.VARIABLE:
			if sym.IsFloat {
				if !valueFloat {
					g.emitOp(bytecode.INT_TO_FP)
				}
				g.emitOp(bytecode.FDUP)
				g.emitOpInt32(bytecode.FSTORE, int32(sym.Offset))
				return nil
			}
			if valueFloat {
				g.emitOp(bytecode.FP_TO_INT)
			}
			g.emitOp(bytecode.DUP)
			g.emitOpInt32(bytecode.PUSH, int32(sym.Offset))
			g.emitOp(bytecode.STORE)
			return nil
		}
		return nil
	case *ast.ArraySubscript:
		if valueFloat {
			g.emitOp(bytecode.FP_TO_INT)
		}
		g.emitOp(bytecode.DUP)
		if err := g.genArrayAddress(t); err != nil {
			return err
		}
		g.emitOp(bytecode.STORE_INDIRECT)
		return nil
	case *ast.UnaryOp:
		if t.Op == "*" {
			if valueFloat {
				g.emitOp(bytecode.FP_TO_INT)
			}
			g.emitOp(bytecode.DUP)
			if err := g.genExprCoerceInt(t.Operand); err != nil {
				return err
			}
			g.emitOp(bytecode.STORE_INDIRECT)
			return nil
		}
	}
	g.warn("unsupported assignment target %T; value left unstored", target)
	return nil
}

func (g *Generator) genUnaryOp(u *ast.UnaryOp) (bool, error) {
	switch u.Op {
	case "!":
		if err := g.genExprCoerceInt(u.Operand); err != nil {
			return false, err
		}
		trueLabel := g.newLabel("not_true")
		endLabel := g.newLabel("not_end")
		g.emitOpLabel(bytecode.JZ, trueLabel)
		g.emitOpInt32(bytecode.PUSH, 0)
		g.emitOpLabel(bytecode.JMP, endLabel)
		g.defineLabelHere(trueLabel)
		g.emitOpInt32(bytecode.PUSH, 1)
		g.defineLabelHere(endLabel)
		return false, nil
	case "-":
		if g.exprIsFloat(u.Operand) {
			if err := g.genExprCoerceFloat(u.Operand); err != nil {
				return false, err
			}
			g.emitOp(bytecode.FNEG)
			return true, nil
		}
		g.emitOpInt32(bytecode.PUSH, 0)
		if err := g.genExprCoerceInt(u.Operand); err != nil {
			return false, err
		}
		g.emitOp(bytecode.SUB)
		return false, nil
	case "+":
		return g.genExpr(u.Operand)
	case "*":
		if err := g.genExprCoerceInt(u.Operand); err != nil {
			return false, err
		}
		g.emitOp(bytecode.LOAD_INDIRECT)
		return false, nil
	case "&":
		if id, ok := u.Operand.(*ast.Identifier); ok {
			sym, ok := g.sym.Lookup(id.Name)
			if ok {
				g.emitOpInt32(bytecode.PUSH, int32(sym.Offset))
				return false, nil
			}
		}
		g.warn("address-of unsupported operand %T; yielding 0", u.Operand)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	case "~":
		g.warn("bitwise not is unsupported in this subset; yielding operand unchanged")
		return g.genExpr(u.Operand)
	case "delete":
		if err := g.genExprCoerceInt(u.Operand); err != nil {
			return false, err
		}
		g.emitOp(bytecode.FREE)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	case "++", "--", "++_post", "--_post":
		return g.genIncDec(u)
	default:
		g.warn("unhandled unary operator %q", u.Op)
		return g.genExpr(u.Operand)
	}
}

func (g *Generator) genIncDec(u *ast.UnaryOp) (bool, error) {
	delta := int32(1)
	isPost := strings.HasSuffix(u.Op, "_post")
	if strings.HasPrefix(u.Op, "--") {
		delta = -1
	}
	operandFloat := g.exprIsFloat(u.Operand)

	if isPost {
		oldFloat, err := g.genExpr(u.Operand)
		if err != nil {
			return false, err
		}
		if oldFloat {
			g.emitOp(bytecode.FDUP)
			g.emitOpFloat32(bytecode.FPUSH, float32(delta))
			g.emitOp(bytecode.FADD)
		} else {
			g.emitOp(bytecode.DUP)
			g.emitOpInt32(bytecode.PUSH, delta)
			g.emitOp(bytecode.ADD)
		}
		if err := g.genStoreToLValue(u.Operand, oldFloat); err != nil {
			return false, err
		}
		if oldFloat {
			g.emitOp(bytecode.FPOP)
		} else {
			g.emitOp(bytecode.POP)
		}
		return oldFloat, nil
	}

	if operandFloat {
		if err := g.genExprCoerceFloat(u.Operand); err != nil {
			return false, err
		}
		g.emitOpFloat32(bytecode.FPUSH, float32(delta))
		g.emitOp(bytecode.FADD)
	} else {
		if err := g.genExprCoerceInt(u.Operand); err != nil {
			return false, err
		}
		g.emitOpInt32(bytecode.PUSH, delta)
		g.emitOp(bytecode.ADD)
	}
	if err := g.genStoreToLValue(u.Operand, operandFloat); err != nil {
		return false, err
	}
	return operandFloat, nil
}

func (g *Generator) genBinaryOp(b *ast.BinaryOp) (bool, error) {
	switch {
	case b.Op == "=":
		return g.genAssign(b)
	case isCompoundAssignOp(b.Op):
		base := strings.TrimSuffix(b.Op, "=")
		synthetic := &ast.BinaryOp{Pos: b.Pos, Op: base, Left: b.Left, Right: b.Right}
		assign := &ast.BinaryOp{Pos: b.Pos, Op: "=", Left: b.Left, Right: synthetic}
		return g.genAssign(assign)
	case b.Op == "<<":
		if operands, ok := g.flattenStreamChain(b, "std::cout"); ok {
			return g.genCoutChain(operands)
		}
		g.warn("bitwise left-shift is unsupported in this subset; yielding 0")
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	case b.Op == ">>":
		if operands, ok := g.flattenStreamChain(b, "std::cin"); ok {
			return g.genCinChain(operands)
		}
		g.warn("bitwise right-shift is unsupported in this subset; yielding 0")
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	case b.Op == "&&":
		return g.genLogicalAnd(b)
	case b.Op == "||":
		return g.genLogicalOr(b)
	case b.Op == "==" || b.Op == "!=":
		return g.genEqualityComparison(b)
	case b.Op == "<" || b.Op == ">" || b.Op == "<=" || b.Op == ">=":
		return g.genOrderComparison(b)
	case b.Op == "+" || b.Op == "-" || b.Op == "*" || b.Op == "/" || b.Op == "%":
		return g.genArithmetic(b)
	default:
		g.warn("unhandled binary operator %q", b.Op)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}
}

func (g *Generator) genAssign(b *ast.BinaryOp) (bool, error) {
	targetFloat := g.exprIsFloat(b.Left)
	var valFloat bool
	var err error
	if targetFloat {
		err = g.genExprCoerceFloat(b.Right)
		valFloat = true
	} else {
		valFloat, err = g.genExpr(b.Right)
	}
	if err != nil {
		return false, err
	}
	if err := g.genStoreToLValue(b.Left, valFloat); err != nil {
		return false, err
	}
	return targetFloat, nil
}

func (g *Generator) genArithmetic(b *ast.BinaryOp) (bool, error) {
	resultFloat := g.exprIsFloat(b.Left) || g.exprIsFloat(b.Right)
	if resultFloat {
		if err := g.genExprCoerceFloat(b.Left); err != nil {
			return false, err
		}
		if err := g.genExprCoerceFloat(b.Right); err != nil {
			return false, err
		}
		switch b.Op {
		case "+":
			g.emitOp(bytecode.FADD)
		case "-":
			g.emitOp(bytecode.FSUB)
		case "*":
			g.emitOp(bytecode.FMUL)
		case "/":
			g.emitOp(bytecode.FDIV)
		case "%":
			g.warn("float modulo is unsupported; truncating via int path")
			g.emitOp(bytecode.FP_TO_INT)
			g.emitOp(bytecode.FP_TO_INT)
			g.emitOp(bytecode.SWAP)
			g.emitOp(bytecode.MOD)
			return false, nil
		}
		return true, nil
	}
	if err := g.genExprCoerceInt(b.Left); err != nil {
		return false, err
	}
	if err := g.genExprCoerceInt(b.Right); err != nil {
		return false, err
	}
	switch b.Op {
	case "+":
		g.emitOp(bytecode.ADD)
	case "-":
		g.emitOp(bytecode.SUB)
	case "*":
		g.emitOp(bytecode.MUL)
	case "/":
		g.emitOp(bytecode.DIV)
	case "%":
		g.emitOp(bytecode.MOD)
	}
	return false, nil
}

func (g *Generator) genOrderComparison(b *ast.BinaryOp) (bool, error) {
	mixed := g.exprIsFloat(b.Left) || g.exprIsFloat(b.Right)
	if mixed {
		if err := g.genExprCoerceFloat(b.Left); err != nil {
			return false, err
		}
		if err := g.genExprCoerceFloat(b.Right); err != nil {
			return false, err
		}
		g.emitOp(bytecode.FCMP)
	} else {
		if err := g.genExprCoerceInt(b.Left); err != nil {
			return false, err
		}
		if err := g.genExprCoerceInt(b.Right); err != nil {
			return false, err
		}
		g.emitOp(bytecode.CMP)
	}
	var jumpOp bytecode.Op
	switch b.Op {
	case "<":
		jumpOp = bytecode.JL
	case ">":
		jumpOp = bytecode.JG
	case "<=":
		jumpOp = bytecode.JLE
	case ">=":
		jumpOp = bytecode.JGE
	}
	g.emitTrueFalsePush(jumpOp)
	return false, nil
}

func (g *Generator) genEqualityComparison(b *ast.BinaryOp) (bool, error) {
	mixed := g.exprIsFloat(b.Left) || g.exprIsFloat(b.Right)
	if mixed {
		if err := g.genExprCoerceFloat(b.Left); err != nil {
			return false, err
		}
		if err := g.genExprCoerceFloat(b.Right); err != nil {
			return false, err
		}
		g.emitOp(bytecode.FSUB)
		g.emitOp(bytecode.FP_TO_INT)
	} else {
		if err := g.genExprCoerceInt(b.Left); err != nil {
			return false, err
		}
		if err := g.genExprCoerceInt(b.Right); err != nil {
			return false, err
		}
		g.emitOp(bytecode.SUB)
	}
	jumpOp := bytecode.JZ
	if b.Op == "!=" {
		jumpOp = bytecode.JNZ
	}
	g.emitTrueFalsePush(jumpOp)
	return false, nil
}

// emitTrueFalsePush emits: <condJump> true; PUSH 0; JMP end; true: PUSH 1; end:
func (g *Generator) emitTrueFalsePush(condJump bytecode.Op) {
	trueLabel := g.newLabel("cmp_true")
	endLabel := g.newLabel("cmp_end")
	g.emitOpLabel(condJump, trueLabel)
	g.emitOpInt32(bytecode.PUSH, 0)
	g.emitOpLabel(bytecode.JMP, endLabel)
	g.defineLabelHere(trueLabel)
	g.emitOpInt32(bytecode.PUSH, 1)
	g.defineLabelHere(endLabel)
}

func (g *Generator) genLogicalAnd(b *ast.BinaryOp) (bool, error) {
	falseLabel := g.newLabel("and_false")
	endLabel := g.newLabel("and_end")
	if err := g.genExprCoerceInt(b.Left); err != nil {
		return false, err
	}
	g.emitOpLabel(bytecode.JZ, falseLabel)
	if err := g.genExprCoerceInt(b.Right); err != nil {
		return false, err
	}
	g.emitOpLabel(bytecode.JZ, falseLabel)
	g.emitOpInt32(bytecode.PUSH, 1)
	g.emitOpLabel(bytecode.JMP, endLabel)
	g.defineLabelHere(falseLabel)
	g.emitOpInt32(bytecode.PUSH, 0)
	g.defineLabelHere(endLabel)
	return false, nil
}

func (g *Generator) genLogicalOr(b *ast.BinaryOp) (bool, error) {
	trueLabel := g.newLabel("or_true")
	endLabel := g.newLabel("or_end")
	if err := g.genExprCoerceInt(b.Left); err != nil {
		return false, err
	}
	g.emitOpLabel(bytecode.JNZ, trueLabel)
	if err := g.genExprCoerceInt(b.Right); err != nil {
		return false, err
	}
	g.emitOpLabel(bytecode.JNZ, trueLabel)
	g.emitOpInt32(bytecode.PUSH, 0)
	g.emitOpLabel(bytecode.JMP, endLabel)
	g.defineLabelHere(trueLabel)
	g.emitOpInt32(bytecode.PUSH, 1)
	g.defineLabelHere(endLabel)
	return false, nil
}

//
// Stream operators: std::cout << ... and std::cin >> ...
//

func (g *Generator) flattenStreamChain(b *ast.BinaryOp, receiver string) ([]ast.Expr, bool) {
	if left, ok := b.Left.(*ast.BinaryOp); ok && left.Op == b.Op {
		operands, base := g.flattenStreamChain(left, receiver)
		if !base {
			return nil, false
		}
		return append(operands, b.Right), true
	}
	if id, ok := b.Left.(*ast.Identifier); ok && id.Name == receiver {
		return []ast.Expr{b.Right}, true
	}
	return nil, false
}

func (g *Generator) genCoutChain(operands []ast.Expr) (bool, error) {
	for _, operand := range operands {
		if id, ok := operand.(*ast.Identifier); ok && id.Name == "std::endl" {
			idx := g.addString("\n")
			g.emitOpInt32(bytecode.PUSH_STR, int32(idx))
			g.emitOp(bytecode.PRINT_STR)
			continue
		}
		if lit, ok := operand.(*ast.Literal); ok && lit.Kind == ast.LitString {
			idx := g.addString(lit.Text)
			g.emitOpInt32(bytecode.PUSH_STR, int32(idx))
			g.emitOp(bytecode.PRINT_STR)
			continue
		}
		isFloat, err := g.genExpr(operand)
		if err != nil {
			return false, err
		}
		if isFloat {
			g.emitOp(bytecode.FPRINT)
		} else {
			g.emitOp(bytecode.PRINT)
		}
	}
	g.emitOpInt32(bytecode.PUSH, 0)
	return false, nil
}

func (g *Generator) genCinChain(operands []ast.Expr) (bool, error) {
	for _, target := range operands {
		g.emitOp(bytecode.INPUT)
		if err := g.genStoreToLValue(target, false); err != nil {
			return false, err
		}
		g.emitOp(bytecode.POP)
	}
	g.emitOpInt32(bytecode.PUSH, 0)
	return false, nil
}

//
// Calls
//

func (g *Generator) genCallExpr(c *ast.CallExpr) (bool, error) {
	id, ok := c.Callee.(*ast.Identifier)
	if !ok {
		g.warn("unsupported call target %T; yielding 0", c.Callee)
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}

	switch id.Name {
	case "print":
		return g.genPrintCall(c.Args, false)
	case "println":
		return g.genPrintCall(c.Args, true)
	case "__new":
		g.emitOpInt32(bytecode.PUSH, 1)
		g.emitOp(bytecode.ALLOC)
		return false, nil
	case "__new_array":
		if len(c.Args) < 2 {
			g.warn("malformed new[] expression; yielding 0")
			g.emitOpInt32(bytecode.PUSH, 0)
			return false, nil
		}
		if err := g.genExprCoerceInt(c.Args[1]); err != nil {
			return false, err
		}
		g.emitOp(bytecode.ALLOC)
		return false, nil
	case "__ternary":
		return g.genTernary(c.Args)
	case "__init_list":
		g.warn("brace-initializer used outside an array declaration; yielding 0")
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}

	if g.sym.IsStruct(id.Name) {
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}

	return g.genUserCall(id.Name, c.Args)
}

func (g *Generator) genPrintCall(args []ast.Expr, newline bool) (bool, error) {
	for _, a := range args {
		if lit, ok := a.(*ast.Literal); ok && lit.Kind == ast.LitString {
			idx := g.addString(lit.Text)
			g.emitOpInt32(bytecode.PUSH_STR, int32(idx))
			g.emitOp(bytecode.PRINT_STR)
			continue
		}
		isFloat, err := g.genExpr(a)
		if err != nil {
			return false, err
		}
		if isFloat {
			g.emitOp(bytecode.FPRINT)
		} else {
			g.emitOp(bytecode.PRINT)
		}
	}
	if newline {
		idx := g.addString("\n")
		g.emitOpInt32(bytecode.PUSH_STR, int32(idx))
		g.emitOp(bytecode.PRINT_STR)
	}
	g.emitOpInt32(bytecode.PUSH, 0)
	return false, nil
}

func (g *Generator) genTernary(args []ast.Expr) (bool, error) {
	if len(args) != 3 {
		g.warn("malformed ternary expression; yielding 0")
		g.emitOpInt32(bytecode.PUSH, 0)
		return false, nil
	}
	if err := g.genExprCoerceInt(args[0]); err != nil {
		return false, err
	}
	elseLabel := g.newLabel("ternary_else")
	endLabel := g.newLabel("ternary_end")
	g.emitOpLabel(bytecode.JZ, elseLabel)
	thenFloat, err := g.genExpr(args[1])
	if err != nil {
		return false, err
	}
	g.emitOpLabel(bytecode.JMP, endLabel)
	g.defineLabelHere(elseLabel)
	elseFloat, err := g.genExpr(args[2])
	if err != nil {
		return false, err
	}
	if thenFloat != elseFloat {
		g.warn("ternary branches disagree on float-ness; result treated as %v", thenFloat)
	}
	g.defineLabelHere(endLabel)
	return thenFloat, nil
}

func (g *Generator) genUserCall(name string, args []ast.Expr) (bool, error) {
	mangled := mangleName(name, len(args))
	for _, a := range args {
		if err := g.genExprCoerceInt(a); err != nil {
			return false, err
		}
	}
	g.emitCallLabel(mangled)
	// Under the return value sit the arguments plus the callee's saved BP
	// (POP_BP does not pop it), so one extra SWAP/POP pair drains that cell.
	for i := 0; i <= len(args); i++ {
		g.emitOp(bytecode.SWAP)
		g.emitOp(bytecode.POP)
	}
	return false, nil
}
