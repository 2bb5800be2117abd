package parser

import (
	"testing"

	"github.com/nalgeon/be"

	"tinycxx/pkg/ast"
	"tinycxx/pkg/lexer"
)

func parseSrc(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Lex(src, "t.cpp")
	be.Err(t, err, nil)
	prog, err := Parse(toks, src)
	be.Err(t, err, nil)
	return prog
}

func TestParseVarDeclWithInitializer(t *testing.T) {
	prog := parseSrc(t, "int a = 3;")
	be.Equal(t, len(prog.Top), 1)
	decl, ok := prog.Top[0].(*ast.VarDecl)
	be.Equal(t, ok, true)
	be.Equal(t, decl.Name, "a")
	lit, ok := decl.Initializer.(*ast.Literal)
	be.Equal(t, ok, true)
	be.Equal(t, lit.Text, "3")
}

func TestParseArrayDeclaration(t *testing.T) {
	prog := parseSrc(t, "int xs[5];")
	decl := prog.Top[0].(*ast.VarDecl)
	be.Equal(t, decl.IsArray, true)
	size, ok := decl.ArraySize.(*ast.Literal)
	be.Equal(t, ok, true)
	be.Equal(t, size.Text, "5")
}

func TestParseFunctionDeclWithParams(t *testing.T) {
	prog := parseSrc(t, "int add(int a, int b) { return a + b; }")
	fn, ok := prog.Top[0].(*ast.FunctionDecl)
	be.Equal(t, ok, true)
	be.Equal(t, fn.Name, "add")
	be.Equal(t, len(fn.Params), 2)
	be.Equal(t, fn.Params[0].Name, "a")
	be.Equal(t, fn.Params[1].Name, "b")
	be.Equal(t, len(fn.Body.Stmts), 1)
	ret, ok := fn.Body.Stmts[0].(*ast.Return)
	be.Equal(t, ok, true)
	bin, ok := ret.Expr.(*ast.BinaryOp)
	be.Equal(t, ok, true)
	be.Equal(t, bin.Op, "+")
}

func TestParseCompoundAssignmentKeepsCompoundOperator(t *testing.T) {
	prog := parseSrc(t, "void f() { term /= i; }")
	fn := prog.Top[0].(*ast.FunctionDecl)
	stmt := fn.Body.Stmts[0].(*ast.ExprStmt)
	bin, ok := stmt.Expr.(*ast.BinaryOp)
	be.Equal(t, ok, true)
	be.Equal(t, bin.Op, "/=")
	left, ok := bin.Left.(*ast.Identifier)
	be.Equal(t, ok, true)
	be.Equal(t, left.Name, "term")
}

func TestParseIfElse(t *testing.T) {
	prog := parseSrc(t, "void f() { if (a < b) return; else return; }")
	fn := prog.Top[0].(*ast.FunctionDecl)
	ifStmt, ok := fn.Body.Stmts[0].(*ast.If)
	be.Equal(t, ok, true)
	cmp, ok := ifStmt.Cond.(*ast.BinaryOp)
	be.Equal(t, ok, true)
	be.Equal(t, cmp.Op, "<")
	be.Equal(t, ifStmt.Else != nil, true)
}

func TestParseWhileLoop(t *testing.T) {
	prog := parseSrc(t, "void f() { while (i < 10) { i = i + 1; } }")
	fn := prog.Top[0].(*ast.FunctionDecl)
	w, ok := fn.Body.Stmts[0].(*ast.While)
	be.Equal(t, ok, true)
	body, ok := w.Body.(*ast.Block)
	be.Equal(t, ok, true)
	be.Equal(t, len(body.Stmts), 1)
}

func TestParseTraditionalForLoop(t *testing.T) {
	prog := parseSrc(t, "void f() { for (int i = 0; i < 10; i = i + 1) {} }")
	fn := prog.Top[0].(*ast.FunctionDecl)
	forStmt, ok := fn.Body.Stmts[0].(*ast.For)
	be.Equal(t, ok, true)
	be.Equal(t, forStmt.Init != nil, true)
	be.Equal(t, forStmt.Cond != nil, true)
	be.Equal(t, forStmt.Post != nil, true)
}

func TestParseStreamOutputChain(t *testing.T) {
	prog := parseSrc(t, `void f() { std::cout << "hi" << x; }`)
	fn := prog.Top[0].(*ast.FunctionDecl)
	stmt := fn.Body.Stmts[0].(*ast.ExprStmt)
	bin, ok := stmt.Expr.(*ast.BinaryOp)
	be.Equal(t, ok, true)
	be.Equal(t, bin.Op, "<<")
}

func TestParseNewExpression(t *testing.T) {
	prog := parseSrc(t, "void f() { int* p = new int; }")
	fn := prog.Top[0].(*ast.FunctionDecl)
	decl := fn.Body.Stmts[0].(*ast.VarDecl)
	call, ok := decl.Initializer.(*ast.CallExpr)
	be.Equal(t, ok, true)
	callee, ok := call.Callee.(*ast.Identifier)
	be.Equal(t, ok, true)
	be.Equal(t, callee.Name, "__new")
}

func TestParseTernaryExpression(t *testing.T) {
	prog := parseSrc(t, "void f() { int x = a > b ? a : b; }")
	fn := prog.Top[0].(*ast.FunctionDecl)
	decl := fn.Body.Stmts[0].(*ast.VarDecl)
	call, ok := decl.Initializer.(*ast.CallExpr)
	be.Equal(t, ok, true)
	callee := call.Callee.(*ast.Identifier)
	be.Equal(t, callee.Name, "__ternary")
	be.Equal(t, len(call.Args), 3)
}

func TestParseClassWithMembers(t *testing.T) {
	prog := parseSrc(t, "class Point { public: int x; int y; };")
	cls, ok := prog.Top[0].(*ast.ClassDecl)
	be.Equal(t, ok, true)
	be.Equal(t, cls.Name, "Point")
}

func TestParseClassMemberMethodNameIsQualifiedWithClassName(t *testing.T) {
	prog := parseSrc(t, "class Point { public: int getValue() { return 1; } };")
	cls, ok := prog.Top[0].(*ast.ClassDecl)
	be.Equal(t, ok, true)
	var method *ast.FunctionDecl
	for _, m := range cls.Members {
		if fn, ok := m.(*ast.FunctionDecl); ok {
			method = fn
		}
	}
	be.Equal(t, method != nil, true)
	be.Equal(t, method.Name, "Point::getValue")
}

func TestParseSameNamedMethodsOnDifferentClassesDoNotCollide(t *testing.T) {
	prog := parseSrc(t, `
		class A { public: int getValue() { return 1; } };
		class B { public: int getValue() { return 2; } };
	`)
	var names []string
	for _, top := range prog.Top {
		cls, ok := top.(*ast.ClassDecl)
		be.Equal(t, ok, true)
		for _, m := range cls.Members {
			if fn, ok := m.(*ast.FunctionDecl); ok {
				names = append(names, fn.Name)
			}
		}
	}
	be.Equal(t, names, []string{"A::getValue", "B::getValue"})
}

func TestParseMissingSemicolonIsError(t *testing.T) {
	toks, err := lexer.Lex("int a", "t.cpp")
	be.Err(t, err, nil)
	_, err = Parse(toks, "int a")
	be.Equal(t, err != nil, true)
}

func TestParseRecursiveFunctionCall(t *testing.T) {
	prog := parseSrc(t, "int fact(int n) { return n * fact(n - 1); }")
	fn := prog.Top[0].(*ast.FunctionDecl)
	ret := fn.Body.Stmts[0].(*ast.Return)
	bin := ret.Expr.(*ast.BinaryOp)
	be.Equal(t, bin.Op, "*")
	call, ok := bin.Right.(*ast.CallExpr)
	be.Equal(t, ok, true)
	callee := call.Callee.(*ast.Identifier)
	be.Equal(t, callee.Name, "fact")
}
