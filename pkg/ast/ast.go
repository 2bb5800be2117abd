// Package ast defines the tagged-node tree the parser builds and the code
// generator walks. Every node carries the source line and column where it
// began, for diagnostics.
package ast

import (
	"fmt"
	"strings"

	"tinycxx/pkg/token"
)

// Pos is embedded in every node to carry source position.
type Pos struct {
	Line   int
	Column int
}

// Node is implemented by every declaration, statement, and expression.
type Node interface {
	String() string
	Position() Pos
}

// Decl is implemented by declaration nodes.
type Decl interface {
	Node
	declNode()
}

// Stmt is implemented by statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by every node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Program is the root of every compilation unit.
type Program struct {
	Pos
	Top []Node // top-level Decl or Stmt entries, in source order
}

func (p *Program) String() string { return fmt.Sprintf("Program(top=%d)", len(p.Top)) }
func (p *Program) Position() Pos  { return p.Pos }

//
// Declarations
//

// Param is one formal parameter of a FunctionDecl: (type tokens, name).
type Param struct {
	TypeTokens []token.Token
	Name       string
}

// VarDecl declares a single variable, optionally with an initializer.
type VarDecl struct {
	Pos
	TypeTokens  []token.Token
	Name        string
	Initializer Expr // may be nil
	IsPointer   bool
	IsReference bool
	IsArray     bool
	ArraySize   Expr // may be nil even when IsArray (unsized array parameter)
}

func (*VarDecl) declNode() {}
func (d *VarDecl) String() string {
	return fmt.Sprintf("VarDecl(%s, ptr=%v, arr=%v, init=%v)", d.Name, d.IsPointer, d.IsArray, d.Initializer)
}
func (d *VarDecl) Position() Pos { return d.Pos }

// FunctionDecl declares (and optionally defines) a function or method.
type FunctionDecl struct {
	Pos
	ReturnTypeTokens []token.Token
	Name             string // "ClassName::methodName" for member functions
	Params           []Param
	Body             *Block // nil for a prototype with no body
	IsConst          bool
}

func (*FunctionDecl) declNode() {}
func (f *FunctionDecl) String() string {
	return fmt.Sprintf("FunctionDecl(%s, params=%d, hasBody=%v)", f.Name, len(f.Params), f.Body != nil)
}
func (f *FunctionDecl) Position() Pos { return f.Pos }

// ClassDecl declares a class with members and an optional base-class list.
type ClassDecl struct {
	Pos
	Name        string
	Members     []Node
	BaseClasses []string
}

func (*ClassDecl) declNode() {}
func (c *ClassDecl) String() string {
	return fmt.Sprintf("ClassDecl(%s, members=%d, bases=%v)", c.Name, len(c.Members), c.BaseClasses)
}
func (c *ClassDecl) Position() Pos { return c.Pos }

// StructDecl declares a struct with members.
type StructDecl struct {
	Pos
	Name    string
	Members []Node
}

func (*StructDecl) declNode() {}
func (s *StructDecl) String() string {
	return fmt.Sprintf("StructDecl(%s, members=%d)", s.Name, len(s.Members))
}
func (s *StructDecl) Position() Pos { return s.Pos }

// NamespaceDecl declares a named namespace enclosing further declarations.
type NamespaceDecl struct {
	Pos
	Name string
	Body []Node
}

func (*NamespaceDecl) declNode() {}
func (n *NamespaceDecl) String() string {
	return fmt.Sprintf("NamespaceDecl(%s, body=%d)", n.Name, len(n.Body))
}
func (n *NamespaceDecl) Position() Pos { return n.Pos }

// TemplateParam is one entry of a template parameter list: (typename|class) Name [= default].
type TemplateParam struct {
	Name    string
	Default string
}

// TemplateDecl wraps a declaration with a template parameter list.
type TemplateDecl struct {
	Pos
	Params      []TemplateParam
	Declaration Node
}

func (*TemplateDecl) declNode() {}
func (t *TemplateDecl) String() string {
	return fmt.Sprintf("TemplateDecl(params=%d, decl=%v)", len(t.Params), t.Declaration)
}
func (t *TemplateDecl) Position() Pos { return t.Pos }

// AccessKind enumerates public/private/protected.
type AccessKind int

const (
	AccessPublic AccessKind = iota
	AccessPrivate
	AccessProtected
)

func (a AccessKind) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessPrivate:
		return "private"
	case AccessProtected:
		return "protected"
	default:
		return "unknown"
	}
}

// AccessSpec marks subsequent class members with an access level.
type AccessSpec struct {
	Pos
	Kind AccessKind
}

func (*AccessSpec) declNode() {}
func (a *AccessSpec) String() string { return fmt.Sprintf("AccessSpec(%s)", a.Kind) }
func (a *AccessSpec) Position() Pos  { return a.Pos }

// IncludeDirective represents a preprocessor #include line.
type IncludeDirective struct {
	Pos
	File     string
	IsSystem bool
}

func (*IncludeDirective) declNode() {}
func (i *IncludeDirective) String() string {
	if i.IsSystem {
		return fmt.Sprintf("IncludeDirective(<%s>)", i.File)
	}
	return fmt.Sprintf("IncludeDirective(%q)", i.File)
}
func (i *IncludeDirective) Position() Pos { return i.Pos }

// UsingDirective represents "using namespace X;" or "using X::Y;".
type UsingDirective struct {
	Pos
	NamespaceName string
}

func (*UsingDirective) declNode() {}
func (u *UsingDirective) String() string { return fmt.Sprintf("UsingDirective(%s)", u.NamespaceName) }
func (u *UsingDirective) Position() Pos  { return u.Pos }

//
// Statements
//

// Block is a brace-delimited statement sequence.
type Block struct {
	Pos
	Stmts []Node // Decl or Stmt
}

func (*Block) stmtNode() {}
func (b *Block) String() string { return fmt.Sprintf("Block(len=%d)", len(b.Stmts)) }
func (b *Block) Position() Pos  { return b.Pos }

// If is a conditional with an optional else arm.
type If struct {
	Pos
	Cond Expr
	Then Node
	Else Node // may be nil
}

func (*If) stmtNode() {}
func (i *If) String() string {
	return fmt.Sprintf("If(%s then %s else %v)", i.Cond, i.Then, i.Else)
}
func (i *If) Position() Pos { return i.Pos }

// While is a pretest loop.
type While struct {
	Pos
	Cond Expr
	Body Node
}

func (*While) stmtNode() {}
func (w *While) String() string { return fmt.Sprintf("While(%s do %s)", w.Cond, w.Body) }
func (w *While) Position() Pos  { return w.Pos }

// For is either the traditional three-clause loop, or a range-based loop
// encoded with Cond == nil and Post set to the range expression.
type For struct {
	Pos
	Init Node // may be nil
	Cond Expr // may be nil
	Post Expr // may be nil; for range-based form this is the ranged expression
	Body Node
}

func (*For) stmtNode() {}
func (f *For) String() string {
	return fmt.Sprintf("For(init=%v, cond=%v, post=%v, body=%s)", f.Init, f.Cond, f.Post, f.Body)
}
func (f *For) Position() Pos { return f.Pos }

// Return optionally carries an expression.
type Return struct {
	Pos
	Expr Expr // may be nil
}

func (*Return) stmtNode() {}
func (r *Return) String() string { return fmt.Sprintf("Return(%v)", r.Expr) }
func (r *Return) Position() Pos  { return r.Pos }

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	Pos
	Expr Expr
}

func (*ExprStmt) stmtNode() {}
func (e *ExprStmt) String() string { return fmt.Sprintf("ExprStmt(%s)", e.Expr) }
func (e *ExprStmt) Position() Pos  { return e.Pos }

//
// Expressions
//

// LiteralKind distinguishes the textual shape of a Literal.
type LiteralKind int

const (
	LitNumber LiteralKind = iota
	LitString
	LitChar
)

// Literal is a constant written directly in source text.
type Literal struct {
	Pos
	Text string
	Kind LiteralKind
}

func (*Literal) exprNode() {}
func (l *Literal) String() string { return l.Text }
func (l *Literal) Position() Pos  { return l.Pos }

// IsFloat reports whether this literal's text denotes a float constant:
// it contains '.', 'e', or 'E' and is not a hex integer.
func (l *Literal) IsFloat() bool {
	if l.Kind != LitNumber {
		return false
	}
	if strings.HasPrefix(l.Text, "0x") || strings.HasPrefix(l.Text, "0X") {
		return false
	}
	return strings.ContainsAny(l.Text, ".eE")
}

// Identifier is a name reference, possibly qualified (A::B::C folded into Name).
type Identifier struct {
	Pos
	Name string
}

func (*Identifier) exprNode() {}
func (i *Identifier) String() string { return i.Name }
func (i *Identifier) Position() Pos  { return i.Pos }

// UnaryOp is a prefix operator, or a postfix ++/-- (Op carries the suffix
// "++_post"/"--_post" in that case).
type UnaryOp struct {
	Pos
	Op      string
	Operand Expr
}

func (*UnaryOp) exprNode() {}
func (u *UnaryOp) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.Operand) }
func (u *UnaryOp) Position() Pos  { return u.Pos }

// BinaryOp is a two-operand operator, including assignment ("=").
type BinaryOp struct {
	Pos
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryOp) exprNode() {}
func (b *BinaryOp) String() string { return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right) }
func (b *BinaryOp) Position() Pos  { return b.Pos }

// CallExpr is callee(args).
type CallExpr struct {
	Pos
	Callee Expr
	Args   []Expr
}

func (*CallExpr) exprNode() {}
func (c *CallExpr) String() string { return fmt.Sprintf("Call(%s, args=%v)", c.Callee, c.Args) }
func (c *CallExpr) Position() Pos  { return c.Pos }

// MemberAccess is object.member or object->member.
type MemberAccess struct {
	Pos
	Object Expr
	Member string
	Arrow  bool
}

func (*MemberAccess) exprNode() {}
func (m *MemberAccess) String() string {
	sep := "."
	if m.Arrow {
		sep = "->"
	}
	return fmt.Sprintf("(%s%s%s)", m.Object, sep, m.Member)
}
func (m *MemberAccess) Position() Pos { return m.Pos }

// ArraySubscript is array[index].
type ArraySubscript struct {
	Pos
	Array Expr
	Index Expr
}

func (*ArraySubscript) exprNode() {}
func (a *ArraySubscript) String() string { return fmt.Sprintf("(%s[%s])", a.Array, a.Index) }
func (a *ArraySubscript) Position() Pos  { return a.Pos }
