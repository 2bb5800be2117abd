// Package token defines the lexical vocabulary consumed by the parser.
package token

import "fmt"

// Kind identifies the category of a lexed token.
type Kind int

const (
	EOF Kind = iota // sentinel: end of input

	// Literals
	IDENTIFIER
	NUMBER // integer or floating literal; float-ness is decided by text shape
	STRING
	CHARACTER

	// Keywords (control flow, OOP, memory, namespace, casting)
	KEYWORD

	// Type specifiers: void/char/short/int/long/float/double/signed/unsigned/class/struct/union/enum/typedef
	TYPE_SPECIFIER
	// Storage-class words: static/extern/auto/register
	STORAGE_CLASS
	// Type-qualifier words: const/volatile
	TYPE_QUALIFIER
	// Access-specifier words: public/private/protected
	ACCESS_SPECIFIER

	// Preprocessor line, e.g. "#include <iostream>"
	PREPROCESSOR

	// Generic operator, for anything not broken out into its own kind below.
	OPERATOR

	// Brackets / separators
	LPAREN
	RPAREN
	LBRACE
	RBRACE
	LBRACKET
	RBRACKET
	COMMA
	SEMICOLON
	COLON
	DOT

	// Composite operators the parser depends on having dedicated kinds.
	LESS          // <
	GREATER       // >
	LESS_EQUAL    // <=
	GREATER_EQUAL // >=
	LEFT_SHIFT    // <<
	RIGHT_SHIFT   // >>
	ARROW         // ->
	ARROW_STAR    // ->*
	DOT_STAR      // .*
	SCOPE_RES     // ::
	ELLIPSIS      // ...

	UNKNOWN
)

var kindNames = [...]string{
	EOF:              "EOF",
	IDENTIFIER:       "IDENTIFIER",
	NUMBER:           "NUMBER",
	STRING:           "STRING",
	CHARACTER:        "CHARACTER",
	KEYWORD:          "KEYWORD",
	TYPE_SPECIFIER:   "TYPE_SPECIFIER",
	STORAGE_CLASS:    "STORAGE_CLASS",
	TYPE_QUALIFIER:   "TYPE_QUALIFIER",
	ACCESS_SPECIFIER: "ACCESS_SPECIFIER",
	PREPROCESSOR:     "PREPROCESSOR",
	OPERATOR:         "OPERATOR",
	LPAREN:           "LPAREN",
	RPAREN:           "RPAREN",
	LBRACE:           "LBRACE",
	RBRACE:           "RBRACE",
	LBRACKET:         "LBRACKET",
	RBRACKET:         "RBRACKET",
	COMMA:            "COMMA",
	SEMICOLON:        "SEMICOLON",
	COLON:            "COLON",
	DOT:              "DOT",
	LESS:             "LESS",
	GREATER:          "GREATER",
	LESS_EQUAL:       "LESS_EQUAL",
	GREATER_EQUAL:    "GREATER_EQUAL",
	LEFT_SHIFT:       "LEFT_SHIFT",
	RIGHT_SHIFT:      "RIGHT_SHIFT",
	ARROW:            "ARROW",
	ARROW_STAR:       "ARROW_STAR",
	DOT_STAR:         "DOT_STAR",
	SCOPE_RES:        "SCOPE_RES",
	ELLIPSIS:         "ELLIPSIS",
	UNKNOWN:          "UNKNOWN",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Kind   Kind
	Lexeme string // source text; string/char literals hold their unescaped contents without quotes; "::" is a separate token
	Line   int    // 1-based
	Column int    // 1-based
}

func (t Token) String() string {
	return fmt.Sprintf("%-16s %-14q line %d col %d", t.Kind, t.Lexeme, t.Line, t.Column)
}

// TypeSpecifiers is the fixed vocabulary recognized as base-type keywords.
var TypeSpecifiers = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"class": true, "struct": true, "union": true, "enum": true, "typedef": true,
}

// StorageClasses is the fixed vocabulary recognized as storage-class keywords.
var StorageClasses = map[string]bool{
	"static": true, "extern": true, "auto": true, "register": true,
}

// TypeQualifiers is the fixed vocabulary recognized as type-qualifier keywords.
var TypeQualifiers = map[string]bool{
	"const": true, "volatile": true,
}

// AccessSpecifiers is the fixed vocabulary recognized as access-specifier keywords.
var AccessSpecifiers = map[string]bool{
	"public": true, "private": true, "protected": true,
}

// Keywords is every other reserved word (control flow, OOP, memory management, casting, namespaces).
var Keywords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "do": true,
	"switch": true, "case": true, "default": true, "break": true, "continue": true,
	"return": true, "goto": true,
	"try": true, "catch": true, "throw": true,
	"this": true, "virtual": true, "explicit": true, "friend": true, "inline": true,
	"operator": true, "template": true, "typename": true, "mutable": true,
	"namespace": true, "using": true,
	"dynamic_cast": true, "static_cast": true, "const_cast": true, "reinterpret_cast": true, "typeid": true,
	"new": true, "delete": true, "sizeof": true,
	"asm": true, "export": true, "wchar_t": true, "bool": true, "true": true, "false": true,
}
