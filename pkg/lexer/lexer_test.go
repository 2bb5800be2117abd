package lexer

import (
	"testing"

	"github.com/nalgeon/be"

	"tinycxx/pkg/token"
)

func kinds(toks []token.Token) []token.Kind {
	var ks []token.Kind
	for _, tk := range toks {
		ks = append(ks, tk.Kind)
	}
	return ks
}

func TestLexIntDeclaration(t *testing.T) {
	toks, err := Lex("int a = 3;", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, kinds(toks), []token.Kind{
		token.TYPE_SPECIFIER, token.IDENTIFIER, token.OPERATOR, token.NUMBER, token.SEMICOLON, token.EOF,
	})
}

func TestLexFloatLiteralShapes(t *testing.T) {
	toks, err := Lex("3.14 2e10 5f", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Lexeme, "3.14")
	be.Equal(t, toks[1].Lexeme, "2e10")
	be.Equal(t, toks[2].Lexeme, "5f")
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := Lex(`"hi\n"`, "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Kind, token.STRING)
	be.Equal(t, toks[0].Lexeme, "hi\n")
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	_, err := Lex(`"unterminated`, "t.cpp")
	be.Equal(t, err != nil, true)
}

func TestLexCharacterLiteral(t *testing.T) {
	toks, err := Lex(`'a'`, "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Kind, token.CHARACTER)
	be.Equal(t, toks[0].Lexeme, "a")
}

func TestLexStreamOperators(t *testing.T) {
	toks, err := Lex("std::cout << a;", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, kinds(toks), []token.Kind{
		token.IDENTIFIER, token.SCOPE_RES, token.IDENTIFIER, token.LEFT_SHIFT,
		token.IDENTIFIER, token.SEMICOLON, token.EOF,
	})
}

func TestLexCompoundAssignmentOperators(t *testing.T) {
	toks, err := Lex("a += 1; b /= 2;", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[1].Lexeme, "+=")
	be.Equal(t, toks[1].Kind, token.OPERATOR)
	be.Equal(t, toks[5].Lexeme, "/=")
}

func TestLexLineAndBlockComments(t *testing.T) {
	toks, err := Lex("int a; // trailing\n/* block */ int b;", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, len(toks), 7) // int a ; int b ; EOF
}

func TestLexUnterminatedBlockCommentErrors(t *testing.T) {
	_, err := Lex("/* never closed", "t.cpp")
	be.Equal(t, err != nil, true)
}

func TestLexKeywordsAndAccessSpecifiers(t *testing.T) {
	toks, err := Lex("public: if (x) return;", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Kind, token.ACCESS_SPECIFIER)
	be.Equal(t, toks[2].Kind, token.KEYWORD)
	be.Equal(t, toks[6].Kind, token.KEYWORD)
}

func TestLexHexLiteral(t *testing.T) {
	toks, err := Lex("0x1F", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Kind, token.NUMBER)
	be.Equal(t, toks[0].Lexeme, "0x1F")
}

func TestLexTracksLineAndColumn(t *testing.T) {
	toks, err := Lex("int a;\nint b;", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[0].Line, 1)
	be.Equal(t, toks[3].Line, 2)
}

func TestLexArrowAndScopeResolution(t *testing.T) {
	toks, err := Lex("p->x; A::B;", "t.cpp")
	be.Err(t, err, nil)
	be.Equal(t, toks[1].Kind, token.ARROW)
	be.Equal(t, toks[5].Kind, token.SCOPE_RES)
}
