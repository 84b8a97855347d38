package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/tether/lang/scanner"
	"github.com/mna/tether/lang/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	sc := scanner.New(src)
	var toks []token.Token
	for {
		tok := sc.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, tok := range toks {
		ks[i] = tok.Kind
	}
	return ks
}

func TestScanPunctuationAndOperators(t *testing.T) {
	toks := scanAll(t, `+ - * / % = == != < > <= >= += -= *= /= %= && || ! { } ( ) [ ] , . ;`)
	require.Equal(t, []token.Kind{
		token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT,
		token.ASSIGN, token.EQ, token.NEQ, token.LT, token.GT, token.LE, token.GE,
		token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ, token.PERCENT_EQ,
		token.AND, token.OR, token.NOT,
		token.LBRACE, token.RBRACE, token.LPAREN, token.RPAREN, token.LBRACK, token.RBRACK,
		token.COMMA, token.DOT, token.SEMI,
		token.EOF,
	}, kinds(toks))
}

func TestScanKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, `var while if else func return print true false none list foo_bar`)
	require.Equal(t, []token.Kind{
		token.VAR, token.WHILE, token.IF, token.ELSE, token.FUNC, token.RETURN,
		token.PRINT, token.TRUE, token.FALSE, token.NONE, token.LIST, token.IDENT,
		token.EOF,
	}, kinds(toks))
	assert.Equal(t, "foo_bar", toks[11].Lit)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, `42 3.14 2.len`)
	require.Equal(t, []token.Kind{
		token.INT, token.FLOAT, token.INT, token.DOT, token.IDENT, token.EOF,
	}, kinds(toks))
	assert.Equal(t, "42", toks[0].Lit)
	assert.Equal(t, "3.14", toks[1].Lit)
	assert.Equal(t, "2", toks[2].Lit)
}

func TestScanString(t *testing.T) {
	toks := scanAll(t, `"hello world"`)
	require.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Lit)
}

func TestScanUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"hello`)
	require.Equal(t, token.ILLEGAL, toks[0].Kind)
}

func TestScanEOFIsSticky(t *testing.T) {
	sc := scanner.New("")
	first := sc.Next()
	second := sc.Next()
	assert.Equal(t, token.EOF, first.Kind)
	assert.Equal(t, token.EOF, second.Kind)
}

func TestPositionOf(t *testing.T) {
	src := "line1\nline2\nline3"
	pos := token.PositionOf(src, 8) // 'n' in "line2"
	assert.Equal(t, token.Position{Line: 2, Column: 3}, pos)
}
