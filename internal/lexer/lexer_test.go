package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ec-lang/ec/internal/token"
)

func TestNumbers(t *testing.T) {
	input := `3 43 0x1F 0b101 3.14`

	want := []struct {
		kind token.Kind
		lit  string
	}{
		{token.INT, "3"},
		{token.INT, "43"},
		{token.INT, "0x1F"},
		{token.INT, "0b101"},
		{token.FLOAT, "3.14"},
		{token.EOF, ""},
	}

	l := New(input)
	for i, w := range want {
		tok := l.NextToken()
		assert.Equalf(t, w.kind, tok.Kind, "token %d kind", i)
		assert.Equalf(t, w.lit, tok.Lexeme, "token %d lexeme", i)
	}
}

func TestKeywordsAreCaseInsensitive(t *testing.T) {
	l := New(`Print PRINT print`)
	for i := 0; i < 3; i++ {
		tok := l.NextToken()
		require.Equal(t, token.KEYWORD, tok.Kind)
		assert.Equal(t, "print", tok.Lexeme)
	}
}

func TestIdentifiersPreserveCase(t *testing.T) {
	l := New(`MyVariable`)
	tok := l.NextToken()
	require.Equal(t, token.IDENT, tok.Kind)
	assert.Equal(t, "MyVariable", tok.Raw)
}

func TestPossessive(t *testing.T) {
	l := New(`dog's hour`)
	tokens := []token.Token{l.NextToken(), l.NextToken(), l.NextToken()}
	require.Equal(t, token.IDENT, tokens[0].Kind)
	require.Equal(t, token.POSSESSIVE, tokens[1].Kind)
	require.Equal(t, token.KEYWORD, tokens[2].Kind)
}

func TestNestedComments(t *testing.T) {
	l := New(`1 (a comment (nested) still comment) 2`)
	first := l.NextToken()
	second := l.NextToken()
	require.Equal(t, "1", first.Lexeme)
	require.Equal(t, "2", second.Lexeme)
	assert.Empty(t, l.Errors())
}

func TestUnterminatedComment(t *testing.T) {
	l := New(`1 (never closes`)
	l.NextToken()
	tok := l.NextToken()
	require.Equal(t, token.EOF, tok.Kind)
	require.Len(t, l.Errors(), 1)
	assert.Contains(t, l.Errors()[0].Message, "unterminated comment")
}

func TestUnterminatedString(t *testing.T) {
	l := New(`"never closes`)
	tok := l.NextToken()
	require.Equal(t, token.ILLEGAL, tok.Kind)
	require.Len(t, l.Errors(), 1)
}

func TestCharLiteral(t *testing.T) {
	l := New(`'A'`)
	tok := l.NextToken()
	require.Equal(t, token.CHAR, tok.Kind)
	assert.Equal(t, "A", tok.Lexeme)
}

func TestPunctuation(t *testing.T) {
	l := New(`. , [ ] ( )`)
	// "( )" is an (empty) comment, so it yields no tokens.
	want := []token.Kind{token.DOT, token.COMMA, token.LBRACKET, token.RBRACKET, token.EOF}
	for _, k := range want {
		tok := l.NextToken()
		assert.Equal(t, k, tok.Kind)
	}
}

func TestFormatEscapesPassThrough(t *testing.T) {
	l := New(`"{{literal}} {value}"`)
	tok := l.NextToken()
	require.Equal(t, token.STRING, tok.Kind)
	assert.Equal(t, `{{literal}} {value}`, tok.Raw)
}
