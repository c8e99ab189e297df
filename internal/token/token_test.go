package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupIdent(t *testing.T) {
	tests := []struct {
		ident string
		want  Token
	}{
		{"sin", F_SIN},
		{"cos", F_COS},
		{"tan", F_TAN},
		{"exp", F_EXP},
		{"log", F_LOG},
		{"sqrt", F_SQRT},
		{"abs", F_ABS},
		{"pow", F_POW},
		{"x", NAME},
		{"Sin", NAME},
		{"sinh", NAME},
		{"_log", NAME},
	}

	for _, tt := range tests {
		t.Run(tt.ident, func(t *testing.T) {
			assert.Equal(t, tt.want, LookupIdent(tt.ident))
		})
	}
}

func TestTokenClasses(t *testing.T) {
	for _, tok := range []Token{ADD, SUB, MUL, DIV, POW} {
		assert.True(t, tok.IsOperator(), tok.String())
		assert.False(t, tok.IsBuiltin(), tok.String())
	}
	for _, name := range BuiltinNames() {
		tok := LookupBuiltin(name)
		assert.True(t, tok.IsBuiltin(), name)
		assert.Equal(t, name, tok.String())
		assert.True(t, IsBuiltinName(name))
	}
	assert.Equal(t, ILLEGAL, LookupBuiltin("x"))
	assert.True(t, NAME.IsLiteral())
	assert.True(t, NUMBER.IsLiteral())
	assert.False(t, LPAREN.IsLiteral())
	assert.Equal(t, "end of expression", EOF.String())
}

func TestPosition(t *testing.T) {
	assert.False(t, NoPos.IsValid())
	p := Position{Line: 1, Column: 5, Offset: 4}
	assert.True(t, p.IsValid())
	assert.Equal(t, "column 5", p.String())
	assert.Equal(t, "2:3", Position{Line: 2, Column: 3}.String())

	span := Span{Start: Position{Line: 1, Column: 1, Offset: 0}, End: Position{Line: 1, Column: 4, Offset: 3}}
	assert.Equal(t, 3, span.Len())
	assert.Equal(t, "sin", span.Text("sin(x)"))
	assert.Equal(t, "", span.Text("si"))
}
