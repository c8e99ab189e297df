package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
		code Code
	}{
		{Unknown, "unknown", E000},
		{Lexical, "lexical", E100},
		{Syntax, "syntax", E101},
		{Semantic, "semantic", E200},
		{Resource, "resource", E201},
		{Evaluation, "evaluation", E300},
		{Domain, "domain", E301},
		{Kind(42), "Kind(42)", E000},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
			assert.Equal(t, tt.code, tt.kind.Code())
		})
	}
}
