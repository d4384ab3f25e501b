package vidpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Tokenize(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		expect []TokenKind
	}{
		{
			name:   "linear pipeline",
			input:  "src -> op -> sink",
			expect: []TokenKind{TIdent, TArrow, TIdent, TArrow, TIdent, TEOF},
		},
		{
			name:   "parallel fan-out",
			input:  "src -> (a | b) -> sink",
			expect: []TokenKind{TIdent, TArrow, TParOpen, TIdent, TPipe, TIdent, TParClose, TArrow, TIdent, TEOF},
		},
		{
			name:   "timed segment",
			input:  "A @ 1s -> B @ 1s",
			expect: []TokenKind{TIdent, TAt, TNumber, TIdent, TArrow, TIdent, TAt, TNumber, TIdent, TEOF},
		},
		{
			name:   "with params and a triple",
			input:  `op with (gain: 1.5, label: "x", tint: [1, 2, 3])`,
			expect: []TokenKind{TIdent, TKwWith, TParOpen, TIdent, TColon, TNumber, TComma, TIdent, TColon, TString, TComma, TIdent, TColon, TBrackOpen, TNumber, TComma, TNumber, TComma, TNumber, TBrackClose, TParClose, TEOF},
		},
		{
			name:   "async arrow",
			input:  "src ~> sink",
			expect: []TokenKind{TIdent, TAsync, TIdent, TEOF},
		},
		{
			name:   "deprecated parallel aliases collapse to pipe",
			input:  "a &> b +> c",
			expect: []TokenKind{TIdent, TPipe, TIdent, TPipe, TIdent, TEOF},
		},
		{
			name:   "comment to end of line is skipped",
			input:  "src -> sink # trailing comment\n",
			expect: []TokenKind{TIdent, TArrow, TIdent, TEOF},
		},
		{
			name:   "pipeline definition",
			input:  "pipeline A = src -> sink",
			expect: []TokenKind{TKwPipeline, TIdent, TEquals, TIdent, TArrow, TIdent, TEOF},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			toks, err := NewLexer("test", tc.input).Tokenize()
			require.NoError(t, err)
			var kinds []TokenKind
			for _, tok := range toks {
				kinds = append(kinds, tok.Kind)
			}
			assert.Equal(t, tc.expect, kinds)
		})
	}
}

func TestLexer_MalformedNumberIsAnError(t *testing.T) {
	_, err := NewLexer("test", "op with (gain: 1.5.2)").Tokenize()
	require.Error(t, err)
	var lexErr *LexError
	require.ErrorAs(t, err, &lexErr)
}

func TestLexer_UnterminatedStringIsAnError(t *testing.T) {
	_, err := NewLexer("test", `op with (label: "unterminated)`).Tokenize()
	require.Error(t, err)
}

func TestLexer_UnexpectedCharacterIsAnError(t *testing.T) {
	_, err := NewLexer("test", "src -> sink ?").Tokenize()
	require.Error(t, err)
}

func TestLexer_TrackLineAndColumn(t *testing.T) {
	toks, err := NewLexer("test", "a\nb").Tokenize()
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 1, toks[1].Column)
}
