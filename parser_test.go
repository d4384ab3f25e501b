package vidpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser_LinearPipeline(t *testing.T) {
	prog, err := Parse("test", "src -> op -> sink")
	require.NoError(t, err)
	require.IsType(t, &Seq{}, prog.Expression)

	outer := prog.Expression.(*Seq)
	left, ok := outer.Left.(*Seq)
	require.True(t, ok)
	assert.Equal(t, "src", left.Left.(*Call).Name)
	assert.Equal(t, "op", left.Right.(*Call).Name)
	assert.Equal(t, "sink", outer.Right.(*Call).Name)
}

func TestParser_ParallelFanOut(t *testing.T) {
	prog, err := Parse("test", "src -> (a | b) -> sink")
	require.NoError(t, err)

	outer := prog.Expression.(*Seq)
	group := outer.Left.(*Seq).Right.(*Group)
	par := group.Inner.(*Par)
	require.Len(t, par.Branches, 2)
	assert.Equal(t, "a", par.Branches[0].(*Call).Name)
	assert.Equal(t, "b", par.Branches[1].(*Call).Name)
}

func TestParser_TimedSequence(t *testing.T) {
	prog, err := Parse("test", "A @ 1s -> B @ 1s")
	require.NoError(t, err)

	outer := prog.Expression.(*Seq)
	leftTimed := outer.Left.(*Timed)
	rightTimed := outer.Right.(*Timed)
	assert.Equal(t, 1.0, leftTimed.Seconds)
	assert.Equal(t, 1.0, rightTimed.Seconds)
	assert.Equal(t, "A", leftTimed.Inner.(*Call).Name)
	assert.Equal(t, "B", rightTimed.Inner.(*Call).Name)
}

func TestParser_CallWithParams(t *testing.T) {
	prog, err := Parse("test", `op with (gain: 1.5, label: "x", flag: true, tint: [1, 2, 3])`)
	require.NoError(t, err)

	call := prog.Expression.(*Call)
	assert.Equal(t, 1.5, call.Params["gain"].Number)
	assert.Equal(t, "x", call.Params["label"].Str)
	assert.Equal(t, true, call.Params["flag"].Bool)
	assert.Equal(t, [3]float64{1, 2, 3}, call.Params["tint"].Triple)
}

func TestParser_PipelineDefinitionAndUse(t *testing.T) {
	prog, err := Parse("test", "pipeline P = src -> sink\nP")
	require.NoError(t, err)
	require.Len(t, prog.Definitions, 1)
	assert.Equal(t, "P", prog.Definitions[0].Name)
	assert.False(t, prog.trailingDefOnly)
	assert.Equal(t, "P", prog.Expression.(*Call).Name)
}

func TestParser_TrailingDefinitionOnlyIsFlagged(t *testing.T) {
	prog, err := Parse("test", "pipeline P = src -> sink")
	require.NoError(t, err)
	assert.True(t, prog.trailingDefOnly)
}

func TestParser_UnexpectedTokenIsAParseError(t *testing.T) {
	_, err := Parse("test", "-> sink")
	require.Error(t, err)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestParser_MissingClosingParenIsAnError(t *testing.T) {
	_, err := Parse("test", "(src -> sink")
	require.Error(t, err)
}

func TestParser_DeprecatedAliasLexesAsPipe(t *testing.T) {
	prog, err := Parse("test", "src -> (a &> b) -> sink")
	require.NoError(t, err)
	outer := prog.Expression.(*Seq)
	group := outer.Left.(*Seq).Right.(*Group)
	_, ok := group.Inner.(*Par)
	assert.True(t, ok)
}
