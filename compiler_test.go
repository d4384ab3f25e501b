package vidpipe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopTransform(ctx context.Context, in Frame, params map[string]Literal) (Frame, bool, error) {
	return in, true, nil
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("src", KindSource, noopTransform, nil)
	reg.Register("srcA", KindSource, noopTransform, nil)
	reg.Register("srcB", KindSource, noopTransform, nil)
	reg.Register("op", KindProcessor, noopTransform, nil)
	reg.Register("a", KindProcessor, noopTransform, nil)
	reg.Register("b", KindProcessor, noopTransform, nil)
	reg.Register("sink", KindSink, noopTransform, nil)
	reg.Register("sinkAB", KindSink, noopTransform, nil)
	reg.Register("display", KindSink, noopTransform, nil)
	return reg
}

func compileSource(t *testing.T, src string) (*Graph, error) {
	t.Helper()
	prog, err := Parse("test", src)
	require.NoError(t, err)
	return Compile(prog, testRegistry())
}

func TestCompile_LinearPipeline(t *testing.T) {
	g, err := compileSource(t, "src -> op -> sink")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 3)
	assert.Len(t, g.Edges, 2)
	assert.Len(t, g.EntrySources, 1)
	assert.Len(t, g.TerminalSinks, 1)
}

func TestCompile_ParallelFanOut(t *testing.T) {
	g, err := compileSource(t, "src -> (a | b) -> sinkAB")
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 4)
	// src has two outputs (one per branch); sinkAB has two inputs (merge).
	var srcNode, sinkNode *ENode
	for _, n := range g.Nodes {
		switch n.Transform {
		case "src":
			srcNode = n
		case "sinkAB":
			sinkNode = n
		}
	}
	require.NotNil(t, srcNode)
	require.NotNil(t, sinkNode)
	assert.Len(t, srcNode.Outputs, 2)
	assert.Len(t, sinkNode.Inputs, 2)
}

func TestCompile_TimedSequenceEmitsBarrierNotEdge(t *testing.T) {
	src := "pipeline A = srcA -> sink\npipeline B = srcB -> sink\nA @ 1s -> B @ 1s"
	g, err := compileSource(t, src)
	require.NoError(t, err)
	require.Len(t, g.Barriers, 1)
	assert.Len(t, g.Segments, 2)
}

func TestCompile_UnknownNameFails(t *testing.T) {
	_, err := compileSource(t, "nope -> display")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnknownName, ce.Kind)
}

func TestCompile_CycleViaDefinitionsFails(t *testing.T) {
	src := "pipeline P = Q\npipeline Q = P\nP -> sink"
	_, err := compileSource(t, src)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCycle, ce.Kind)
}

func TestCompile_ForwardReferenceBetweenDefinitionsFails(t *testing.T) {
	src := "pipeline A = B -> sink\npipeline B = srcB\nA"
	_, err := compileSource(t, src)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrUnknownName, ce.Kind)
}

func TestCompile_BackwardReferenceBetweenDefinitionsSucceeds(t *testing.T) {
	src := "pipeline B = srcB\npipeline A = B -> sink\nA"
	_, err := compileSource(t, src)
	require.NoError(t, err)
}

func TestCompile_TimedSegmentMembersIncludeInteriorNodes(t *testing.T) {
	g, err := compileSource(t, "(srcA -> op -> sink) @ 1s")
	require.NoError(t, err)
	require.Len(t, g.Segments, 1)
	for _, seg := range g.Segments {
		assert.Len(t, seg.Members, 3)
	}
}

func TestCompile_DanglingParallelAtTopLevelFails(t *testing.T) {
	_, err := compileSource(t, "a | b")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrDanglingParallel, ce.Kind)
}

func TestCompile_NoSourceFails(t *testing.T) {
	_, err := compileSource(t, "op -> sink")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrNoSource, ce.Kind)
}

func TestCompile_SinkMidPipelineFails(t *testing.T) {
	_, err := compileSource(t, "src -> sink -> op")
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrKindMismatch, ce.Kind)
}

func TestCompileWithCapacities_OverridesDefaultsPerConfig(t *testing.T) {
	prog, err := Parse("test", "src -> op ~> sink")
	require.NoError(t, err)
	g, err := CompileWithCapacities(prog, testRegistry(), 3, 7)
	require.NoError(t, err)

	var sawDefault, sawAsync bool
	for _, e := range g.Edges {
		if e.Capacity == 3 {
			sawDefault = true
		}
		if e.Capacity == 7 {
			sawAsync = true
		}
	}
	assert.True(t, sawDefault)
	assert.True(t, sawAsync)
}

func TestCompile_BufferOverrideClampsEdgeCapacity(t *testing.T) {
	g, err := compileSource(t, "src -> op with (buffer: 5) -> sink")
	require.NoError(t, err)
	for _, e := range g.Edges {
		assert.Equal(t, 5, e.Capacity)
	}
}
