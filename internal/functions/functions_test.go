package functions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidpipe/vidpipe"
)

func TestCounter_EmitsAscendingSequence(t *testing.T) {
	counter := Counter()
	ctx := context.Background()
	for want := 0; want < 5; want++ {
		f, ok, err := counter(ctx, vidpipe.Frame{}, nil)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, f.Meta["value"])
	}
}

func TestDouble_MultipliesValue(t *testing.T) {
	double := Double()
	out, ok, err := double(context.Background(), vidpipe.Frame{Meta: map[string]any{"value": 21}}, nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 42, out.Meta["value"])
}

func TestDouble_IgnoresFramesWithoutValue(t *testing.T) {
	double := Double()
	out, ok, err := double(context.Background(), vidpipe.Frame{}, nil)
	require.NoError(t, err)
	require.True(t, ok)
	_, has := out.Meta["value"]
	assert.False(t, has)
}

func TestTag_StampsBranch(t *testing.T) {
	tag := Tag()
	params := map[string]vidpipe.Literal{"branch": {Kind: vidpipe.LitString, Str: "a"}}
	out, ok, err := tag(context.Background(), vidpipe.Frame{Meta: map[string]any{"value": 3}}, params)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", out.Meta["branch"])
	assert.Equal(t, 3, out.Meta["value"])
}

func TestRecording_AppendsBranchAndValue(t *testing.T) {
	rec := NewRecorder()
	sink := Recording(rec)
	_, ok, err := sink(context.Background(), vidpipe.Frame{Meta: map[string]any{"branch": "a", "value": 9}}, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{BranchID: "a", Value: 9}, entries[0])
}

func TestDelay_ForwardsAfterSleeping(t *testing.T) {
	delay := Delay()
	params := map[string]vidpipe.Literal{"millis": {Kind: vidpipe.LitNumber, Number: 1}}
	in := vidpipe.Frame{Seq: 5}
	out, ok, err := delay(context.Background(), in, params)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in.Seq, out.Seq)
}

func TestDelay_CancelledMidSleepReturnsError(t *testing.T) {
	delay := Delay()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	params := map[string]vidpipe.Literal{"millis": {Kind: vidpipe.LitNumber, Number: 1000}}
	_, ok, err := delay(ctx, vidpipe.Frame{}, params)
	require.Error(t, err)
	assert.False(t, ok)
}

func TestRegister_InstallsAllFive(t *testing.T) {
	reg := vidpipe.NewRegistry()
	Register(reg, NewRecorder())

	for _, name := range []string{"counter", "double", "tag", "delay", "recorder"} {
		_, ok := reg.Lookup(name)
		assert.True(t, ok, "expected %s to be registered", name)
	}
}
