// Package functions is the demo function catalog: a small, concrete
// collaborator on the other side of the "concrete frame functions" boundary
// that the core package deliberately stays out of (§1 Non-goals). Nothing
// under vidpipe imports this package; cmd/vidpipe and the core's own tests
// do, via Registry.Register.
package functions

import (
	"context"
	"sync"
	"time"

	"github.com/vidpipe/vidpipe"
)

// Recorder collects (branch_id, value) pairs appended by the recorder sink,
// for tests to assert against (S1/S2/S7). Safe for concurrent appends from
// multiple fan-out branches.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry is one recorded observation.
type Entry struct {
	BranchID string
	Value    int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) append(branchID string, value int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{BranchID: branchID, Value: value})
}

// Entries returns a snapshot of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Counter returns a source transform that emits frames carrying an
// increasing integer payload under Meta["value"], one per invocation. The
// supervisor calls a source repeatedly on its own pacing (§6
// default_source_interval_seconds); Counter itself holds no notion of time.
func Counter() vidpipe.Transform {
	var next int
	return func(ctx context.Context, in vidpipe.Frame, params map[string]vidpipe.Literal) (vidpipe.Frame, bool, error) {
		v := next
		next++
		return vidpipe.Frame{Meta: map[string]any{"value": v}}, true, nil
	}
}

// Double is a processor transform that multiplies Meta["value"] by 2,
// leaving frames with no such key untouched.
func Double() vidpipe.Transform {
	return func(ctx context.Context, in vidpipe.Frame, params map[string]vidpipe.Literal) (vidpipe.Frame, bool, error) {
		out := in.Clone()
		out.Seq = in.Seq
		if v, ok := in.Meta["value"].(int); ok {
			out.Meta["value"] = v * 2
		}
		return out, true, nil
	}
}

// Tag is a processor transform that stamps Meta["branch"] with its `branch`
// parameter, leaving the rest of the frame untouched. A fan-out's branches
// each run their own Tag instance so a shared recorder downstream can tell
// them apart (S2):
// `src -> (tag with (branch: "a") | tag with (branch: "b")) -> sinkAB`.
func Tag() vidpipe.Transform {
	return func(ctx context.Context, in vidpipe.Frame, params map[string]vidpipe.Literal) (vidpipe.Frame, bool, error) {
		out := in.Clone()
		out.Seq = in.Seq
		if lit, ok := params["branch"]; ok && lit.Kind == vidpipe.LitString {
			out.Meta["branch"] = lit.Str
		}
		return out, true, nil
	}
}

// Recording returns a sink transform that appends every frame's
// Meta["branch"]/Meta["value"] pair to rec. Frames with no branch tag record
// under the empty branch id (S1's plain linear pipeline).
func Recording(rec *Recorder) vidpipe.Transform {
	return func(ctx context.Context, in vidpipe.Frame, params map[string]vidpipe.Literal) (vidpipe.Frame, bool, error) {
		branch, _ := in.Meta["branch"].(string)
		v, _ := in.Meta["value"].(int)
		rec.append(branch, v)
		return vidpipe.Frame{}, false, nil
	}
}

// Delay is a processor transform that sleeps for the `millis` parameter
// (default 0) before forwarding its input unchanged, used by S3 to exercise
// edge backpressure under a slow consumer.
func Delay() vidpipe.Transform {
	return func(ctx context.Context, in vidpipe.Frame, params map[string]vidpipe.Literal) (vidpipe.Frame, bool, error) {
		millis := 0.0
		if lit, ok := params["millis"]; ok && lit.Kind == vidpipe.LitNumber {
			millis = lit.Number
		}
		if millis > 0 {
			select {
			case <-time.After(time.Duration(millis) * time.Millisecond):
			case <-ctx.Done():
				return vidpipe.Frame{}, false, ctx.Err()
			}
		}
		return in, true, nil
	}
}

// Register installs counter, double, tag, delay, and a recorder sink bound
// to rec into reg, matching the names used throughout SPEC_FULL.md and the
// package's own tests.
func Register(reg *vidpipe.Registry, rec *Recorder) {
	reg.Register("counter", vidpipe.KindSource, Counter(), nil)
	reg.Register("double", vidpipe.KindProcessor, Double(), nil)
	reg.Register("tag", vidpipe.KindProcessor, Tag(), map[string]vidpipe.Literal{
		"branch": {Kind: vidpipe.LitString, Str: ""},
	})
	reg.Register("delay", vidpipe.KindProcessor, Delay(), map[string]vidpipe.Literal{
		"millis": {Kind: vidpipe.LitNumber, Number: 0},
	})
	reg.Register("recorder", vidpipe.KindSink, Recording(rec), nil)
}
