package vidpipe

import (
	"context"
	"sync"
)

// NodeKind classifies a registered function or compiled node by arity, per
// §3/§4.F.
type NodeKind int

const (
	KindSource NodeKind = iota
	KindProcessor
	KindSink
)

func (k NodeKind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindProcessor:
		return "processor"
	case KindSink:
		return "sink"
	default:
		return "unknown"
	}
}

// Transform is the uniform call interface every registered function
// implements, regardless of kind (§4.F, §9 "dynamic function dispatch by
// name"):
//   - a Source ignores in (always Frame{}, false) and produces a frame;
//     ok=false signals the source is exhausted (rare; most sources run
//     until cancelled).
//   - a Processor maps in to an output frame.
//   - a Sink consumes in for side effects and never produces output.
//
// ctx carries cancellation; a Transform should check it on any expensive or
// blocking internal operation but is otherwise treated as synchronous and
// CPU-bound by the runtime (§5).
type Transform func(ctx context.Context, in Frame, params map[string]Literal) (out Frame, ok bool, err error)

// FuncEntry is what the registry stores per name.
type FuncEntry struct {
	Kind     NodeKind
	Fn       Transform
	Defaults map[string]Literal
}

// Registry is the process-wide name -> function mapping of §4.F. It is
// typically populated once at process start and read-only thereafter, but
// Register and Lookup both take mu so concurrent test setup (or a host
// registering functions from more than one goroutine) is never a data race.
type Registry struct {
	mu      sync.Mutex
	entries map[string]FuncEntry
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]FuncEntry{}}
}

// Register adds or replaces a function entry by name.
func (r *Registry) Register(name string, kind NodeKind, fn Transform, defaults map[string]Literal) {
	if defaults == nil {
		defaults = map[string]Literal{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = FuncEntry{Kind: kind, Fn: fn, Defaults: defaults}
}

// Lookup returns the entry for name and whether it was found.
func (r *Registry) Lookup(name string) (FuncEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	return e, ok
}

// mergeParams overlays call-site params onto the registry's declared
// defaults (§4.C step 3); call-site values win. Recognized schema keys
// (buffer, window_name) are left in the map for the compiler/worker to
// read — unrecognized keys are opaque and simply forwarded.
func mergeParams(defaults, callParams map[string]Literal) map[string]Literal {
	merged := make(map[string]Literal, len(defaults)+len(callParams))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range callParams {
		merged[k] = v
	}
	return merged
}
