package vidpipe

import "fmt"

// LexError is raised by the Lexer on malformed source text.
type LexError struct {
	Line, Column int
	Reason       string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%d:%d: lex error: %s", e.Line, e.Column, e.Reason)
}

// ParseError is raised by the Parser on unexpected tokens.
type ParseError struct {
	Line, Column int
	Expected     string
	Found        string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: parse error: expected %s, found %s", e.Line, e.Column, e.Expected, e.Found)
}

// CompileErrorKind distinguishes the fatal compile-time failure modes of §7.
type CompileErrorKind int

const (
	// ErrUnknownName: a Call resolves to neither a registered function nor a defined pipeline.
	ErrUnknownName CompileErrorKind = iota
	// ErrCycle: a pipeline definition recursively refers to itself.
	ErrCycle
	// ErrKindMismatch: a node is used in a position its kind forbids (e.g. a sink mid-pipeline).
	ErrKindMismatch
	// ErrDanglingParallel: a Par expression has no downstream consumer.
	ErrDanglingParallel
	// ErrNoSource: the graph has no Source node.
	ErrNoSource
	// ErrNoSink: the graph has no Sink node.
	ErrNoSink
)

func (k CompileErrorKind) String() string {
	switch k {
	case ErrUnknownName:
		return "UnknownName"
	case ErrCycle:
		return "Cycle"
	case ErrKindMismatch:
		return "KindMismatch"
	case ErrDanglingParallel:
		return "DanglingParallel"
	case ErrNoSource:
		return "NoSource"
	case ErrNoSink:
		return "NoSink"
	default:
		return "Unknown"
	}
}

// CompileError is raised by the Compiler. Detail carries the offending name
// for ErrUnknownName and ErrCycle.
type CompileError struct {
	Kind   CompileErrorKind
	Detail string
}

func (e *CompileError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("compile error: %s", e.Kind)
	}
	return fmt.Sprintf("compile error: %s: %s", e.Kind, e.Detail)
}

// RuntimeErrorKind distinguishes runtime-reported failure modes of §7.
type RuntimeErrorKind int

const (
	// ErrSourceStartup: a source failed before the run reached Running.
	ErrSourceStartup RuntimeErrorKind = iota
	// ErrTransformFault: a transform raised; recovered unless it crosses the failure threshold.
	ErrTransformFault
	// ErrCancelled: the run terminated due to cancellation. Not an error to the host.
	ErrCancelled
)

func (k RuntimeErrorKind) String() string {
	switch k {
	case ErrSourceStartup:
		return "SourceStartup"
	case ErrTransformFault:
		return "TransformFault"
	case ErrCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// RuntimeError is delivered via the structured event stream (see events.go)
// and, for ErrSourceStartup, also returned synchronously from Supervisor.Run.
type RuntimeError struct {
	Kind   RuntimeErrorKind
	NodeID string
	Detail string
}

func (e *RuntimeError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("runtime error: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("runtime error: %s on node %s: %s", e.Kind, e.NodeID, e.Detail)
}
