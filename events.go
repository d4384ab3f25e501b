package vidpipe

import (
	"log/slog"
	"time"
)

// EventKind distinguishes entries in the structured runtime event stream of
// §7 ("delivered via a structured event stream with fields {timestamp,
// node_id, kind, detail}").
type EventKind string

const (
	EventWorkerStarting EventKind = "worker_starting"
	EventWorkerRunning  EventKind = "worker_running"
	EventWorkerDraining EventKind = "worker_draining"
	EventWorkerStopped  EventKind = "worker_stopped"
	EventWorkerFaulted  EventKind = "worker_faulted"
	EventSegmentArmed   EventKind = "segment_armed"
	EventSegmentDone    EventKind = "segment_done"
	EventTransformFault EventKind = "transform_fault"
	EventCancelled      EventKind = "cancelled"
)

// Event is one entry of the runtime's structured event stream.
type Event struct {
	Timestamp time.Time
	NodeID    string
	Kind      EventKind
	Detail    string
}

// EventSink receives runtime events as they happen. Implementations must
// not block the caller for long; Supervisor delivers events synchronously
// from worker goroutines.
type EventSink interface {
	Emit(Event)
}

// slogEventSink adapts the event stream onto log/slog, in the spirit of
// leofalp-aigo's providers/observability/slog wrapper (a thin struct around
// a *slog.Logger implementing a small domain interface) — the pack has no
// example repo pulling in a third-party structured-logging library
// directly, so stdlib log/slog is the grounded choice here.
type slogEventSink struct {
	logger *slog.Logger
}

// NewSlogEventSink wraps logger (or slog.Default() if nil) as an EventSink.
func NewSlogEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogEventSink{logger: logger}
}

func (s *slogEventSink) Emit(e Event) {
	s.logger.Info(string(e.Kind),
		slog.Time("timestamp", e.Timestamp),
		slog.String("node_id", e.NodeID),
		slog.String("detail", e.Detail),
	)
}

// discardEventSink drops every event; the Supervisor's default when the
// caller doesn't care to observe the stream.
type discardEventSink struct{}

func (discardEventSink) Emit(Event) {}
