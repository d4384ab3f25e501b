package vidpipe

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunStatus is the final disposition of a run (§6 "exit conditions").
type RunStatus int

const (
	StatusNormal RunStatus = iota
	StatusCancelled
	StatusFailed
)

func (s RunStatus) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RunResult is returned once every worker has stopped or, after external
// cancellation, once the shutdown grace period has elapsed, whichever is
// first.
type RunResult struct {
	Status RunStatus
	Reason string
}

// Supervisor is the runtime of §4.R: given a Graph, it wires channels,
// spawns one worker per node, arms timed segments, and coordinates
// cancellation and shutdown (§5, §7).
type Supervisor struct {
	graph  *Graph
	config RuntimeConfig
	events EventSink

	channels map[EdgeID]*Channel
	nodes    map[NodeID]*nodeRuntime
	// barrierDeps[id] lists the nodes that must reach Stopped before id may
	// leave Starting (compiled from Graph.Barriers).
	barrierDeps map[NodeID][]NodeID
}

// NewSupervisor prepares a Supervisor for g. events may be nil, in which
// case runtime events are discarded.
func NewSupervisor(g *Graph, config RuntimeConfig, events EventSink) *Supervisor {
	if events == nil {
		events = discardEventSink{}
	}
	s := &Supervisor{
		graph:       g,
		config:      config,
		events:      events,
		channels:    map[EdgeID]*Channel{},
		nodes:       map[NodeID]*nodeRuntime{},
		barrierDeps: map[NodeID][]NodeID{},
	}
	for _, e := range g.Edges {
		s.channels[e.ID] = NewChannel(e.Capacity)
	}
	for id, n := range g.Nodes {
		nr := &nodeRuntime{node: n, running: make(chan struct{}), stopped: make(chan struct{})}
		for _, eid := range n.Inputs {
			nr.inputs = append(nr.inputs, s.channels[eid])
		}
		for _, eid := range n.Outputs {
			nr.outputs = append(nr.outputs, s.channels[eid])
		}
		s.nodes[id] = nr
	}
	for _, b := range g.Barriers {
		for _, before := range b.Before {
			s.barrierDeps[before] = append(s.barrierDeps[before], b.After...)
		}
	}
	return s
}

// NodeState reports a node's current worker state, for tests and
// diagnostics.
func (s *Supervisor) NodeState(id NodeID) WorkerState {
	nr, ok := s.nodes[id]
	if !ok {
		return StateStopped
	}
	return nr.State()
}

// Run starts every worker, arms all timed segments, and blocks until the
// run reaches a terminal status (§4.R startup/shutdown ordering, §6 exit
// conditions). ctx cancellation is the host's cancellation signal (§6
// "cancellation_signal").
func (s *Supervisor) Run(ctx context.Context) (RunResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, egctx := errgroup.WithContext(runCtx)

	for _, segID := range segmentIDsWithDeadline(s.graph) {
		seg := s.graph.Segments[segID]
		g.Go(func() error {
			s.runSegmentTimer(egctx, seg)
			return nil
		})
	}

	for _, id := range s.graph.order {
		id := id
		nr := s.nodes[id]
		g.Go(func() error {
			return s.runNode(egctx, nr)
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		// External cancellation: stop accepting new work immediately, then
		// still wait (bounded by the shutdown grace period) for an orderly
		// drain per §4.R's shutdown ordering.
		s.events.Emit(Event{Timestamp: time.Now(), Kind: EventCancelled})
		cancel()
		select {
		case waitErr = <-done:
		case <-time.After(s.config.shutdownGrace()):
			waitErr = nil
		}
	}

	return s.finalResult(ctx, waitErr), waitErr
}

func (s *Supervisor) finalResult(hostCtx context.Context, waitErr error) RunResult {
	if hostCtx.Err() != nil {
		return RunResult{Status: StatusCancelled, Reason: "cancellation observed"}
	}
	if waitErr != nil {
		return RunResult{Status: StatusFailed, Reason: waitErr.Error()}
	}
	return RunResult{Status: StatusNormal}
}

func segmentIDsWithDeadline(g *Graph) []SegmentID {
	var out []SegmentID
	for id, seg := range g.Segments {
		if seg.DeadlineSecond > 0 {
			out = append(out, id)
		}
	}
	return out
}

// runSegmentTimer waits for every Source node in seg to start running (so a
// barrier-gated segment's clock begins when it actually starts, not when the
// whole run starts), then arms seg's deadline; when it fires it closes the
// output edges of every Source node in the segment (§4.R "Timed segments").
// It does not itself wait for the segment to drain; downstream nodes observe
// end-of-stream and unwind on their own.
func (s *Supervisor) runSegmentTimer(ctx context.Context, seg *Segment) {
	var sources []NodeID
	for id := range seg.Members {
		if s.graph.Nodes[id].Kind == KindSource {
			sources = append(sources, id)
		}
	}
	for _, id := range sources {
		select {
		case <-s.nodes[id].running:
		case <-ctx.Done():
			return
		}
	}

	s.events.Emit(Event{Timestamp: time.Now(), Kind: EventSegmentArmed, Detail: string(seg.ID)})
	timer := time.NewTimer(time.Duration(seg.DeadlineSecond * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}
	s.events.Emit(Event{Timestamp: time.Now(), Kind: EventSegmentDone, Detail: string(seg.ID)})
	for id := range seg.Members {
		n := s.graph.Nodes[id]
		if n.Kind != KindSource {
			continue
		}
		closeAll(s.nodes[id].outputs)
	}
}

// runNode drives one node's worker through the §4.R state machine.
func (s *Supervisor) runNode(ctx context.Context, nr *nodeRuntime) error {
	nr.setState(StateStarting)
	s.emit(nr.node.ID, EventWorkerStarting, "")

	if err := s.awaitBarrier(ctx, nr.node.ID); err != nil {
		nr.setState(StateStopped)
		close(nr.stopped)
		return nil
	}

	nr.setState(StateRunning)
	s.emit(nr.node.ID, EventWorkerRunning, "")

	var err error
	switch nr.node.Kind {
	case KindSource:
		err = s.runSource(ctx, nr)
	case KindProcessor:
		err = s.runProcessor(ctx, nr)
	case KindSink:
		err = s.runSink(ctx, nr)
	}

	nr.setState(StateDraining)
	s.emit(nr.node.ID, EventWorkerDraining, "")
	closeAll(nr.outputs)

	if err != nil {
		nr.setState(StateFaulted)
		s.emit(nr.node.ID, EventWorkerFaulted, err.Error())
	}
	nr.setState(StateStopped)
	s.emit(nr.node.ID, EventWorkerStopped, "")
	close(nr.stopped)
	return err
}

func (s *Supervisor) awaitBarrier(ctx context.Context, id NodeID) error {
	for _, depID := range s.barrierDeps[id] {
		dep, ok := s.nodes[depID]
		if !ok {
			continue
		}
		select {
		case <-dep.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (s *Supervisor) runSource(ctx context.Context, nr *nodeRuntime) error {
	interval := s.config.sourceInterval()
	var seq uint64
	failCount := 0
	started := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, ok, err := safeTransform(nr.node.Fn, ctx, Frame{}, nr.node.Params)
		if err != nil {
			if !started {
				// §7: a source that cannot produce at all is fatal-at-startup.
				return &RuntimeError{Kind: ErrSourceStartup, NodeID: string(nr.node.ID), Detail: err.Error()}
			}
			failCount++
			s.emit(nr.node.ID, EventTransformFault, err.Error())
			if failCount >= s.config.ConsecutiveFailureLimit {
				return &RuntimeError{Kind: ErrTransformFault, NodeID: string(nr.node.ID), Detail: "consecutive failure limit reached"}
			}
		} else {
			failCount = 0
			started = true
			if ok {
				frame.Seq = seq
				seq++
				if pushErr := broadcast(ctx, nr.outputs, frame); pushErr != nil {
					return nil
				}
				if allOutputsClosed(nr.outputs) {
					return nil
				}
			} else {
				// ok=false: the source is exhausted (see Transform).
				return nil
			}
		}

		if interval > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (s *Supervisor) runProcessor(ctx context.Context, nr *nodeRuntime) error {
	merged := mergeInputs(ctx, nr.inputs)
	failCount := 0
	for frame := range merged {
		out, ok, err := safeTransform(nr.node.Fn, ctx, frame, nr.node.Params)
		if err != nil {
			failCount++
			s.emit(nr.node.ID, EventTransformFault, err.Error())
			if failCount >= s.config.ConsecutiveFailureLimit {
				return &RuntimeError{Kind: ErrTransformFault, NodeID: string(nr.node.ID), Detail: "consecutive failure limit reached"}
			}
			continue
		}
		failCount = 0
		if !ok {
			continue
		}
		if err := broadcastOrStop(ctx, nr.outputs, out); err != nil {
			return nil
		}
	}
	return nil
}

func (s *Supervisor) runSink(ctx context.Context, nr *nodeRuntime) error {
	merged := mergeInputs(ctx, nr.inputs)
	failCount := 0
	for frame := range merged {
		_, _, err := safeTransform(nr.node.Fn, ctx, frame, nr.node.Params)
		if err != nil {
			failCount++
			s.emit(nr.node.ID, EventTransformFault, err.Error())
			if failCount >= s.config.ConsecutiveFailureLimit {
				return &RuntimeError{Kind: ErrTransformFault, NodeID: string(nr.node.ID), Detail: "consecutive failure limit reached"}
			}
			continue
		}
		failCount = 0
	}
	return nil
}

func broadcastOrStop(ctx context.Context, outputs []*Channel, f Frame) error {
	if err := broadcast(ctx, outputs, f); err != nil {
		return err
	}
	if allOutputsClosed(outputs) {
		return fmt.Errorf("all outputs closed")
	}
	return nil
}

func allOutputsClosed(outputs []*Channel) bool {
	if len(outputs) == 0 {
		return false
	}
	for _, o := range outputs {
		if !o.isClosed() {
			return false
		}
	}
	return true
}

func (s *Supervisor) emit(id NodeID, kind EventKind, detail string) {
	s.events.Emit(Event{Timestamp: time.Now(), NodeID: string(id), Kind: kind, Detail: detail})
}
