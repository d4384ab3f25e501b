package vidpipe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// WorkerState is the per-node state machine of §4.R.
type WorkerState int32

const (
	StateStarting WorkerState = iota
	StateRunning
	StateDraining
	StateStopped
	StateFaulted
)

func (s WorkerState) String() string {
	switch s {
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateStopped:
		return "Stopped"
	case StateFaulted:
		return "Faulted"
	default:
		return "Unknown"
	}
}

// nodeRuntime is the supervisor's live bookkeeping for one ENode.
type nodeRuntime struct {
	node    *ENode
	state   int32 // atomic WorkerState
	running chan struct{}
	stopped chan struct{}
	inputs  []*Channel
	outputs []*Channel
}

func (nr *nodeRuntime) setState(s WorkerState) {
	atomic.StoreInt32(&nr.state, int32(s))
	if s == StateRunning {
		select {
		case <-nr.running:
		default:
			close(nr.running)
		}
	}
}

// State reports the worker's current position in the §4.R state machine.
func (nr *nodeRuntime) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&nr.state))
}

// mergeInputs fans multiple input Channels into one native Go channel in
// arrival order (§3 invariant 6, §5): each input edge is drained by its own
// goroutine, so a fast producer on one edge is never held up by a slow one
// on another. The returned channel closes once every input has reported
// end-of-stream or cancellation.
func mergeInputs(ctx context.Context, inputs []*Channel) <-chan Frame {
	out := make(chan Frame)
	var wg sync.WaitGroup
	wg.Add(len(inputs))
	for _, ch := range inputs {
		ch := ch
		go func() {
			defer wg.Done()
			for {
				f, res := ch.Pop(ctx)
				if res != PopFrame {
					return
				}
				select {
				case out <- f:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// broadcast delivers f to every output edge concurrently, cloning per §5 so
// each recipient owns independent metadata over the same shared buffer.
// Each edge is pushed from its own goroutine so a congested branch only
// backpressures its own edge (§5: "it does not stall others") rather than
// holding up delivery to every other branch while it waits for room. A
// branch whose Channel has since closed (e.g. its segment timer fired)
// silently drops the frame, matching Channel.Push's "no-op on closed"
// contract.
func broadcast(ctx context.Context, outputs []*Channel, f Frame) error {
	if len(outputs) == 1 {
		_, err := outputs[0].Push(ctx, f)
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, out := range outputs {
		out := out
		frame := f
		if i > 0 {
			frame = f.Clone()
		}
		g.Go(func() error {
			_, err := out.Push(gctx, frame)
			return err
		})
	}
	return g.Wait()
}

func closeAll(channels []*Channel) {
	for _, c := range channels {
		c.Close()
	}
}

// safeTransform invokes fn, converting a panic into an error so one
// misbehaving transform can never take down the worker goroutine running
// it (§7: a raising transform is isolated, not fatal, below the failure
// threshold).
func safeTransform(fn Transform, ctx context.Context, in Frame, params map[string]Literal) (out Frame, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transform panicked: %v", r)
		}
	}()
	return fn(ctx, in, params)
}
