package vidpipe

import "github.com/google/uuid"

// NodeID, EdgeID, and SegmentID are opaque identifiers unique within one
// compiled Graph (§3 invariant 8). Backed by uuid rather than the teacher's
// incrementing ints, since inlining named pipelines means the compiler can
// emit an unbounded number of nodes from one Call and a simple counter
// threaded through recursive lowering is easy to get wrong; uuid.NewString
// sidesteps that entirely.
type NodeID string
type EdgeID string
type SegmentID string

func newNodeID() NodeID       { return NodeID(uuid.NewString()) }
func newEdgeID() EdgeID       { return EdgeID(uuid.NewString()) }
func newSegmentID() SegmentID { return SegmentID(uuid.NewString()) }
