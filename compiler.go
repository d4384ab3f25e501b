package vidpipe

const (
	defaultEdgeCapacity = 10
	asyncEdgeCapacity   = 20
)

// ENode is a compiled execution-graph node (§3).
type ENode struct {
	ID        NodeID
	Kind      NodeKind
	Transform string // registered function name, for diagnostics/events
	Fn        Transform
	Params    map[string]Literal
	Inputs    []EdgeID
	Outputs   []EdgeID
	Segment   SegmentID // zero value if unset
}

// EEdge is a bounded channel between one producer and one consumer node.
type EEdge struct {
	ID       EdgeID
	Producer NodeID
	Consumer NodeID
	Capacity int
}

// Segment groups the nodes that share one wall-clock deadline from a
// Timed expression (§3).
type Segment struct {
	ID             SegmentID
	DeadlineSecond float64
	Members        map[NodeID]bool
}

// NodeBarrier is a purely temporal dependency with no data edge: every node
// in Before waits for every node in After to reach Stopped before it may
// leave the Starting state. This is how `A @ 1s -> B @ 1s` sequences two
// timed segments when A's terminal is a Sink with no output to wire (§4.R:
// "the supervisor starts the next segment's sources only after the
// previous segment has fully drained").
type NodeBarrier struct {
	After  []NodeID
	Before []NodeID
}

// Graph is the compiler's output: a live dataflow description, not yet
// running (§3).
type Graph struct {
	Nodes         map[NodeID]*ENode
	Edges         map[EdgeID]*EEdge
	Segments      map[SegmentID]*Segment
	Barriers      []NodeBarrier
	EntrySources  []NodeID
	TerminalSinks []NodeID

	// order preserves node emission order for deterministic iteration in
	// tests and the event stream.
	order []NodeID
}

// lowered is what lowering one Expr produces: which of the nodes it created
// are its "heads" (entries that accept input from upstream) and its
// "terminals" (exits whose output feeds whatever comes next).
type lowered struct {
	heads     []NodeID // nodes with no producer yet assigned from this subtree's perspective
	terminals []NodeID // nodes whose output should be wired to whatever comes next
}

// compiler holds lowering state for one Program.
type compiler struct {
	reg *Registry
	g   *Graph

	// defs is the parser's name -> body environment, used to inline pipeline
	// references (§4.C step 1).
	defs map[string]Expr

	// defIndex is each definition's position in prog.Definitions, used to
	// enforce §3 invariant 5 (no forward references between definitions).
	defIndex map[string]int

	// expanding is the cycle-detection set: names currently being inlined.
	expanding map[string]bool

	// expandStack is the nested sequence of definition names currently being
	// inlined, innermost last; empty when lowering the program's top-level
	// expression rather than a definition's body.
	expandStack []string

	// defEdges records each definition-to-definition reference encountered
	// while inlining (caller name -> callee name), checked once lowering
	// finishes without a cycle (checkDefinitionOrder).
	defEdges []defEdge

	segStack []SegmentID

	// edgeCap/asyncCap are the §6 default_edge_capacity/async_edge_capacity
	// values in force for this compilation, overridable per-program via
	// CompileWithCapacities.
	edgeCap, asyncCap int
}

// defEdge is one definition inlining another, recorded by name so it can be
// checked against declaration order after lowering completes.
type defEdge struct {
	from, to string
}

// Compile lowers a parsed Program into an executable Graph using the §6
// built-in defaults (10/20), resolving named pipelines and validating
// invariants 1-8 of §3 (§4.C).
func Compile(prog *Program, reg *Registry) (*Graph, error) {
	return CompileWithCapacities(prog, reg, defaultEdgeCapacity, asyncEdgeCapacity)
}

// CompileWithCapacities is Compile with the §6 default_edge_capacity and
// async_edge_capacity overridden, e.g. from a host's RuntimeConfig.
func CompileWithCapacities(prog *Program, reg *Registry, defaultCap, asyncCap int) (*Graph, error) {
	if defaultCap < 1 {
		defaultCap = defaultEdgeCapacity
	}
	if asyncCap < 1 {
		asyncCap = asyncEdgeCapacity
	}

	if prog.trailingDefOnly || prog.Expression == nil {
		return nil, &CompileError{Kind: ErrNoSource, Detail: "program has no runnable expression"}
	}

	if isDanglingParallel(prog.Expression) {
		return nil, &CompileError{Kind: ErrDanglingParallel, Detail: "program's outermost expression is a bare parallel"}
	}

	defs := map[string]Expr{}
	defIndex := map[string]int{}
	for i, d := range prog.Definitions {
		defs[d.Name] = d.Body
		defIndex[d.Name] = i
	}

	c := &compiler{
		reg:       reg,
		g:         &Graph{Nodes: map[NodeID]*ENode{}, Edges: map[EdgeID]*EEdge{}, Segments: map[SegmentID]*Segment{}},
		defs:      defs,
		defIndex:  defIndex,
		expanding: map[string]bool{},
		edgeCap:   defaultCap,
		asyncCap:  asyncCap,
	}

	lw, err := c.lower(prog.Expression)
	if err != nil {
		return nil, err
	}

	if err := c.checkDefinitionOrder(); err != nil {
		return nil, err
	}

	c.g.EntrySources = collectSources(c.g)
	c.g.TerminalSinks = collectSinks(c.g)
	_ = lw

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c.g, nil
}

// checkDefinitionOrder enforces §3 invariant 5: a definition's body may only
// call a pipeline declared earlier in the program. A true mutual-recursion
// cycle (e.g. `pipeline P = Q; pipeline Q = P`) is always caught first by
// lowerCall's expanding-set check, since detecting it requires following the
// forward edge at least once; any defEdge that survives to this point is
// therefore acyclic, and a forward edge among them is a plain forward
// reference rather than part of a cycle.
func (c *compiler) checkDefinitionOrder() error {
	for _, e := range c.defEdges {
		if c.defIndex[e.to] >= c.defIndex[e.from] {
			return &CompileError{Kind: ErrUnknownName, Detail: e.to}
		}
	}
	return nil
}

// isDanglingParallel detects a bare Par (optionally Timed/Grouped) at the
// very top of the executed expression, with no Seq successor to act as
// merge-consumer (§4.C step 4, §9 open question).
func isDanglingParallel(e Expr) bool {
	switch n := e.(type) {
	case *Group:
		return isDanglingParallel(n.Inner)
	case *Timed:
		return isDanglingParallel(n.Inner)
	case *Par:
		return true
	default:
		return false
	}
}

func (c *compiler) lower(e Expr) (lowered, error) {
	switch n := e.(type) {
	case *Group:
		return c.lower(n.Inner)

	case *Timed:
		seg := &Segment{ID: newSegmentID(), DeadlineSecond: n.Seconds, Members: map[NodeID]bool{}}
		c.g.Segments[seg.ID] = seg
		before := len(c.g.order)
		c.segStack = append(c.segStack, seg.ID)
		lw, err := c.lower(n.Inner)
		c.segStack = c.segStack[:len(c.segStack)-1]
		if err != nil {
			return lowered{}, err
		}
		// Every node created while seg.ID was the innermost active segment
		// records that on ENode.Segment (lowerCall); filtering c.g.order's
		// new tail by that, rather than by lw.heads/lw.terminals, also picks
		// up interior processor nodes of a multi-stage inner (§4.C step 4)
		// and excludes nodes that belong to a nested Timed segment instead.
		for _, id := range c.g.order[before:] {
			if c.g.Nodes[id].Segment == seg.ID {
				seg.Members[id] = true
			}
		}
		return lw, nil

	case *Seq:
		left, err := c.lower(n.Left)
		if err != nil {
			return lowered{}, err
		}
		right, err := c.lower(n.Right)
		if err != nil {
			return lowered{}, err
		}
		edgeCap := c.edgeCap
		if n.Async {
			edgeCap = c.asyncCap
		}

		allSink := len(left.terminals) > 0
		for _, id := range left.terminals {
			if c.g.Nodes[id].Kind != KindSink {
				allSink = false
				break
			}
		}
		if allSink {
			// Left ends entirely in sinks: there is nothing to wire a data
			// edge from. This is only legal when left came from a Timed
			// block (e.g. `A @ 1s -> B @ 1s`), in which case the Seq
			// expresses pure temporal sequencing: right only starts once
			// left's whole segment has drained.
			segID := c.g.Nodes[left.terminals[0]].Segment
			if segID == "" {
				return lowered{}, &CompileError{Kind: ErrKindMismatch, Detail: "sink used mid-pipeline"}
			}
			var after []NodeID
			for id := range c.g.Segments[segID].Members {
				after = append(after, id)
			}
			c.g.Barriers = append(c.g.Barriers, NodeBarrier{After: after, Before: append([]NodeID{}, right.heads...)})
		} else {
			// A Par on the left fans its branch terminals directly into every
			// head of Right (§4.C step 4: Right is the merge-consumer), so a
			// single Seq{Par, R} only adds edges here, never a new node.
			for _, from := range left.terminals {
				for _, to := range right.heads {
					if err := c.addEdge(from, to, edgeCap); err != nil {
						return lowered{}, err
					}
				}
			}
		}
		return lowered{heads: left.heads, terminals: right.terminals}, nil

	case *Par:
		if len(n.Branches) < 2 {
			return lowered{}, &CompileError{Kind: ErrDanglingParallel, Detail: "parallel requires >= 2 branches"}
		}
		var heads, terminals []NodeID
		for _, b := range n.Branches {
			lw, err := c.lower(b)
			if err != nil {
				return lowered{}, err
			}
			heads = append(heads, lw.heads...)
			terminals = append(terminals, lw.terminals...)
		}
		// Whether this Par turns out to be dangling (no successor Seq) is
		// only knowable from the parent; Seq consumes `terminals` when
		// present. CompileWithCapacities (above) checks for a dangling Par
		// at the program's outermost expression via isDanglingParallel.
		return lowered{heads: heads, terminals: terminals}, nil

	case *Call:
		return c.lowerCall(n)

	default:
		return lowered{}, &CompileError{Kind: ErrUnknownName, Detail: "unrecognized expression node"}
	}
}

func (c *compiler) lowerCall(call *Call) (lowered, error) {
	if body, ok := c.defs[call.Name]; ok {
		if c.expanding[call.Name] {
			return lowered{}, &CompileError{Kind: ErrCycle, Detail: call.Name}
		}
		if len(c.expandStack) > 0 {
			c.defEdges = append(c.defEdges, defEdge{from: c.expandStack[len(c.expandStack)-1], to: call.Name})
		}
		c.expanding[call.Name] = true
		c.expandStack = append(c.expandStack, call.Name)
		lw, err := c.lower(body)
		c.expandStack = c.expandStack[:len(c.expandStack)-1]
		delete(c.expanding, call.Name)
		return lw, err
	}

	entry, ok := c.reg.Lookup(call.Name)
	if !ok {
		return lowered{}, &CompileError{Kind: ErrUnknownName, Detail: call.Name}
	}

	node := &ENode{
		ID:        newNodeID(),
		Kind:      entry.Kind,
		Transform: call.Name,
		Fn:        entry.Fn,
		Params:    mergeParams(entry.Defaults, call.Params),
	}
	if len(c.segStack) > 0 {
		node.Segment = c.segStack[len(c.segStack)-1]
	}
	c.g.Nodes[node.ID] = node
	c.g.order = append(c.g.order, node.ID)

	return lowered{heads: []NodeID{node.ID}, terminals: []NodeID{node.ID}}, nil
}

func (c *compiler) addEdge(producer, consumer NodeID, capacity int) error {
	pn := c.g.Nodes[producer]
	cn := c.g.Nodes[consumer]
	if pn.Kind == KindSink {
		return &CompileError{Kind: ErrKindMismatch, Detail: "sink " + pn.Transform + " used mid-pipeline"}
	}
	if cn.Kind == KindSource {
		return &CompileError{Kind: ErrKindMismatch, Detail: "source " + cn.Transform + " used as a consumer"}
	}
	if b, ok := nodeBufferOverride(pn.Params); ok {
		capacity = b
	} else if b, ok := nodeBufferOverride(cn.Params); ok {
		capacity = b
	}
	if capacity < 1 {
		capacity = 1
	}
	edge := &EEdge{ID: newEdgeID(), Producer: producer, Consumer: consumer, Capacity: capacity}
	c.g.Edges[edge.ID] = edge
	pn.Outputs = append(pn.Outputs, edge.ID)
	cn.Inputs = append(cn.Inputs, edge.ID)
	return nil
}

// nodeBufferOverride reads the `buffer: positive integer` parameter effect
// recognized by the core itself (§4.F).
func nodeBufferOverride(params map[string]Literal) (int, bool) {
	lit, ok := params["buffer"]
	if !ok || lit.Kind != LitNumber || lit.Number < 1 {
		return 0, false
	}
	return int(lit.Number), true
}

func collectSources(g *Graph) []NodeID {
	var out []NodeID
	for _, id := range g.order {
		if g.Nodes[id].Kind == KindSource {
			out = append(out, id)
		}
	}
	return out
}

func collectSinks(g *Graph) []NodeID {
	var out []NodeID
	for _, id := range g.order {
		if g.Nodes[id].Kind == KindSink {
			out = append(out, id)
		}
	}
	return out
}

// validate checks that the graph has at least one source and one sink, and
// the per-kind input/output arity of invariants 1-3 of §3, which are only
// decidable once the whole graph is assembled (per-edge kind checks happen
// during lowering).
func (c *compiler) validate() error {
	g := c.g
	if len(g.EntrySources) == 0 {
		return &CompileError{Kind: ErrNoSource}
	}
	if len(g.TerminalSinks) == 0 {
		return &CompileError{Kind: ErrNoSink}
	}
	for _, id := range g.order {
		n := g.Nodes[id]
		switch n.Kind {
		case KindSource:
			if len(n.Inputs) != 0 {
				return &CompileError{Kind: ErrKindMismatch, Detail: "source " + n.Transform + " has inputs"}
			}
			if len(n.Outputs) == 0 {
				return &CompileError{Kind: ErrKindMismatch, Detail: "source " + n.Transform + " has no outputs"}
			}
		case KindSink:
			if len(n.Inputs) == 0 {
				return &CompileError{Kind: ErrKindMismatch, Detail: "sink " + n.Transform + " has no inputs"}
			}
			if len(n.Outputs) != 0 {
				return &CompileError{Kind: ErrKindMismatch, Detail: "sink " + n.Transform + " has outputs"}
			}
		case KindProcessor:
			if len(n.Inputs) == 0 || len(n.Outputs) == 0 {
				return &CompileError{Kind: ErrKindMismatch, Detail: "processor " + n.Transform + " is not connected on both sides"}
			}
		}
	}
	return nil
}
