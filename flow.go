package kflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/influxdata/kflow/edge"
	"github.com/pkg/errors"
)

const defaultEdgeBufferSize = 1000

// Flow is a set of nodes linked by edges.
// Nodes are added and linked before Start, a flow can only be started once.
type Flow struct {
	Name string
	// ID identifies a single run of the flow.
	ID uuid.UUID

	// LogEdges reports every message passing along the flow edges to the edge diagnostic.
	LogEdges bool
	// EdgeBufferSize is the number of messages an edge buffers.
	EdgeBufferSize int

	diag FlowDiagnostic

	mu      sync.Mutex
	nodes   []Node
	byName  map[string]Node
	edges   []flowEdge
	started bool
	stopped bool
	cancel  context.CancelFunc

	closeOnce sync.Once
}

type flowEdge struct {
	parent, child string
	e             edge.StatsEdge
	diag          EdgeDiagnostic
}

// NewFlow creates an empty flow.
func NewFlow(name string, d Diagnostic) *Flow {
	id := uuid.New()
	return &Flow{
		Name:           name,
		ID:             id,
		EdgeBufferSize: defaultEdgeBufferSize,
		diag:           d.WithFlowContext(name, id.String()),
		byName:         make(map[string]Node),
	}
}

// Add registers nodes with the flow.
func (f *Flow) Add(nodes ...Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range nodes {
		if err := f.add(n); err != nil {
			return err
		}
	}
	return nil
}

func (f *Flow) add(n Node) error {
	if f.started {
		return errors.New("flow already started")
	}
	if existing, ok := f.byName[n.Name()]; ok {
		if existing == n {
			return nil
		}
		return fmt.Errorf("duplicate node name %q", n.Name())
	}
	n.init(f)
	f.nodes = append(f.nodes, n)
	f.byName[n.Name()] = n
	return nil
}

// Link connects the output of parent to the input of child.
// Nodes not yet part of the flow are added.
func (f *Flow) Link(parent, child Node) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.add(parent); err != nil {
		return err
	}
	if err := f.add(child); err != nil {
		return err
	}
	if parent == child {
		return fmt.Errorf("cannot link node %q to itself", parent.Name())
	}
	if !child.wantsInput() {
		return fmt.Errorf("node %q does not accept input", child.Name())
	}
	d := f.diag.WithEdgeContext(parent.Name(), child.Name())
	var e edge.Edge = edge.NewChannelEdge(f.EdgeBufferSize)
	if f.LogEdges {
		e = edge.NewLogEdge(d, e)
	}
	se := edge.NewStatsEdge(e)
	parent.addChildEdge(se)
	child.addParentEdge(se)
	f.edges = append(f.edges, flowEdge{parent: parent.Name(), child: child.Name(), e: se, diag: d})
	return nil
}

// Chain links each node to the next one.
func (f *Flow) Chain(nodes ...Node) error {
	for i := 1; i < len(nodes); i++ {
		if err := f.Link(nodes[i-1], nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

// Node returns the node with the given name or nil.
func (f *Flow) Node(name string) Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byName[name]
}

// Nodes returns the nodes of the flow in the order they were added.
func (f *Flow) Nodes() []Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	nodes := make([]Node, len(f.nodes))
	copy(nodes, f.nodes)
	return nodes
}

func (f *Flow) validate() error {
	if len(f.nodes) == 0 {
		return errors.New("flow has no nodes")
	}
	counts := make(map[string]int, len(f.nodes))
	for _, e := range f.edges {
		counts[e.child]++
	}
	for _, n := range f.nodes {
		c := counts[n.Name()]
		switch {
		case n.wantsInput() && c != 1:
			return fmt.Errorf("node %q must have exactly one parent, has %d", n.Name(), c)
		case !n.wantsInput() && c != 0:
			return fmt.Errorf("source node %q cannot have parents", n.Name())
		}
	}
	return nil
}

// Start starts every node of the flow.
// Cancelling ctx stops the sources.
func (f *Flow) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return errors.New("flow already started")
	}
	if err := f.validate(); err != nil {
		return err
	}
	f.started = true
	f.diag.StartingFlow()
	NumFlowsVar.Add(1)
	ctx, f.cancel = context.WithCancel(ctx)
	// Start children before parents so every consumer is ready.
	for i := len(f.nodes) - 1; i >= 0; i-- {
		f.nodes[i].start(ctx)
	}
	return nil
}

// Wait blocks until every node has finished and returns the first error.
// Errors from nodes whose children aborted are only returned if no other node failed.
func (f *Flow) Wait() error {
	var first, aborted error
	for _, n := range f.Nodes() {
		err := n.Wait()
		switch {
		case err == nil:
		case errors.Cause(err) == edge.ErrAborted:
			if aborted == nil {
				aborted = err
			}
		case first == nil:
			first = err
		}
	}
	f.closeOnce.Do(func() {
		for _, e := range f.edges {
			e.diag.ClosingEdge(e.e.Collected(), e.e.Emitted())
		}
	})
	if first == nil {
		return aborted
	}
	return first
}

// Stop stops the sources, aborts all edges and waits for every node to finish.
// Stopping a stopped flow returns the same error again.
func (f *Flow) Stop() error {
	f.mu.Lock()
	if !f.started {
		f.mu.Unlock()
		return errors.New("flow not started")
	}
	if f.stopped {
		f.mu.Unlock()
		return f.Wait()
	}
	f.stopped = true
	f.cancel()
	for _, e := range f.edges {
		e.e.Abort()
	}
	f.mu.Unlock()

	err := f.Wait()
	for _, n := range f.Nodes() {
		n.stop()
	}
	NumFlowsVar.Add(-1)
	if err != nil {
		f.diag.StoppedFlowWithError(err)
	} else {
		f.diag.StoppedFlow()
	}
	return err
}

// Run starts the flow, waits for it to finish and stops it.
func (f *Flow) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}
	f.Wait()
	return f.Stop()
}

// Stats returns the statistics of every node keyed by node name.
func (f *Flow) Stats() map[string]map[string]interface{} {
	stats := make(map[string]map[string]interface{})
	for _, n := range f.Nodes() {
		stats[n.Name()] = n.Stats()
	}
	return stats
}
