package kflow

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/influxdata/kflow/edge"
	kexpvar "github.com/influxdata/kflow/expvar"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/throughput"
	"github.com/pkg/errors"
)

const (
	statRecordsIn     = "records_in"
	statRecordsOut    = "records_out"
	statRecordsPerSec = "records_per_sec"
	statErrors        = "errors"
)

// A Node is a processing step in a Flow.
type Node interface {
	// Name is unique within a flow.
	Name() string
	// Kind describes the type of node.
	Kind() string

	init(f *Flow)

	addParentEdge(edge.StatsEdge)
	addChildEdge(edge.StatsEdge)
	// wantsInput reports whether the node reads from exactly one parent edge.
	wantsInput() bool

	// start the node
	start(ctx context.Context)
	stop()

	// wait for the node to finish processing and return any errors
	Wait() error

	// close children edges
	closeChildEdges()
	// abort parent edges
	abortParentEdges()

	// Stats returns the current values of the node statistics.
	Stats() map[string]interface{}
}

// NodeOption configures optional node behavior.
type NodeOption func(*nodeConfig)

type nodeConfig struct {
	clk          clock.Clock
	samplePeriod time.Duration
	compileOpts  []rules.CompileOption
}

// WithClock sets the clock used to measure node throughput.
func WithClock(c clock.Clock) NodeOption {
	return func(c2 *nodeConfig) {
		c2.clk = c
	}
}

// WithSamplePeriod sets the throughput sample period of a node.
func WithSamplePeriod(d time.Duration) NodeOption {
	return func(c *nodeConfig) {
		c.samplePeriod = d
	}
}

// WithCompileOptions passes options to rule compilation.
func WithCompileOptions(opts ...rules.CompileOption) NodeOption {
	return func(c *nodeConfig) {
		c.compileOpts = append(c.compileOpts, opts...)
	}
}

func newNodeConfig(opts []NodeOption) nodeConfig {
	c := nodeConfig{
		clk:          clock.New(),
		samplePeriod: throughput.DefaultSamplePeriod,
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// implementation of Node
type node struct {
	name string
	kind string
	cfg  nodeConfig

	flow       *Flow
	runF       func(ctx context.Context) error
	stopF      func()
	errCh      chan error
	err        error
	finishedMu sync.Mutex
	finished   bool
	ins        []edge.StatsEdge
	outs       []edge.StatsEdge
	diag       NodeDiagnostic

	statsKey   string
	statMap    *kexpvar.Map
	errors     *kexpvar.Int
	recordRate *kexpvar.Float
}

func (n *node) Name() string {
	return n.name
}

func (n *node) Kind() string {
	return n.kind
}

func (n *node) wantsInput() bool {
	return true
}

func (n *node) addParentEdge(e edge.StatsEdge) {
	n.ins = append(n.ins, e)
}

func (n *node) addChildEdge(e edge.StatsEdge) {
	n.outs = append(n.outs, e)
}

func (n *node) abortParentEdges() {
	for _, in := range n.ins {
		in.Abort()
	}
}

func (n *node) init(f *Flow) {
	n.flow = f
	n.diag = f.diag.WithNodeContext(n.name)
	tags := map[string]string{
		"flow": f.Name,
		"node": n.name,
		"kind": n.kind,
	}
	n.statsKey, n.statMap = NewStatistics("nodes", tags)
	n.errors = new(kexpvar.Int)
	n.recordRate = new(kexpvar.Float)
	n.statMap.Set(statRecordsIn, kexpvar.NewIntFuncGauge(n.collectedCount))
	n.statMap.Set(statRecordsOut, kexpvar.NewIntFuncGauge(n.emittedCount))
	n.statMap.Set(statRecordsPerSec, n.recordRate)
	n.statMap.Set(statErrors, n.errors)
	n.errCh = make(chan error, 1)
}

func (n *node) start(ctx context.Context) {
	go func() {
		var err error
		defer func() {
			// Handle panic in runF
			if r := recover(); r != nil {
				trace := make([]byte, 512)
				n := runtime.Stack(trace, false)
				err = fmt.Errorf("%s: Trace:%s", r, string(trace[:n]))
			}
			// Always close children edges
			n.closeChildEdges()
			if errors.Cause(err) == edge.ErrAborted && ctx.Err() != nil {
				// The flow was stopped.
				err = nil
			}
			// Propagate error up
			if err != nil {
				n.abortParentEdges()
				n.errors.Add(1)
				n.diag.Error("node failed", err)
				err = errors.Wrap(err, n.name)
			}
			n.errCh <- err
		}()
		// Run node
		err = n.runF(ctx)
	}()
}

func (n *node) stop() {
	if n.stopF != nil {
		n.stopF()
	}
	DeleteStatistics(n.statsKey)
}

func (n *node) Wait() error {
	n.finishedMu.Lock()
	defer n.finishedMu.Unlock()
	if !n.finished {
		n.finished = true
		n.err = <-n.errCh
	}
	return n.err
}

func (n *node) closeChildEdges() {
	for _, child := range n.outs {
		child.Close()
	}
}

// newEstimator creates a throughput estimator that reports progress to the node diagnostic.
func (n *node) newEstimator() *throughput.Estimator {
	return throughput.New(
		throughput.WithClock(n.cfg.clk),
		throughput.WithSamplePeriod(n.cfg.samplePeriod),
		throughput.WithRateVar(n.recordRate),
		throughput.OnSample(n.diag.Progress),
	)
}

// node collected count is the sum of emitted counts of parent edges
func (n *node) collectedCount() (count int64) {
	for _, in := range n.ins {
		count += in.Emitted()
	}
	return
}

// node emitted count is the sum of collected counts of children edges
func (n *node) emittedCount() (count int64) {
	for _, out := range n.outs {
		count += out.Collected()
	}
	return
}

func (n *node) Stats() map[string]interface{} {
	if n.statMap == nil {
		return nil
	}
	return n.statMap.Values()
}

// listeners lets callers observe the messages a node emits
// in addition to its child edges.
type listeners struct {
	b edge.Broadcaster
}

// Subscribe registers r to receive every message the node emits.
// Messages are published before they are forwarded to the child edges,
// subscribers are called synchronously in subscription order.
func (l *listeners) Subscribe(r edge.Receiver) int {
	return l.b.Subscribe(r)
}

// Unsubscribe removes a receiver added with Subscribe.
func (l *listeners) Unsubscribe(id int) bool {
	return l.b.Unsubscribe(id)
}

func (l *listeners) publishing(r edge.ForwardReceiver) edge.ForwardReceiver {
	return edge.NewPublishingForwardReceiver(&l.b, r)
}
