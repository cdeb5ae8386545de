package edge

import (
	expvar "github.com/influxdata/kflow/expvar"
)

// StatsEdge is an edge that tracks various statistics about message passing through the edge.
// Only record messages are counted.
type StatsEdge interface {
	Edge
	// Collected returns the number of records collected by this edge.
	Collected() int64
	// Emitted returns the number of records emitted by this edge.
	Emitted() int64
	// CollectedVar is an exported var the represents the number of records collected by this edge.
	CollectedVar() expvar.IntVar
	// EmittedVar is an exported var the represents the number of records emitted by this edge.
	EmittedVar() expvar.IntVar
}

// NewStatsEdge creates an edge that tracks statistics about the message passing through the edge.
func NewStatsEdge(e Edge) StatsEdge {
	return &statsEdge{
		edge:      e,
		collected: new(expvar.Int),
		emitted:   new(expvar.Int),
	}
}

type statsEdge struct {
	edge Edge

	collected *expvar.Int
	emitted   *expvar.Int
}

func (e *statsEdge) Collect(m Message) error {
	if err := e.edge.Collect(m); err != nil {
		return err
	}
	if m.Type() == Record {
		e.collected.Add(1)
	}
	return nil
}

func (e *statsEdge) Emit() (m Message, ok bool) {
	m, ok = e.edge.Emit()
	if ok && m.Type() == Record {
		e.emitted.Add(1)
	}
	return
}

func (e *statsEdge) Collected() int64 {
	return e.collected.IntValue()
}
func (e *statsEdge) Emitted() int64 {
	return e.emitted.IntValue()
}

func (e *statsEdge) CollectedVar() expvar.IntVar {
	return e.collected
}
func (e *statsEdge) EmittedVar() expvar.IntVar {
	return e.emitted
}

func (e *statsEdge) Close() error {
	return e.edge.Close()
}
func (e *statsEdge) Abort() {
	e.edge.Abort()
}
