package kflow

import (
	"github.com/influxdata/kflow/edge"
	"github.com/influxdata/kflow/keyvalue"
	"github.com/influxdata/kflow/throughput"
)

type Diagnostic interface {
	WithFlowContext(flow, id string) FlowDiagnostic
}

type FlowDiagnostic interface {
	WithNodeContext(node string) NodeDiagnostic
	WithEdgeContext(parent, child string) EdgeDiagnostic

	StartingFlow()
	StoppedFlow()
	StoppedFlowWithError(err error)
}

type NodeDiagnostic interface {
	Error(msg string, err error, ctx ...keyvalue.T)
	Progress(s throughput.Sample)
	Finished(s throughput.Summary)
}

type EdgeDiagnostic interface {
	edge.Diagnostic
	ClosingEdge(collected, emitted int64)
}
