package kflow

import (
	"context"

	"github.com/influxdata/kflow/edge"
	kexpvar "github.com/influxdata/kflow/expvar"
	"github.com/influxdata/kflow/models"
	"github.com/pkg/errors"
)

// RecordWriter writes a record stream.
type RecordWriter interface {
	// WriteFormat is called with the schema of the records that follow.
	WriteFormat(s *models.Schema) error
	WriteRecord(r models.Record) error
	// Flush is called at the end of the stream.
	Flush() error
}

// SinkNode writes the records it receives to a RecordWriter.
type SinkNode struct {
	node
	w RecordWriter

	written *kexpvar.Int
}

// NewSinkNode creates a node that writes records to w.
func NewSinkNode(name string, w RecordWriter, opts ...NodeOption) *SinkNode {
	n := &SinkNode{
		node:    node{name: name, kind: "sink", cfg: newNodeConfig(opts)},
		w:       w,
		written: new(kexpvar.Int),
	}
	n.node.runF = n.runSink
	return n
}

func (n *SinkNode) runSink(ctx context.Context) error {
	n.statMap.Set(statRecordsOut, n.written)
	consumer := edge.NewConsumerWithReceiver(n.ins[0], n)
	return consumer.Consume()
}

// Written returns the number of records written.
func (n *SinkNode) Written() int64 {
	return n.written.IntValue()
}

func (n *SinkNode) Format(f edge.FormatMessage) error {
	return errors.Wrap(n.w.WriteFormat(f.Schema), "writing format")
}

func (n *SinkNode) Record(r edge.RecordMessage) error {
	if err := n.w.WriteRecord(r.Record); err != nil {
		return errors.Wrap(err, "writing record")
	}
	n.written.Add(1)
	return nil
}

func (n *SinkNode) EndOfStream(e edge.EndOfStreamMessage) error {
	return errors.Wrap(n.w.Flush(), "flushing")
}

func (n *SinkNode) Done() {}
