package kflow

import (
	"context"
	"io"

	"github.com/influxdata/kflow/edge"
	"github.com/influxdata/kflow/models"
	"github.com/pkg/errors"
)

// RecordReader reads a record stream.
type RecordReader interface {
	// Schema returns the schema of the records.
	Schema() *models.Schema
	// Next returns the next record or io.EOF once the stream is exhausted.
	Next() (models.Record, error)
}

// SourceNode reads records from a RecordReader and emits them downstream.
type SourceNode struct {
	node
	r RecordReader

	// StructureOnly announces the schema without reading any records.
	StructureOnly bool
}

// NewSourceNode creates a node that emits the records of r.
func NewSourceNode(name string, r RecordReader, opts ...NodeOption) *SourceNode {
	n := &SourceNode{
		node: node{name: name, kind: "source", cfg: newNodeConfig(opts)},
		r:    r,
	}
	n.node.runF = n.runSource
	return n
}

func (n *SourceNode) wantsInput() bool {
	return false
}

func (n *SourceNode) runSource(ctx context.Context) error {
	schema := n.r.Schema()
	if schema == nil {
		return errors.New("reader has no schema")
	}
	format := edge.NewFormatMessage(schema)
	format.NotificationOnly = n.StructureOnly
	if err := edge.Forward(n.outs, format); err != nil {
		return err
	}
	if !n.StructureOnly {
		for {
			select {
			case <-ctx.Done():
				// Stopped, children see their edges close without an end of stream.
				return nil
			default:
			}
			r, err := n.r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return errors.Wrap(err, "reading record")
			}
			if len(r) != schema.Len() {
				return errors.Errorf("record has %d values, schema has %d attributes", len(r), schema.Len())
			}
			if err := edge.Forward(n.outs, edge.NewRecordMessage(r)); err != nil {
				return err
			}
		}
	}
	return edge.Forward(n.outs, edge.NewEndOfStreamMessage())
}
