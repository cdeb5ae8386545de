package kflow

import (
	"context"
	"strconv"
	"sync"

	"github.com/influxdata/kflow/edge"
	"github.com/influxdata/kflow/keyvalue"
	"github.com/influxdata/kflow/models"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/throughput"
	"github.com/pkg/errors"
)

// LabelerNode appends an attribute to every record naming the first label rule that matches it.
type LabelerNode struct {
	node
	listeners

	mu     sync.Mutex
	rules  []rules.MatchLabelRule
	opts   rules.LabelOptions
	set    *rules.LabelSet
	schema *models.Schema

	estimator *throughput.Estimator
}

// NewLabelerNode creates a node that labels records using rs.
func NewLabelerNode(name string, rs []rules.MatchLabelRule, lo rules.LabelOptions, opts ...NodeOption) *LabelerNode {
	n := &LabelerNode{
		node:  node{name: name, kind: "label", cfg: newNodeConfig(opts)},
		rules: rs,
		opts:  lo,
	}
	n.node.runF = n.runLabel
	return n
}

func (n *LabelerNode) runLabel(ctx context.Context) error {
	n.estimator = n.newEstimator()
	consumer := edge.NewConsumerWithReceiver(
		n.ins[0],
		edge.NewReceiverFromForwardReceiverWithStats(
			n.outs,
			n.publishing(edge.NewTimedForwardReceiver(n.estimator, n)),
		),
	)
	return consumer.Consume()
}

// Update replaces the rules of the node.
// Once a schema has been seen the new rules must produce the same output schema.
func (n *LabelerNode) Update(rs []rules.MatchLabelRule) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.schema == nil {
		for i, r := range rs {
			if err := r.Validate(); err != nil {
				if cerr, ok := err.(*rules.ConfigurationError); ok {
					cerr.Rule = i
				}
				return err
			}
		}
		n.rules = rs
		n.set = nil
		return nil
	}
	set, err := rules.CompileLabels(rs, n.schema, n.opts, n.cfg.compileOpts...)
	if err != nil {
		return err
	}
	if set.OutputSchema().Fingerprint() != n.set.OutputSchema().Fingerprint() {
		return errors.New("updated label rules change the output schema")
	}
	n.rules = rs
	n.set = set
	return nil
}

func (n *LabelerNode) Format(f edge.FormatMessage) (edge.Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.set == nil || n.schema == nil || n.schema.Fingerprint() != f.Schema.Fingerprint() {
		set, err := rules.CompileLabels(n.rules, f.Schema, n.opts, n.cfg.compileOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "compiling label rules")
		}
		n.set = set
	}
	n.schema = f.Schema
	return edge.FormatMessage{
		Schema:           n.set.OutputSchema(),
		NotificationOnly: f.NotificationOnly,
	}, nil
}

func (n *LabelerNode) Record(r edge.RecordMessage) (edge.Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.set == nil {
		return nil, errors.New("received record before format")
	}
	out, keep, err := n.set.Label(r.Record)
	if err != nil {
		if ferr, ok := err.(*rules.FieldTypeError); ok {
			n.errors.Add(1)
			n.diag.Error("cannot label non string value", ferr,
				keyvalue.T{Key: "attribute", Value: ferr.Name},
				keyvalue.T{Key: "index", Value: strconv.Itoa(ferr.Index)},
			)
			// The record must still match the output schema.
			out = append(r.Record.Copy(), nil)
			return edge.NewRecordMessage(out), nil
		}
		return nil, err
	}
	if !keep {
		return nil, nil
	}
	return edge.NewRecordMessage(out), nil
}

func (n *LabelerNode) EndOfStream(e edge.EndOfStreamMessage) (edge.Message, error) {
	n.diag.Finished(n.estimator.Finish())
	return e, nil
}

func (n *LabelerNode) Done() {}
