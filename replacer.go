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

// ReplacerNode applies match/replace rules to the string attributes of every record.
type ReplacerNode struct {
	node
	listeners

	// mu guards the compiled set.
	mu     sync.Mutex
	staged *rules.Staged
	set    *rules.RuleSet
	schema *models.Schema

	estimator *throughput.Estimator
}

// NewReplacerNode creates a node that applies rs to each record.
func NewReplacerNode(name string, rs []rules.MatchReplaceRule, opts ...NodeOption) *ReplacerNode {
	staged, err := rules.NewStaged(rs)
	if err != nil {
		// Should be unreachable, rules hold only plain values.
		panic(err)
	}
	n := &ReplacerNode{
		node:   node{name: name, kind: "replace", cfg: newNodeConfig(opts)},
		staged: staged,
	}
	n.node.runF = n.runReplace
	return n
}

func (n *ReplacerNode) runReplace(ctx context.Context) error {
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

// Rules returns the committed rules.
func (n *ReplacerNode) Rules() []rules.MatchReplaceRule {
	return n.staged.Rules()
}

// Draft returns an editable copy of the committed rules.
// Edits are not seen by the node until the draft is committed.
func (n *ReplacerNode) Draft() (*rules.Draft, error) {
	return n.staged.Draft()
}

// Commit makes the rules of d the rules of the node.
// If a schema has been seen the rules are compiled against it first and any error is returned without changing the node.
func (n *ReplacerNode) Commit(d *rules.Draft) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	var set *rules.RuleSet
	if n.schema != nil {
		var err error
		set, err = rules.Compile(d.Rules, n.schema, n.cfg.compileOpts...)
		if err != nil {
			return err
		}
	}
	if err := n.staged.Commit(d); err != nil {
		return err
	}
	n.set = set
	return nil
}

// Update replaces the rules of the node, see Commit.
func (n *ReplacerNode) Update(rs []rules.MatchReplaceRule) error {
	d, err := n.staged.Draft()
	if err != nil {
		return err
	}
	d.Rules = rs
	return n.Commit(d)
}

func (n *ReplacerNode) Format(f edge.FormatMessage) (edge.Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.set != nil && n.schema != nil && n.schema.Fingerprint() == f.Schema.Fingerprint() {
		n.schema = f.Schema
		return f, nil
	}
	set, err := rules.Compile(n.staged.Rules(), f.Schema, n.cfg.compileOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "compiling replace rules")
	}
	n.set = set
	n.schema = f.Schema
	return f, nil
}

func (n *ReplacerNode) Record(r edge.RecordMessage) (edge.Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.set == nil {
		return nil, errors.New("received record before format")
	}
	out, err := n.set.Apply(r.Record)
	if err != nil {
		if ferr, ok := err.(*rules.FieldTypeError); ok {
			n.errors.Add(1)
			n.diag.Error("cannot replace in non string value", ferr,
				keyvalue.T{Key: "attribute", Value: ferr.Name},
				keyvalue.T{Key: "index", Value: strconv.Itoa(ferr.Index)},
			)
			return r, nil
		}
		return nil, err
	}
	return edge.NewRecordMessage(out), nil
}

func (n *ReplacerNode) EndOfStream(e edge.EndOfStreamMessage) (edge.Message, error) {
	n.diag.Finished(n.estimator.Finish())
	return e, nil
}

func (n *ReplacerNode) Done() {}
