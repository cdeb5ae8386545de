package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/services/csv"
	"github.com/influxdata/kflow/throughput"
	"github.com/urfave/cli/v2"
)

// ioFlags are shared by the commands that transform a CSV stream.
func ioFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "numeric",
			Aliases: []string{"n"},
			Usage:   "columns parsed as numbers, all others are strings",
		},
		&cli.StringSliceFlag{
			Name:  "var",
			Usage: "NAME=VALUE substituted for ${NAME} in rules, before the environment",
		},
	}
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// openIO returns the input and output named by the first two arguments.
// A missing argument or "-" selects stdin and stdout.
func openIO(ctx *cli.Context) (io.ReadCloser, io.WriteCloser, error) {
	in := io.NopCloser(ctx.App.Reader)
	if name := ctx.Args().Get(0); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, err
		}
		in = f
	}
	var out io.WriteCloser = nopWriteCloser{ctx.App.Writer}
	if name := ctx.Args().Get(1); name != "" && name != "-" {
		f, err := os.Create(name)
		if err != nil {
			in.Close()
			return nil, nil, err
		}
		out = f
	}
	return in, out, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// lookup resolves --var values first, then the environment.
func lookup(ctx *cli.Context) (rules.LookupFunc, error) {
	vars := make(map[string]string)
	for _, v := range ctx.StringSlice("var") {
		kv := strings.SplitN(v, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid var %q, must be NAME=VALUE", v)
		}
		vars[kv[0]] = kv[1]
	}
	byName := rules.MapLookup(vars)
	return func(name string) (string, bool) {
		if v, ok := byName(name); ok {
			return v, true
		}
		return rules.EnvLookup(name)
	}, nil
}

// transform runs a flow reading CSV, applying the node built by newNode and writing CSV.
// The throughput summary of the transform is printed to the error writer of the app.
func transform(ctx *cli.Context, name string, newNode func(opts ...kflow.NodeOption) kflow.Node) error {
	l, err := lookup(ctx)
	if err != nil {
		return err
	}
	in, out, err := openIO(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	counter := &countingReader{r: in}
	reader, err := csv.NewReader(counter, ctx.StringSlice("numeric")...)
	if err != nil {
		out.Close()
		return err
	}

	diag := &summaries{Diagnostic: getDiag(ctx).NewKflowHandler()}
	start := time.Now()
	node := newNode(kflow.WithCompileOptions(rules.WithLookup(l)))
	if err := runFlow(ctx.Context, name, diag, reader, node, csv.NewWriter(out)); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if s, ok := diag.get(node.Name()); ok {
		fmt.Fprintf(ctx.App.ErrWriter, "%s (%s read in %s)\n", s, humanize.Bytes(uint64(counter.n)), time.Since(start).Round(time.Millisecond))
	}
	return nil
}

func runFlow(ctx context.Context, name string, d kflow.Diagnostic, r kflow.RecordReader, n kflow.Node, w kflow.RecordWriter) error {
	f := kflow.NewFlow(name, d)
	if err := f.Chain(kflow.NewSourceNode("csv", r), n, kflow.NewSinkNode("out", w)); err != nil {
		return err
	}
	return f.Run(ctx)
}

// summaries records the final throughput summary of every node while
// passing all diagnostics on.
type summaries struct {
	kflow.Diagnostic

	mu sync.Mutex
	m  map[string]throughput.Summary
}

func (s *summaries) WithFlowContext(flow, id string) kflow.FlowDiagnostic {
	return &flowSummaries{
		FlowDiagnostic: s.Diagnostic.WithFlowContext(flow, id),
		s:              s,
	}
}

func (s *summaries) set(node string, sum throughput.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]throughput.Summary)
	}
	s.m[node] = sum
}

func (s *summaries) get(node string) (throughput.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum, ok := s.m[node]
	return sum, ok
}

type flowSummaries struct {
	kflow.FlowDiagnostic
	s *summaries
}

func (f *flowSummaries) WithNodeContext(node string) kflow.NodeDiagnostic {
	return &nodeSummary{
		NodeDiagnostic: f.FlowDiagnostic.WithNodeContext(node),
		node:           node,
		s:              f.s,
	}
}

type nodeSummary struct {
	kflow.NodeDiagnostic
	node string
	s    *summaries
}

func (n *nodeSummary) Finished(sum throughput.Summary) {
	n.NodeDiagnostic.Finished(sum)
	n.s.set(n.node, sum)
}
