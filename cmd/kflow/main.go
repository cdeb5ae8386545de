// Command kflow applies match/replace and match/label rules to CSV streams
// and manages rule sets stored in a kflow database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/influxdata/kflow/services/diagnostic"
	"github.com/influxdata/kflow/services/logging"
	"github.com/urfave/cli/v2"
)

// These variables are populated via the Go linker.
var (
	version string
	commit  string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "kflow",
		Usage:     "apply substring replace and label rules to CSV record streams",
		UsageText: "kflow [global options] command [command options] [arguments...]",
		Version:   fmt.Sprintf("%s (git: %s)", version, commit),
		Reader:    stdin,
		Writer:    stdout,
		ErrWriter: stderr,
		Metadata:  make(map[string]interface{}),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level, one of debug, info, warn or error",
				Value:   "warn",
				EnvVars: []string{"KFLOW_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "log encoding, logfmt or json",
				Value: "logfmt",
			},
		},
		Before: withDiagnostic,
		After:  closeDiagnostic,
		Commands: []*cli.Command{
			newReplaceCmd(),
			newLabelCmd(),
			newRulesCmd(),
		},
	}
}

// withDiagnostic opens a logging service writing to the error writer of the app.
func withDiagnostic(ctx *cli.Context) error {
	c := logging.NewConfig()
	c.Level = ctx.String("log-level")
	c.Encoding = ctx.String("log-format")
	if err := c.Validate(); err != nil {
		return err
	}
	ls := logging.NewService(c, ctx.App.Writer, ctx.App.ErrWriter)
	if err := ls.Open(); err != nil {
		return err
	}
	ctx.App.Metadata["logs"] = ls
	ctx.App.Metadata["diag"] = diagnostic.NewService(ls.Root())
	return nil
}

func closeDiagnostic(ctx *cli.Context) error {
	if ls, ok := ctx.App.Metadata["logs"].(*logging.Service); ok {
		return ls.Close()
	}
	return nil
}

func getDiag(ctx *cli.Context) *diagnostic.Service {
	d, ok := ctx.App.Metadata["diag"].(*diagnostic.Service)
	if !ok {
		panic("missing diagnostic service")
	}
	return d
}
