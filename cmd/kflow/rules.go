package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
	"github.com/ghodss/yaml"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/services/storage"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func dbFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "db",
		Usage:   "path of the rule set database",
		Value:   storage.NewConfig().BoltDBPath,
		EnvVars: []string{"KFLOW_DB"},
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "output format, one of toml, yaml or json",
		Value:   "toml",
	}
}

func newRulesCmd() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "convert rules and manage stored rule sets",
		Subcommands: []*cli.Command{
			{
				Name:      "encode",
				Usage:     "print the encoded form of the rules of a file",
				ArgsUsage: "FILE",
				Action:    encodeRules,
			},
			{
				Name:      "decode",
				Usage:     "print encoded rules as a rules file",
				ArgsUsage: "DETAILS",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "kind",
						Aliases: []string{"k"},
						Usage:   "kind of the rules, replace or label",
						Value:   string(storage.KindReplace),
					},
					formatFlag(),
				},
				Action: decodeRules,
			},
			{
				Name:      "put",
				Usage:     "store the rules of a file as a named rule set",
				ArgsUsage: "NAME FILE",
				Flags:     []cli.Flag{dbFlag()},
				Action:    putRuleSet,
			},
			{
				Name:      "get",
				Usage:     "print a stored rule set as a rules file",
				ArgsUsage: "NAME",
				Flags:     []cli.Flag{dbFlag(), formatFlag()},
				Action:    getRuleSet,
			},
			{
				Name:      "list",
				Usage:     "list stored rule sets",
				ArgsUsage: "[PATTERN]",
				Flags:     []cli.Flag{dbFlag()},
				Action:    listRuleSets,
			},
			{
				Name:      "delete",
				Usage:     "delete stored rule sets",
				ArgsUsage: "NAME...",
				Flags:     []cli.Flag{dbFlag()},
				Action:    deleteRuleSets,
			},
		},
	}
}

func encodeRules(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("encode requires exactly one rules file")
	}
	f, err := rules.LoadFile(ctx.Args().First())
	if err != nil {
		return err
	}
	var details string
	if len(f.Label) > 0 {
		details, err = rules.EncodeLabelRules(f.Label)
	} else {
		details, err = rules.EncodeReplaceRules(f.Replace)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(ctx.App.Writer, details)
	return nil
}

func decodeRules(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("decode requires exactly one encoded rules argument")
	}
	kind, err := storage.ParseKind(ctx.String("kind"))
	if err != nil {
		return err
	}
	var f rules.File
	if kind == storage.KindLabel {
		f.Label, err = rules.DecodeLabelRules(ctx.Args().First())
	} else {
		f.Replace, err = rules.DecodeReplaceRules(ctx.Args().First())
	}
	if err != nil {
		return err
	}
	return writeFile(ctx.App.Writer, ctx.String("format"), f)
}

// writeFile writes f in format.
func writeFile(w io.Writer, format string, f rules.File) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "toml":
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(f)
		data = buf.Bytes()
	case "yaml", "yml":
		data, err = yaml.Marshal(f)
	case "json":
		data, err = json.MarshalIndent(f, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// withStore opens the rule set database named by the db flag for the duration of fn.
func withStore(ctx *cli.Context, fn func(*storage.RuleSetStore) error) error {
	srv := storage.NewService(storage.Config{BoltDBPath: ctx.String("db")}, getDiag(ctx).NewStorageHandler())
	if err := srv.Open(); err != nil {
		return err
	}
	defer srv.Close()
	store, err := storage.NewRuleSetStore(srv)
	if err != nil {
		return err
	}
	return fn(store)
}

// storedRuleSet returns the rule set named by the ruleset flag, which must be of kind.
func storedRuleSet(ctx *cli.Context, kind storage.Kind) (rs storage.RuleSet, err error) {
	err = withStore(ctx, func(store *storage.RuleSetStore) error {
		rs, err = store.Get(ctx.String("ruleset"))
		return err
	})
	if err != nil {
		return rs, errors.Wrapf(err, "rule set %q", ctx.String("ruleset"))
	}
	if rs.Kind != kind {
		return rs, fmt.Errorf("rule set %q holds %s rules", rs.ID, rs.Kind)
	}
	return rs, nil
}

func putRuleSet(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return errors.New("put requires a name and a rules file")
	}
	f, err := rules.LoadFile(ctx.Args().Get(1))
	if err != nil {
		return err
	}
	rs := storage.RuleSet{
		ID:           ctx.Args().First(),
		Kind:         storage.KindReplace,
		Replace:      f.Replace,
		LabelOptions: f.LabelOptions,
	}
	if len(f.Label) > 0 {
		rs.Kind = storage.KindLabel
		rs.Replace = nil
		rs.Label = f.Label
	}
	return withStore(ctx, func(store *storage.RuleSetStore) error {
		_, err := store.Replace(rs)
		if err == storage.ErrNoRuleSetExists {
			_, err = store.Create(rs)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "stored %s rule set %q with %d rules\n", rs.Kind, rs.ID, rs.Len())
		return nil
	})
}

func getRuleSet(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("get requires exactly one rule set name")
	}
	return withStore(ctx, func(store *storage.RuleSetStore) error {
		rs, err := store.Get(ctx.Args().First())
		if err != nil {
			return err
		}
		return writeFile(ctx.App.Writer, ctx.String("format"), rules.File{
			Replace:      rs.Replace,
			Label:        rs.Label,
			LabelOptions: rs.LabelOptions,
		})
	})
}

func listRuleSets(ctx *cli.Context) error {
	return withStore(ctx, func(store *storage.RuleSetStore) error {
		sets, err := store.List(ctx.Args().First(), 0, -1)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(ctx.App.Writer, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKind\tRules\tModified")
		for _, rs := range sets {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", rs.ID, rs.Kind, rs.Len(), humanize.Time(rs.Modified))
		}
		return w.Flush()
	})
}

func deleteRuleSets(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return errors.New("delete requires at least one rule set name")
	}
	return withStore(ctx, func(store *storage.RuleSetStore) error {
		for _, id := range ctx.Args().Slice() {
			if err := store.Delete(id); err != nil {
				return errors.Wrapf(err, "rule set %q", id)
			}
		}
		return nil
	})
}
