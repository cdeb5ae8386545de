package main

import (
	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/services/storage"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var errNoRules = errors.New("one of --rules, --details or --ruleset is required")

// ruleFlags select where the rules of a transform come from.
func ruleFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "rules",
			Aliases: []string{"r"},
			Usage:   "rules file in TOML, YAML or JSON format",
		},
		&cli.StringFlag{
			Name:    "details",
			Aliases: []string{"d"},
			Usage:   "rules in their encoded form",
		},
		&cli.StringFlag{
			Name:  "ruleset",
			Usage: "name of a rule set stored in --db",
		},
		dbFlag(),
	}
}

func newReplaceCmd() *cli.Command {
	return &cli.Command{
		Name:      "replace",
		Usage:     "replace substrings of string attributes",
		ArgsUsage: "[in.csv|-] [out.csv|-]",
		Flags:     append(ruleFlags(), ioFlags()...),
		Action: func(ctx *cli.Context) error {
			rs, err := replaceRules(ctx)
			if err != nil {
				return err
			}
			return transform(ctx, "replace", func(opts ...kflow.NodeOption) kflow.Node {
				return kflow.NewReplacerNode("replace", rs, opts...)
			})
		},
	}
}

func replaceRules(ctx *cli.Context) ([]rules.MatchReplaceRule, error) {
	switch {
	case ctx.IsSet("rules"):
		f, err := rules.LoadFile(ctx.String("rules"))
		if err != nil {
			return nil, err
		}
		if len(f.Replace) == 0 && len(f.Label) > 0 {
			return nil, errors.New("rules file holds label rules, use the label command")
		}
		return f.Replace, nil
	case ctx.IsSet("details"):
		return rules.DecodeReplaceRules(ctx.String("details"))
	case ctx.IsSet("ruleset"):
		rs, err := storedRuleSet(ctx, storage.KindReplace)
		if err != nil {
			return nil, err
		}
		return rs.Replace, nil
	}
	return nil, errNoRules
}
