package main

import (
	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/rules"
	"github.com/influxdata/kflow/services/storage"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

func newLabelCmd() *cli.Command {
	flags := append(ruleFlags(),
		&cli.StringFlag{
			Name:    "attribute",
			Aliases: []string{"a"},
			Usage:   "name of the added label attribute",
		},
		&cli.BoolFlag{
			Name:  "binary",
			Usage: "make the match attribute of unlabeled rules nominal {0,1}",
		},
		&cli.BoolFlag{
			Name:  "consume",
			Usage: "drop records no labeled rule matches",
		},
	)
	return &cli.Command{
		Name:      "label",
		Usage:     "add an attribute labeling the records matched by rules",
		ArgsUsage: "[in.csv|-] [out.csv|-]",
		Flags:     append(flags, ioFlags()...),
		Action: func(ctx *cli.Context) error {
			rs, lo, err := labelRules(ctx)
			if err != nil {
				return err
			}
			return transform(ctx, "label", func(opts ...kflow.NodeOption) kflow.Node {
				return kflow.NewLabelerNode("label", rs, lo, opts...)
			})
		},
	}
}

// labelRules loads the rules and options of the label command.
// Flags override the options held by a rules file or stored rule set.
func labelRules(ctx *cli.Context) ([]rules.MatchLabelRule, rules.LabelOptions, error) {
	var (
		rs []rules.MatchLabelRule
		lo rules.LabelOptions
	)
	switch {
	case ctx.IsSet("rules"):
		f, err := rules.LoadFile(ctx.String("rules"))
		if err != nil {
			return nil, lo, err
		}
		if len(f.Label) == 0 && len(f.Replace) > 0 {
			return nil, lo, errors.New("rules file holds replace rules, use the replace command")
		}
		rs, lo = f.Label, f.LabelOptions
	case ctx.IsSet("details"):
		var err error
		rs, err = rules.DecodeLabelRules(ctx.String("details"))
		if err != nil {
			return nil, lo, err
		}
	case ctx.IsSet("ruleset"):
		set, err := storedRuleSet(ctx, storage.KindLabel)
		if err != nil {
			return nil, lo, err
		}
		rs, lo = set.Label, set.LabelOptions
	default:
		return nil, lo, errNoRules
	}
	if ctx.IsSet("attribute") {
		lo.AttributeName = ctx.String("attribute")
	}
	if ctx.IsSet("binary") {
		lo.NominalBinary = ctx.Bool("binary")
	}
	if ctx.IsSet("consume") {
		lo.ConsumeNonMatching = ctx.Bool("consume")
	}
	return rs, lo, nil
}
