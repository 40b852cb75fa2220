package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/combiner/corpus"
	"github.com/snow-ghost/combiner/evaluate"
	"github.com/snow-ghost/combiner/strategy"
)

func newEvalCmd(configPath *string) *cobra.Command {
	var corpusDir, treePath, tactics string
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run a strategy tree on a corpus and compare it with the candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.open(ctx, corpusDir); err != nil {
				return err
			}
			tree, err := readTree(treePath)
			if err != nil {
				return err
			}
			var seqs []strategy.Sequence
			if tactics != "" {
				if seqs, err = readSequences(tactics); err != nil {
					return err
				}
			}
			names, err := corpus.Discover(corpusDir)
			if err != nil {
				return err
			}
			rep, err := a.pipeline.Evaluate(ctx, tree, names, seqs)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "Name", "Solved", "Unsolved", "Cost")
			table.Append(statsRow("strategy", rep.Strategy))
			for i, c := range rep.Candidates {
				name := c.Sequence
				if i == rep.Best {
					name += " *"
				}
				table.Append(statsRow(name, c.Stats))
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVarP(&corpusDir, "corpus", "c", "", "directory of .smt2 formulas")
	cmd.Flags().StringVar(&treePath, "tree", "", "strategy file, JSON or textual form")
	cmd.Flags().StringVarP(&tactics, "tactics", "t", "", "optional candidate sequences to compare against")
	_ = cmd.MarkFlagRequired("corpus")
	_ = cmd.MarkFlagRequired("tree")
	return cmd
}

func statsRow(name string, s evaluate.Stats) []string {
	return []string{name, strconv.Itoa(s.Solved), strconv.Itoa(s.Unsolved), strconv.FormatFloat(s.Cost, 'g', -1, 64)}
}
