package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/combiner/corpus"
)

type synthOptions struct {
	corpusDir string
	tactics   string
	output    string
	format    string
	quick     bool
}

func newSynthCmd(configPath *string) *cobra.Command {
	opts := &synthOptions{}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize a strategy tree from a corpus and candidate sequences",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(*configPath, opts.quick)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.open(ctx, opts.corpusDir); err != nil {
				return err
			}

			names, err := corpus.Discover(opts.corpusDir)
			if err != nil {
				return err
			}
			seqs, err := readSequences(opts.tactics)
			if err != nil {
				return err
			}
			res, err := a.pipeline.Synthesize(ctx, names, seqs)
			if err != nil {
				return err
			}
			if err := writeTree(opts.output, opts.format, res.Tree); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %d instances (%d excluded), %d candidates, depth %d, %s\n",
				res.RunID, res.Instances, res.Excluded, res.Candidates, res.Depth, res.Duration)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.corpusDir, "corpus", "c", "", "directory of .smt2 formulas")
	cmd.Flags().StringVarP(&opts.tactics, "tactics", "t", "", "file with one candidate sequence per line")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "-", "where to write the strategy")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "output format: json, text or smt2")
	cmd.Flags().BoolVar(&opts.quick, "quick", false, "cost whole sequences only")
	_ = cmd.MarkFlagRequired("corpus")
	_ = cmd.MarkFlagRequired("tactics")
	return cmd
}
