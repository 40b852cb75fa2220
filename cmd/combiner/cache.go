package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snow-ghost/combiner/corpus"
	"github.com/snow-ghost/combiner/pipeline"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Build or inspect the cost cache journal",
	}
	cmd.AddCommand(newCacheBuildCmd(configPath), newCacheInspectCmd(configPath))
	return cmd
}

func newCacheBuildCmd(configPath *string) *cobra.Command {
	var corpusDir, tactics string
	var quick bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Measure every candidate on the corpus and seal the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(*configPath, quick)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.open(ctx, corpusDir); err != nil {
				return err
			}
			names, err := corpus.Discover(corpusDir)
			if err != nil {
				return err
			}
			seqs, err := readSequences(tactics)
			if err != nil {
				return err
			}
			instances, err := a.pipeline.Load(ctx, names)
			if err != nil {
				return err
			}
			cache, err := a.pipeline.BuildCache(ctx, instances, seqs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d sections sealed over %d instances (%s mode)\n",
				cache.Len(), len(instances), cache.Mode())
			return nil
		},
	}
	cmd.Flags().StringVarP(&corpusDir, "corpus", "c", "", "directory of .smt2 formulas")
	cmd.Flags().StringVarP(&tactics, "tactics", "t", "", "file with one candidate sequence per line")
	cmd.Flags().BoolVar(&quick, "quick", false, "cost whole sequences only")
	_ = cmd.MarkFlagRequired("corpus")
	_ = cmd.MarkFlagRequired("tactics")
	return cmd
}

func newCacheInspectCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Summarize the sealed sections of the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(*configPath, false)
			if err != nil {
				return err
			}
			defer a.close()
			journal, err := pipeline.NewJournal(a.cfg, a.logger.GetSlog())
			if err != nil {
				return err
			}
			defer journal.Close()

			sections, err := journal.Load(ctx)
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "Index", "Mode", "Solved", "Sequence")
			for _, s := range sections {
				table.Append([]string{strconv.Itoa(s.Index), s.Mode.String(), strconv.Itoa(len(s.Entries)), s.Sequence})
			}
			table.Render()
			return nil
		},
	}
}
