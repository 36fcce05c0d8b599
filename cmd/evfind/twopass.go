package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mkessler/evfind/internal/scan"
)

// newTwoPassCmd builds the file-only two-pass command: Pass 1 buckets every
// candidate by filename/path/extension metadata without reading contents,
// Pass 2 extracts and scores only the selected buckets.
func newTwoPassCmd() *cobra.Command {
	var (
		src           sourceFlags
		categories    []string
		minConfidence float64
		pass1Only     bool
	)

	cmd := &cobra.Command{
		Use:   "twopass",
		Short: "Classify files by metadata first, then score only the promising ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildOptions(&src, flagOut)
			if err != nil {
				return err
			}
			if len(opts.Roots) == 0 && len(opts.PathList) == 0 {
				return fmt.Errorf("nothing to scan: provide --include or --path-list")
			}

			cfg, err := loadRules(flagRules, src.onlyExt)
			if err != nil {
				return err
			}

			database := openAudit(flagOut)
			if database != nil {
				defer database.Close()
			}

			scanner := scan.New(cfg, opts, nil, database)
			pass1, result, err := scanner.RunTwoPass(cmd.Context(), categories, minConfidence, pass1Only)
			if err != nil {
				return err
			}

			if err := pass1.WriteArtifacts(flagOut); err != nil {
				return err
			}
			printPass1Summary(pass1)
			if pass1Only {
				return nil
			}

			if !result.NoMatches {
				if err := writeReports(result.Rows, flagOut); err != nil {
					return err
				}
			}
			printSummary(result)
			return nil
		},
	}

	addSourceFlags(cmd, &src)
	cmd.Flags().StringSliceVar(&categories, "categories", []string{"teaching", "service", "scholarship"},
		"metadata categories to carry into pass 2")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 0,
		"minimum pass-1 confidence for a file to reach pass 2")
	cmd.Flags().BoolVar(&pass1Only, "pass1-only", false, "stop after classification; write only the pass-1 artifacts")
	return cmd
}

// printPass1Summary prints the per-category bucket counts.
func printPass1Summary(p *scan.Pass1Result) {
	sum := p.Summary()
	fmt.Printf("Pass 1: %d files classified\n", sum.TotalFiles)
	for _, cat := range sortedNames(sum.ByCategory) {
		fmt.Printf("  %-14s %d (%d high-confidence)\n", cat, sum.ByCategory[cat], sum.HighConfidence[cat])
	}
}

func sortedNames(m map[string]int) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
