package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metrowaste/zoneplanner/internal/analysis"
	"github.com/metrowaste/zoneplanner/internal/export"
)

var (
	analyzeAll  bool
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [ZONE]",
	Short: "Analyze a zone: buildings, population, waste, and financials",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if !analyzeAll && len(args) == 0 {
			return eris.New("zone name required unless --all is set")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var results []*analysis.Result
		if analyzeAll {
			results, err = env.Analyzer.AnalyzeAll(ctx, cfg.Analysis.MaxConcurrent)
			if err != nil {
				return eris.Wrap(err, "analyze all zones")
			}
		} else {
			res, err := env.Analyzer.AnalyzeZone(ctx, args[0])
			if err != nil {
				return eris.Wrapf(err, "analyze %s", args[0])
			}
			results = []*analysis.Result{res}
		}

		zap.L().Info("analysis complete", zap.Int("zones", len(results)))

		if analyzeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		for i, res := range results {
			if i > 0 {
				fmt.Println()
			}
			if err := export.WriteReport(os.Stdout, res); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeAll, "all", false, "analyze every registered zone")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit raw JSON instead of a report")
	rootCmd.AddCommand(analyzeCmd)
}
