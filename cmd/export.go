package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metrowaste/zoneplanner/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Analyze all zones and write the results to a file",
	Long:  "Runs the analysis pipeline over every zone and writes the combined results as csv, xlsx, geojson, or shp.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		switch exportFormat {
		case "csv", "xlsx", "geojson", "shp":
		default:
			return eris.Errorf("unsupported format %q (want csv, xlsx, geojson, or shp)", exportFormat)
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.Analyzer.AnalyzeAll(ctx, cfg.Analysis.MaxConcurrent)
		if err != nil {
			return eris.Wrap(err, "analyze zones")
		}
		if len(results) == 0 {
			return eris.New("no zones registered")
		}

		entries := make([]export.Entry, 0, len(results))
		for _, res := range results {
			z := env.Registry.Get(res.ZoneName)
			if z == nil {
				continue
			}
			entries = append(entries, export.Entry{Zone: z, Result: res})
		}

		// Shapefiles are a multi-file format, written by path rather
		// than through a writer.
		if exportFormat == "shp" {
			if err := export.WriteShapefile(exportOut, entries); err != nil {
				return err
			}
		} else {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close()

			switch exportFormat {
			case "csv":
				err = export.WriteCSV(f, entries)
			case "xlsx":
				err = export.WriteXLSX(f, entries)
			case "geojson":
				err = export.WriteGeoJSON(f, entries)
			}
			if err != nil {
				return err
			}
		}

		zap.L().Info("export written",
			zap.String("format", exportFormat),
			zap.String("path", exportOut),
			zap.Int("zones", len(entries)),
		)
		fmt.Printf("wrote %d zones to %s\n", len(entries), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, xlsx, geojson, shp")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (required)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
