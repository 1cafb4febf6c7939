package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/banerjixplores/climacrop/charts"
	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/modeling"
	"github.com/banerjixplores/climacrop/pkg/log"
)

func newRenderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Short: "Render the chart artifacts into the images directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.GetLoggerWithName("render")
			f, err := dataset.LoadPrepared(a.settings.DataPath)
			if err != nil {
				return err
			}
			in := charts.Inputs{Data: f}

			// Model charts are drawn only when training has run.
			resPath := filepath.Join(a.settings.ModelsDir, modeling.ResultsFile)
			if _, err := os.Stat(resPath); err == nil {
				if in.Results, err = modeling.LoadResults(resPath); err != nil {
					return err
				}
			} else {
				logger.Warn("No modeling results, skipping importance chart", log.PathKey, resPath)
			}
			for _, sys := range dataset.Systems {
				p := filepath.Join(a.settings.ModelsDir, modeling.ComparisonFile(sys))
				if _, err := os.Stat(p); err != nil {
					continue
				}
				t, err := modeling.LoadComparison(p)
				if err != nil {
					return err
				}
				in.Comparisons = append(in.Comparisons, t)
			}

			r := charts.NewRenderer(a.settings.ImagesDir)
			r.Workers = a.settings.NJobs
			_, err = r.RenderAll(cmd.Context(), in)
			return err
		},
	}
}
