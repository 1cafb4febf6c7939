package main

import (
	"github.com/spf13/cobra"

	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/modeling"
	"github.com/banerjixplores/climacrop/pkg/log"
)

func newCompareCmd(a *app) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Evaluate all five pipelines on each system type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			systems := dataset.Systems
			if system != "" {
				norm, err := dataset.NormalizeSystem(system)
				if err != nil {
					return err
				}
				systems = []string{norm}
			}
			f, err := dataset.LoadPrepared(a.settings.DataPath)
			if err != nil {
				return err
			}
			for _, sys := range systems {
				table, err := modeling.CompareModels(cmd.Context(), f, sys, a.modelingConfig(nil))
				if err != nil {
					return err
				}
				path, err := modeling.SaveComparison(table, a.settings.ModelsDir)
				if err != nil {
					return err
				}
				log.GetLoggerWithName("compare").Info("Comparison saved", log.SystemKey, sys, log.PathKey, path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "Agricultural or Wild (default both)")
	return cmd
}
