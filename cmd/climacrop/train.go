package main

import (
	"github.com/spf13/cobra"

	"github.com/banerjixplores/climacrop/dataset"
	"github.com/banerjixplores/climacrop/modeling"
	"github.com/banerjixplores/climacrop/pkg/log"
)

func newTrainCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Tune the per-system models and fit the scenario zone model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.GetLoggerWithName("train")
			f, err := dataset.LoadPrepared(a.settings.DataPath)
			if err != nil {
				return err
			}

			res, err := modeling.Run(cmd.Context(), f, a.modelingConfig(nil))
			if err != nil {
				return err
			}
			path, err := modeling.SaveResults(res, a.settings.ModelsDir)
			if err != nil {
				return err
			}
			logger.Info("Results saved", log.PathKey, path, log.RunIDKey, res.RunID)

			zm, err := modeling.TrainZoneModel(f)
			if err != nil {
				return err
			}
			path, err = modeling.SaveZoneModel(zm, a.settings.ModelsDir)
			if err != nil {
				return err
			}
			logger.Info("Zone model saved", log.PathKey, path)
			return nil
		},
	}
}
