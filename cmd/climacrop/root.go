package main

import (
	"github.com/spf13/cobra"

	"github.com/banerjixplores/climacrop/modeling"
	"github.com/banerjixplores/climacrop/pkg/config"
	"github.com/banerjixplores/climacrop/pkg/log"
	pmetrics "github.com/banerjixplores/climacrop/pkg/metrics"
)

// app carries the loaded settings to the subcommands.
type app struct {
	cfgFile  string
	settings *config.Settings

	dataPath  string
	imagesDir string
	modelsDir string
	logLevel  string
	logFormat string
	nJobs     int
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "climacrop",
		Short:         "Climate and plant disease incidence: models, charts and dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default ./climacrop.yaml if present)")
	f.StringVar(&a.dataPath, "data", "", "survey table, CSV or Parquet (overrides config)")
	f.StringVar(&a.imagesDir, "images", "", "chart artifact directory (overrides config)")
	f.StringVar(&a.modelsDir, "models", "", "model artifact directory (overrides config)")
	f.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	f.StringVar(&a.logFormat, "log-format", "", "json or console (overrides config)")
	f.IntVar(&a.nJobs, "n-jobs", 0, "worker pool size, 0 for every CPU (overrides config)")

	root.AddCommand(
		newServeCmd(a),
		newTrainCmd(a),
		newCompareCmd(a),
		newRenderCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// load reads the settings, applies flag overrides and installs the logger.
func (a *app) load(cmd *cobra.Command) error {
	s, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data") {
		s.DataPath = a.dataPath
	}
	if flags.Changed("images") {
		s.ImagesDir = a.imagesDir
	}
	if flags.Changed("models") {
		s.ModelsDir = a.modelsDir
	}
	if flags.Changed("log-level") {
		s.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		s.LogFormat = a.logFormat
	}
	if flags.Changed("n-jobs") {
		s.NJobs = a.nJobs
	}
	a.settings = s
	log.SetupLoggerWithFormat(s.LogLevel, s.LogFormat)
	return nil
}

// modelingConfig maps the settings onto the tuning configuration.
func (a *app) modelingConfig(m *pmetrics.Collector) modeling.Config {
	return modeling.Config{
		RandomState: a.settings.RandomState,
		TestSize:    a.settings.TestSize,
		CVFolds:     a.settings.CVFolds,
		NJobs:       a.settings.NJobs,
		Metrics:     m,
	}
}
