package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/banerjixplores/climacrop/dashboard"
	"github.com/banerjixplores/climacrop/dataset"
	pmetrics "github.com/banerjixplores/climacrop/pkg/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.settings
			if cmd.Flags().Changed("addr") {
				s.HTTPAddr = addr
			}
			m := pmetrics.NewCollector(prometheus.DefaultRegisterer)
			cache := dataset.NewCache(s.CacheSize, s.CacheTTL, dataset.WithMetrics(m))
			srv := dashboard.New(dashboard.Config{
				Addr:      s.HTTPAddr,
				DataPath:  s.DataPath,
				ImagesDir: s.ImagesDir,
				ModelsDir: s.ModelsDir,
			}, dashboard.WithCache(cache), dashboard.WithMetrics(m))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
