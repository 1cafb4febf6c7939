package main

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/banerjixplores/climacrop/pkg/config"
)

func newConfigCmd(a *app) *cobra.Command {
	var write string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration, or write it to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if write != "" {
				return config.Save(a.settings, write)
			}
			b, err := yaml.Marshal(a.settings)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringVar(&write, "write", "", "write the configuration as YAML to this path")
	return cmd
}
