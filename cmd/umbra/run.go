package main

import (
	"github.com/realDragonium/Umbra/worker"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().Str("version", version).Str("config", *configPath).Msg("starting up")
			return worker.RunProxy(*configPath, version)
		},
	}
}
