package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/realDragonium/Umbra/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "dev"

const defaultCfgPath = "/etc/umbra"

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:   "umbra",
		Short: "A protocol aware Minecraft reverse proxy",
		Long: `Umbra routes Minecraft players to backend servers by the address
they connected with. It can take over the login, forward player
identities and hot swap itself without dropping players.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = zerolog.New(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: "15:04:05",
			}).With().Timestamp().Int("pid", os.Getpid()).Logger()
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultCfgPath, "directory holding umbra.json and the server configs")

	rootCmd.AddCommand(
		runCmd(&configPath),
		reloadCmd(&configPath),
		backendsCmd(&configPath),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func readMainConfig(configPath string) (config.UmbraConfig, error) {
	return config.ReadUmbraConfig(filepath.Join(configPath, config.MainConfigFileName))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
