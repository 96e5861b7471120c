package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/scitran/nims-gateway/pkg/common"
	"github.com/scitran/nims-gateway/pkg/types"
)

// Build information (injected at compile time via ldflags)
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "nims-gateway",
	Short:         "HTTP front-end for the NIMS application",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig resolves the layered configuration and applies logging settings.
func loadConfig() (types.AppConfig, error) {
	configManager, err := common.NewConfigManager[types.AppConfig]()
	if err != nil {
		return types.AppConfig{}, err
	}
	config := configManager.GetConfig()

	if config.DebugMode {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
	if config.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	return config, nil
}
