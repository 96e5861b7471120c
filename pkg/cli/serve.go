package cli

import (
	"github.com/spf13/cobra"

	"github.com/scitran/nims-gateway/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}

		gw, err := gateway.NewGateway(config)
		if err != nil {
			return err
		}
		return gw.Start()
	},
}
