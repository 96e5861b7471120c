package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// checkConfigCmd validates the resolved configuration without serving, so a
// bad config file fails a deploy before the old process is stopped.
var checkConfigCmd = &cobra.Command{
	Use:   "checkconfig",
	Short: "Validate the configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.Validate(); err != nil {
			return err
		}

		// Missing asset roots are a warning, not an error: deploys often
		// stage config before content.
		for prefix, root := range config.Static.Roots() {
			if _, err := os.Stat(root); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: static root for %s missing: %s\n", prefix, root)
			}
		}
		if config.Datastore.Enabled {
			if _, err := os.Stat(config.Datastore.Root); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: datastore root missing: %s\n", config.Datastore.Root)
			}
		}

		fmt.Fprintln(cmd.OutOrStdout(), "config ok")
		return nil
	},
}
