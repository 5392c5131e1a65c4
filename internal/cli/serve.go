package cli

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decision API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context())
	},
}

var shadowWorkerCmd = &cobra.Command{
	Use:   "shadow-worker",
	Short: "Consume shadow traffic from Kafka and compare against production verdicts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunShadowWorker(cmd.Context())
	},
}
