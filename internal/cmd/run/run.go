package run

import (
	"github.com/clambin/go-common/charmer"
	"github.com/clambin/greenhouse-controller/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os/signal"
	"syscall"
)

var Cmd = cobra.Command{
	Use:   "run",
	Short: "Run the greenhouse controller",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := charmer.GetLogger(cmd)
		logger.Info("greenhouse controller starting", "version", cmd.Root().Version)
		defer logger.Info("greenhouse controller stopped")

		tasks, err := app.New(viper.GetViper(), cmd.Root().Version, prometheus.DefaultRegisterer, logger)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return app.Run(ctx, tasks...)
	},
}
