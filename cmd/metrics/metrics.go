package metrics

import (
	"context"
	"fmt"
	"time"

	"grid-keeper/cmd/root"
	"grid-keeper/internal/config"
	"grid-keeper/services"

	"github.com/spf13/cobra"
)

var (
	pushGatewayAddr string
	timeout         time.Duration
)

func init() {
	root.RootCmd.AddCommand(Cmd)
	Cmd.Flags().SortFlags = false
	Cmd.Flags().StringVarP(&pushGatewayAddr, "addr", "a", "", "Pushgateway address (default: metrics.pushgateway)")
	Cmd.Flags().DurationVarP(&timeout, "timeout", "t", 30*time.Second, "Push timeout")
}

var Cmd = &cobra.Command{
	Use:   "metrics",
	Short: "Probe all services and push their state to a Prometheus pushgateway",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Get()
		if pushGatewayAddr == "" {
			pushGatewayAddr = cfg.Metrics.Pushgateway
		}
		manager, err := services.NewServiceManager(cfg)
		if err != nil {
			return &root.ExitError{Code: 1, Err: err}
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		if err := services.CollectAndPushMetrics(ctx, manager, pushGatewayAddr, cfg.Metrics.Job); err != nil {
			return &root.ExitError{Code: 1, Err: fmt.Errorf("%w, check that the pushgateway address is reachable", err)}
		}
		fmt.Printf("Metrics pushed to %s\n", pushGatewayAddr)
		return nil
	},
}
