package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHealthCmd(a *app, g *globalFlags) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the configured provider is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.setup(cmd, g)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := rt.provider.HealthCheck(ctx)
			if err != nil {
				rt.logger.Debug("health check failed", zap.String("provider", rt.provider.Name()), zap.Error(err))
				return fmt.Errorf("provider %s is unhealthy: %w", rt.provider.Name(), err)
			}
			if status == nil || !status.Healthy {
				return fmt.Errorf("provider %s is unhealthy", rt.provider.Name())
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: healthy (latency %s)\n", rt.provider.Name(), status.Latency.Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "health-timeout", 10*time.Second, "health check timeout")
	return cmd
}
