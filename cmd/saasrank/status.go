package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog statistics and index health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.server.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), status)
		},
	}
}
