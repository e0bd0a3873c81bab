package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newPingCommand(f *flagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "ping URL",
		Short: "Check that a URL answers a HEAD request",
		Long: `ping sends a HEAD request and exits with 0 when any HTTP response comes back.
With --fail-on-error, statuses of 400 and above count as down.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, f)
			if err != nil {
				return err
			}
			ctx := s.context(cmd.Context())
			defer s.close(ctx)

			r, err := s.requester()
			if err != nil {
				return err
			}

			if !r.Ping(ctx, args[0]) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is %s\n", args[0], color.RedString("down"))
				return &silentError{code: ExitFailure}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is %s (%d)\n", args[0], color.GreenString("up"), r.LastHTTPCode())
			return nil
		},
	}
}
