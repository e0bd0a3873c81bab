package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luizaranda/requester/pkg/internal"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "requester version %s\n", internal.Version)
		},
	}
}
