package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

func newSaveCommand(f *flagValues) *cobra.Command {
	var (
		method string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "save PATH URL",
		Short: "Write the body of a response to a file",
		Example: `  requester save index.html https://example.com
  requester save report.json https://api.example.com/reports -p month=2024-01`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, rawURL := args[0], args[1]

			query, err := parsePairs("param", params)
			if err != nil {
				return err
			}

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

			var q any
			if len(query) > 0 {
				q = query
			}
			if !r.Save(ctx, path, strings.ToUpper(method), rawURL, nil, q) {
				return &silentError{code: ExitFailure}
			}

			info, err := os.Stat(path)
			if err != nil {
				return err
			}
			kind := "unknown"
			if mtype, err := mimetype.DetectFile(path); err == nil {
				kind = mtype.String()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s (%s)\n", humanize.Bytes(uint64(info.Size())), path, kind)
			return nil
		},
	}

	cmd.Flags().StringVarP(&method, "request", "X", http.MethodGet, "Request method")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as key=value, repeatable")

	return cmd
}
