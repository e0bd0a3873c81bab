// Package cli is the requester command line: one command per HTTP verb plus
// ping, save, serve and version.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagValues holds the persistent flags shared by every command.
type flagValues struct {
	config          string
	timeout         Seconds
	maxRedirects    int
	proxy           string
	proxyAuth       string
	proxyAuthMethod string
	sslCA           string
	encoding        string
	responseType    string
	failOnError     bool
	user            string
	auth            string
	userAgent       string
	logLevel        string
	noColor         bool
}

// register binds the persistent flags to fs.
func (f *flagValues) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	f.timeout = Seconds(30 * time.Second)
	fs.Var(&f.timeout, "timeout", "Total request timeout in seconds (30, 0.5) or as a duration (1m30s), 0 for none")
	fs.IntVar(&f.maxRedirects, "max-redirects", 3, "Redirects to follow, 0 to return the redirect response")
	fs.StringVar(&f.proxy, "proxy", "", "Proxy URL, e.g. http://proxy:3128")
	fs.StringVar(&f.proxyAuth, "proxy-auth", "", "Proxy credentials as user:password")
	fs.StringVar(&f.proxyAuthMethod, "proxy-auth-method", "", "Proxy authentication method: BASIC or NTLM")
	fs.StringVar(&f.sslCA, "ssl-ca", "", "CA bundle to verify peers with; peers are not verified without it")
	fs.StringVar(&f.encoding, "encoding", "", "Accept-Encoding value; empty accepts every supported encoding")
	fs.StringVar(&f.responseType, "response-type", "", "Output mode: raw or structured")
	fs.BoolVar(&f.failOnError, "fail-on-error", false, "Fail on HTTP statuses of 400 and above")
	fs.StringVarP(&f.user, "user", "u", "", "Server credentials as user:password")
	fs.StringVar(&f.auth, "auth", "", "Authentication scheme: basic, digest, ntlm or gss-negotiate")
	fs.StringVarP(&f.userAgent, "user-agent", "A", "", "User-Agent header")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
}

// NewRootCommand returns the requester command tree.
func NewRootCommand() *cobra.Command {
	f := &flagValues{}

	root := &cobra.Command{
		Use:   "requester",
		Short: "Issue HTTP requests from the command line",
		Long: `requester sends GET, POST, PUT, DELETE and HEAD requests and prints either
the body or the parsed response.

Examples:
  requester get https://httpbin.org/get -p q=go -p page=2
  requester post https://httpbin.org/post -d name=gopher -d tags[0]=a
  requester get 'https://api.example.com/users/{id}' --var id=42 --select name
  requester head https://example.com --response-type structured
  requester save page.html https://example.com`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if f.noColor {
				color.NoColor = true
			}
		},
	}

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	f.register(root.PersistentFlags())

	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "HEAD"} {
		root.AddCommand(newRequestCommand(f, method))
	}
	root.AddCommand(newPingCommand(f))
	root.AddCommand(newSaveCommand(f))
	root.AddCommand(newServeCommand(f))
	root.AddCommand(newVersionCommand())

	return root
}

// Execute runs the command line with args and returns the process exit
// code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	var silent *silentError
	if !errors.As(err, &silent) {
		fmt.Fprintln(stderr, color.New(color.FgRed).Sprint("Error: "+err.Error()))
	}
	return exitCode(err)
}
