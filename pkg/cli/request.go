package cli

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/luizaranda/requester/pkg/requester"
	"github.com/luizaranda/requester/pkg/telemetry"
	"github.com/luizaranda/requester/pkg/telemetry/tracing"
)

type requestFlags struct {
	params  []string
	data    []string
	dataRaw string
	vars    []string
	sel     string
	pretty  bool
}

func newRequestCommand(f *flagValues, method string) *cobra.Command {
	rf := &requestFlags{}
	name := strings.ToLower(method)

	cmd := &cobra.Command{
		Use:   name + " URL",
		Short: "Send a " + method + " request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, f, rf, method, args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringArrayVarP(&rf.params, "param", "p", nil, "Query parameter as key=value, repeatable")
	fs.StringArrayVar(&rf.vars, "var", nil, "Value of a {name} URL placeholder as name=value, repeatable")
	fs.StringVar(&rf.sel, "select", "", "Print only the value at this JSON path of the body, e.g. headers.Host")
	fs.BoolVar(&rf.pretty, "pretty", false, "Indent JSON bodies")

	// GET and HEAD never send a body.
	if method != http.MethodGet && method != http.MethodHead {
		fs.StringArrayVarP(&rf.data, "data", "d", nil, "Body field as key=value, repeatable")
		fs.StringVar(&rf.dataRaw, "data-raw", "", "Body sent as is")
		cmd.MarkFlagsMutuallyExclusive("data", "data-raw")
	}

	return cmd
}

func runRequest(cmd *cobra.Command, f *flagValues, rf *requestFlags, method, rawURL string) error {
	params, err := parsePairs("param", rf.params)
	if err != nil {
		return err
	}

	var data any
	switch {
	case rf.dataRaw != "":
		data = rf.dataRaw
	case len(rf.data) > 0:
		if data, err = parsePairs("data", rf.data); err != nil {
			return err
		}
	}

	s, err := newSession(cmd, f)
	if err != nil {
		return err
	}
	ctx := s.context(cmd.Context())
	defer s.close(ctx)

	if len(rf.vars) > 0 {
		vars, err := parseVars(rf.vars)
		if err != nil {
			return err
		}
		if u, err := url.Parse(rawURL); err == nil {
			ctx = tracing.WithEndpointTemplate(ctx, u.Path)
		}
		if rawURL, err = requester.ExpandURL(rawURL, vars); err != nil {
			return err
		}
	}

	r, err := s.requester()
	if err != nil {
		return err
	}

	var query any
	if len(params) > 0 {
		query = params
	}

	ctx, span := telemetry.StartSpan(ctx, "cli."+strings.ToLower(method))
	defer span.Finish()

	res, err := r.Execute(ctx, method, rawURL, data, query)
	if err != nil {
		span.NoticeError(err)
		return err
	}
	telemetry.Histogram(ctx, "cli.response.size", float64(len(res.Content)), telemetry.Tags("method", method))

	return printResponse(cmd.OutOrStdout(), res, r.Settings().ResponseType, rf)
}

// parsePairs parses key=value arguments keeping their order.
func parsePairs(flag string, pairs []string) (requester.Values, error) {
	values := make(requester.Values, 0, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, &usageError{err: fmt.Errorf("invalid --%s %q, expected key=value", flag, pair)}
		}
		values = values.Add(key, value)
	}
	return values, nil
}

func parseVars(pairs []string) (map[string]string, error) {
	values, err := parsePairs("var", pairs)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string, len(values))
	for _, p := range values {
		vars[p.Key] = p.Value.(string)
	}
	return vars, nil
}

var errNoMatch = errors.New("no value at path")

func printResponse(w io.Writer, res *requester.Response, rt requester.ResponseType, rf *requestFlags) error {
	body, err := renderBody(res.Content, rf)
	if err != nil {
		return err
	}

	if rt == requester.ResponseStructured && rf.sel == "" {
		printHead(w, res)
	}

	_, err = w.Write(body)
	if err == nil && len(body) > 0 && body[len(body)-1] != '\n' {
		_, err = io.WriteString(w, "\n")
	}
	return err
}

func renderBody(body []byte, rf *requestFlags) ([]byte, error) {
	if rf.sel != "" {
		if !gjson.ValidBytes(body) {
			return nil, fmt.Errorf("--select %q: body is not JSON", rf.sel)
		}
		result := gjson.GetBytes(body, rf.sel)
		if !result.Exists() {
			return nil, fmt.Errorf("--select %q: %w", rf.sel, errNoMatch)
		}
		if result.Type == gjson.String {
			return []byte(result.Str), nil
		}
		body = []byte(result.Raw)
	}

	if rf.pretty && gjson.ValidBytes(body) {
		body = pretty.Pretty(body)
		if !color.NoColor {
			body = pretty.Color(body, nil)
		}
	}
	return body, nil
}

// printHead writes the status line, the sorted headers and a blank line.
func printHead(w io.Writer, res *requester.Response) {
	fmt.Fprintln(w, statusColor(res.Info.HTTPCode).Sprint(res.Status))

	keys := make([]string, 0, len(res.Headers))
	for k := range res.Headers {
		if k != requester.StatusKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	key := color.New(color.FgCyan)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", key.Sprint(k), res.Headers[k])
	}
	fmt.Fprintln(w)
}

func statusColor(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return color.New(color.FgGreen, color.Bold)
	case code >= 300 && code < 400:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}
