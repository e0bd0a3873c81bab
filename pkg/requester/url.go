package requester

import (
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/valyala/fasttemplate"
)

var (
	// ErrMissingURLParam is returned by ExpandURL for a placeholder without
	// a value.
	ErrMissingURLParam = errors.New("missing value for URL placeholder")

	// ErrEmptyURLParam is returned by ExpandURL for a path placeholder whose
	// value is empty.
	ErrEmptyURLParam = errors.New("empty value for URL path placeholder")
)

type escapeMode int

const (
	pathEscape escapeMode = iota
	queryEscape
	noEscape
)

// ExpandURL replaces {name} placeholders in the path and query of template
// with the escaped values of vars, e.g.
//
//	ExpandURL("https://api.example.com/users/{id}?fields={fields}", map[string]string{...})
//
// Empty values are only allowed in the query.
func ExpandURL(template string, vars map[string]string) (string, error) {
	u, err := url.Parse(template)
	if err != nil {
		return "", newError(CodeURLMalformat, "malformed URL template", err)
	}

	path, err := expand(u.Path, vars, noEscape)
	if err != nil {
		return "", err
	}
	rawPath, err := expand(u.Path, vars, pathEscape)
	if err != nil {
		return "", err
	}
	rawQuery, err := expand(u.RawQuery, vars, queryEscape)
	if err != nil {
		return "", err
	}

	out := *u
	out.Path, out.RawPath, out.RawQuery = path, rawPath, rawQuery
	return out.String(), nil
}

func expand(s string, vars map[string]string, mode escapeMode) (string, error) {
	return fasttemplate.ExecuteFuncStringWithErr(s, "{", "}", func(w io.Writer, tag string) (int, error) {
		v, ok := vars[tag]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingURLParam, tag)
		}
		switch mode {
		case pathEscape:
			if v == "" {
				return 0, fmt.Errorf("%w: %s", ErrEmptyURLParam, tag)
			}
			v = url.PathEscape(v)
		case queryEscape:
			v = url.QueryEscape(v)
		default:
			if v == "" {
				return 0, fmt.Errorf("%w: %s", ErrEmptyURLParam, tag)
			}
		}
		return io.WriteString(w, v)
	})
}
