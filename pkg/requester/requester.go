// Package requester is a small HTTP client: one object configures and issues
// GET, POST, PUT, DELETE and HEAD requests and returns either the body or a
// parsed response with status, headers and transfer metadata.
//
//	r, err := requester.New(requester.WithResponseType(requester.ResponseStructured))
//	if err != nil {
//		return err
//	}
//	res, err := r.Get(ctx, "https://example.com/search", requester.Values{{Key: "q", Value: "go"}})
package requester

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/transport/httpclient"
)

// Requester issues HTTP requests with a fixed set of Settings.
//
// Calls are serialized: a Requester runs one request at a time and Reset
// waits for the running request to finish.
type Requester struct {
	mu       sync.Mutex
	defaults Settings
	settings Settings
	engine   *engine
	lastCode int
}

// New returns a Requester configured with DefaultSettings and opts.
func New(opts ...Option) (*Requester, error) {
	return NewWithDefaults(DefaultSettings(), opts...)
}

// NewWithDefaults returns a Requester whose defaults, restored by Reset,
// are the given value.
func NewWithDefaults(defaults Settings, opts ...Option) (*Requester, error) {
	r := &Requester{defaults: defaults}
	if err := r.Reset(opts...); err != nil {
		return nil, err
	}
	return r, nil
}

// Reset restores the defaults and applies opts over them. On error the
// previous configuration stays in place.
func (r *Requester) Reset(opts ...Option) error {
	s := r.defaults
	for _, opt := range opts {
		opt(&s)
	}

	e, err := newEngine(s)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.engine.close()
	r.settings, r.engine = s, e
	return nil
}

// Settings returns a copy of the current settings.
func (r *Requester) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// SetHTTPAuth authenticates the following requests as userPass
// ("user:password") with scheme, until the next Reset.
func (r *Requester) SetHTTPAuth(userPass string, scheme AuthScheme) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.settings
	WithHTTPAuth(userPass, scheme)(&s)
	e, err := newEngine(s)
	if err != nil {
		return err
	}

	r.engine.close()
	r.settings, r.engine = s, e
	return nil
}

// LastHTTPCode returns the status code of the last response received, or 0
// before any.
func (r *Requester) LastHTTPCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCode
}

// Get executes a GET request with params as query string.
func (r *Requester) Get(ctx context.Context, url string, params any) (*Response, error) {
	return r.Execute(ctx, http.MethodGet, url, nil, params)
}

// Post executes a POST request.
func (r *Requester) Post(ctx context.Context, url string, data, params any) (*Response, error) {
	return r.Execute(ctx, http.MethodPost, url, data, params)
}

// Put executes a PUT request.
func (r *Requester) Put(ctx context.Context, url string, data, params any) (*Response, error) {
	return r.Execute(ctx, http.MethodPut, url, data, params)
}

// Delete executes a DELETE request. Array-shaped data is urlencoded.
func (r *Requester) Delete(ctx context.Context, url string, data, params any) (*Response, error) {
	return r.Execute(ctx, http.MethodDelete, url, data, params)
}

// Head executes a HEAD request. The header blob is returned as content in
// raw mode.
func (r *Requester) Head(ctx context.Context, url string, data, params any) (*Response, error) {
	return r.Execute(ctx, http.MethodHead, url, data, params)
}

// Execute performs one request.
//
// data is the body: nil, a string, []byte, an io.Reader or array-shaped
// (Values, url.Values, maps and slices). params is a pre-built query string
// or array-shaped, and is always appended to the URL.
//
// Any transport failure, and with FailOnError any status of 400 or more, is
// returned as an *Error.
func (r *Requester) Execute(ctx context.Context, method, rawURL string, data, params any) (*Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	method = strings.ToUpper(method)
	logger := r.logger(ctx).With(log.String("method", method), log.String("url", rawURL))

	res, err := r.execute(ctx, method, rawURL, data, params)
	if err != nil {
		logger.Warn("request failed", log.Err(err))
		return nil, err
	}

	logger.Debug("request executed",
		log.Int("status", res.Info.HTTPCode),
		log.Int("redirects", res.Info.RedirectCount),
		log.Duration("elapsed", res.Info.TotalTime))
	return res, nil
}

func (r *Requester) execute(ctx context.Context, method, rawURL string, data, params any) (res *Response, err error) {
	target, err := buildURL(rawURL, params)
	if err != nil {
		return nil, err
	}

	body, err := encodePayload(method, data)
	if err != nil {
		return nil, err
	}

	rec := &headerRecorder{}
	req, err := httpclient.NewRequest(withRecorder(ctx, rec), method, target, body.body)
	if err != nil {
		return nil, newError(CodeURLMalformat, "building request", err)
	}
	if body.contentType != "" {
		req.Header.Set("Content-Type", body.contentType)
	}
	if r.settings.Encoding != nil {
		req.Header.Set("Accept-Encoding", acceptEncoding(*r.settings.Encoding))
	}

	ctx, span := startSpan(req)
	req = req.WithContext(ctx)

	var info *TransferInfo
	defer func() { endSpan(span, info, err) }()

	start := time.Now()
	httpRes, doErr := r.engine.client.Do(req)
	if code := rec.status(); code != 0 {
		r.lastCode = code
	}
	if doErr != nil {
		return nil, transportError(doErr, r.engine.proxyHost)
	}
	defer httpRes.Body.Close()

	var content []byte
	if method != http.MethodHead {
		if content, err = io.ReadAll(httpRes.Body); err != nil {
			return nil, transportError(err, r.engine.proxyHost)
		}
	}
	if r.settings.Encoding != nil {
		if content, err = decodeContent(httpRes.Header.Get("Content-Encoding"), content); err != nil {
			return nil, err
		}
	}

	headers := rec.headers()
	info = &TransferInfo{
		URL:           httpRes.Request.URL.String(),
		HTTPCode:      httpRes.StatusCode,
		ContentType:   httpRes.Header.Get("Content-Type"),
		HeaderSize:    len(headers),
		RequestHeader: rec.request(),
		RedirectCount: redirectCount(httpRes),
		TotalTime:     time.Since(start),
	}
	r.lastCode = httpRes.StatusCode

	if r.settings.FailOnError && httpRes.StatusCode >= http.StatusBadRequest {
		return nil, newError(CodeHTTPReturnedError, "the requested URL returned error: "+httpRes.Status, nil)
	}

	if r.settings.ResponseType == ResponseStructured {
		return ShapeResponse(append(headers, content...), len(headers), *info), nil
	}
	if method == http.MethodHead {
		content = headers
	}
	return &Response{Content: content, Info: *info}, nil
}

func (r *Requester) logger(ctx context.Context) log.Logger {
	if r.settings.Logger != nil {
		return r.settings.Logger
	}
	return log.FromContext(ctx)
}

// buildURL validates rawURL and appends the encoded params to it.
func buildURL(rawURL string, params any) (string, error) {
	target := rawURL
	if query := BuildQuery(params); query != "" {
		base, fragment, hasFragment := strings.Cut(rawURL, "#")
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		target = base + sep + query
		if hasFragment {
			target += "#" + fragment
		}
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", newError(CodeURLMalformat, "malformed URL", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", newError(CodeUnsupportedProtocol, fmt.Sprintf("protocol %q not supported", u.Scheme), nil)
	}
	if u.Host == "" {
		return "", newError(CodeURLMalformat, "no host in URL "+target, nil)
	}
	return target, nil
}

// redirectCount walks the chain of requests created by redirects.
func redirectCount(res *http.Response) int {
	n := 0
	for req := res.Request; req != nil && req.Response != nil; req = req.Response.Request {
		n++
	}
	return n
}
