package requester

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

// headerRecorder accumulates the response header blocks of every hop of an
// execution (redirects and authentication challenges), in the order they
// were received.
type headerRecorder struct {
	mu            sync.Mutex
	blob          bytes.Buffer
	requestHeader string
	lastStatus    int
}

type recorderCtxKey struct{}

func withRecorder(ctx context.Context, rec *headerRecorder) context.Context {
	return context.WithValue(ctx, recorderCtxKey{}, rec)
}

func recorderFrom(ctx context.Context) *headerRecorder {
	rec, _ := ctx.Value(recorderCtxKey{}).(*headerRecorder)
	return rec
}

// recordRequestHook stores the outgoing request head. The last hop wins.
func recordRequestHook(req *http.Request) error {
	if rec := recorderFrom(req.Context()); rec != nil {
		rec.mu.Lock()
		rec.requestHeader = requestHead(req)
		rec.mu.Unlock()
	}
	return nil
}

// recordResponseHook appends the response head of every hop.
func recordResponseHook(req *http.Request, res *http.Response, err error) {
	rec := recorderFrom(req.Context())
	if rec == nil || err != nil || res == nil {
		return
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.lastStatus = res.StatusCode
	writeResponseHead(&rec.blob, res)
}

func (r *headerRecorder) headers() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.blob.Bytes())
}

func (r *headerRecorder) status() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastStatus
}

func (r *headerRecorder) request() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestHeader
}

// writeResponseHead writes the status line, headers and the terminating
// blank line of res.
func writeResponseHead(b *bytes.Buffer, res *http.Response) {
	proto, status := res.Proto, res.Status
	if proto == "" {
		proto = "HTTP/1.1"
	}
	if status == "" {
		status = strconv.Itoa(res.StatusCode) + " " + http.StatusText(res.StatusCode)
	}
	fmt.Fprintf(b, "%s %s\r\n", proto, status)
	_ = res.Header.Write(b)
	if len(res.TransferEncoding) > 0 {
		fmt.Fprintf(b, "Transfer-Encoding: %s\r\n", strings.Join(res.TransferEncoding, ", "))
	}
	b.WriteString("\r\n")
}

func requestHead(req *http.Request) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, req.URL.RequestURI())
	host := req.Host
	if host == "" {
		host = req.URL.Host
	}
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	_ = req.Header.Write(&b)
	b.WriteString("\r\n")
	return b.String()
}
