package requester

import (
	"context"
	"net/http"
	"os"

	"github.com/luizaranda/requester/pkg/log"
)

// Save executes a request and writes its content to path, creating or
// truncating the file. It reports whether both steps succeeded; failures are
// logged.
func (r *Requester) Save(ctx context.Context, path, method, url string, data, params any) bool {
	if method == "" {
		method = http.MethodGet
	}

	res, err := r.Execute(ctx, method, url, data, params)
	if err != nil {
		return false
	}

	if err := writeFile(path, res.Content); err != nil {
		r.mu.Lock()
		logger := r.logger(ctx)
		r.mu.Unlock()
		logger.Warn("saving response failed", log.String("path", path), log.Err(err))
		return false
	}
	return true
}

func writeFile(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return newError(CodeWriteError, "opening "+path, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return newError(CodeWriteError, "writing "+path, err)
	}
	if err := f.Close(); err != nil {
		return newError(CodeWriteError, "closing "+path, err)
	}
	return nil
}

// Ping reports whether a HEAD request to url got any HTTP response.
func (r *Requester) Ping(ctx context.Context, url string) bool {
	_, err := r.Head(ctx, url, nil, nil)
	return err == nil
}
