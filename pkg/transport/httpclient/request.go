package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// NewRequest creates an http.Request whose body can be replayed through
// GetBody, as needed by authentication round trips and redirects.
//
// rawBody may be nil, a string, []byte, *bytes.Buffer, *bytes.Reader,
// io.ReadSeeker or any io.Reader. Plain readers are read fully into memory.
func NewRequest(ctx context.Context, method, url string, rawBody any) (*http.Request, error) {
	if rawBody == nil {
		return http.NewRequestWithContext(ctx, method, url, nil)
	}

	body, err := replayableBody(rawBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		req.Body = http.NoBody
		req.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
	}

	return req, nil
}

// replayableBody returns the bytes of rawBody. Seekable readers are rewound
// first.
func replayableBody(rawBody any) ([]byte, error) {
	switch body := rawBody.(type) {
	case []byte:
		return body, nil
	case string:
		return []byte(body), nil
	case *bytes.Buffer:
		return body.Bytes(), nil
	case *strings.Reader:
		return io.ReadAll(io.NewSectionReader(body, 0, body.Size()))
	case *bytes.Reader:
		return io.ReadAll(io.NewSectionReader(body, 0, body.Size()))
	case io.ReadSeeker:
		if _, err := body.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return io.ReadAll(body)
	case io.Reader:
		return io.ReadAll(body)
	default:
		return nil, fmt.Errorf("httpclient: cannot handle body of type %T", rawBody)
	}
}
