package requester

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
)

// _allEncodings is sent when Encoding is set to "".
const _allEncodings = "deflate, gzip"

func acceptEncoding(enc string) string {
	if enc == "" {
		return _allEncodings
	}
	return enc
}

// decodeContent undoes the Content-Encoding of a response body. Encodings
// are applied in reverse order of listing.
func decodeContent(contentEncoding string, body []byte) ([]byte, error) {
	if contentEncoding == "" || len(body) == 0 {
		return body, nil
	}

	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		var err error
		switch coding := strings.ToLower(strings.TrimSpace(codings[i])); coding {
		case "", "identity":
		case "gzip", "x-gzip":
			body, err = readAllFrom(gzip.NewReader(bytes.NewReader(body)))
		case "deflate":
			body, err = inflate(body)
		default:
			err = fmt.Errorf("unrecognized content encoding %q", coding)
		}
		if err != nil {
			return nil, newError(CodeBadContentEncoding, "decoding response body", err)
		}
	}
	return body, nil
}

// inflate accepts zlib wrapped deflate, as the RFC says, and raw deflate,
// as some servers send.
func inflate(body []byte) ([]byte, error) {
	if out, err := readAllFrom(zlib.NewReader(bytes.NewReader(body))); err == nil {
		return out, nil
	}
	return io.ReadAll(flate.NewReader(bytes.NewReader(body)))
}

func readAllFrom(r io.ReadCloser, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
