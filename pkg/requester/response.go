package requester

import (
	"strings"
	"time"
)

// StatusKey is the key ParseHTTPHeader stores status lines under.
const StatusKey = "status"

// TransferInfo is metadata about a completed execution.
type TransferInfo struct {
	// URL is the effective URL, after redirects.
	URL string
	// HTTPCode is the status code of the last response.
	HTTPCode    int
	ContentType string
	// HeaderSize is the length of the header blob of every hop.
	HeaderSize int
	// RequestHeader is the head of the last request sent.
	RequestHeader string
	RedirectCount int
	TotalTime     time.Duration
}

// Response is the result of an execution. With ResponseRaw only Content and
// Info are set.
type Response struct {
	Status    string
	Headers   map[string]string
	RawHeader string
	Content   []byte
	Allow     []string
	Info      TransferInfo
}

// String returns the content as text.
func (r *Response) String() string {
	if r == nil {
		return ""
	}
	return string(r.Content)
}

// ShapeResponse splits raw at headerSize into the header blob and the body
// and parses the headers. Offsets outside raw are clamped.
func ShapeResponse(raw []byte, headerSize int, info TransferInfo) *Response {
	headerSize = min(max(headerSize, 0), len(raw))

	rawHeader := strings.TrimSpace(string(raw[:headerSize]))
	headers := ParseHTTPHeader(rawHeader)

	res := &Response{
		Status:    headers[StatusKey],
		Headers:   headers,
		RawHeader: rawHeader,
		Content:   raw[headerSize:],
		Allow:     []string{},
		Info:      info,
	}
	if allow, ok := headers["Allow"]; ok {
		res.Allow = strings.Split(allow, ", ")
	}
	return res
}

// ParseHTTPHeader parses a header blob into a map. Each line is split on
// its first ": ". A line without it is a status line and is stored under
// StatusKey. Later lines overwrite earlier ones, so with several hops the
// last one wins. Blank lines are skipped.
func ParseHTTPHeader(text string) map[string]string {
	headers := make(map[string]string)
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r", ""), "\n") {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ": ")
		if !found {
			headers[StatusKey] = line
			continue
		}
		headers[name] = value
	}
	return headers
}
