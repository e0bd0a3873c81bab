package requester

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

const _formURLEncoded = "application/x-www-form-urlencoded"

// payload is an encoded request body.
type payload struct {
	body        any
	contentType string
}

// encodePayload turns the data argument of Execute into a request body.
//
// Strings, bytes and readers are sent as they are. Array-shaped data is
// sent as multipart/form-data, except for DELETE where it is urlencoded
// exactly like BuildQuery. HEAD requests never carry a body.
func encodePayload(method string, data any) (payload, error) {
	if isEmpty(data) || method == http.MethodHead {
		return payload{}, nil
	}

	switch d := data.(type) {
	case string:
		return payload{body: d, contentType: _formURLEncoded}, nil
	case []byte:
		return payload{body: d, contentType: _formURLEncoded}, nil
	case io.Reader:
		return payload{body: d, contentType: _formURLEncoded}, nil
	}

	if !isArrayShaped(data) {
		return payload{}, newError(CodeBadFunctionArgument, fmt.Sprintf("unsupported data type %T", data), nil)
	}

	if method == http.MethodDelete {
		return payload{body: BuildQuery(data), contentType: _formURLEncoded}, nil
	}

	return multipartPayload(data)
}

func multipartPayload(data any) (payload, error) {
	pairs, _ := flatten("", data)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, kv := range pairs {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return payload{}, newError(CodeFailedInit, "encoding multipart body", err)
		}
	}
	if err := w.Close(); err != nil {
		return payload{}, newError(CodeFailedInit, "encoding multipart body", err)
	}

	return payload{body: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}
