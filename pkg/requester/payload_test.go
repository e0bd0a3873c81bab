package requester

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePayload(t *testing.T) {
	data := Values{{Key: "a", Value: "1"}, {Key: "b", Value: []string{"x", "y"}}}

	t.Run("empty data has no body", func(t *testing.T) {
		for _, d := range []any{nil, "", []byte{}, Values{}} {
			p, err := encodePayload(http.MethodPost, d)
			require.NoError(t, err)
			assert.Nil(t, p.body)
			assert.Empty(t, p.contentType)
		}
	})

	t.Run("head never has a body", func(t *testing.T) {
		p, err := encodePayload(http.MethodHead, "x=1")
		require.NoError(t, err)
		assert.Nil(t, p.body)
	})

	t.Run("string is sent as is", func(t *testing.T) {
		p, err := encodePayload(http.MethodPut, "raw=1")
		require.NoError(t, err)
		assert.Equal(t, "raw=1", p.body)
		assert.Equal(t, _formURLEncoded, p.contentType)
	})

	t.Run("delete urlencodes arrays", func(t *testing.T) {
		p, err := encodePayload(http.MethodDelete, data)
		require.NoError(t, err)
		assert.Equal(t, BuildQuery(data), p.body)
		assert.Equal(t, _formURLEncoded, p.contentType)
	})

	t.Run("post sends arrays as multipart", func(t *testing.T) {
		p, err := encodePayload(http.MethodPost, data)
		require.NoError(t, err)

		mediaType, params, err := mime.ParseMediaType(p.contentType)
		require.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)

		body, ok := p.body.([]byte)
		require.True(t, ok)
		form, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(1 << 20)
		require.NoError(t, err)

		assert.Equal(t, []string{"1"}, form.Value["a"])
		assert.Equal(t, []string{"x"}, form.Value["b[0]"])
		assert.Equal(t, []string{"y"}, form.Value["b[1]"])
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := encodePayload(http.MethodPost, struct{}{})
		assert.Equal(t, CodeBadFunctionArgument, CodeOf(err))
	})
}

func TestDecodeContent(t *testing.T) {
	const plain = `{"hello":"world"}`

	compress := func(t *testing.T, newWriter func(io.Writer) io.WriteCloser) []byte {
		t.Helper()
		var buf bytes.Buffer
		w := newWriter(&buf)
		_, err := io.WriteString(w, plain)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		return buf.Bytes()
	}

	gz := compress(t, func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) })
	zl := compress(t, func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) })
	raw := compress(t, func(w io.Writer) io.WriteCloser {
		fw, _ := flate.NewWriter(w, flate.DefaultCompression)
		return fw
	})

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{name: "identity", encoding: "", body: []byte(plain)},
		{name: "explicit identity", encoding: "identity", body: []byte(plain)},
		{name: "gzip", encoding: "gzip", body: gz},
		{name: "x-gzip", encoding: "X-Gzip", body: gz},
		{name: "zlib deflate", encoding: "deflate", body: zl},
		{name: "raw deflate", encoding: "deflate", body: raw},
		{name: "stacked", encoding: "identity, gzip", body: gz},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeContent(tt.encoding, tt.body)
			require.NoError(t, err)
			assert.Equal(t, plain, string(got))
		})
	}

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := decodeContent("br", []byte("x"))
		assert.Equal(t, CodeBadContentEncoding, CodeOf(err))
	})

	t.Run("corrupt gzip", func(t *testing.T) {
		_, err := decodeContent("gzip", []byte("not gzip"))
		assert.Equal(t, CodeBadContentEncoding, CodeOf(err))
	})
}

func TestAcceptEncoding(t *testing.T) {
	assert.Equal(t, "deflate, gzip", acceptEncoding(""))
	assert.Equal(t, "gzip", acceptEncoding("gzip"))
}

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name     string
		rawURL   string
		params   any
		expected string
		code     ErrorCode
	}{
		{name: "no params", rawURL: "http://h/p", expected: "http://h/p"},
		{name: "params appended", rawURL: "http://h/p", params: "a=1", expected: "http://h/p?a=1"},
		{name: "existing query", rawURL: "http://h/p?x=1", params: Values{{Key: "a", Value: 2}}, expected: "http://h/p?x=1&a=2"},
		{name: "fragment kept last", rawURL: "http://h/p#top", params: "a=1", expected: "http://h/p?a=1#top"},
		{name: "unsupported protocol", rawURL: "ftp://h/file", code: CodeUnsupportedProtocol},
		{name: "missing scheme", rawURL: "h/p", code: CodeUnsupportedProtocol},
		{name: "missing host", rawURL: "http:///p", code: CodeURLMalformat},
		{name: "unparsable", rawURL: "http://h/%zz", code: CodeURLMalformat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildURL(tt.rawURL, tt.params)
			if tt.code != 0 {
				assert.Equal(t, tt.code, CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAuthDecorator(t *testing.T) {
	for _, scheme := range []AuthScheme{"", AuthBasic, AuthDigest, AuthNTLM, "DIGEST"} {
		d, err := authDecorator(&Credentials{UserPass: "u:p", Scheme: scheme})
		require.NoError(t, err, scheme)
		assert.NotNil(t, d, scheme)
	}

	d, err := authDecorator(nil)
	require.NoError(t, err)
	assert.Nil(t, d)

	_, err = authDecorator(&Credentials{UserPass: "u:p", Scheme: AuthGSSNegotiate})
	assert.Equal(t, CodeNotBuiltIn, CodeOf(err))

	_, err = authDecorator(&Credentials{UserPass: "u:p", Scheme: "kerberos"})
	assert.Equal(t, CodeNotBuiltIn, CodeOf(err))
}

func TestProxyOption(t *testing.T) {
	_, host, err := proxyOption(&ProxyConfig{URL: "proxy.internal:3128"})
	require.NoError(t, err)
	assert.Equal(t, "proxy.internal", host)

	_, host, err = proxyOption(&ProxyConfig{URL: "http://proxy:8080", Auth: "u:p", AuthMethod: ProxyAuthNTLM})
	require.NoError(t, err)
	assert.Equal(t, "proxy", host)

	_, _, err = proxyOption(&ProxyConfig{URL: "http://"})
	assert.Equal(t, CodeCouldntResolveProxy, CodeOf(err))
}

func TestTLSConfig(t *testing.T) {
	cfg, err := tlsConfig(nil)
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)

	cfg, err = tlsConfig(StringPtr(""))
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)

	_, err = tlsConfig(StringPtr("/nonexistent/ca.pem"))
	assert.Equal(t, CodeSSLCACertBadFile, CodeOf(err))

	path := t.TempDir() + "/empty.pem"
	require.NoError(t, writeFile(path, []byte("not a certificate")))
	_, err = tlsConfig(&path)
	assert.Equal(t, CodeSSLCACertBadFile, CodeOf(err))
}

func TestRequestHead(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://example.com/a?b=1", nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test")

	head := requestHead(req)
	assert.True(t, strings.HasPrefix(head, "GET /a?b=1 HTTP/1.1\r\nHost: example.com\r\n"))
	assert.Contains(t, head, "User-Agent: test\r\n")
	assert.True(t, strings.HasSuffix(head, "\r\n\r\n"))
}
