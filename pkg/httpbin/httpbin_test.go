package httpbin_test

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luizaranda/requester/pkg/httpbin"
	"github.com/luizaranda/requester/pkg/log"
	"github.com/luizaranda/requester/pkg/transport"
)

type document struct {
	Args     map[string]any    `json:"args"`
	Data     string            `json:"data"`
	Files    map[string]any    `json:"files"`
	Form     map[string]any    `json:"form"`
	Headers  map[string]string `json:"headers"`
	JSON     any               `json:"json"`
	Method   string            `json:"method"`
	URL      string            `json:"url"`
	Gzipped  bool              `json:"gzipped"`
	Deflated bool              `json:"deflated"`
}

func newServer(t *testing.T, opts ...httpbin.Option) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(httpbin.New(opts...))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, r io.Reader) document {
	t.Helper()
	var doc document
	require.NoError(t, json.NewDecoder(r).Decode(&doc))
	return doc
}

func TestEcho_Get(t *testing.T) {
	srv := newServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/get?a=1&b=2&b=3", nil)
	require.NoError(t, err)
	req.Header.Set("X-Custom", "yes")

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))

	doc := decode(t, res.Body)
	assert.Equal(t, "1", doc.Args["a"])
	assert.Equal(t, []any{"2", "3"}, doc.Args["b"])
	assert.Equal(t, "yes", doc.Headers["X-Custom"])
	assert.Equal(t, http.MethodGet, doc.Method)
	assert.Equal(t, srv.URL+"/get?a=1&b=2&b=3", doc.URL)
}

func TestEcho_Form(t *testing.T) {
	srv := newServer(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			body := "name=gopher&tags%5B0%5D=a"
			req, err := http.NewRequest(method, srv.URL+"/"+strings.ToLower(method), strings.NewReader(body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			res, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer res.Body.Close()

			require.Equal(t, http.StatusOK, res.StatusCode)
			doc := decode(t, res.Body)
			assert.Equal(t, body, doc.Data)
			assert.Equal(t, "gopher", doc.Form["name"])
			assert.Equal(t, "a", doc.Form["tags[0]"])
			assert.Equal(t, method, doc.Method)
		})
	}
}

func TestEcho_Multipart(t *testing.T) {
	srv := newServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "gopher"))
	fw, err := mw.CreateFormFile("upload", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("file content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	res, err := srv.Client().Post(srv.URL+"/post", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	doc := decode(t, res.Body)
	assert.Equal(t, "gopher", doc.Form["name"])
	assert.Equal(t, "file content", doc.Files["upload"])
	assert.Empty(t, doc.Data)
}

func TestEcho_JSON(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Post(srv.URL+"/anything/deep/path", "application/json", strings.NewReader(`{"k":"v"}`))
	require.NoError(t, err)
	defer res.Body.Close()

	doc := decode(t, res.Body)
	assert.Equal(t, map[string]any{"k": "v"}, doc.JSON)
	assert.Equal(t, `{"k":"v"}`, doc.Data)
}

func TestEcho_MethodNotAllowed(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Post(srv.URL+"/get", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
	assert.Contains(t, res.Header.Values("Allow"), http.MethodGet)
}

func TestNotFound(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusNotFound, res.StatusCode)

	var e httpbin.Error
	require.NoError(t, json.NewDecoder(res.Body).Decode(&e))
	assert.Equal(t, "not_found", e.Code)
}

func TestStatus(t *testing.T) {
	srv := newServer(t)
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	tests := []struct {
		path     string
		code     int
		header   string
		expected string
	}{
		{path: "/status/200", code: 200},
		{path: "/status/404", code: 404},
		{path: "/status/418", code: 418},
		{path: "/status/503", code: 503},
		{path: "/status/302", code: 302, header: "Location", expected: "/redirect/1"},
		{path: "/status/401", code: 401, header: "WWW-Authenticate", expected: `Basic realm="Fake Realm"`},
		{path: "/status/abc", code: 400},
		{path: "/status/99", code: 400},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := client.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, tt.code, res.StatusCode)
			if tt.header != "" {
				assert.Equal(t, tt.expected, res.Header.Get(tt.header))
			}
		})
	}
}

func TestRedirect(t *testing.T) {
	srv := newServer(t)

	var hops []string
	client := &http.Client{
		CheckRedirect: func(req *http.Request, _ []*http.Request) error {
			hops = append(hops, req.URL.Path)
			return nil
		},
	}

	res, err := client.Get(srv.URL + "/redirect/3")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []string{"/redirect/2", "/redirect/1", "/get"}, hops)
	assert.Equal(t, "/get", res.Request.URL.Path)
}

func TestRedirectTo(t *testing.T) {
	srv := newServer(t)
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	res, err := client.Get(srv.URL + "/redirect-to?url=" + url.QueryEscape("/get?x=1") + "&status_code=307")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusTemporaryRedirect, res.StatusCode)
	assert.Equal(t, "/get?x=1", res.Header.Get("Location"))

	res2, err := client.Get(srv.URL + "/redirect-to")
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
}

func TestResponseHeaders(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Get(srv.URL + "/response-headers?Allow=" + url.QueryEscape("GET, POST") + "&X-Thing=1")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, "GET, POST", res.Header.Get("Allow"))
	assert.Equal(t, "1", res.Header.Get("X-Thing"))
}

func TestBasicAuth(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name     string
		user     string
		pass     string
		expected int
	}{
		{name: "valid", user: "user", pass: "passwd", expected: http.StatusOK},
		{name: "wrong password", user: "user", pass: "nope", expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/basic-auth/user/passwd", nil)
			require.NoError(t, err)
			req.SetBasicAuth(tt.user, tt.pass)

			res, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, tt.expected, res.StatusCode)
		})
	}
}

func TestDigestAuth(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		name     string
		path     string
		pass     string
		expected int
	}{
		{name: "qop auth", path: "/digest-auth/auth/user/passwd", pass: "passwd", expected: http.StatusOK},
		{name: "no qop", path: "/digest-auth/none/user/passwd", pass: "passwd", expected: http.StatusOK},
		{name: "md5-sess", path: "/digest-auth/auth/user/passwd/MD5-sess", pass: "passwd", expected: http.StatusOK},
		{name: "wrong password", path: "/digest-auth/auth/user/passwd", pass: "nope", expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{
				Transport: transport.DigestAuthDecorator("user", tt.pass)(http.DefaultTransport),
			}

			res, err := client.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer res.Body.Close()

			assert.Equal(t, tt.expected, res.StatusCode)
		})
	}
}

func TestDigestAuth_Challenge(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Get(srv.URL + "/digest-auth/auth/user/passwd")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusUnauthorized, res.StatusCode)

	scheme, params, _ := strings.Cut(res.Header.Get("WWW-Authenticate"), " ")
	assert.Equal(t, "Digest", scheme)

	challenge := transport.ParseDigestChallenge(params)
	assert.Equal(t, "auth", challenge["qop"])
	assert.Equal(t, "MD5", challenge["algorithm"])
	assert.NotEmpty(t, challenge["nonce"])
	assert.NotEmpty(t, challenge["opaque"])
}

func TestContentEncoding(t *testing.T) {
	srv := newServer(t)
	client := &http.Client{Transport: &http.Transport{DisableCompression: true}}

	t.Run("gzip", func(t *testing.T) {
		res, err := client.Get(srv.URL + "/gzip")
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, "gzip", res.Header.Get("Content-Encoding"))
		zr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		assert.True(t, decode(t, zr).Gzipped)
	})

	t.Run("deflate", func(t *testing.T) {
		res, err := client.Get(srv.URL + "/deflate")
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, "deflate", res.Header.Get("Content-Encoding"))
		zr, err := zlib.NewReader(res.Body)
		require.NoError(t, err)
		assert.True(t, decode(t, zr).Deflated)
	})
}

func TestDelay(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Get(srv.URL + "/delay/0.01")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err = client.Get(srv.URL + "/delay/2")
	require.Error(t, err)
}

func TestBytesAndHTML(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Get(srv.URL + "/bytes/64")
	require.NoError(t, err)
	b, err := io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Len(t, b, 64)
	assert.Equal(t, "application/octet-stream", res.Header.Get("Content-Type"))

	res, err = srv.Client().Get(srv.URL + "/html")
	require.NoError(t, err)
	b, err = io.ReadAll(res.Body)
	res.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(b), "<h1>Herman Melville - Moby-Dick</h1>")
}

func TestPanics(t *testing.T) {
	srv := newServer(t)

	res, err := srv.Client().Get(srv.URL + "/panic")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogRequest(t *testing.T) {
	var out lockedBuffer
	lvl := log.NewAtomicLevelAt(log.DebugLevel)
	logger := log.NewProductionLogger(&lvl, log.WithWriter(&out))

	srv := newServer(t, httpbin.WithLogger(logger), httpbin.WithRequestLogging(true))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/post", strings.NewReader("ping"))
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc-123")

	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, res.Body)
	res.Body.Close()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), `"msg":"request handled"`)
	}, time.Second, 10*time.Millisecond)

	logged := out.String()
	assert.Contains(t, logged, `"request_body":"ping"`)
	assert.Contains(t, logged, `"status":200`)
}
