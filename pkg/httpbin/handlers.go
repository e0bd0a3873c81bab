package httpbin

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"crypto/rand"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/luizaranda/requester/pkg/transport"
)

const (
	_maxBodySize  = 10 << 20
	_maxDelay     = 10 * time.Second
	_maxBytes     = 100 * 1024
	_realm        = "httpbin@requester"
	_defaultRealm = "Fake Realm"
)

// document describes the request an echo route received.
type document struct {
	Args    map[string]any    `json:"args"`
	Data    string            `json:"data"`
	Files   map[string]any    `json:"files"`
	Form    map[string]any    `json:"form"`
	Headers map[string]string `json:"headers"`
	JSON    any               `json:"json"`
	Method  string            `json:"method"`
	Origin  string            `json:"origin"`
	URL     string            `json:"url"`

	Gzipped  bool `json:"gzipped,omitempty"`
	Deflated bool `json:"deflated,omitempty"`
}

func echo(w http.ResponseWriter, r *http.Request) {
	doc, err := newDocument(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func newDocument(r *http.Request) (*document, *Error) {
	doc := &document{
		Args:    flattenValues(r.URL.Query()),
		Files:   map[string]any{},
		Form:    map[string]any{},
		Headers: flattenHeader(r),
		Method:  r.Method,
		Origin:  origin(r),
		URL:     requestURL(r),
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, _maxBodySize))
	if err != nil {
		return nil, NewErrorf(http.StatusBadRequest, "reading body: %v", err)
	}
	if len(body) == 0 {
		return doc, nil
	}

	mediaType, params, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		form, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(_maxBodySize)
		if err != nil {
			return nil, NewErrorf(http.StatusBadRequest, "parsing multipart body: %v", err)
		}
		defer func() { _ = form.RemoveAll() }()

		doc.Form = flattenValues(form.Value)
		for name, headers := range form.File {
			for _, fh := range headers {
				content, err := readFormFile(fh)
				if err != nil {
					return nil, NewErrorf(http.StatusBadRequest, "reading file %s: %v", name, err)
				}
				doc.Files[name] = content
			}
		}
		return doc, nil
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, NewErrorf(http.StatusBadRequest, "parsing form body: %v", err)
		}
		doc.Form = flattenValues(values)
	case "application/json":
		if err := json.Unmarshal(body, &doc.JSON); err != nil {
			return nil, NewErrorf(http.StatusBadRequest, "parsing json body: %v", err)
		}
	}

	doc.Data = string(body)
	return doc, nil
}

func readFormFile(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	return string(b), err
}

// flattenValues keeps single values as strings and repeated ones as lists.
func flattenValues(values map[string][]string) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if len(v) == 1 {
			out[k] = v[0]
			continue
		}
		out[k] = v
	}
	return out
}

func flattenHeader(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header)+1)
	for k, v := range r.Header {
		out[k] = strings.Join(v, ",")
	}
	out["Host"] = r.Host
	return out
}

func origin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func headers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"headers": flattenHeader(r)})
}

func ip(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"origin": origin(r)})
}

func userAgent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user-agent": r.UserAgent()})
}

// responseHeaders sets every query argument as a response header.
func responseHeaders(w http.ResponseWriter, r *http.Request) {
	for k, values := range r.URL.Query() {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	writeJSON(w, http.StatusOK, flattenValues(r.URL.Query()))
}

func status(w http.ResponseWriter, r *http.Request) {
	code, err := paramInt(r, "code")
	if err != nil || code < 100 || code > 599 {
		writeError(w, NewErrorf(http.StatusBadRequest, "invalid status code %q", chi.URLParam(r, "code")))
		return
	}

	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusUseProxy, http.StatusTemporaryRedirect:
		w.Header().Set("Location", "/redirect/1")
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Basic realm="`+_defaultRealm+`"`)
	}
	w.WriteHeader(code)
}

// redirect answers /redirect/n with n-1 more redirects before /get.
func redirect(w http.ResponseWriter, r *http.Request) {
	n, err := paramInt(r, "n")
	if err != nil || n < 1 {
		writeError(w, NewErrorf(http.StatusBadRequest, "invalid redirect count %q", chi.URLParam(r, "n")))
		return
	}

	location := "/get"
	if n > 1 {
		location = "/redirect/" + strconv.Itoa(n-1)
	}
	http.Redirect(w, r, location, http.StatusFound)
}

func redirectTo(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, NewError(http.StatusBadRequest, "missing url argument"))
		return
	}

	code := http.StatusFound
	if s := r.URL.Query().Get("status_code"); s != "" {
		c, err := strconv.Atoi(s)
		if err != nil || c < 300 || c > 399 {
			writeError(w, NewErrorf(http.StatusBadRequest, "invalid status_code %q", s))
			return
		}
		code = c
	}

	w.Header().Set("Location", target)
	w.WriteHeader(code)
}

func basicAuth(w http.ResponseWriter, r *http.Request) {
	user, passwd := chi.URLParam(r, "user"), chi.URLParam(r, "passwd")

	u, p, ok := r.BasicAuth()
	if !ok || u != user || p != passwd {
		w.Header().Set("WWW-Authenticate", `Basic realm="`+_defaultRealm+`"`)
		writeError(w, NewError(http.StatusUnauthorized, "bad credentials"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
}

// digestAuth challenges with qop "auth" (or no qop when the path says
// "none") and checks the answer. Nonces are not tracked.
func digestAuth(w http.ResponseWriter, r *http.Request) {
	user, passwd := chi.URLParam(r, "user"), chi.URLParam(r, "passwd")
	qop := chi.URLParam(r, "qop")
	if qop != "auth" && qop != "none" {
		writeError(w, NewErrorf(http.StatusBadRequest, "unsupported qop %q", qop))
		return
	}
	algorithm := chi.URLParam(r, "algorithm")
	if algorithm == "" {
		algorithm = "MD5"
	}
	if algorithm != "MD5" && algorithm != "MD5-sess" {
		writeError(w, NewErrorf(http.StatusBadRequest, "unsupported algorithm %q", algorithm))
		return
	}

	if verifyDigest(r, user, passwd, qop) {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "user": user})
		return
	}

	challenge := []string{
		`realm="` + _realm + `"`,
		`nonce="` + randomToken() + `"`,
		`opaque="` + randomToken() + `"`,
		"algorithm=" + algorithm,
	}
	if qop == "auth" {
		challenge = append(challenge, `qop="auth"`)
	}
	w.Header().Set("WWW-Authenticate", "Digest "+strings.Join(challenge, ", "))
	writeError(w, NewError(http.StatusUnauthorized, "digest authentication required"))
}

func verifyDigest(r *http.Request, user, passwd, qop string) bool {
	scheme, params, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Digest") {
		return false
	}

	p := transport.ParseDigestChallenge(params)
	if p["username"] != user || p["realm"] != _realm || p["uri"] != r.URL.RequestURI() {
		return false
	}
	if qop == "auth" && p["qop"] != "auth" {
		return false
	}

	expected := transport.DigestAuth{
		Username:  user,
		Password:  passwd,
		Realm:     p["realm"],
		Nonce:     p["nonce"],
		URI:       p["uri"],
		Qop:       p["qop"],
		Nc:        p["nc"],
		Cnonce:    p["cnonce"],
		Algorithm: p["algorithm"],
		Method:    r.Method,
	}
	return expected.Response() == p["response"]
}

func randomToken() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
}

// delay answers any method like /anything after the given number of
// seconds, at most 10. Fractions are accepted.
func delay(w http.ResponseWriter, r *http.Request) {
	seconds, err := strconv.ParseFloat(chi.URLParam(r, "seconds"), 64)
	if err != nil || seconds < 0 {
		writeError(w, NewErrorf(http.StatusBadRequest, "invalid delay %q", chi.URLParam(r, "seconds")))
		return
	}
	d := min(time.Duration(seconds*float64(time.Second)), _maxDelay)

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		return
	case <-timer.C:
	}
	echo(w, r)
}

func gzipped(w http.ResponseWriter, r *http.Request) {
	doc, e := newDocument(r)
	if e != nil {
		writeError(w, e)
		return
	}
	doc.Gzipped = true

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		writeError(w, NewErrorf(http.StatusInternalServerError, "encoding: %v", err))
		return
	}
	_ = zw.Close()

	writeEncoded(w, "gzip", buf.Bytes())
}

// deflated answers with a zlib stream, as HTTP "deflate" means.
func deflated(w http.ResponseWriter, r *http.Request) {
	doc, e := newDocument(r)
	if e != nil {
		writeError(w, e)
		return
	}
	doc.Deflated = true

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(doc); err != nil {
		writeError(w, NewErrorf(http.StatusInternalServerError, "encoding: %v", err))
		return
	}
	_ = zw.Close()

	writeEncoded(w, "deflate", buf.Bytes())
}

func writeEncoded(w http.ResponseWriter, encoding string, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", encoding)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

const _html = `<!DOCTYPE html>
<html>
  <head><title>httpbin</title></head>
  <body>
    <h1>Herman Melville - Moby-Dick</h1>
    <p>Availing himself of the mild, summer-cool weather that now reigned in these latitudes.</p>
  </body>
</html>
`

func html(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, _html)
}

func randomBytes(w http.ResponseWriter, r *http.Request) {
	n, err := paramInt(r, "n")
	if err != nil || n < 0 {
		writeError(w, NewErrorf(http.StatusBadRequest, "invalid size %q", chi.URLParam(r, "n")))
		return
	}

	b := make([]byte, min(n, _maxBytes))
	if _, err := rand.Read(b); err != nil {
		writeError(w, NewErrorf(http.StatusInternalServerError, "generating bytes: %v", err))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

// paramInt returns the route parameter key as an int.
func paramInt(r *http.Request, key string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, key))
}
