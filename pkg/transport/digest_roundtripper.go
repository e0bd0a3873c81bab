package transport

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// DigestAuthDecorator returns a RoundTripDecorator answering HTTP Digest
// challenges (RFC 7616, MD5 with qop "auth" or none).
//
// The first request is sent without credentials. A 401 with a Digest
// challenge is answered by replaying the request once with an Authorization
// header. Requests whose body cannot be replayed get the 401 back.
func DigestAuthDecorator(user, password string) RoundTripDecorator {
	return func(base http.RoundTripper) http.RoundTripper {
		return &DigestRoundTripper{Transport: base, Username: user, Password: password}
	}
}

// DigestRoundTripper implements Digest access authentication.
type DigestRoundTripper struct {
	Transport http.RoundTripper
	Username  string
	Password  string
}

func (t *DigestRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.Transport.RoundTrip(req)
	if err != nil || res.StatusCode != http.StatusUnauthorized {
		return res, err
	}

	challenge := digestChallenge(res.Header.Values("Www-Authenticate"))
	if challenge == nil {
		return res, nil
	}

	retry := cloneRequest(req)
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return res, nil
		}
		body, err := req.GetBody()
		if err != nil {
			return res, nil
		}
		retry.Body = body
	}

	auth := DigestAuth{
		Username:  t.Username,
		Password:  t.Password,
		Realm:     challenge["realm"],
		Nonce:     challenge["nonce"],
		Opaque:    challenge["opaque"],
		Algorithm: challenge["algorithm"],
		URI:       req.URL.RequestURI(),
		Method:    req.Method,
		Nc:        "00000001",
	}
	if supportsQopAuth(challenge["qop"]) {
		auth.Qop = "auth"
		if auth.Cnonce, err = GenerateCnonce(); err != nil {
			return res, nil
		}
	}

	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()

	retry.Header.Set("Authorization", auth.Header())
	return t.Transport.RoundTrip(retry)
}

func digestChallenge(values []string) map[string]string {
	for _, v := range values {
		scheme, params, _ := strings.Cut(strings.TrimSpace(v), " ")
		if strings.EqualFold(scheme, "Digest") {
			return ParseDigestChallenge(params)
		}
	}
	return nil
}

func supportsQopAuth(qop string) bool {
	for _, q := range strings.Split(qop, ",") {
		if strings.TrimSpace(q) == "auth" {
			return true
		}
	}
	return false
}

// DigestAuth holds the parameters of a Digest Authorization header.
type DigestAuth struct {
	Username  string
	Password  string
	Realm     string
	Nonce     string
	URI       string
	Qop       string
	Nc        string
	Cnonce    string
	Opaque    string
	Algorithm string
	Method    string
}

// ParseDigestChallenge parses the comma separated key=value parameters of a
// Digest challenge, unquoting values. Commas inside quoted values are kept.
func ParseDigestChallenge(params string) map[string]string {
	out := make(map[string]string)
	for len(params) > 0 {
		params = strings.TrimLeft(params, " ,")
		key, rest, ok := strings.Cut(params, "=")
		if !ok {
			break
		}
		key = strings.ToLower(strings.TrimSpace(key))

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				value, rest = rest[1:], ""
			} else {
				value, rest = rest[1:end+1], rest[end+2:]
			}
		} else {
			value, rest, _ = strings.Cut(rest, ",")
			value = strings.TrimSpace(value)
		}

		out[key] = value
		params = rest
	}
	return out
}

// Response computes the request digest.
func (d *DigestAuth) Response() string {
	ha1 := md5Hex(d.Username + ":" + d.Realm + ":" + d.Password)
	if strings.EqualFold(d.Algorithm, "MD5-sess") {
		ha1 = md5Hex(ha1 + ":" + d.Nonce + ":" + d.Cnonce)
	}
	ha2 := md5Hex(d.Method + ":" + d.URI)

	if d.Qop == "auth" {
		return md5Hex(strings.Join([]string{ha1, d.Nonce, d.Nc, d.Cnonce, d.Qop, ha2}, ":"))
	}
	return md5Hex(ha1 + ":" + d.Nonce + ":" + ha2)
}

// Header returns the Authorization header value.
func (d *DigestAuth) Header() string {
	parts := []string{
		fmt.Sprintf(`username="%s"`, d.Username),
		fmt.Sprintf(`realm="%s"`, d.Realm),
		fmt.Sprintf(`nonce="%s"`, d.Nonce),
		fmt.Sprintf(`uri="%s"`, d.URI),
		fmt.Sprintf(`response="%s"`, d.Response()),
	}
	if d.Algorithm != "" {
		parts = append(parts, "algorithm="+d.Algorithm)
	}
	if d.Qop != "" {
		parts = append(parts, "qop="+d.Qop, "nc="+d.Nc, fmt.Sprintf(`cnonce="%s"`, d.Cnonce))
	}
	if d.Opaque != "" {
		parts = append(parts, fmt.Sprintf(`opaque="%s"`, d.Opaque))
	}
	return "Digest " + strings.Join(parts, ", ")
}

// GenerateCnonce returns a random client nonce.
func GenerateCnonce() (string, error) {
	b := make([]byte, 8)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
