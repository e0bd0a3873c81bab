package transport

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/go-ntlmssp"
)

// ErrProxyAuth is returned when the proxy rejects the NTLM handshake.
var ErrProxyAuth = errors.New("proxy authentication failed")

// DialFunc has the signature of net.Dialer.DialContext.
type DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error)

// NTLMProxyDialer returns a dial function that connects to proxyURL with dial
// and opens a CONNECT tunnel to the requested address, answering the proxy's
// NTLM challenge.
//
// Both http and https targets go through the tunnel. The proxy itself must
// be reached over plain http.
func NTLMProxyDialer(dial DialFunc, proxyURL *url.URL, user, password string) DialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if proxyURL.Scheme != "" && proxyURL.Scheme != "http" {
			return nil, fmt.Errorf("ntlm proxy: unsupported proxy scheme %q", proxyURL.Scheme)
		}

		proxyAddr := proxyURL.Host
		if proxyURL.Port() == "" {
			proxyAddr = net.JoinHostPort(proxyURL.Hostname(), "80")
		}

		conn, err := dial(ctx, "tcp", proxyAddr)
		if err != nil {
			return nil, err
		}

		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		}

		tunnel, err := ntlmConnect(conn, addr, user, password)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}

		_ = conn.SetDeadline(time.Time{})
		return tunnel, nil
	}
}

func ntlmConnect(conn net.Conn, addr, user, password string) (net.Conn, error) {
	br := bufio.NewReader(conn)

	user, domain, domainNeeded := ntlmssp.GetDomain(user)
	negotiate, err := ntlmssp.NewNegotiateMessage(domain, "")
	if err != nil {
		return nil, err
	}

	res, err := connect(conn, br, addr, negotiate)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusOK {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	if res.StatusCode != http.StatusProxyAuthRequired {
		return nil, fmt.Errorf("ntlm proxy: CONNECT %s: %s", addr, res.Status)
	}

	challenge, err := ntlmChallenge(res.Header.Values("Proxy-Authenticate"))
	if err != nil {
		return nil, err
	}

	authenticate, err := ntlmssp.ProcessChallenge(challenge, user, password, domainNeeded)
	if err != nil {
		return nil, err
	}

	res, err = connect(conn, br, addr, authenticate)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: CONNECT %s: %s", ErrProxyAuth, addr, res.Status)
	}

	return &bufferedConn{Conn: conn, r: br}, nil
}

// connect sends one CONNECT request carrying an NTLM message and reads the
// response head. Non 2xx bodies are drained so the connection can be reused
// for the next handshake leg.
func connect(conn net.Conn, br *bufio.Reader, addr string, msg []byte) (*http.Response, error) {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: http.Header{
			"Proxy-Authorization": {"NTLM " + base64.StdEncoding.EncodeToString(msg)},
			"Proxy-Connection":    {"Keep-Alive"},
		},
	}
	if err := req.Write(conn); err != nil {
		return nil, err
	}

	res, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
	return res, nil
}

func ntlmChallenge(values []string) ([]byte, error) {
	for _, v := range values {
		scheme, token, _ := strings.Cut(strings.TrimSpace(v), " ")
		if strings.EqualFold(scheme, "NTLM") && token != "" {
			return base64.StdEncoding.DecodeString(strings.TrimSpace(token))
		}
	}
	return nil, fmt.Errorf("%w: no NTLM challenge in Proxy-Authenticate", ErrProxyAuth)
}

// bufferedConn reads through the bufio.Reader used for the handshake, which
// may already hold bytes sent by the target.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }
