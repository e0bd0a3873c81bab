package requester

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/luizaranda/requester/pkg/transport"
	"github.com/luizaranda/requester/pkg/transport/httpclient"
)

// ErrorCode numbers transport failures the way libcurl does.
type ErrorCode int

const (
	CodeUnsupportedProtocol    ErrorCode = 1
	CodeFailedInit             ErrorCode = 2
	CodeURLMalformat           ErrorCode = 3
	CodeNotBuiltIn             ErrorCode = 4
	CodeCouldntResolveProxy    ErrorCode = 5
	CodeCouldntResolveHost     ErrorCode = 6
	CodeCouldntConnect         ErrorCode = 7
	CodeHTTPReturnedError      ErrorCode = 22
	CodeWriteError             ErrorCode = 23
	CodeOperationTimedOut      ErrorCode = 28
	CodeSSLConnectError        ErrorCode = 35
	CodeBadFunctionArgument    ErrorCode = 43
	CodeTooManyRedirects       ErrorCode = 47
	CodeRecvError              ErrorCode = 56
	CodePeerFailedVerification ErrorCode = 60
	CodeBadContentEncoding     ErrorCode = 61
	CodeSSLCACertBadFile       ErrorCode = 77
)

// Error is the single failure type of this package.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("requester: %s (code %d)", e.Message, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code of the *Error in err's chain, or 0.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

func newError(code ErrorCode, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// transportError classifies an error returned by http.Client.Do or while
// reading a body. proxyHost is the configured proxy host name, if any.
func transportError(err error, proxyHost string) *Error {
	var (
		e          *Error
		dnsErr     *net.DNSError
		certErr    *tls.CertificateVerificationError
		unknownCA  x509.UnknownAuthorityError
		hostErr    x509.HostnameError
		invalidErr x509.CertificateInvalidError
		recordErr  tls.RecordHeaderError
		alertErr   tls.AlertError
		opErr      *net.OpError
	)

	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, httpclient.ErrTooManyRedirects):
		return newError(CodeTooManyRedirects, "maximum redirects followed", err)
	case errors.Is(err, context.DeadlineExceeded), os.IsTimeout(err), isTimeout(err):
		return newError(CodeOperationTimedOut, "operation timed out", err)
	case errors.Is(err, context.Canceled):
		return newError(CodeFailedInit, "request canceled", err)
	case errors.As(err, &dnsErr):
		if proxyHost != "" && dnsErr.Name == proxyHost {
			return newError(CodeCouldntResolveProxy, "could not resolve proxy: "+dnsErr.Name, err)
		}
		return newError(CodeCouldntResolveHost, "could not resolve host: "+dnsErr.Name, err)
	case errors.As(err, &certErr), errors.As(err, &unknownCA), errors.As(err, &hostErr), errors.As(err, &invalidErr):
		return newError(CodePeerFailedVerification, "peer certificate cannot be authenticated", err)
	case errors.As(err, &recordErr), errors.As(err, &alertErr):
		return newError(CodeSSLConnectError, "TLS connect error", err)
	case errors.Is(err, transport.ErrProxyAuth):
		return newError(CodeRecvError, "proxy CONNECT failed", err)
	case errors.As(err, &opErr) && (opErr.Op == "dial" || opErr.Op == "proxyconnect"):
		return newError(CodeCouldntConnect, "failed to connect", err)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF), errors.Is(err, syscall.ECONNRESET):
		return newError(CodeRecvError, "failure receiving data", err)
	default:
		return newError(CodeFailedInit, "request failed", err)
	}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
