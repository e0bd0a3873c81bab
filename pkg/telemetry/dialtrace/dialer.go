// Package dialtrace decorates dial functions with connection lifecycle hooks.
package dialtrace

import (
	"context"
	"net"
)

// DialContextFunc has the signature of net.Dialer.DialContext.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// DialContext calls d.
func (d DialContextFunc) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	return d(ctx, network, address)
}

// DialerTrace is a set of hooks run at various stages of a connection's life.
// Any hook may be nil. Hooks may be called concurrently.
type DialerTrace struct {
	// GotConn is called after a connection is established.
	GotConn func(network, address string)

	// ConnError is called when establishing a connection fails.
	ConnError func(network, address string, err error)

	// CloseConn is called once, after a connection is closed.
	CloseConn func(network, address string)
}

// NewTracedDialer returns a DialContextFunc that dials with dial and reports
// to trace.
func NewTracedDialer(dial DialContextFunc, trace DialerTrace) DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		conn, err := dial(ctx, network, address)
		if err != nil {
			if trace.ConnError != nil {
				trace.ConnError(network, address, err)
			}
			return nil, err
		}

		if trace.GotConn != nil {
			trace.GotConn(network, address)
		}

		tc := &tracedConn{Conn: conn}
		if trace.CloseConn != nil {
			tc.onClose = func() { trace.CloseConn(network, address) }
		}
		return tc, nil
	}
}

type tracedConn struct {
	net.Conn

	closed  bool
	onClose func()
}

// Close closes the underlying connection and fires the CloseConn hook the
// first time it is called.
func (c *tracedConn) Close() error {
	err := c.Conn.Close()
	if !c.closed {
		c.closed = true
		if c.onClose != nil {
			c.onClose()
		}
	}
	return err
}
