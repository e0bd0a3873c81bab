package transport

import (
	"expvar"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/luizaranda/requester/pkg/telemetry/dialtrace"
)

var _expvar = expvar.NewMap("requester.http.client.conn_pools")

// NewPooled creates an *http.Transport with the given options and wraps it in
// a PooledTransport named name.
func NewPooled(name string, opts ...Option) *PooledTransport {
	return NewPooledFromTransport(name, NewTransport(opts...))
}

// NewPooledFromTransport decorates the dialer of transport so the number of
// open connections per address is tracked and published under expvar.
func NewPooledFromTransport(name string, transport *http.Transport) *PooledTransport {
	t := &PooledTransport{Transport: transport, Name: name}
	if t.DialContext == nil {
		t.DialContext = (&net.Dialer{}).DialContext
	}

	t.DialContext = dialtrace.NewTracedDialer(t.DialContext, dialtrace.DialerTrace{
		GotConn:   t.traceConn(1),
		CloseConn: t.traceConn(-1),
	})

	_expvar.Set(name, expvar.Func(func() any { return t.Stats() }))

	return t
}

// PooledTransport is an *http.Transport that counts its open connections
// per network address.
type PooledTransport struct {
	*http.Transport

	Name  string
	stats sync.Map
}

func (t *PooledTransport) traceConn(delta int64) func(network, address string) {
	return func(network, address string) {
		v, _ := t.stats.LoadOrStore(network+":"+address, new(atomic.Int64))
		v.(*atomic.Int64).Add(delta)
	}
}

// Stats returns the number of open connections keyed by "network:address".
func (t *PooledTransport) Stats() map[string]int64 {
	stats := map[string]int64{}
	t.stats.Range(func(key, value any) bool {
		stats[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return stats
}
