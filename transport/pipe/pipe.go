// Package pipe is an in-memory transport. Addresses are registered with Listen and
// dialing anything else is refused, which makes multi-address failover reproducible.
package pipe

import (
	"browser-core/transport"
	"context"
	"net"
	"sync"
)

// dialRequest hands the server end of a fresh pipe to a listener.
type dialRequest struct {
	server net.Conn
	ack    chan struct{}
}

type Transport struct {
	routes map[transport.Addr]*Listener
	log    []transport.Addr

	lock sync.Mutex
}

var _ transport.ConnDialer = (*Transport)(nil)

func NewTransport() *Transport {
	return &Transport{routes: make(map[transport.Addr]*Listener)}
}

func (t *Transport) route(addr transport.Addr) (*Listener, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	t.log = append(t.log, addr)
	l, found := t.routes[addr]
	return l, found
}

// Dial waits until the listener at addr accepts, or ctx ends.
func (t *Transport) Dial(ctx context.Context, addr transport.Addr) (net.Conn, error) {
	l, found := t.route(addr)
	if !found {
		return nil, transport.ErrConnRefused
	}

	client, server := net.Pipe()
	req := dialRequest{server: server, ack: make(chan struct{}, 1)}

	select {
	case l.backlog <- req:
	case <-l.done:
		return nil, transport.ErrConnRefused
	case <-ctx.Done():
		return nil, transport.MapError(ctx.Err())
	}

	select {
	case <-req.ack:
		return client, nil
	case <-ctx.Done():
		client.Close()
		return nil, transport.MapError(ctx.Err())
	}
}

// Dials lists every address dialed so far, in order.
func (t *Transport) Dials() []transport.Addr {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]transport.Addr(nil), t.log...)
}

func (t *Transport) Listen(addr transport.Addr) (*Listener, error) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.routes[addr] != nil {
		return nil, transport.ErrAddrAlreadyInUse
	}

	l := &Listener{
		addr:    addr,
		owner:   t,
		backlog: make(chan dialRequest),
		done:    make(chan struct{}),
	}
	t.routes[addr] = l
	return l, nil
}

type Listener struct {
	addr  transport.Addr
	owner *Transport

	backlog chan dialRequest
	done    chan struct{}
}

func (l *Listener) Addr() transport.Addr { return l.addr }

func (l *Listener) Accept(ctx context.Context) (net.Conn, error) {
	select {
	case req := <-l.backlog:
		req.ack <- struct{}{}
		return req.server, nil
	case <-l.done:
		return nil, transport.ErrConnListenerClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve accepts connections until the listener closes, handing each to handle
// on its own goroutine. It returns once every handler has returned.
func (l *Listener) Serve(handle func(conn net.Conn)) {
	var handlers sync.WaitGroup
	defer handlers.Wait()

	for {
		conn, err := l.Accept(context.Background())
		if err != nil {
			return
		}

		handlers.Add(1)
		go func() {
			defer handlers.Done()
			defer conn.Close()
			handle(conn)
		}()
	}
}

// Close unregisters the address. Closing twice reports ErrConnListenerClosed.
func (l *Listener) Close() error {
	l.owner.lock.Lock()
	defer l.owner.lock.Unlock()

	if l.owner.routes[l.addr] != l {
		return transport.ErrConnListenerClosed
	}
	delete(l.owner.routes, l.addr)
	close(l.done)
	return nil
}
