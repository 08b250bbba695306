// Package cancelsocket provides a cancellable wrapper around net.Conn and
// net.Listener (spec §3, component C3). The C++ original uses a
// self-pipe plus select() to wake a blocking socket on shutdown; the
// idiomatic Go equivalent is a context.Context paired with closing the
// underlying net.Conn/net.Listener, which unblocks any in-flight Read,
// Write or Accept with a net.ErrClosed-wrapping error.
package cancelsocket

import (
	"context"
	"errors"
	"net"
	"sync"
)

// ErrCancelled is returned by Listener.Accept after Cancel has been called,
// even if the underlying Accept raced and returned its own error first.
// Conn's Read and Write are not wrapped: after Cancel they return the
// underlying connection's own error.
var ErrCancelled = errors.New("cancelsocket: cancelled")

// Conn wraps a net.Conn so a concurrent call to Cancel unblocks any
// in-flight Read or Write.
type Conn struct {
	net.Conn

	mutex     sync.Mutex
	cancelled bool
}

// NewConn wraps conn. ctx is watched in the background; if it is done
// before Cancel is called explicitly, the connection is also closed.
func NewConn(ctx context.Context, conn net.Conn) *Conn {
	c := &Conn{Conn: conn}
	go func() {
		<-ctx.Done()
		c.Cancel()
	}()
	return c
}

// Cancel closes the underlying connection, unblocking any in-flight I/O.
// Safe to call more than once and from multiple goroutines.
func (c *Conn) Cancel() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.cancelled {
		return
	}
	c.cancelled = true
	c.Conn.Close()
}

// Cancelled reports whether Cancel has already run.
func (c *Conn) Cancelled() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.cancelled
}

// Listener wraps a net.Listener the same way Conn wraps a net.Conn: Cancel
// closes it, unblocking a pending Accept.
type Listener struct {
	net.Listener

	mutex     sync.Mutex
	cancelled bool
}

// NewListener wraps ln, tearing it down when ctx is done.
func NewListener(ctx context.Context, ln net.Listener) *Listener {
	l := &Listener{Listener: ln}
	go func() {
		<-ctx.Done()
		l.Cancel()
	}()
	return l
}

// Cancel closes the underlying listener, unblocking a pending Accept.
func (l *Listener) Cancel() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.cancelled {
		return
	}
	l.cancelled = true
	l.Listener.Close()
}

// Accept wraps net.Listener.Accept, reporting ErrCancelled instead of the
// raw net.ErrClosed once Cancel has run, so callers can distinguish a
// deliberate shutdown from an unexpected listener failure.
func (l *Listener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		l.mutex.Lock()
		cancelled := l.cancelled
		l.mutex.Unlock()
		if cancelled {
			return nil, ErrCancelled
		}
		return nil, err
	}
	return conn, nil
}
