// Package registry keeps the live connections of this instance keyed by user.
//
// A connection is a buffered channel. Send never blocks: when a connection's
// buffer is full the message is dropped for it and the connection is closed,
// so a stalled client is forced to reconnect and re-read its state.
//
//	reg := registry.New[entitlement.Notification](16)
//	conn, release := reg.Register(r.Context(), userID)
//	defer release()
//	for msg := range conn.C() {
//	    // push msg to the client
//	}
package registry

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/artshare/pkg/metrics"
)

// Conn is one registered connection. All methods are safe for concurrent use.
type Conn[T any] struct {
	id     string
	userID string
	ch     chan T
	closed bool
	mu     sync.RWMutex
}

func newConn[T any](userID string, bufferSize int) *Conn[T] {
	return &Conn[T]{
		id:     uuid.NewString(),
		userID: userID,
		ch:     make(chan T, bufferSize),
	}
}

// ID returns the connection id.
func (c *Conn[T]) ID() string { return c.id }

// UserID returns the user the connection belongs to.
func (c *Conn[T]) UserID() string { return c.userID }

// C returns the receive channel. It is closed when the connection is unregistered.
func (c *Conn[T]) C() <-chan T { return c.ch }

func (c *Conn[T]) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.ch)
		c.closed = true
	}
}

func (c *Conn[T]) send(msg T) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.ch <- msg:
		return true
	default:
		return false
	}
}

// Registry maps user ids to their live connections.
type Registry[T any] struct {
	conns      map[string]map[*Conn[T]]struct{}
	bufferSize int
	closed     bool
	mu         sync.RWMutex
	wg         sync.WaitGroup
}

// New creates a registry whose connections buffer up to bufferSize messages.
// A minimum buffer size of 1 is enforced.
func New[T any](bufferSize int) *Registry[T] {
	return &Registry[T]{
		conns:      make(map[string]map[*Conn[T]]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

// Register adds a connection for userID. The connection is removed when ctx
// is done or when the returned release func is called, whichever comes first.
// Registering on a closed registry returns an already closed connection.
func (r *Registry[T]) Register(ctx context.Context, userID string) (*Conn[T], func()) {
	conn := newConn[T](userID, r.bufferSize)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.close()
		return conn, func() {}
	}
	set, ok := r.conns[userID]
	if !ok {
		set = make(map[*Conn[T]]struct{})
		r.conns[userID] = set
	}
	set[conn] = struct{}{}
	r.mu.Unlock()
	metrics.LiveConnections.Inc()

	release := sync.OnceFunc(func() { r.Unregister(conn) })
	if ctx.Done() != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			<-ctx.Done()
			release()
		}()
	}

	return conn, release
}

// Unregister removes conn and closes its channel. It is a no-op for
// connections that are not registered.
func (r *Registry[T]) Unregister(conn *Conn[T]) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	set, ok := r.conns[conn.userID]
	_, present := set[conn]
	if ok && present {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.conns, conn.userID)
		}
	}
	r.mu.Unlock()

	conn.close()
	if present {
		metrics.LiveConnections.Dec()
	}
}

// Lookup returns the connections currently registered for userID.
func (r *Registry[T]) Lookup(userID string) []*Conn[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[userID]
	out := make([]*Conn[T], 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// Send delivers msg to every connection of userID without blocking and
// returns how many connections accepted it. Connections that could not take
// the message are unregistered asynchronously.
func (r *Registry[T]) Send(userID string, msg T) int {
	delivered := 0
	for _, c := range r.Lookup(userID) {
		if c.send(msg) {
			delivered++
			continue
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.Unregister(c)
		}()
	}
	return delivered
}

// Close unregisters every connection. Subsequent registrations receive closed
// connections. It is safe to call Close more than once.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var all []*Conn[T]
	for _, set := range r.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	clear(r.conns)
	r.mu.Unlock()

	for _, c := range all {
		c.close()
		metrics.LiveConnections.Dec()
	}
}

// Wait blocks until background cleanup goroutines have finished. The context
// of every registered connection must be done before Wait can return.
func (r *Registry[T]) Wait() {
	r.wg.Wait()
}
