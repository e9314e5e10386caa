// Package wl implements the client side of the core Wayland protocol.
//
// Protocol objects are created through request methods on their
// parent objects and receive events through their exported Listener
// fields. Requests are buffered until Flush is called; events are
// read from the socket as they arrive but only dispatched by an
// explicit call to Dispatch, DispatchPending, or RoundTrip.
package wl

import (
	"errors"
	"io"
	"net"
	"sync"

	"deedles.dev/wlshim/internal/debug"
	"deedles.dev/wlshim/internal/ev"
	"deedles.dev/wlshim/internal/objstore"
	"deedles.dev/wlshim/wire"
)

// Client manages the client end of a Wayland connection: the object
// table, the incoming event queue, and the outgoing request buffer.
type Client struct {
	done  chan struct{}
	close sync.Once
	conn  *wire.Conn
	store *objstore.Store
	queue *ev.Queue

	outMu sync.Mutex
	out   []*wire.MessageBuilder

	display *Display
}

// Dial connects to the Wayland socket indicated by the environment
// and returns a Client for it.
func Dial() (*Client, error) {
	c, err := wire.Dial()
	if err != nil {
		return nil, err
	}

	return NewClient(c), nil
}

// NewClient creates a Client on top of an existing connection. The
// Client takes over the connection; use Close to shut both down.
func NewClient(conn *wire.Conn) *Client {
	c := Client{
		done:  make(chan struct{}),
		conn:  conn,
		store: objstore.New(1),
		queue: ev.NewQueue(),
	}
	c.display = &Display{client: &c}
	c.store.Add(c.display)
	go c.listen()

	return &c
}

func (c *Client) listen() {
	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
				return
			}

			select {
			case <-c.done:
				return
			case c.queue.Add() <- func() error { return err }:
				continue
			}
		}

		select {
		case <-c.done:
			return
		case c.queue.Add() <- func() error { return c.dispatch(msg) }:
		}
	}
}

func (c *Client) dispatch(msg *wire.MessageBuffer) error {
	obj := c.store.Get(msg.Sender())
	if obj == nil {
		return wire.UnknownSenderIDError{Msg: msg}
	}

	err := obj.Dispatch(msg)
	debug.Printf("%v", msg.Debug(obj))
	return err
}

// Display returns the connection's root object.
func (c *Client) Display() *Display {
	return c.display
}

// Add adds obj to the client's object table, assigning it the next
// free ID.
func (c *Client) Add(obj wire.Object) {
	c.store.Add(obj)
}

// Get returns the object with the given ID, or nil.
func (c *Client) Get(id uint32) wire.Object {
	return c.store.Get(id)
}

// Delete removes the object with the given ID from the object table.
func (c *Client) Delete(id uint32) {
	c.store.Delete(id)
}

// Enqueue buffers a request to be sent by the next call to Flush.
func (c *Client) Enqueue(msg *wire.MessageBuilder) {
	c.outMu.Lock()
	c.out = append(c.out, msg)
	c.outMu.Unlock()
}

// Flush writes all buffered requests to the compositor, in the order
// they were enqueued.
func (c *Client) Flush() error {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	var errs []error
	for _, msg := range c.out {
		debug.Printf(" -> %v", msg)
		if err := msg.Build(c.conn); err != nil {
			errs = append(errs, err)
		}
	}
	c.out = c.out[:0]
	return errors.Join(errs...)
}

// Dispatch waits for the next batch of incoming events and processes
// it. It returns net.ErrClosed after the client is closed.
func (c *Client) Dispatch() error {
	select {
	case <-c.done:
		return net.ErrClosed
	case q := <-c.queue.Get():
		return q.Flush()
	}
}

// DispatchPending processes any events that have already been read
// from the socket without waiting for more.
func (c *Client) DispatchPending() error {
	select {
	case q := <-c.queue.Get():
		return q.Flush()
	default:
		return nil
	}
}

// RoundTrip flushes buffered requests and dispatches incoming events
// until the compositor confirms that it has processed everything sent
// before the call. It must not be used concurrently with another
// goroutine's Dispatch loop; use a sync callback directly for that.
func (c *Client) RoundTrip() error {
	done := make(chan struct{})
	c.display.Sync().Then(func(uint32) { close(done) })
	err := c.Flush()
	if err != nil {
		return err
	}

	var errs []error
	for {
		select {
		case <-done:
			return errors.Join(errs...)
		case <-c.done:
			return net.ErrClosed
		case q := <-c.queue.Get():
			if err := q.Flush(); err != nil {
				errs = append(errs, err)
			}
		}
	}
}

// Close shuts down the event queue and the underlying connection.
func (c *Client) Close() error {
	c.close.Do(func() { close(c.done) })
	c.queue.Stop()
	return c.conn.Close()
}
