package wl

import "deedles.dev/wlshim/wire"

const (
	BufferInterface = "wl_buffer"
	BufferVersion   = 1
)

const (
	bufferDestroy uint16 = iota
)

const (
	bufferEvRelease uint16 = iota
)

var bufferEvents = []string{
	"release",
}

// Buffer is a chunk of pixel data that can be attached to a surface.
type Buffer struct {
	wire.ObjectID

	Listener BufferListener

	client *Client
}

type BufferListener interface {
	// Release is sent when the compositor is no longer reading from
	// the buffer and the client may reuse its memory.
	Release()
}

func (buf *Buffer) Interface() string {
	return BufferInterface
}

func (buf *Buffer) MethodName(op uint16) string {
	return eventName(bufferEvents, op)
}

func (buf *Buffer) Destroy() {
	buf.client.Enqueue(wire.NewMessage(buf, "destroy", bufferDestroy))
	buf.client.Delete(buf.ID())
}

func (buf *Buffer) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case bufferEvRelease:
		if buf.Listener != nil {
			buf.Listener.Release()
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: BufferInterface, Type: "event", Op: msg.Op()}
	}
}
