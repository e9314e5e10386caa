package xdg

import (
	wl "deedles.dev/wlshim/client"
	"deedles.dev/wlshim/wire"
)

const (
	SurfaceInterface = "xdg_surface"
	SurfaceVersion   = 1
)

const (
	surfaceDestroy uint16 = iota
	surfaceGetToplevel
	surfaceGetPopup
	surfaceSetWindowGeometry
	surfaceAckConfigure
)

const (
	surfaceEvConfigure uint16 = iota
)

var surfaceEvents = []string{
	"configure",
}

// Surface is the shell wrapper around a wl_surface. It carries the
// configure and ack handshake that every shell role goes through.
type Surface struct {
	wire.ObjectID

	Listener SurfaceListener

	client *wl.Client
}

type SurfaceListener interface {
	// Configure marks the end of a batch of state events. The serial
	// must be passed to AckConfigure before a commit that matches the
	// new state.
	Configure(serial uint32)
}

func (s *Surface) Interface() string {
	return SurfaceInterface
}

func (s *Surface) MethodName(op uint16) string {
	return eventName(surfaceEvents, op)
}

func (s *Surface) Destroy() {
	s.client.Enqueue(wire.NewMessage(s, "destroy", surfaceDestroy))
	s.client.Delete(s.ID())
}

// GetToplevel assigns the toplevel role to the surface.
func (s *Surface) GetToplevel() *Toplevel {
	t := Toplevel{client: s.client}
	s.client.Add(&t)

	msg := wire.NewMessage(s, "get_toplevel", surfaceGetToplevel)
	msg.WriteObject(&t)
	s.client.Enqueue(msg)

	return &t
}

// SetWindowGeometry tells the compositor which part of the surface is
// the actual window, excluding drop shadows and the like.
func (s *Surface) SetWindowGeometry(x, y, width, height int32) {
	msg := wire.NewMessage(s, "set_window_geometry", surfaceSetWindowGeometry)
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	s.client.Enqueue(msg)
}

// AckConfigure acknowledges a configure event. The next commit is
// then taken to reflect the acknowledged state.
func (s *Surface) AckConfigure(serial uint32) {
	msg := wire.NewMessage(s, "ack_configure", surfaceAckConfigure)
	msg.WriteUint(serial)
	s.client.Enqueue(msg)
}

func (s *Surface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case surfaceEvConfigure:
		serial := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			s.Listener.Configure(serial)
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: SurfaceInterface, Type: "event", Op: msg.Op()}
	}
}
