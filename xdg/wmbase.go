// Package xdg implements the client side of the stable xdg-shell
// protocol, the desktop windowing layer that sits on top of the core
// protocol. It builds on the client package in the same way that the
// core interface wrappers do.
package xdg

import (
	wl "deedles.dev/wlshim/client"
	"deedles.dev/wlshim/wire"
)

const (
	WmBaseInterface = "xdg_wm_base"
	WmBaseVersion   = 1
)

const (
	wmBaseDestroy uint16 = iota
	wmBaseCreatePositioner
	wmBaseGetXdgSurface
	wmBasePong
)

const (
	wmBaseEvPing uint16 = iota
)

var wmBaseEvents = []string{
	"ping",
}

func eventName(names []string, op uint16) string {
	if int(op) >= len(names) {
		return "unknown"
	}
	return names[op]
}

// WmBase is the global entry point of the xdg-shell protocol.
type WmBase struct {
	wire.ObjectID

	// Listener, if not nil, is told about pings. Pings are answered
	// automatically either way.
	Listener WmBaseListener

	client *wl.Client
}

type WmBaseListener interface {
	Ping(serial uint32)
}

// BindWmBase binds the named global as an xdg_wm_base.
func BindWmBase(c *wl.Client, r *wl.Registry, name, version uint32) *WmBase {
	wm := WmBase{client: c}
	c.Add(&wm)
	r.Bind(name, wire.NewID{
		Interface: WmBaseInterface,
		Version:   min(version, WmBaseVersion),
		ID:        wm.ID(),
	})
	return &wm
}

func (wm *WmBase) Interface() string {
	return WmBaseInterface
}

func (wm *WmBase) MethodName(op uint16) string {
	return eventName(wmBaseEvents, op)
}

func (wm *WmBase) Destroy() {
	wm.client.Enqueue(wire.NewMessage(wm, "destroy", wmBaseDestroy))
	wm.client.Delete(wm.ID())
}

// GetXdgSurface wraps a plain surface in an xdg_surface, the first
// step towards giving it a desktop role.
func (wm *WmBase) GetXdgSurface(s *wl.Surface) *Surface {
	xs := Surface{client: wm.client}
	wm.client.Add(&xs)

	msg := wire.NewMessage(wm, "get_xdg_surface", wmBaseGetXdgSurface)
	msg.WriteObject(&xs)
	msg.WriteObject(s)
	wm.client.Enqueue(msg)

	return &xs
}

// Pong answers a ping. Dispatch already does this on its own, so
// most clients never call it.
func (wm *WmBase) Pong(serial uint32) {
	msg := wire.NewMessage(wm, "pong", wmBasePong)
	msg.WriteUint(serial)
	wm.client.Enqueue(msg)
}

func (wm *WmBase) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case wmBaseEvPing:
		serial := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		wm.Pong(serial)
		if wm.Listener != nil {
			wm.Listener.Ping(serial)
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: WmBaseInterface, Type: "event", Op: msg.Op()}
	}
}
