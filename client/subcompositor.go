package wl

import "deedles.dev/wlshim/wire"

const (
	SubcompositorInterface = "wl_subcompositor"
	SubcompositorVersion   = 1
)

const (
	subcompositorDestroy uint16 = iota
	subcompositorGetSubsurface
)

// Subcompositor turns surfaces into subsurfaces of other surfaces.
type Subcompositor struct {
	wire.ObjectID

	client *Client
}

// BindSubcompositor binds the wl_subcompositor global with the given
// registry name.
func BindSubcompositor(c *Client, r *Registry, name, version uint32) *Subcompositor {
	sub := Subcompositor{client: c}
	c.Add(&sub)
	r.Bind(name, wire.NewID{
		Interface: SubcompositorInterface,
		Version:   min(version, SubcompositorVersion),
		ID:        sub.ID(),
	})
	return &sub
}

func (sc *Subcompositor) Interface() string {
	return SubcompositorInterface
}

func (sc *Subcompositor) MethodName(op uint16) string {
	return eventName(nil, op)
}

func (sc *Subcompositor) Destroy() {
	sc.client.Enqueue(wire.NewMessage(sc, "destroy", subcompositorDestroy))
	sc.client.Delete(sc.ID())
}

// GetSubsurface gives s the subsurface role under parent. The surface
// keeps the role until it is destroyed.
func (sc *Subcompositor) GetSubsurface(s, parent *Surface) *Subsurface {
	sub := Subsurface{client: sc.client}
	sc.client.Add(&sub)

	msg := wire.NewMessage(sc, "get_subsurface", subcompositorGetSubsurface)
	msg.WriteObject(&sub)
	msg.WriteObject(s)
	msg.WriteObject(parent)
	sc.client.Enqueue(msg)

	return &sub
}

func (sc *Subcompositor) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: SubcompositorInterface, Type: "event", Op: msg.Op()}
}
