package wl

import "deedles.dev/wlshim/wire"

const (
	CompositorInterface = "wl_compositor"
	CompositorVersion   = 4
)

const (
	compositorCreateSurface uint16 = iota
	compositorCreateRegion
)

// Compositor creates surfaces.
type Compositor struct {
	wire.ObjectID

	client *Client
}

// BindCompositor binds the wl_compositor global with the given
// registry name.
func BindCompositor(c *Client, r *Registry, name, version uint32) *Compositor {
	comp := Compositor{client: c}
	c.Add(&comp)
	r.Bind(name, wire.NewID{
		Interface: CompositorInterface,
		Version:   min(version, CompositorVersion),
		ID:        comp.ID(),
	})
	return &comp
}

func (comp *Compositor) Interface() string {
	return CompositorInterface
}

func (comp *Compositor) MethodName(op uint16) string {
	return eventName(nil, op)
}

func (comp *Compositor) CreateSurface() *Surface {
	s := Surface{client: comp.client}
	comp.client.Add(&s)

	msg := wire.NewMessage(comp, "create_surface", compositorCreateSurface)
	msg.WriteObject(&s)
	comp.client.Enqueue(msg)

	return &s
}

func (comp *Compositor) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: CompositorInterface, Type: "event", Op: msg.Op()}
}
