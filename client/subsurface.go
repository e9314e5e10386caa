package wl

import "deedles.dev/wlshim/wire"

const (
	SubsurfaceInterface = "wl_subsurface"
	SubsurfaceVersion   = 1
)

const (
	subsurfaceDestroy uint16 = iota
	subsurfaceSetPosition
	subsurfacePlaceAbove
	subsurfacePlaceBelow
	subsurfaceSetSync
	subsurfaceSetDesync
)

// Subsurface is the role object of a surface embedded in another
// surface.
type Subsurface struct {
	wire.ObjectID

	client *Client
}

func (sub *Subsurface) Interface() string {
	return SubsurfaceInterface
}

func (sub *Subsurface) MethodName(op uint16) string {
	return eventName(nil, op)
}

// Destroy removes the role. The underlying surface becomes a plain
// surface again.
func (sub *Subsurface) Destroy() {
	sub.client.Enqueue(wire.NewMessage(sub, "destroy", subsurfaceDestroy))
	sub.client.Delete(sub.ID())
}

// SetPosition schedules a move to (x, y) in the parent's surface
// coordinates, applied on the parent's next commit.
func (sub *Subsurface) SetPosition(x, y int32) {
	msg := wire.NewMessage(sub, "set_position", subsurfaceSetPosition)
	msg.WriteInt(x)
	msg.WriteInt(y)
	sub.client.Enqueue(msg)
}

func (sub *Subsurface) PlaceAbove(sibling *Surface) {
	msg := wire.NewMessage(sub, "place_above", subsurfacePlaceAbove)
	msg.WriteObject(sibling)
	sub.client.Enqueue(msg)
}

func (sub *Subsurface) PlaceBelow(sibling *Surface) {
	msg := wire.NewMessage(sub, "place_below", subsurfacePlaceBelow)
	msg.WriteObject(sibling)
	sub.client.Enqueue(msg)
}

// SetSync ties the subsurface's commits to its parent's commit cycle.
func (sub *Subsurface) SetSync() {
	sub.client.Enqueue(wire.NewMessage(sub, "set_sync", subsurfaceSetSync))
}

// SetDesync lets the subsurface's commits apply immediately,
// independent of the parent's commit cycle.
func (sub *Subsurface) SetDesync() {
	sub.client.Enqueue(wire.NewMessage(sub, "set_desync", subsurfaceSetDesync))
}

func (sub *Subsurface) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: SubsurfaceInterface, Type: "event", Op: msg.Op()}
}
