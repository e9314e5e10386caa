package wl

import "deedles.dev/wlshim/wire"

const (
	SurfaceInterface = "wl_surface"
	SurfaceVersion   = 4
)

const (
	surfaceDestroy uint16 = iota
	surfaceAttach
	surfaceDamage
	surfaceFrame
	surfaceSetOpaqueRegion
	surfaceSetInputRegion
	surfaceCommit
	surfaceSetBufferTransform
	surfaceSetBufferScale
	surfaceDamageBuffer
)

const (
	surfaceEvEnter uint16 = iota
	surfaceEvLeave
)

var surfaceEvents = []string{"enter", "leave"}

// Surface is a drawable protocol object. It displays nothing until it
// is given a role and a buffer is attached and committed.
type Surface struct {
	wire.ObjectID
	Listener SurfaceListener

	client *Client
}

// SurfaceListener is notified when the surface starts or stops
// overlapping an output. The output is nil if it is not bound on this
// connection.
type SurfaceListener interface {
	Enter(output *Output)
	Leave(output *Output)
}

func (s *Surface) Interface() string {
	return SurfaceInterface
}

func (s *Surface) MethodName(op uint16) string {
	return eventName(surfaceEvents, op)
}

// Destroy destroys the surface and drops it from the object table.
func (s *Surface) Destroy() {
	s.client.Enqueue(wire.NewMessage(s, "destroy", surfaceDestroy))
	s.client.Delete(s.ID())
}

// Attach sets the surface's contents to buf. A nil buf removes the
// contents. The change takes effect on the next commit.
func (s *Surface) Attach(buf *Buffer, x, y int32) {
	msg := wire.NewMessage(s, "attach", surfaceAttach)
	msg.WriteObject(buf)
	msg.WriteInt(x)
	msg.WriteInt(y)
	s.client.Enqueue(msg)
}

// Damage marks a region of the surface as needing recomposition, in
// surface-local coordinates.
func (s *Surface) Damage(x, y, width, height int32) {
	msg := wire.NewMessage(s, "damage", surfaceDamage)
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	s.client.Enqueue(msg)
}

// DamageBuffer marks a region of the attached buffer as needing
// recomposition, in buffer pixel coordinates.
func (s *Surface) DamageBuffer(x, y, width, height int32) {
	msg := wire.NewMessage(s, "damage_buffer", surfaceDamageBuffer)
	msg.WriteInt(x)
	msg.WriteInt(y)
	msg.WriteInt(width)
	msg.WriteInt(height)
	s.client.Enqueue(msg)
}

// Frame returns a callback that fires when the compositor next wants
// a new frame for the surface.
func (s *Surface) Frame() *Callback {
	cb := Callback{client: s.client}
	s.client.Add(&cb)

	msg := wire.NewMessage(s, "frame", surfaceFrame)
	msg.WriteObject(&cb)
	s.client.Enqueue(msg)

	return &cb
}

// SetBufferScale declares the scale factor relating buffer pixels to
// surface coordinates.
func (s *Surface) SetBufferScale(scale int32) {
	msg := wire.NewMessage(s, "set_buffer_scale", surfaceSetBufferScale)
	msg.WriteInt(scale)
	s.client.Enqueue(msg)
}

// Commit atomically applies all state staged since the last commit.
func (s *Surface) Commit() {
	s.client.Enqueue(wire.NewMessage(s, "commit", surfaceCommit))
}

func (s *Surface) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case surfaceEvEnter:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			output, _ := s.client.Get(id).(*Output)
			s.Listener.Enter(output)
		}
		return nil

	case surfaceEvLeave:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if s.Listener != nil {
			output, _ := s.client.Get(id).(*Output)
			s.Listener.Leave(output)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: SurfaceInterface, Type: "event", Op: msg.Op()}
}
