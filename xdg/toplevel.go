package xdg

import (
	wl "deedles.dev/wlshim/client"
	"deedles.dev/wlshim/internal/bin"
	"deedles.dev/wlshim/wire"
)

const (
	ToplevelInterface = "xdg_toplevel"
	ToplevelVersion   = 1
)

const (
	toplevelDestroy uint16 = iota
	toplevelSetParent
	toplevelSetTitle
	toplevelSetAppID
	toplevelShowWindowMenu
	toplevelMove
	toplevelResize
	toplevelSetMaxSize
	toplevelSetMinSize
	toplevelSetMaximized
	toplevelUnsetMaximized
	toplevelSetFullscreen
	toplevelUnsetFullscreen
	toplevelSetMinimized
)

const (
	toplevelEvConfigure uint16 = iota
	toplevelEvClose
)

var toplevelEvents = []string{
	"configure",
	"close",
}

// ToplevelState is a state the compositor has put a toplevel into,
// as reported in configure events.
type ToplevelState uint32

const (
	ToplevelStateMaximized  ToplevelState = 1
	ToplevelStateFullscreen ToplevelState = 2
	ToplevelStateResizing   ToplevelState = 3
	ToplevelStateActivated  ToplevelState = 4
)

func (state ToplevelState) String() string {
	switch state {
	case ToplevelStateMaximized:
		return "maximized"
	case ToplevelStateFullscreen:
		return "fullscreen"
	case ToplevelStateResizing:
		return "resizing"
	case ToplevelStateActivated:
		return "activated"
	}
	return "unknown"
}

// Toplevel is a top-level desktop window.
type Toplevel struct {
	wire.ObjectID

	Listener ToplevelListener

	client *wl.Client
}

type ToplevelListener interface {
	// Configure carries the size and states the compositor wants the
	// toplevel to take. A zero dimension leaves that dimension up to
	// the client. The batch is terminated by the corresponding
	// xdg_surface configure event.
	Configure(width, height int32, states []ToplevelState)

	// Close is sent when the user or the compositor wants the window
	// gone. The client decides what actually happens.
	Close()
}

func (t *Toplevel) Interface() string {
	return ToplevelInterface
}

func (t *Toplevel) MethodName(op uint16) string {
	return eventName(toplevelEvents, op)
}

func (t *Toplevel) Destroy() {
	t.client.Enqueue(wire.NewMessage(t, "destroy", toplevelDestroy))
	t.client.Delete(t.ID())
}

// SetParent marks the toplevel as subordinate to parent, or clears
// the relationship if parent is nil.
func (t *Toplevel) SetParent(parent *Toplevel) {
	msg := wire.NewMessage(t, "set_parent", toplevelSetParent)
	msg.WriteObject(parent)
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetTitle(title string) {
	msg := wire.NewMessage(t, "set_title", toplevelSetTitle)
	msg.WriteString(title)
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetAppID(id string) {
	msg := wire.NewMessage(t, "set_app_id", toplevelSetAppID)
	msg.WriteString(id)
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetMaxSize(width, height int32) {
	msg := wire.NewMessage(t, "set_max_size", toplevelSetMaxSize)
	msg.WriteInt(width)
	msg.WriteInt(height)
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetMinSize(width, height int32) {
	msg := wire.NewMessage(t, "set_min_size", toplevelSetMinSize)
	msg.WriteInt(width)
	msg.WriteInt(height)
	t.client.Enqueue(msg)
}

func (t *Toplevel) SetMaximized() {
	t.client.Enqueue(wire.NewMessage(t, "set_maximized", toplevelSetMaximized))
}

func (t *Toplevel) UnsetMaximized() {
	t.client.Enqueue(wire.NewMessage(t, "unset_maximized", toplevelUnsetMaximized))
}

// SetFullscreen asks for fullscreen on the given output, or on an
// output of the compositor's choosing if output is nil.
func (t *Toplevel) SetFullscreen(output *wl.Output) {
	msg := wire.NewMessage(t, "set_fullscreen", toplevelSetFullscreen)
	msg.WriteObject(output)
	t.client.Enqueue(msg)
}

func (t *Toplevel) UnsetFullscreen() {
	t.client.Enqueue(wire.NewMessage(t, "unset_fullscreen", toplevelUnsetFullscreen))
}

func (t *Toplevel) SetMinimized() {
	t.client.Enqueue(wire.NewMessage(t, "set_minimized", toplevelSetMinimized))
}

func (t *Toplevel) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case toplevelEvConfigure:
		width := msg.ReadInt()
		height := msg.ReadInt()
		data := msg.ReadArray()
		if err := msg.Err(); err != nil {
			return err
		}
		states := make([]ToplevelState, len(data)/4)
		for i := range states {
			states[i] = ToplevelState(bin.Value[uint32]([4]byte(data[i*4:])))
		}
		if t.Listener != nil {
			t.Listener.Configure(width, height, states)
		}
		return nil

	case toplevelEvClose:
		if t.Listener != nil {
			t.Listener.Close()
		}
		return nil

	default:
		return wire.UnknownOpError{Interface: ToplevelInterface, Type: "event", Op: msg.Op()}
	}
}
