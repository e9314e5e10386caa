package comptest

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"time"

	"deedles.dev/wlshim/internal/bin"
	"deedles.dev/wlshim/wire"
)

// sender satisfies the wire layer's need for a sending object when
// building events for client-allocated IDs.
type sender struct {
	id    uint32
	iface string
}

func (s sender) ID() uint32                         { return s.id }
func (s sender) SetID(uint32)                       {}
func (s sender) Delete()                            {}
func (s sender) Interface() string                  { return s.iface }
func (s sender) MethodName(uint16) string           { return "event" }
func (s sender) Dispatch(*wire.MessageBuffer) error { return nil }

// send builds and writes one event. The caller holds c.mu.
func (c *Compositor) send(id uint32, iface string, op uint16, build func(*wire.MessageBuilder)) {
	mb := wire.NewMessage(sender{id: id, iface: iface}, "event", op)
	if build != nil {
		build(mb)
	}
	if err := mb.Build(c.conn); err != nil {
		c.errs = append(c.errs, fmt.Errorf("send %s event %d: %w", iface, op, err))
	}
}

func (c *Compositor) deleteID(id uint32) {
	delete(c.objects, id)
	c.send(1, "wl_display", 1, func(mb *wire.MessageBuilder) {
		mb.WriteUint(id)
	})
}

func (c *Compositor) nextSerial() uint32 {
	c.serial++
	return c.serial
}

func (c *Compositor) sendConfigure(s *Surface, width, height int32, states []uint32) uint32 {
	var arr bytes.Buffer
	for _, state := range states {
		bin.Write(&arr, state)
	}
	c.send(s.Toplevel, "xdg_toplevel", 0, func(mb *wire.MessageBuilder) {
		mb.WriteInt(width)
		mb.WriteInt(height)
		mb.WriteArray(arr.Bytes())
	})

	serial := c.nextSerial()
	c.send(s.XdgSurface, "xdg_surface", 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(serial)
	})
	return serial
}

func (c *Compositor) sendOutputState(out *outputGlobal) {
	c.send(out.bound, "wl_output", 0, func(mb *wire.MessageBuilder) {
		mb.WriteInt(out.x)
		mb.WriteInt(out.y)
		mb.WriteInt(0)
		mb.WriteInt(0)
		mb.WriteInt(0) // subpixel unknown
		mb.WriteString("comptest")
		mb.WriteString("virtual")
		mb.WriteInt(0) // transform normal
	})
	c.send(out.bound, "wl_output", 1, func(mb *wire.MessageBuilder) {
		mb.WriteUint(1) // current
		mb.WriteInt(1920)
		mb.WriteInt(1080)
		mb.WriteInt(60000)
	})
	c.send(out.bound, "wl_output", 3, func(mb *wire.MessageBuilder) {
		mb.WriteInt(out.scale)
	})
	c.send(out.bound, "wl_output", 2, nil) // done
}

// Configure proposes a size and state set for a toplevel surface and
// returns the serial used. States are xdg_toplevel state values.
func (c *Compositor) Configure(surface uint32, width, height int32, states ...uint32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.surfaces[surface]
	if s == nil || s.Toplevel == 0 || s.XdgSurface == 0 {
		c.errs = append(c.errs, fmt.Errorf("configure of surface %d with no toplevel", surface))
		return 0
	}
	s.configured = true
	return c.sendConfigure(s, width, height, states)
}

// CloseToplevel asks the client to close a toplevel surface.
func (c *Compositor) CloseToplevel(surface uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.surfaces[surface]
	if s == nil || s.Toplevel == 0 {
		c.errs = append(c.errs, fmt.Errorf("close of surface %d with no toplevel", surface))
		return
	}
	c.send(s.Toplevel, "xdg_toplevel", 1, nil)
}

// Ping sends an xdg_wm_base ping.
func (c *Compositor) Ping(serial uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.send(c.binds["xdg_wm_base"], "xdg_wm_base", 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(serial)
	})
}

// ReleaseBuffer hands a buffer back to the client.
func (c *Compositor) ReleaseBuffer(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.send(id, "wl_buffer", 0, nil)
}

// Enter tells the client that a surface started overlapping the
// output with the given global name.
func (c *Compositor) Enter(surface, name uint32) {
	c.sendOverlap(surface, name, 0)
}

// Leave tells the client that a surface stopped overlapping the
// output with the given global name.
func (c *Compositor) Leave(surface, name uint32) {
	c.sendOverlap(surface, name, 1)
}

func (c *Compositor) sendOverlap(surface, name uint32, op uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.outputs[name]
	if out == nil || out.bound == 0 {
		c.errs = append(c.errs, fmt.Errorf("surface overlap with unbound output %d", name))
		return
	}
	c.send(surface, "wl_surface", op, func(mb *wire.MessageBuilder) {
		mb.WriteUint(out.bound)
	})
}

// AddOutput registers an output global at the given position and
// scale and returns its global name. Outputs added after the client
// fetched the registry are announced to it.
func (c *Compositor) AddOutput(x, y, scale int32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.nextName
	c.nextName++
	c.outputs[name] = &outputGlobal{name: name, x: x, y: y, scale: scale}
	if c.registry != 0 && !c.omit["wl_output"] {
		c.sendGlobal(name, "wl_output", 3)
	}
	return name
}

// RemoveOutput withdraws an output global.
func (c *Compositor) RemoveOutput(name uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.outputs, name)
	if c.registry != 0 {
		c.send(c.registry, "wl_registry", 1, func(mb *wire.MessageBuilder) {
			mb.WriteUint(name)
		})
	}
}

// SetOutputScale changes an output's scale factor and resends its
// state, ending with a done event.
func (c *Compositor) SetOutputScale(name uint32, scale int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.outputs[name]
	if out == nil || out.bound == 0 {
		c.errs = append(c.errs, fmt.Errorf("scale change on unbound output %d", name))
		return
	}
	out.scale = scale
	c.sendOutputState(out)
}

// SetAutoConfigure controls whether a toplevel's first buffer-less
// commit is answered with an initial configure. It defaults to on.
func (c *Compositor) SetAutoConfigure(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoConf = on
}

// WaitFor polls pred until it holds or five seconds pass, reporting
// whether it held. pred runs without the compositor lock; use the
// snapshot accessors inside it.
func (c *Compositor) WaitFor(pred func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if pred() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return pred()
}

func snapshot(s *Surface) Surface {
	out := *s
	out.Damage = slices.Clone(s.Damage)
	out.Acked = slices.Clone(s.Acked)
	return out
}

// Surface returns a copy of the record for one wl_surface.
func (c *Compositor) Surface(id uint32) (Surface, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.surfaces[id]
	if s == nil {
		return Surface{}, false
	}
	return snapshot(s), true
}

// Surfaces returns copies of all live surface records, ordered by ID.
func (c *Compositor) Surfaces() []Surface {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Surface, 0, len(c.surfaces))
	for _, s := range c.surfaces {
		out = append(out, snapshot(s))
	}
	slices.SortFunc(out, func(a, b Surface) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Toplevels returns copies of the surfaces that currently have a
// toplevel role, ordered by ID.
func (c *Compositor) Toplevels() []Surface {
	return slices.DeleteFunc(c.Surfaces(), func(s Surface) bool { return s.Toplevel == 0 })
}

// Subsurfaces returns copies of the surfaces that currently have a
// subsurface role, ordered by ID.
func (c *Compositor) Subsurfaces() []Surface {
	return slices.DeleteFunc(c.Surfaces(), func(s Surface) bool { return s.Subsurface == 0 })
}

// Toplevel returns the record of the only toplevel surface. It is a
// convenience for the common single-window test.
func (c *Compositor) Toplevel() (Surface, bool) {
	tops := c.Toplevels()
	if len(tops) != 1 {
		return Surface{}, false
	}
	return tops[0], true
}

// Buffer returns a copy of the record for one wl_buffer, which may be
// destroyed already.
func (c *Compositor) Buffer(id uint32) (Buffer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b := c.buffers[id]
	if b == nil {
		return Buffer{}, false
	}
	return *b, true
}

// CreatedBuffers counts every wl_buffer the client ever created.
func (c *Compositor) CreatedBuffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// Requests returns the ordered log of requests received so far, as
// "interface@id.method" strings.
func (c *Compositor) Requests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.requests)
}

// Pongs returns the serials the client has answered pings with.
func (c *Compositor) Pongs() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.pongs)
}

// BindCount reports how many times the client bound an interface.
func (c *Compositor) BindCount(iface string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindCount[iface]
}

// OutputBound reports whether the output global is currently bound.
func (c *Compositor) OutputBound(name uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.outputs[name]
	return out != nil && out.bound != 0
}
