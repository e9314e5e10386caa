// Package comptest provides an in-process compositor for tests. It
// speaks the server side of the wire protocol over a socketpair,
// records the objects and surface state a client builds up, and lets
// tests inject events and wait on the recorded state.
package comptest

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"os"
	"sync"
	"testing"

	"deedles.dev/wlshim/wire"
	"golang.org/x/sys/unix"
)

// Surface is the compositor-side record of one wl_surface and
// whatever role objects hang off of it. Accessors return copies.
type Surface struct {
	ID         uint32
	XdgSurface uint32
	Toplevel   uint32
	Subsurface uint32

	// Parent is the parent wl_surface for subsurfaces.
	Parent uint32

	// StackParent is the xdg_toplevel passed to set_parent, or 0.
	StackParent uint32

	Desync   bool
	Position image.Point
	Geometry image.Rectangle
	Scale    int32

	Title   string
	AppID   string
	MinSize image.Point
	MaxSize image.Point

	// Buffer is the committed buffer, 0 when none.
	Buffer  uint32
	Mapped  bool
	Commits int
	Damage  []image.Rectangle
	Acked   []uint32

	pendingBuffer uint32
	pendingAttach bool
	pendingDamage []image.Rectangle
	configured    bool
}

// Buffer is the compositor-side record of one wl_buffer.
type Buffer struct {
	ID        uint32
	Offset    int32
	Width     int32
	Height    int32
	Stride    int32
	Format    uint32
	Destroyed bool
}

type outputGlobal struct {
	name  uint32
	x, y  int32
	scale int32
	bound uint32
}

// Compositor is a fake compositor bound to one client connection.
type Compositor struct {
	conn *wire.Conn
	wg   sync.WaitGroup

	mu sync.Mutex

	omit     map[string]bool
	serial   uint32
	autoConf bool
	registry uint32
	nextName uint32

	objects   map[uint32]string
	binds     map[string]uint32
	bindCount map[string]int
	surfaces  map[uint32]*Surface
	buffers   map[uint32]*Buffer
	outputs   map[uint32]*outputGlobal

	pongs    []uint32
	requests []string
	errs     []error
}

// New starts a compositor on one end of a socketpair and returns the
// other end for the client. Interfaces named in omit are not
// advertised. The compositor starts with a single output at the
// origin with scale 1.
func New(tb testing.TB, omit ...string) (*Compositor, *wire.Conn) {
	tb.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		tb.Fatalf("socketpair: %v", err)
	}
	server := socketConn(tb, fds[0])
	client := socketConn(tb, fds[1])

	c := Compositor{
		conn:      server,
		autoConf:  true,
		nextName:  10,
		objects:   map[uint32]string{1: "wl_display"},
		binds:     make(map[string]uint32),
		bindCount: make(map[string]int),
		surfaces:  make(map[uint32]*Surface),
		buffers:   make(map[uint32]*Buffer),
		outputs:   make(map[uint32]*outputGlobal),
		omit:      make(map[string]bool),
	}
	for _, name := range omit {
		c.omit[name] = true
	}
	c.AddOutput(0, 0, 1)

	c.wg.Add(1)
	go c.serve()
	tb.Cleanup(c.Close)

	return &c, client
}

func socketConn(tb testing.TB, fd int) *wire.Conn {
	tb.Helper()

	file := os.NewFile(uintptr(fd), "comptest")
	defer file.Close()
	conn, err := net.FileConn(file)
	if err != nil {
		tb.Fatalf("wrap socketpair end: %v", err)
	}
	return wire.NewConn(conn.(*net.UnixConn))
}

// Close tears down the compositor side of the connection and waits
// for its goroutine. It is registered as a cleanup by New.
func (c *Compositor) Close() {
	c.conn.Close()
	c.wg.Wait()
}

// Err returns every protocol-level problem the compositor noticed,
// joined, or nil.
func (c *Compositor) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.errs...)
}

func (c *Compositor) serve() {
	defer c.wg.Done()

	for {
		msg, err := wire.ReadMessage(c.conn)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			c.mu.Lock()
			c.errs = append(c.errs, fmt.Errorf("read message: %w", err))
			c.mu.Unlock()
			return
		}
		c.handle(msg)
	}
}

func (c *Compositor) handle(msg *wire.MessageBuffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := msg.Sender()
	switch c.objects[id] {
	case "wl_display":
		c.handleDisplay(msg)
	case "wl_registry":
		c.handleRegistry(msg)
	case "wl_compositor":
		c.handleCompositor(msg)
	case "wl_surface":
		c.handleSurface(id, msg)
	case "wl_subcompositor":
		c.handleSubcompositor(id, msg)
	case "wl_subsurface":
		c.handleSubsurface(id, msg)
	case "wl_shm":
		c.handleShm(id, msg)
	case "wl_shm_pool":
		c.handlePool(id, msg)
	case "wl_buffer":
		c.handleBuffer(id, msg)
	case "wl_output":
		c.handleOutput(id, msg)
	case "xdg_wm_base":
		c.handleWmBase(id, msg)
	case "xdg_surface":
		c.handleXdgSurface(id, msg)
	case "xdg_toplevel":
		c.handleToplevel(id, msg)
	default:
		c.errs = append(c.errs, fmt.Errorf("request %d for unknown object %d", msg.Op(), id))
		return
	}

	if err := msg.Err(); err != nil {
		c.errs = append(c.errs, fmt.Errorf("decode %s request %d: %w", c.objects[id], msg.Op(), err))
	}
}

func (c *Compositor) note(id uint32, method string) {
	c.requests = append(c.requests, fmt.Sprintf("%s@%d.%s", c.objects[id], id, method))
}

func (c *Compositor) handleDisplay(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // sync
		cb := msg.ReadUint()
		c.note(1, "sync")
		c.send(cb, "wl_callback", 0, func(mb *wire.MessageBuilder) {
			mb.WriteUint(c.nextSerial())
		})
		c.deleteID(cb)
	case 1: // get_registry
		id := msg.ReadUint()
		c.note(1, "get_registry")
		c.objects[id] = "wl_registry"
		c.registry = id
		c.announceGlobals()
	}
}

func (c *Compositor) announceGlobals() {
	globals := []struct {
		name    uint32
		iface   string
		version uint32
	}{
		{1, "wl_compositor", 4},
		{2, "wl_subcompositor", 1},
		{3, "wl_shm", 1},
		{4, "xdg_wm_base", 1},
	}
	for _, g := range globals {
		if !c.omit[g.iface] {
			c.sendGlobal(g.name, g.iface, g.version)
		}
	}
	if !c.omit["wl_output"] {
		for _, out := range c.outputs {
			c.sendGlobal(out.name, "wl_output", 3)
		}
	}
}

func (c *Compositor) sendGlobal(name uint32, iface string, version uint32) {
	c.send(c.registry, "wl_registry", 0, func(mb *wire.MessageBuilder) {
		mb.WriteUint(name)
		mb.WriteString(iface)
		mb.WriteUint(version)
	})
}

func (c *Compositor) handleRegistry(msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // bind
		return
	}
	name := msg.ReadUint()
	nid := msg.ReadNewID()
	if msg.Err() != nil {
		return
	}
	c.note(c.registry, "bind")
	c.objects[nid.ID] = nid.Interface
	c.binds[nid.Interface] = nid.ID
	c.bindCount[nid.Interface]++

	switch nid.Interface {
	case "wl_shm":
		for _, format := range []uint32{0, 1} { // argb8888, xrgb8888
			c.send(nid.ID, "wl_shm", 0, func(mb *wire.MessageBuilder) {
				mb.WriteUint(format)
			})
		}
	case "wl_output":
		out := c.outputs[name]
		if out == nil {
			c.errs = append(c.errs, fmt.Errorf("bind of unknown output global %d", name))
			return
		}
		out.bound = nid.ID
		c.sendOutputState(out)
	}
}

func (c *Compositor) handleCompositor(msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // create_surface
		id := msg.ReadUint()
		c.note(msg.Sender(), "create_surface")
		c.objects[id] = "wl_surface"
		c.surfaces[id] = &Surface{ID: id, Scale: 1}
	case 1: // create_region
		id := msg.ReadUint()
		c.note(msg.Sender(), "create_region")
		c.objects[id] = "wl_region"
	}
}

func (c *Compositor) handleSurface(id uint32, msg *wire.MessageBuffer) {
	s := c.surfaces[id]
	if s == nil {
		return
	}

	switch msg.Op() {
	case 0: // destroy
		c.note(id, "destroy")
		delete(c.surfaces, id)
		c.deleteID(id)
	case 1: // attach
		s.pendingBuffer = msg.ReadUint()
		s.pendingAttach = true
		c.note(id, "attach")
	case 2: // damage
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		s.pendingDamage = append(s.pendingDamage, rect(x, y, w, h))
		c.note(id, "damage")
	case 3: // frame
		cb := msg.ReadUint()
		c.objects[cb] = "wl_callback"
		c.note(id, "frame")
	case 4:
		c.note(id, "set_opaque_region")
	case 5:
		c.note(id, "set_input_region")
	case 6: // commit
		c.note(id, "commit")
		c.commitSurface(s)
	case 7:
		c.note(id, "set_buffer_transform")
	case 8: // set_buffer_scale
		s.Scale = msg.ReadInt()
		c.note(id, "set_buffer_scale")
	case 9: // damage_buffer
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		s.pendingDamage = append(s.pendingDamage, rect(x, y, w, h))
		c.note(id, "damage_buffer")
	}
}

// commitSurface applies pending state. A toplevel's first buffer-less
// commit draws the initial configure out of the compositor; a commit
// that replaces a buffer releases the old one.
func (c *Compositor) commitSurface(s *Surface) {
	s.Commits++

	if s.pendingAttach {
		prev := s.Buffer
		s.Buffer = s.pendingBuffer
		s.pendingAttach = false
		s.Mapped = s.Buffer != 0
		if prev != 0 && prev != s.Buffer {
			c.send(prev, "wl_buffer", 0, nil)
		}
	}
	s.Damage = s.pendingDamage
	s.pendingDamage = nil

	if c.autoConf && s.Toplevel != 0 && s.Buffer == 0 && !s.configured {
		s.configured = true
		c.sendConfigure(s, 0, 0, nil)
	}
}

func (c *Compositor) handleSubcompositor(id uint32, msg *wire.MessageBuffer) {
	if msg.Op() != 1 { // get_subsurface
		return
	}
	sub := msg.ReadUint()
	surface := msg.ReadUint()
	parent := msg.ReadUint()
	if msg.Err() != nil {
		return
	}
	c.note(id, "get_subsurface")
	c.objects[sub] = "wl_subsurface"
	if s := c.surfaces[surface]; s != nil {
		s.Subsurface = sub
		s.Parent = parent
	}
}

func (c *Compositor) handleSubsurface(id uint32, msg *wire.MessageBuffer) {
	s := c.surfaceForRole(id, func(s *Surface) uint32 { return s.Subsurface })

	switch msg.Op() {
	case 0: // destroy
		c.note(id, "destroy")
		if s != nil {
			s.Subsurface = 0
			s.Parent = 0
		}
		c.deleteID(id)
	case 1: // set_position
		x, y := msg.ReadInt(), msg.ReadInt()
		c.note(id, "set_position")
		if s != nil {
			s.Position = image.Pt(int(x), int(y))
		}
	case 2:
		c.note(id, "place_above")
	case 3:
		c.note(id, "place_below")
	case 4:
		c.note(id, "set_sync")
		if s != nil {
			s.Desync = false
		}
	case 5:
		c.note(id, "set_desync")
		if s != nil {
			s.Desync = true
		}
	}
}

func (c *Compositor) handleShm(id uint32, msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // create_pool
		return
	}
	pool := msg.ReadUint()
	file := msg.ReadFile()
	if file != nil {
		file.Close()
	}
	c.note(id, "create_pool")
	c.objects[pool] = "wl_shm_pool"
}

func (c *Compositor) handlePool(id uint32, msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0: // create_buffer
		buf := msg.ReadUint()
		offset := msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		stride := msg.ReadInt()
		format := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.note(id, "create_buffer")
		c.objects[buf] = "wl_buffer"
		c.buffers[buf] = &Buffer{
			ID:     buf,
			Offset: offset,
			Width:  w,
			Height: h,
			Stride: stride,
			Format: format,
		}
	case 1: // destroy
		c.note(id, "destroy")
		c.deleteID(id)
	case 2:
		c.note(id, "resize")
	}
}

func (c *Compositor) handleBuffer(id uint32, msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // destroy
		return
	}
	c.note(id, "destroy")
	if b := c.buffers[id]; b != nil {
		b.Destroyed = true
	}
	c.deleteID(id)
}

func (c *Compositor) handleOutput(id uint32, msg *wire.MessageBuffer) {
	if msg.Op() != 0 { // release
		return
	}
	c.note(id, "release")
	for _, out := range c.outputs {
		if out.bound == id {
			out.bound = 0
		}
	}
	c.deleteID(id)
}

func (c *Compositor) handleWmBase(id uint32, msg *wire.MessageBuffer) {
	switch msg.Op() {
	case 0:
		c.note(id, "destroy")
		c.deleteID(id)
	case 1: // create_positioner
		pos := msg.ReadUint()
		c.note(id, "create_positioner")
		c.objects[pos] = "xdg_positioner"
	case 2: // get_xdg_surface
		xs := msg.ReadUint()
		surface := msg.ReadUint()
		if msg.Err() != nil {
			return
		}
		c.note(id, "get_xdg_surface")
		c.objects[xs] = "xdg_surface"
		if s := c.surfaces[surface]; s != nil {
			s.XdgSurface = xs
		}
	case 3: // pong
		serial := msg.ReadUint()
		c.note(id, "pong")
		c.pongs = append(c.pongs, serial)
	}
}

func (c *Compositor) handleXdgSurface(id uint32, msg *wire.MessageBuffer) {
	s := c.surfaceForRole(id, func(s *Surface) uint32 { return s.XdgSurface })

	switch msg.Op() {
	case 0: // destroy
		c.note(id, "destroy")
		if s != nil {
			s.XdgSurface = 0
			s.configured = false
		}
		c.deleteID(id)
	case 1: // get_toplevel
		top := msg.ReadUint()
		c.note(id, "get_toplevel")
		c.objects[top] = "xdg_toplevel"
		if s != nil {
			s.Toplevel = top
		}
	case 2: // get_popup
		c.note(id, "get_popup")
	case 3: // set_window_geometry
		x, y := msg.ReadInt(), msg.ReadInt()
		w, h := msg.ReadInt(), msg.ReadInt()
		c.note(id, "set_window_geometry")
		if s != nil {
			s.Geometry = rect(x, y, w, h)
		}
	case 4: // ack_configure
		serial := msg.ReadUint()
		c.note(id, "ack_configure")
		if s != nil {
			s.Acked = append(s.Acked, serial)
		}
	}
}

func (c *Compositor) handleToplevel(id uint32, msg *wire.MessageBuffer) {
	s := c.surfaceForRole(id, func(s *Surface) uint32 { return s.Toplevel })

	switch msg.Op() {
	case 0: // destroy
		c.note(id, "destroy")
		if s != nil {
			s.Toplevel = 0
		}
		c.deleteID(id)
	case 1: // set_parent
		parent := msg.ReadUint()
		c.note(id, "set_parent")
		if s != nil {
			s.StackParent = parent
		}
	case 2: // set_title
		title := msg.ReadString()
		c.note(id, "set_title")
		if s != nil {
			s.Title = title
		}
	case 3: // set_app_id
		appID := msg.ReadString()
		c.note(id, "set_app_id")
		if s != nil {
			s.AppID = appID
		}
	case 4:
		c.note(id, "show_window_menu")
	case 5:
		c.note(id, "move")
	case 6:
		c.note(id, "resize")
	case 7: // set_max_size
		w, h := msg.ReadInt(), msg.ReadInt()
		c.note(id, "set_max_size")
		if s != nil {
			s.MaxSize = image.Pt(int(w), int(h))
		}
	case 8: // set_min_size
		w, h := msg.ReadInt(), msg.ReadInt()
		c.note(id, "set_min_size")
		if s != nil {
			s.MinSize = image.Pt(int(w), int(h))
		}
	case 9:
		c.note(id, "set_maximized")
	case 10:
		c.note(id, "unset_maximized")
	case 11:
		c.note(id, "set_fullscreen")
	case 12:
		c.note(id, "unset_fullscreen")
	case 13:
		c.note(id, "set_minimized")
	}
}

// surfaceForRole finds the surface whose role object is id.
func (c *Compositor) surfaceForRole(id uint32, get func(*Surface) uint32) *Surface {
	for _, s := range c.surfaces {
		if get(s) == id {
			return s
		}
	}
	return nil
}

func rect(x, y, w, h int32) image.Rectangle {
	return image.Rect(int(x), int(y), int(x+w), int(y+h))
}
