package wlshim

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	wl "deedles.dev/wlshim/client"
	"deedles.dev/wlshim/internal/xslices"
	"deedles.dev/wlshim/xdg"
)

var (
	// ErrRoleAssigned is returned when a role is assigned to a
	// surface that already has one. The protocol forbids re-roling;
	// destroy the surface and create a fresh one instead.
	ErrRoleAssigned = errors.New("surface role already assigned")

	// ErrSurfaceDestroyed is returned by operations on a surface
	// whose protocol resources are already gone.
	ErrSurfaceDestroyed = errors.New("surface destroyed")

	// ErrConfigureTimeout is returned by MakeToplevel when the
	// compositor does not send the initial configure event within
	// the shim's ConfigureTimeout.
	ErrConfigureTimeout = errors.New("timed out waiting for initial configure")
)

// Role is the capability class assigned to a surface.
type Role int

const (
	RoleNone Role = iota
	RoleToplevel
	RoleSubsurface
)

func (r Role) String() string {
	switch r {
	case RoleNone:
		return "none"
	case RoleToplevel:
		return "toplevel"
	case RoleSubsurface:
		return "subsurface"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Surface owns one protocol surface and the configuration contract
// attached to it.
//
// A surface starts role-less. MakeToplevel and MakeSubsurface assign
// a role; a role is assigned at most once per protocol object, so
// changing it means destroying the surface and creating a new one.
// Surfaces are reference counted: the window binding holds one
// reference and every attached child holds one on its parent. The
// last Unref tears the protocol objects down.
type Surface struct {
	shim *Shim
	refs atomic.Int32

	mu   sync.Mutex
	cond sync.Cond

	wl         *wl.Surface
	xdgSurface *xdg.Surface
	toplevel   *xdg.Toplevel
	subsurface *wl.Subsurface

	role      Role
	destroyed bool
	closed    bool

	staged     Configure
	pending    Configure
	current    Configure
	configured bool

	mapped   bool
	drawing  drawingState
	title    string
	wantMode States
	batch    batchedConfig

	onConfigure  func()
	onClose      func()
	onMainOutput func(*Output)

	// Tree state, guarded by shim.treeMu rather than mu.
	parent   *Surface
	children []*Surface
	outputs  []*Output
	main     *Output
	scale    int32
}

type batchedConfig struct {
	havePos  bool
	x, y     int32
	haveGeom bool
	gx, gy   int32
	gw, gh   int32
}

// CreateSurface allocates a role-less surface. Role-less surfaces
// cost the compositor almost nothing, so windows that are not
// currently visible keep one around instead of a full toplevel.
func (s *Shim) CreateSurface() *Surface {
	surf := &Surface{
		shim:  s,
		wl:    s.compositor.CreateSurface(),
		scale: 1,
	}
	surf.cond.L = &surf.mu
	surf.refs.Store(1)
	surf.wl.Listener = (*surfaceListener)(surf)

	s.treeMu.Lock()
	s.surfaces.Add(surf)
	s.treeMu.Unlock()

	return surf
}

// Role returns the surface's role.
func (s *Surface) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Mapped reports whether content has been committed to the surface.
func (s *Surface) Mapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapped
}

// MakeToplevel assigns the toplevel role. If parent is not nil, its
// toplevel is declared as the parent of record for window manager
// stacking. The call blocks, while the reactor keeps dispatching
// events, until the compositor sends the surface's first configure:
// a toplevel must not be painted before its size negotiation has
// begun. The wait is bounded by the shim's ConfigureTimeout, or
// unbounded if that is zero.
func (s *Surface) MakeToplevel(parent *Surface) error {
	var stackParent *xdg.Toplevel
	if parent != nil {
		parent.mu.Lock()
		stackParent = parent.toplevel
		parent.mu.Unlock()
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrSurfaceDestroyed
	}
	if s.role != RoleNone {
		role := s.role
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRoleAssigned, role)
	}

	s.xdgSurface = s.shim.wmBase.GetXdgSurface(s.wl)
	s.xdgSurface.Listener = (*xdgSurfaceListener)(s)
	s.toplevel = s.xdgSurface.GetToplevel()
	s.toplevel.Listener = (*toplevelListener)(s)
	if s.shim.appID != "" {
		s.toplevel.SetAppID(s.shim.appID)
	}
	if stackParent != nil {
		s.toplevel.SetParent(stackParent)
	}
	s.role = RoleToplevel
	s.wl.Commit()
	s.mu.Unlock()

	if err := s.shim.client.Flush(); err != nil {
		s.clearRole()
		return fmt.Errorf("flush toplevel setup: %w", err)
	}

	if err := s.waitConfigured(); err != nil {
		if errors.Is(err, ErrConfigureTimeout) {
			s.clearRole()
		}
		return err
	}
	return nil
}

func (s *Surface) waitConfigured() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var timedOut bool
	if d := s.shim.timeout; d > 0 {
		t := time.AfterFunc(d, func() {
			s.mu.Lock()
			timedOut = true
			s.mu.Unlock()
			s.cond.Broadcast()
		})
		defer t.Stop()
	}

	for !s.configured && !s.destroyed && !s.closed && !timedOut {
		s.cond.Wait()
	}
	switch {
	case s.configured:
		return nil
	case s.destroyed:
		return ErrSurfaceDestroyed
	case s.closed:
		return net.ErrClosed
	default:
		return ErrConfigureTimeout
	}
}

// MakeSubsurface assigns the subsurface role, embedding the surface
// in parent's coordinate space. The subsurface is put into
// desynchronized mode so its commits take effect on their own rather
// than riding on the parent's, and it inherits the parent's main
// output and scale. Subsurfaces have no configure handshake, so
// there is nothing to wait for. The caller must hold a reference to
// parent.
func (s *Surface) MakeSubsurface(parent *Surface) error {
	if parent == nil || parent == s {
		return fmt.Errorf("make subsurface: invalid parent")
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrSurfaceDestroyed
	}
	if s.role != RoleNone {
		role := s.role
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRoleAssigned, role)
	}

	s.subsurface = s.shim.subcompositor.GetSubsurface(s.wl, parent.wl)
	s.subsurface.SetDesync()
	s.role = RoleSubsurface
	s.wl.Commit()
	s.mu.Unlock()

	parent.Ref()
	var notify []func()
	s.shim.treeMu.Lock()
	s.parent = parent
	parent.children = append(parent.children, s)
	s.setMainLocked(parent.main, &notify)
	s.shim.treeMu.Unlock()
	for _, f := range notify {
		f()
	}

	return s.shim.client.Flush()
}

// SetTitle sets the toplevel's title if it has changed.
func (s *Surface) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.toplevel == nil || title == s.title {
		return
	}
	s.title = title
	s.toplevel.SetTitle(title)
}

// setMode requests or withdraws the maximized and fullscreen states.
// States being withdrawn are requested before states being entered;
// some compositors mishandle a set that arrives before the matching
// unset.
func (s *Surface) setMode(maximized, fullscreen bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.toplevel == nil {
		return
	}
	var want States
	if maximized {
		want |= Maximized
	}
	if fullscreen {
		want |= Fullscreen
	}
	if want == s.wantMode {
		return
	}

	if s.wantMode.Has(Maximized) && !maximized {
		s.toplevel.UnsetMaximized()
	}
	if s.wantMode.Has(Fullscreen) && !fullscreen {
		s.toplevel.UnsetFullscreen()
	}
	if maximized && !s.wantMode.Has(Maximized) {
		s.toplevel.SetMaximized()
	}
	if fullscreen && !s.wantMode.Has(Fullscreen) {
		s.toplevel.SetFullscreen(nil)
	}
	s.wantMode = want
}

// setStackParent declares parent's toplevel as this toplevel's parent
// of record, or clears the relation when parent is nil. Unlike
// embedding, stacking can change without rebuilding the surface.
func (s *Surface) setStackParent(parent *Surface) {
	var pt *xdg.Toplevel
	if parent != nil {
		parent.mu.Lock()
		pt = parent.toplevel
		parent.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toplevel != nil {
		s.toplevel.SetParent(pt)
	}
}

// Ref adds a reference to the surface.
func (s *Surface) Ref() {
	s.refs.Add(1)
}

// tryRef takes a reference only if the surface is still live. It is
// the one safe way to adopt a surface found through an unlocked
// pointer; a plain Ref could resurrect a surface already torn down.
func (s *Surface) tryRef() bool {
	for {
		n := s.refs.Load()
		if n <= 0 {
			return false
		}
		if s.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Unref drops a reference, destroying the surface when the last one
// is gone.
func (s *Surface) Unref() {
	if s.refs.Add(-1) == 0 {
		s.destroy()
	}
}

func (s *Surface) destroy() {
	s.DetachChildren()

	shim := s.shim
	shim.treeMu.Lock()
	parent := s.parent
	s.parent = nil
	if parent != nil {
		parent.children = xslices.Remove(parent.children, s)
	}
	s.outputs = nil
	s.main = nil
	shim.surfaces.Delete(s)
	shim.treeMu.Unlock()

	s.mu.Lock()
	s.destroyed = true
	s.clearRoleLocked()
	s.wl.Destroy()
	s.cond.Broadcast()
	s.mu.Unlock()

	if parent != nil {
		parent.Unref()
	}

	shim.client.Flush()
}

func (s *Surface) clearRole() {
	s.mu.Lock()
	s.clearRoleLocked()
	s.mu.Unlock()
	s.shim.client.Flush()
}

// clearRoleLocked destroys the role objects, most derived first, and
// resets the negotiation state. The wl_surface itself survives and
// the surface is role-less again afterwards.
func (s *Surface) clearRoleLocked() {
	if s.toplevel != nil {
		s.toplevel.Destroy()
		s.toplevel = nil
	}
	if s.xdgSurface != nil {
		s.xdgSurface.Destroy()
		s.xdgSurface = nil
	}
	if s.subsurface != nil {
		s.subsurface.Destroy()
		s.subsurface = nil
	}

	s.role = RoleNone
	s.configured = false
	s.staged = Configure{}
	s.pending = Configure{}
	s.current = Configure{}
	s.mapped = false
	s.drawing = drawingUnset
	s.wantMode = 0
	s.title = ""
	s.batch = batchedConfig{}
}
