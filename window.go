package wlshim

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"
)

// WindowID identifies a window of the host windowing system. The
// engine never interprets it beyond equality.
type WindowID uint64

// WindowState is the host-side state of a window, reported through
// UpdateWindow.
type WindowState struct {
	// Visible reports whether the window is shown at all. Invisible
	// windows keep at most a role-less surface.
	Visible bool

	// Decorated reports whether the window carries a standard frame.
	// Undecorated windows are popup candidates.
	Decorated bool

	// Maximized is the window's style bit, not a guess derived from
	// its geometry.
	Maximized bool

	// Rect is the window rectangle and Monitor the rectangle of the
	// monitor it sits on, both in desktop pixels. A window whose
	// rectangle covers its whole monitor without being maximized is
	// treated as fullscreen.
	Rect    image.Rectangle
	Monitor image.Rectangle

	// Parent is the windowing-system parent of a true child window.
	// Owner is the owning window of a transient, such as a dialog.
	// Zero means none.
	Parent WindowID
	Owner  WindowID

	Title string
}

// Window binds one host window to the surface representing it.
type Window struct {
	shim *Shim
	id   WindowID

	mu      sync.Mutex
	state   WindowState
	surface *Surface
	class   surfaceClass
	stack   WindowID

	cur      atomic.Pointer[Surface]
	curState atomic.Pointer[WindowState]
}

// surfaceClass is the set of structural decisions a surface was built
// from. When any of them changes, the surface cannot be mutated to
// match and has to be rebuilt.
type surfaceClass struct {
	role     Role
	parent   *Surface
	parentID WindowID
}

// UpdateWindow reconciles a window with its new host state, creating,
// rebuilding, or reconfiguring the backing surface as needed. It may
// block on the initial configure handshake when a toplevel is
// created. Call it from the thread that owns the window's geometry;
// concurrent calls for different windows are fine.
func (s *Shim) UpdateWindow(id WindowID, state WindowState) error {
	s.windowsMu.Lock()
	w := s.windows[id]
	if w == nil {
		w = &Window{shim: s, id: id}
		s.windows[id] = w
	}
	s.windowsMu.Unlock()

	return w.update(state)
}

// DestroyWindow drops a window's binding and releases its surface.
func (s *Shim) DestroyWindow(id WindowID) {
	s.windowsMu.Lock()
	w := s.windows[id]
	delete(s.windows, id)
	s.windowsMu.Unlock()
	if w == nil {
		return
	}

	w.mu.Lock()
	w.dropSurfaceLocked()
	w.mu.Unlock()
}

// Window returns the binding for id, or nil if none exists.
func (s *Shim) Window(id WindowID) *Window {
	s.windowsMu.RLock()
	defer s.windowsMu.RUnlock()
	return s.windows[id]
}

// NoteFocus records the window the user most recently interacted
// with. The hint picks the adoptive parent for popup-like windows.
func (s *Shim) NoteFocus(id WindowID) {
	s.focus.Store(uint64(id))
}

// ID returns the host window identifier.
func (w *Window) ID() WindowID {
	return w.id
}

// Surface returns the surface currently backing the window, or nil.
func (w *Window) Surface() *Surface {
	return w.cur.Load()
}

// State returns the window's last reported host state.
func (w *Window) State() WindowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Window) update(state WindowState) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
	w.curState.Store(&state)

	role, parent, parentID := w.shim.decideRole(w.id, state)
	if parent != nil {
		defer parent.Unref()
	}

	if w.surface != nil && (w.class.role != role || w.class.parent != parent) {
		w.shim.log.Debug("rebuilding surface",
			"window", w.id, "role", role, "had", w.class.role)
		w.dropSurfaceLocked()
	}
	if w.surface == nil {
		if err := w.createSurfaceLocked(role, parent, parentID); err != nil {
			return err
		}
	}

	if err := w.reconcileLocked(); err != nil {
		return err
	}
	// Reconciliation that defers, or never touches geometry, still
	// has requests sitting in the buffer, mode changes among them.
	return w.shim.client.Flush()
}

// decideRole picks the role and embedding parent a window's surface
// needs right now. The returned parent, if any, carries a reference
// that the caller must release.
func (s *Shim) decideRole(id WindowID, state WindowState) (Role, *Surface, WindowID) {
	if !state.Visible {
		return RoleNone, nil, 0
	}

	if state.Parent != 0 && state.Parent != id {
		if parent := s.pinSurface(state.Parent); parent != nil {
			return RoleSubsurface, parent, state.Parent
		}
		// The parent window has no surface yet. Fall through to
		// toplevel; the next update will re-parent.
	}

	if popupLike(state) {
		if focus := WindowID(s.focus.Load()); focus != 0 && focus != id {
			if parent := s.pinSurface(focus); parent != nil {
				return RoleSubsurface, parent, focus
			}
		}
	}

	return RoleToplevel, nil, 0
}

// popupLike guesses whether an undecorated, ownerless window is a
// transient popup such as a menu or a tooltip: small relative to its
// monitor and not shaped like a normal application window.
func popupLike(state WindowState) bool {
	if state.Decorated || state.Owner != 0 {
		return false
	}
	if state.Maximized || state.Rect.Eq(state.Monitor) {
		return false
	}
	win := state.Rect.Size()
	mon := state.Monitor.Size()
	if mon.X <= 0 || mon.Y <= 0 {
		return false
	}
	return 2*win.X*win.Y <= mon.X*mon.Y
}

// pinSurface finds the surface currently bound to a window and takes
// a reference on it, or returns nil if the window has none.
func (s *Shim) pinSurface(id WindowID) *Surface {
	s.windowsMu.RLock()
	w := s.windows[id]
	s.windowsMu.RUnlock()
	if w == nil {
		return nil
	}

	surf := w.cur.Load()
	if surf == nil || !surf.tryRef() {
		return nil
	}
	return surf
}

func (s *Shim) windowStateSnapshot(id WindowID) *WindowState {
	s.windowsMu.RLock()
	w := s.windows[id]
	s.windowsMu.RUnlock()
	if w == nil {
		return nil
	}
	return w.curState.Load()
}

func (w *Window) createSurfaceLocked(role Role, parent *Surface, parentID WindowID) error {
	surf := w.shim.CreateSurface()
	surf.onConfigure = func() { w.configured(surf) }
	surf.onClose = func() { w.closeRequested(surf) }
	surf.onMainOutput = func(out *Output) { w.mainOutputChanged(surf, out) }

	switch role {
	case RoleToplevel:
		stack := (*Surface)(nil)
		w.stack = w.state.Owner
		if w.state.Owner != 0 && w.state.Owner != w.id {
			stack = w.shim.pinSurface(w.state.Owner)
		}
		err := surf.MakeToplevel(stack)
		if stack != nil {
			stack.Unref()
		}
		if err != nil {
			surf.Unref()
			return fmt.Errorf("window %d: make toplevel: %w", w.id, err)
		}

	case RoleSubsurface:
		if err := surf.MakeSubsurface(parent); err != nil {
			surf.Unref()
			return fmt.Errorf("window %d: make subsurface: %w", w.id, err)
		}
	}

	w.surface = surf
	w.class = surfaceClass{role: role, parent: parent, parentID: parentID}
	w.cur.Store(surf)
	w.shim.log.Debug("surface bound", "window", w.id, "role", role)
	return nil
}

func (w *Window) dropSurfaceLocked() {
	surf := w.surface
	if surf == nil {
		return
	}
	w.surface = nil
	w.cur.Store(nil)
	w.class = surfaceClass{}
	w.stack = 0

	surf.DetachChildren()
	surf.Unref()
}

// reconcileLocked pushes the window's current state at the surface:
// mode flags, geometry, and the drawing gate.
func (w *Window) reconcileLocked() error {
	surf := w.surface
	if surf == nil {
		return nil
	}

	switch w.class.role {
	case RoleToplevel:
		return w.reconcileToplevelLocked(surf)
	case RoleSubsurface:
		return w.reconcileSubsurfaceLocked(surf)
	}
	return nil
}

func (w *Window) reconcileSubsurfaceLocked(surf *Surface) error {
	// Position is relative to the window the surface was adopted
	// by, not to whatever the focus is now.
	rel := w.state.Rect.Min
	if ps := w.shim.windowStateSnapshot(w.class.parentID); ps != nil {
		rel = rel.Sub(ps.Rect.Min)
	}

	surf.ReconfigurePosition(int32(rel.X), int32(rel.Y))
	if err := surf.ReconfigureApply(); err != nil {
		return err
	}
	surf.SetDrawingAllowed(true)
	return nil
}

func (w *Window) reconcileToplevelLocked(surf *Surface) error {
	state := w.state
	fullscreen := !state.Maximized && !state.Monitor.Empty() && state.Rect.Eq(state.Monitor)
	surf.setMode(state.Maximized, fullscreen)
	surf.SetTitle(state.Title)

	if w.state.Owner != w.stack {
		w.stack = w.state.Owner
		stack := (*Surface)(nil)
		if w.stack != 0 && w.stack != w.id {
			stack = w.shim.pinSurface(w.stack)
		}
		surf.setStackParent(stack)
		if stack != nil {
			stack.Unref()
		}
	}

	var want States
	if state.Maximized {
		want |= Maximized
	}
	if fullscreen {
		want |= Fullscreen
	}

	scale := surf.Scale()
	width := int32(state.Rect.Dx()) / scale
	height := int32(state.Rect.Dy()) / scale

	if !surf.Compatible(width, height, want, AgainstCurrent) {
		if surf.Compatible(width, height, want, AgainstPending) {
			surf.AckPending()
		} else {
			// No configuration matches the window yet. Park until
			// the compositor sends one that does.
			surf.SetDrawingAllowed(false)
			w.shim.log.Debug("window geometry deferred",
				"window", w.id, "size", state.Rect.Size(), "states", want)
			return nil
		}
	}

	surf.ReconfigureGeometry(0, 0, int32(state.Rect.Dx()), int32(state.Rect.Dy()))
	if err := surf.ReconfigureApply(); err != nil {
		return err
	}
	if surf.committedSerial() != 0 {
		surf.SetDrawingAllowed(true)
	}
	return nil
}

// configured runs on the reactor goroutine when the compositor
// finishes a configure batch for the window's surface.
func (w *Window) configured(surf *Surface) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.surface != surf {
		return
	}

	conf, ok := surf.PendingConfigure()
	if !ok {
		return
	}
	w.shim.log.Debug("configure received",
		"window", w.id,
		"serial", conf.Serial,
		"size", image.Pt(int(conf.Width), int(conf.Height)),
		"states", conf.Flags)

	surf.AckPending()
	if l := w.shim.listener; l != nil {
		l.Configured(w.id, conf.Width, conf.Height, conf.Flags)
	}
	if err := w.reconcileLocked(); err != nil {
		w.shim.log.Error("reconcile after configure",
			"window", w.id, "error", err)
	}
}

func (w *Window) closeRequested(surf *Surface) {
	if w.cur.Load() != surf {
		return
	}
	if l := w.shim.listener; l != nil {
		l.Closed(w.id)
	}
}

func (w *Window) mainOutputChanged(surf *Surface, out *Output) {
	if w.cur.Load() != surf {
		return
	}
	if l := w.shim.listener; l != nil {
		l.MainOutputChanged(w.id, out)
	}
}
