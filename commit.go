package wlshim

import (
	"image"
)

// Region is a set of axis-aligned dirty rectangles in buffer pixel
// coordinates.
type Region []image.Rectangle

type drawingState int

const (
	drawingUnset drawingState = iota
	drawingAllowed
	drawingBlocked
)

// SetDrawingAllowed opens or closes the surface's commit gate. The
// window binding closes the gate while a state transition is in
// flight and reopens it once the surface's configuration matches the
// window again.
func (s *Surface) SetDrawingAllowed(allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if allowed {
		s.drawing = drawingAllowed
	} else {
		s.drawing = drawingBlocked
	}
}

// DrawingAllowed reports whether CommitBuffer currently admits
// buffers. Until the gate is set either way, toplevels are closed,
// since they are useless before their first configure, and other
// surfaces are open.
func (s *Surface) DrawingAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawingAllowedLocked()
}

func (s *Surface) drawingAllowedLocked() bool {
	switch s.drawing {
	case drawingAllowed:
		return true
	case drawingBlocked:
		return false
	}
	return s.role != RoleToplevel
}

// CommitBuffer attaches buf, damages it, and commits, provided the
// buffer is compatible with the surface's current configuration. The
// returned bool reports whether the buffer went out; a rejected
// buffer is returned to its pool and false comes back without an
// error, which is the normal course of events during an interactive
// resize. An empty damage region damages the whole buffer.
//
// The compatibility check and the attach happen under one critical
// section so that an acknowledgment on another goroutine cannot slip
// a new configuration in between them. The flush happens after the
// lock is dropped; holding it across a syscall would stall every
// other painter.
func (s *Surface) CommitBuffer(buf *Buffer, damage Region) (bool, error) {
	s.mu.Lock()

	if s.destroyed {
		s.mu.Unlock()
		buf.Release()
		return false, ErrSurfaceDestroyed
	}
	if !s.drawingAllowedLocked() {
		s.mu.Unlock()
		buf.Release()
		return false, nil
	}
	if s.role == RoleToplevel && s.current.Serial == 0 {
		// Nothing acknowledged yet. Attaching now would be the
		// unconfigured-buffer protocol error.
		s.mu.Unlock()
		buf.Release()
		return false, nil
	}

	bounds := buf.Bounds()
	scale := s.Scale()
	width := int32(bounds.Dx()) / scale
	height := int32(bounds.Dy()) / scale
	if !compatible(s.current, width, height, s.current.Flags) {
		cur := s.current
		s.mu.Unlock()
		buf.Release()
		s.shim.log.Debug("buffer rejected",
			"size", bounds.Size(),
			"scale", scale,
			"serial", cur.Serial,
			"want", image.Pt(int(cur.Width), int(cur.Height)),
			"states", cur.Flags)
		return false, nil
	}

	s.wl.Attach(buf.wlBuffer(), 0, 0)
	if len(damage) == 0 {
		s.wl.DamageBuffer(0, 0, int32(bounds.Dx()), int32(bounds.Dy()))
	}
	for _, r := range damage {
		s.wl.DamageBuffer(int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()))
	}
	s.wl.Commit()
	s.mapped = true
	s.mu.Unlock()

	return true, s.shim.client.Flush()
}

// ReconfigurePosition records the surface's position within its
// parent, in window pixels. It takes effect at the next
// ReconfigureApply.
func (s *Surface) ReconfigurePosition(x, y int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch.havePos = true
	s.batch.x = x
	s.batch.y = y
}

// ReconfigureGeometry records the window-geometry rectangle, in
// window pixels. It takes effect at the next ReconfigureApply.
func (s *Surface) ReconfigureGeometry(x, y, width, height int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch.haveGeom = true
	s.batch.gx = x
	s.batch.gy = y
	s.batch.gw = width
	s.batch.gh = height
}

// ReconfigureApply sends the recorded position and geometry changes
// and commits them as one update. Coordinates are converted to
// surface units using the main output's scale.
func (s *Surface) ReconfigureApply() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrSurfaceDestroyed
	}

	batch := s.batch
	s.batch = batchedConfig{}
	if !batch.havePos && !batch.haveGeom {
		s.mu.Unlock()
		return nil
	}

	scale := s.Scale()
	if batch.havePos && s.subsurface != nil {
		s.subsurface.SetPosition(batch.x/scale, batch.y/scale)
	}
	if batch.haveGeom && s.xdgSurface != nil {
		s.xdgSurface.SetWindowGeometry(
			batch.gx/scale,
			batch.gy/scale,
			max(batch.gw/scale, 1),
			max(batch.gh/scale, 1),
		)
	}
	s.wl.Commit()
	s.mu.Unlock()

	return s.shim.client.Flush()
}
