package wlshim

import (
	"slices"

	wl "deedles.dev/wlshim/client"
	"deedles.dev/wlshim/internal/xslices"
)

// DetachChildren unlinks every child surface, leaving each one
// parentless, and drops the reference each child held on this
// surface. Children are never destroyed along with a parent; their
// own owners decide their fate. Detaching first is what keeps a
// child from reaching back into a parent that is mid-teardown.
func (s *Surface) DetachChildren() {
	s.shim.treeMu.Lock()
	children := s.children
	s.children = nil
	for _, c := range children {
		c.parent = nil
	}
	s.shim.treeMu.Unlock()

	for range children {
		s.Unref()
	}
}

// Parent returns the surface this one is embedded in, or nil.
func (s *Surface) Parent() *Surface {
	s.shim.treeMu.Lock()
	defer s.shim.treeMu.Unlock()
	return s.parent
}

// Children returns a snapshot of the surface's children.
func (s *Surface) Children() []*Surface {
	s.shim.treeMu.Lock()
	defer s.shim.treeMu.Unlock()
	return slices.Clone(s.children)
}

// Scale returns the scale factor of the surface's main output.
func (s *Surface) Scale() int32 {
	s.shim.treeMu.Lock()
	defer s.shim.treeMu.Unlock()
	return s.scale
}

// MainOutput returns the output whose scale governs the surface, or
// nil if the surface has not entered any output yet.
func (s *Surface) MainOutput() *Output {
	s.shim.treeMu.Lock()
	defer s.shim.treeMu.Unlock()
	return s.main
}

type surfaceListener Surface

func (l *surfaceListener) Enter(output *wl.Output) {
	(*Surface)(l).outputEnter(output)
}

func (l *surfaceListener) Leave(output *wl.Output) {
	(*Surface)(l).outputLeave(output)
}

func (s *Surface) outputEnter(wo *wl.Output) {
	if wo == nil {
		return
	}

	var notify []func()
	s.shim.treeMu.Lock()
	out := s.shim.outputForLocked(wo)
	if out != nil && !slices.Contains(s.outputs, out) {
		s.outputs = append(s.outputs, out)
		s.recomputeMainLocked(&notify)
	}
	s.shim.treeMu.Unlock()

	for _, f := range notify {
		f()
	}
}

func (s *Surface) outputLeave(wo *wl.Output) {
	if wo == nil {
		return
	}

	var notify []func()
	s.shim.treeMu.Lock()
	out := s.shim.outputForLocked(wo)
	if out != nil && slices.Contains(s.outputs, out) {
		s.outputs = xslices.Remove(s.outputs, out)
		s.recomputeMainLocked(&notify)
	}
	s.shim.treeMu.Unlock()

	for _, f := range notify {
		f()
	}
}

// recomputeMainLocked picks the leftmost overlapped output as the
// surface's main output and pushes the result down the child tree.
// Children follow their root's main output rather than their own
// output set, because they render in the root's coordinate space.
func (s *Surface) recomputeMainLocked(notify *[]func()) {
	if s.parent != nil {
		return
	}

	var main *Output
	for _, o := range s.outputs {
		if main == nil || o.Position().X < main.Position().X {
			main = o
		}
	}
	s.setMainLocked(main, notify)
}

func (s *Surface) setMainLocked(out *Output, notify *[]func()) {
	changed := out != s.main
	s.main = out

	scale := int32(1)
	if out != nil {
		scale = out.Scale()
	}
	if scale != s.scale {
		s.scale = scale
		s.wl.SetBufferScale(scale)
	}

	if changed && s.onMainOutput != nil {
		f, o := s.onMainOutput, out
		*notify = append(*notify, func() { f(o) })
	}

	for _, c := range s.children {
		c.setMainLocked(out, notify)
	}
}
