package wlshim

import (
	"image"
	"slices"
	"sync"

	wl "deedles.dev/wlshim/client"
	"deedles.dev/wlshim/internal/xslices"
)

// Output is one display output and the properties of it the engine
// cares about. Property events are staged and take effect together
// when the terminating done event arrives.
type Output struct {
	shim    *Shim
	name    uint32
	version uint32
	wl      *wl.Output

	mu     sync.Mutex
	staged outputInfo
	info   outputInfo
}

type outputInfo struct {
	pos   image.Point
	scale int32
}

func newOutput(s *Shim, name, version uint32) *Output {
	out := &Output{
		shim:    s,
		name:    name,
		version: min(version, wl.OutputVersion),
	}
	out.staged.scale = 1
	out.info.scale = 1
	out.wl = wl.BindOutput(s.client, s.registry, name, version)
	out.wl.Listener = (*outputListener)(out)
	return out
}

// Position returns the output's position in the compositor's global
// space. Main-output selection prefers the leftmost position.
func (o *Output) Position() image.Point {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.info.pos
}

// Scale returns the output's integer scale factor.
func (o *Output) Scale() int32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.info.scale
}

type outputListener Output

func (l *outputListener) Geometry(x, y, physicalWidth, physicalHeight int32, subpixel wl.OutputSubpixel, maker, model string, transform wl.OutputTransform) {
	o := (*Output)(l)
	o.mu.Lock()
	o.staged.pos = image.Pt(int(x), int(y))
	o.mu.Unlock()
}

func (l *outputListener) Mode(flags wl.OutputMode, width, height, refresh int32) {}

func (l *outputListener) Scale(factor int32) {
	o := (*Output)(l)
	o.mu.Lock()
	if factor >= 1 {
		o.staged.scale = factor
	}
	o.mu.Unlock()
}

func (l *outputListener) Done() {
	o := (*Output)(l)
	o.mu.Lock()
	changed := o.info != o.staged
	o.info = o.staged
	o.mu.Unlock()

	if changed {
		o.shim.refreshOutputs()
	}
}

func (s *Shim) addOutput(name, version uint32) {
	out := newOutput(s, name, version)
	s.treeMu.Lock()
	s.outputs[name] = out
	s.treeMu.Unlock()
}

func (s *Shim) removeOutput(name uint32) {
	var notify []func()
	s.treeMu.Lock()
	out := s.outputs[name]
	if out == nil {
		s.treeMu.Unlock()
		return
	}
	delete(s.outputs, name)
	for surf := range s.surfaces {
		if !slices.Contains(surf.outputs, out) {
			continue
		}
		surf.outputs = xslices.Remove(surf.outputs, out)
		surf.recomputeMainLocked(&notify)
	}
	s.treeMu.Unlock()

	for _, f := range notify {
		f()
	}

	if out.version >= 3 {
		out.wl.Release()
	}
}

func (s *Shim) outputForLocked(wo *wl.Output) *Output {
	for _, out := range s.outputs {
		if out.wl == wo {
			return out
		}
	}
	return nil
}

// refreshOutputs re-derives every root surface's main output, for
// when an output's committed properties change.
func (s *Shim) refreshOutputs() {
	var notify []func()
	s.treeMu.Lock()
	for surf := range s.surfaces {
		surf.recomputeMainLocked(&notify)
	}
	s.treeMu.Unlock()

	for _, f := range notify {
		f()
	}
}

// Outputs returns a snapshot of the known outputs.
func (s *Shim) Outputs() []*Output {
	s.treeMu.Lock()
	defer s.treeMu.Unlock()

	outs := make([]*Output, 0, len(s.outputs))
	for _, out := range s.outputs {
		outs = append(outs, out)
	}
	return outs
}
