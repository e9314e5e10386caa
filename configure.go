package wlshim

import (
	"strings"

	"deedles.dev/wlshim/xdg"
)

// States is a set of configure state flags.
type States uint32

const (
	Maximized States = 1 << iota
	Activated
	Resizing
	Fullscreen
)

// Has reports whether s and flags have any flag in common.
func (s States) Has(flags States) bool {
	return s&flags != 0
}

func (s States) String() string {
	if s == 0 {
		return "none"
	}

	names := []struct {
		flag States
		name string
	}{
		{Maximized, "maximized"},
		{Activated, "activated"},
		{Resizing, "resizing"},
		{Fullscreen, "fullscreen"},
	}
	var parts []string
	for _, n := range names {
		if s.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

func stateFlags(states []xdg.ToplevelState) States {
	var flags States
	for _, state := range states {
		switch state {
		case xdg.ToplevelStateMaximized:
			flags |= Maximized
		case xdg.ToplevelStateActivated:
			flags |= Activated
		case xdg.ToplevelStateResizing:
			flags |= Resizing
		case xdg.ToplevelStateFullscreen:
			flags |= Fullscreen
		}
	}
	return flags
}

// Configure is one configuration proposed by the compositor, or the
// copy of one that became binding when it was acknowledged. A zero
// Serial means no proposal.
type Configure struct {
	Serial uint32
	Width  int32
	Height int32
	Flags  States

	processed bool
}

// Against selects which of a surface's configurations a candidate is
// tested against.
type Against int

const (
	AgainstCurrent Against = iota
	AgainstPending
)

// Compatible reports whether a buffer or geometry of the given size
// and flags would satisfy the selected configuration. A maximized
// configuration demands an exact size match; a fullscreen one
// accepts anything that fits within it, leaving room for
// letterboxing. Zero flags check the dimensions only.
func (s *Surface) Compatible(width, height int32, flags States, against Against) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	conf := s.current
	if against == AgainstPending {
		if s.pending.Serial == 0 {
			return false
		}
		conf = s.pending
	}
	return compatible(conf, width, height, flags)
}

func compatible(conf Configure, width, height int32, flags States) bool {
	if conf.Flags.Has(Maximized) && (width != conf.Width || height != conf.Height) {
		return false
	}
	if conf.Flags.Has(Fullscreen) && (width > conf.Width || height > conf.Height) {
		return false
	}
	return flags == 0 || conf.Flags.Has(flags)
}

// PendingConfigure returns the latest unacknowledged proposal and
// marks it as seen, which re-arms the new-proposal notification. ok
// is false if there is no outstanding proposal.
func (s *Surface) PendingConfigure() (conf Configure, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending.Serial == 0 {
		return Configure{}, false
	}
	s.pending.processed = true
	return s.pending, true
}

// CurrentConfigure returns the last acknowledged configuration. A
// zero Serial means nothing has been acknowledged yet.
func (s *Surface) CurrentConfigure() Configure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// AckPending acknowledges the outstanding proposal, making it the
// current configuration that future commits are checked against. It
// does nothing if there is no outstanding proposal. Acknowledgments
// are sent in proposal order because a coalesced pending slot only
// ever holds the newest serial.
func (s *Surface) AckPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ackPendingLocked()
}

func (s *Surface) ackPendingLocked() {
	if s.pending.Serial == 0 || s.destroyed {
		return
	}

	s.current = s.pending
	s.xdgSurface.AckConfigure(s.current.Serial)
	s.pending = Configure{}
}

func (s *Surface) committedSerial() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Serial
}

// receiveConfigure completes a configure batch. The size and state
// events that preceded it are sitting in staged; together with the
// serial they replace any unacknowledged proposal. The consumer is
// notified unless it still has not looked at the previous proposal,
// in which case it will see the newer values when it gets there.
func (s *Surface) receiveConfigure(serial uint32) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}

	notify := s.pending.Serial == 0 || s.pending.processed
	s.pending = Configure{
		Serial: serial,
		Width:  s.staged.Width,
		Height: s.staged.Height,
		Flags:  s.staged.Flags,
	}
	s.configured = true
	s.cond.Broadcast()
	onConfigure := s.onConfigure
	s.mu.Unlock()

	if notify && onConfigure != nil {
		onConfigure()
	}
}

type xdgSurfaceListener Surface

func (l *xdgSurfaceListener) Configure(serial uint32) {
	(*Surface)(l).receiveConfigure(serial)
}

type toplevelListener Surface

func (l *toplevelListener) Configure(width, height int32, states []xdg.ToplevelState) {
	s := (*Surface)(l)
	s.mu.Lock()
	s.staged.Width = width
	s.staged.Height = height
	s.staged.Flags = stateFlags(states)
	s.mu.Unlock()
}

func (l *toplevelListener) Close() {
	s := (*Surface)(l)
	if s.onClose != nil {
		s.onClose()
	}
}
