package wlshim

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	wl "deedles.dev/wlshim/client"
	"deedles.dev/wlshim/internal/set"
	"deedles.dev/wlshim/wire"
	"deedles.dev/wlshim/xdg"
	"golang.org/x/exp/maps"
)

// ErrMissingGlobal is returned by New when the compositor does not
// advertise an interface the shim depends on.
var ErrMissingGlobal = errors.New("missing required global")

// Listener receives window notifications from the shim. All methods
// run on the shim's event goroutine, so they never race with each
// other. Long work, and any call back into the shim, belongs on
// another goroutine.
type Listener interface {
	// Configured reports the size and state the compositor has
	// settled on for a toplevel window. The shim has already
	// acknowledged the configure; the host is expected to follow
	// up with an UpdateWindow carrying the new geometry.
	Configured(id WindowID, width, height int32, flags States)

	// Closed reports that the compositor asked for a toplevel to
	// be closed, for example via the window's close button.
	Closed(id WindowID)

	// MainOutputChanged reports that the output a window is
	// primarily shown on changed. output may be nil when the
	// window left all outputs.
	MainOutputChanged(id WindowID, output *Output)
}

// nopListener stands in when Config.Listener is nil.
type nopListener struct{}

func (nopListener) Configured(WindowID, int32, int32, States) {}
func (nopListener) Closed(WindowID)                           {}
func (nopListener) MainOutputChanged(WindowID, *Output)       {}

// Config configures a Shim. The zero value dials $WAYLAND_DISPLAY
// and runs silently.
type Config struct {
	// Conn is an established compositor connection. When nil, New
	// dials the default display.
	Conn *wire.Conn

	// Listener receives window notifications.
	Listener Listener

	// Logger receives the shim's logs. Nil discards them.
	Logger *slog.Logger

	// ConfigureTimeout bounds how long mapping a toplevel may wait
	// for the compositor's first configure. Zero waits forever.
	ConfigureTimeout time.Duration

	// AppID is advertised on every toplevel the shim creates.
	AppID string
}

// Shim maps retained-mode windows onto Wayland surfaces. It owns the
// compositor connection and a single event goroutine that dispatches
// all incoming events.
type Shim struct {
	log      *slog.Logger
	listener Listener
	timeout  time.Duration
	appID    string

	client   *wl.Client
	registry *wl.Registry

	compositor    *wl.Compositor
	subcompositor *wl.Subcompositor
	shm           *wl.Shm
	wmBase        *xdg.WmBase

	windowsMu sync.RWMutex
	windows   map[WindowID]*Window

	// treeMu guards surface parent/child links, per-surface output
	// sets, and the output table.
	treeMu   sync.Mutex
	surfaces set.Set[*Surface]
	outputs  map[uint32]*Output

	// focus is the most recently focused window, used as the
	// adoptive parent for popup-like windows.
	focus atomic.Uint64

	done  chan struct{}
	close sync.Once
	cerr  error
}

// New connects to the compositor, binds the globals the shim needs,
// and starts the event goroutine.
func New(cfg Config) (*Shim, error) {
	s := Shim{
		log:      cfg.Logger,
		listener: cfg.Listener,
		timeout:  cfg.ConfigureTimeout,
		appID:    cfg.AppID,
		windows:  make(map[WindowID]*Window),
		surfaces: make(set.Set[*Surface]),
		outputs:  make(map[uint32]*Output),
		done:     make(chan struct{}),
	}
	if s.log == nil {
		s.log = nopLogger()
	}
	if s.listener == nil {
		s.listener = nopListener{}
	}

	if cfg.Conn != nil {
		s.client = wl.NewClient(cfg.Conn)
	} else {
		client, err := wl.Dial()
		if err != nil {
			return nil, fmt.Errorf("dial display: %w", err)
		}
		s.client = client
	}

	s.client.Display().Listener = (*displayListener)(&s)
	s.registry = s.client.Display().GetRegistry()
	s.registry.Listener = (*registryListener)(&s)

	// The first round trip collects the globals. The second lets
	// the freshly bound outputs and wl_shm deliver their initial
	// state before anything depends on it.
	if err := s.client.RoundTrip(); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("fetch globals: %w", err)
	}
	if err := s.checkGlobals(); err != nil {
		s.client.Close()
		return nil, err
	}
	if err := s.client.RoundTrip(); err != nil {
		s.client.Close()
		return nil, fmt.Errorf("sync globals: %w", err)
	}

	go s.run()
	return &s, nil
}

func (s *Shim) checkGlobals() error {
	var missing []string
	if s.compositor == nil {
		missing = append(missing, wl.CompositorInterface)
	}
	if s.subcompositor == nil {
		missing = append(missing, wl.SubcompositorInterface)
	}
	if s.shm == nil {
		missing = append(missing, wl.ShmInterface)
	}
	if s.wmBase == nil {
		missing = append(missing, xdg.WmBaseInterface)
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrMissingGlobal, strings.Join(missing, ", "))
}

// run dispatches compositor events until the connection closes. It is
// the only goroutine that drains the event queue.
func (s *Shim) run() {
	for {
		err := s.client.Dispatch()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			s.log.Error("dispatch events", "err", err)
		}

		// Dispatching queues replies, pings and acks among them.
		// Push them out before blocking again.
		if err := s.client.Flush(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Error("flush requests", "err", err)
		}
	}
}

// Flush writes all buffered requests to the compositor.
func (s *Shim) Flush() error {
	return s.client.Flush()
}

// RoundTrip flushes buffered requests and waits until the compositor
// confirms it has processed everything sent before the call. The
// shim's event goroutine handles the dispatching, so RoundTrip is
// safe from any goroutine except a listener callback.
func (s *Shim) RoundTrip() error {
	done := make(chan struct{})
	s.client.Display().Sync().Then(func(uint32) { close(done) })
	if err := s.client.Flush(); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-s.done:
		return net.ErrClosed
	}
}

// Close shuts down the compositor connection and wakes every
// goroutine blocked in UpdateWindow or RoundTrip. Windows and
// surfaces are unusable afterwards.
func (s *Shim) Close() error {
	s.close.Do(func() {
		close(s.done)

		s.treeMu.Lock()
		surfaces := maps.Keys(s.surfaces)
		s.treeMu.Unlock()

		// Mark before closing the socket so that waiters see a
		// definite reason instead of a dispatch error.
		for _, surf := range surfaces {
			surf.mu.Lock()
			surf.closed = true
			surf.cond.Broadcast()
			surf.mu.Unlock()
		}

		s.cerr = s.client.Close()
	})
	return s.cerr
}

type displayListener Shim

func (l *displayListener) Error(objectID, code uint32, message string) {
	l.log.Error("display error", "object", objectID, "code", code, "message", message)
}

func (l *displayListener) DeleteId(id uint32) {}

type registryListener Shim

func (l *registryListener) Global(name uint32, inter string, version uint32) {
	s := (*Shim)(l)
	switch inter {
	case wl.CompositorInterface:
		s.compositor = wl.BindCompositor(s.client, s.registry, name, version)
	case wl.SubcompositorInterface:
		s.subcompositor = wl.BindSubcompositor(s.client, s.registry, name, version)
	case wl.ShmInterface:
		s.shm = wl.BindShm(s.client, s.registry, name, version)
	case xdg.WmBaseInterface:
		s.wmBase = xdg.BindWmBase(s.client, s.registry, name, version)
	case wl.OutputInterface:
		s.addOutput(name, version)
	}
}

func (l *registryListener) GlobalRemove(name uint32) {
	(*Shim)(l).removeOutput(name)
}
