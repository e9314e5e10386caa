package wlshim

import (
	"image"
	"testing"

	"deedles.dev/wlshim/internal/comptest"
	"deedles.dev/wlshim/xdg"
	"github.com/stretchr/testify/require"
)

// configureAndAck drives a toplevel to an acknowledged configuration
// and opens its drawing gate.
func configureAndAck(t *testing.T, s *Shim, c *comptest.Compositor, surf *Surface, id uint32, w, h int32, states ...uint32) uint32 {
	t.Helper()

	serial := c.Configure(id, w, h, states...)
	require.NoError(t, s.RoundTrip())
	surf.PendingConfigure()
	surf.AckPending()
	surf.SetDrawingAllowed(true)
	return serial
}

func TestCommitBufferActivatedToplevel(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	serial := configureAndAck(t, s, c, surf, id, 1024, 768, uint32(xdg.ToplevelStateActivated))

	pool := s.NewBufferPool()
	defer pool.Destroy()
	buf, err := pool.Acquire(1024, 768)
	require.NoError(t, err)

	committed, err := surf.CommitBuffer(buf, nil)
	require.NoError(t, err)
	require.True(t, committed)
	require.True(t, surf.Mapped())

	ok := c.WaitFor(func() bool {
		rec, ok := c.Surface(id)
		return ok && rec.Mapped && rec.Buffer != 0
	})
	require.True(t, ok, "compositor never saw the buffer")

	rec, _ := c.Surface(id)
	require.Contains(t, rec.Acked, serial)
	require.Equal(t, []image.Rectangle{image.Rect(0, 0, 1024, 768)}, rec.Damage,
		"empty damage region should damage the whole buffer")
	require.NoError(t, c.Err())
}

func TestCommitBufferRejectedUnderMaximized(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	configureAndAck(t, s, c, surf, id, 1280, 720, uint32(xdg.ToplevelStateMaximized))
	before := surf.CurrentConfigure()

	pool := s.NewBufferPool()
	defer pool.Destroy()
	buf, err := pool.Acquire(1000, 700)
	require.NoError(t, err)

	committed, err := surf.CommitBuffer(buf, nil)
	require.NoError(t, err, "a mismatched buffer is not an error")
	require.False(t, committed)
	require.False(t, surf.Mapped())
	require.Equal(t, before, surf.CurrentConfigure(), "rejection must not move the contract")

	// The rejected buffer went straight back to the pool.
	pool.mu.Lock()
	busy := pool.slots[0].busy
	pool.mu.Unlock()
	require.False(t, busy, "rejected buffer still marked busy")

	// An exact buffer goes through afterwards.
	buf, err = pool.Acquire(1280, 720)
	require.NoError(t, err)
	committed, err = surf.CommitBuffer(buf, nil)
	require.NoError(t, err)
	require.True(t, committed)

	ok := c.WaitFor(func() bool {
		rec, ok := c.Surface(id)
		return ok && rec.Mapped
	})
	require.True(t, ok)
	require.NoError(t, c.Err())
}

func TestCommitBufferDamageRectangles(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	configureAndAck(t, s, c, surf, id, 0, 0)

	pool := s.NewBufferPool()
	defer pool.Destroy()
	buf, err := pool.Acquire(400, 300)
	require.NoError(t, err)

	damage := Region{image.Rect(0, 0, 10, 10), image.Rect(100, 50, 250, 200)}
	committed, err := surf.CommitBuffer(buf, damage)
	require.NoError(t, err)
	require.True(t, committed)

	ok := c.WaitFor(func() bool {
		rec, ok := c.Surface(id)
		return ok && len(rec.Damage) == 2
	})
	require.True(t, ok, "damage never arrived")
	rec, _ := c.Surface(id)
	require.Equal(t, []image.Rectangle(damage), rec.Damage)
	require.NoError(t, c.Err())
}

func TestCommitBufferBeforeFirstAck(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, _ := makeToplevel(t, s, c)
	defer surf.Unref()
	surf.SetDrawingAllowed(true)

	pool := s.NewBufferPool()
	defer pool.Destroy()
	buf, err := pool.Acquire(100, 100)
	require.NoError(t, err)

	// The initial configure is pending but unacknowledged; there is
	// no contract to commit against yet.
	committed, err := surf.CommitBuffer(buf, nil)
	require.NoError(t, err)
	require.False(t, committed)
	require.False(t, surf.Mapped())
}

func TestDrawingGate(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	configureAndAck(t, s, c, surf, id, 0, 0)

	pool := s.NewBufferPool()
	defer pool.Destroy()

	surf.SetDrawingAllowed(false)
	require.False(t, surf.DrawingAllowed())

	buf, err := pool.Acquire(100, 100)
	require.NoError(t, err)
	committed, err := surf.CommitBuffer(buf, nil)
	require.NoError(t, err)
	require.False(t, committed, "closed gate admitted a buffer")

	surf.SetDrawingAllowed(true)
	buf, err = pool.Acquire(100, 100)
	require.NoError(t, err)
	committed, err = surf.CommitBuffer(buf, nil)
	require.NoError(t, err)
	require.True(t, committed)
}

func TestDrawingGateDefaults(t *testing.T) {
	s, c := newTestShim(t, nil)

	plain := s.CreateSurface()
	defer plain.Unref()
	require.True(t, plain.DrawingAllowed(), "role-less surfaces have no contract to wait for")

	top, _ := makeToplevel(t, s, c)
	defer top.Unref()
	require.False(t, top.DrawingAllowed(), "unconfigured toplevels must not be painted")

	sub := s.CreateSurface()
	defer sub.Unref()
	require.NoError(t, sub.MakeSubsurface(top))
	require.True(t, sub.DrawingAllowed())
}

func TestCommitBufferScaledDimensions(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()

	name := c.AddOutput(-100, 0, 2)
	ok := c.WaitFor(func() bool { return c.OutputBound(name) })
	require.True(t, ok, "output never bound")
	c.Enter(id, name)
	ok = c.WaitFor(func() bool { return surf.Scale() == 2 })
	require.True(t, ok, "surface never picked up the scale-2 output")

	// 400x300 in surface units; the buffer must be 800x600 pixels.
	configureAndAck(t, s, c, surf, id, 400, 300, uint32(xdg.ToplevelStateMaximized))

	pool := s.NewBufferPool()
	defer pool.Destroy()

	buf, err := pool.Acquire(400, 300)
	require.NoError(t, err)
	committed, err := surf.CommitBuffer(buf, nil)
	require.NoError(t, err)
	require.False(t, committed, "unscaled buffer accepted for a scale-2 surface")

	buf, err = pool.Acquire(800, 600)
	require.NoError(t, err)
	committed, err = surf.CommitBuffer(buf, nil)
	require.NoError(t, err)
	require.True(t, committed)
	require.NoError(t, c.Err())
}

func TestCommitBufferDestroyedSurface(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	configureAndAck(t, s, c, surf, id, 0, 0)

	pool := s.NewBufferPool()
	defer pool.Destroy()
	buf, err := pool.Acquire(64, 64)
	require.NoError(t, err)

	surf.Unref()
	committed, err := surf.CommitBuffer(buf, nil)
	require.ErrorIs(t, err, ErrSurfaceDestroyed)
	require.False(t, committed)

	pool.mu.Lock()
	busy := pool.slots[0].busy
	pool.mu.Unlock()
	require.False(t, busy)
}
