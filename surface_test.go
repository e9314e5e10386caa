package wlshim

import (
	"testing"
	"time"

	"deedles.dev/wlshim/internal/comptest"
	"deedles.dev/wlshim/xdg"
	"github.com/stretchr/testify/require"
)

// makeToplevel creates a role-less surface, promotes it, and returns
// it along with the compositor's record of it. The initial configure
// has already arrived but has not been acknowledged.
func makeToplevel(t *testing.T, s *Shim, c *comptest.Compositor) (*Surface, uint32) {
	t.Helper()

	surf := s.CreateSurface()
	require.NoError(t, surf.MakeToplevel(nil))
	require.Equal(t, RoleToplevel, surf.Role())

	rec, ok := c.Toplevel()
	require.True(t, ok, "compositor does not see exactly one toplevel")
	return surf, rec.ID
}

func TestCreateSurfaceRoleless(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf := s.CreateSurface()
	require.Equal(t, RoleNone, surf.Role())
	require.NoError(t, s.Flush())

	ok := c.WaitFor(func() bool { return len(c.Surfaces()) == 1 })
	require.True(t, ok, "surface never reached the compositor")
	rec := c.Surfaces()[0]
	require.Zero(t, rec.Toplevel)
	require.Zero(t, rec.Subsurface)

	surf.Unref()
	ok = c.WaitFor(func() bool { return len(c.Surfaces()) == 0 })
	require.True(t, ok, "surface not destroyed")
	require.NoError(t, c.Err())
}

func TestMakeToplevelWaitsForConfigure(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, _ := makeToplevel(t, s, c)

	// The blocking wait means the first proposal is already here.
	conf, ok := surf.PendingConfigure()
	require.True(t, ok, "no pending configure after MakeToplevel")
	require.NotZero(t, conf.Serial)
	require.Zero(t, surf.CurrentConfigure().Serial)

	rec, _ := c.Toplevel()
	require.Equal(t, "dev.deedles.wlshim.test", rec.AppID)
	require.NoError(t, c.Err())
}

func TestMakeToplevelTimeout(t *testing.T) {
	c, conn := comptest.New(t)
	c.SetAutoConfigure(false)

	s, err := New(Config{Conn: conn, ConfigureTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	surf := s.CreateSurface()
	err = surf.MakeToplevel(nil)
	require.ErrorIs(t, err, ErrConfigureTimeout)

	// The failed promotion unwinds; the surface is role-less again
	// and can be promoted once the compositor cooperates.
	require.Equal(t, RoleNone, surf.Role())
	ok := c.WaitFor(func() bool { return len(c.Toplevels()) == 0 })
	require.True(t, ok, "toplevel objects not unwound")

	c.SetAutoConfigure(true)
	require.NoError(t, surf.MakeToplevel(nil))
	surf.Unref()
}

func TestRoleAssignedOnce(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, _ := makeToplevel(t, s, c)
	require.ErrorIs(t, surf.MakeToplevel(nil), ErrRoleAssigned)

	other := s.CreateSurface()
	require.NoError(t, other.MakeSubsurface(surf))
	require.ErrorIs(t, other.MakeSubsurface(surf), ErrRoleAssigned)
	require.ErrorIs(t, other.MakeToplevel(nil), ErrRoleAssigned)

	other.Unref()
	surf.Unref()
	require.NoError(t, c.Err())
}

func TestAckWithoutPendingIsNoop(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()

	surf.AckPending()
	acked := surf.CurrentConfigure().Serial
	require.NotZero(t, acked)

	// With the pending slot drained the second ack must not send
	// anything or move current.
	surf.AckPending()
	require.Equal(t, acked, surf.CurrentConfigure().Serial)
	require.NoError(t, s.RoundTrip())

	rec, _ := c.Surface(id)
	require.Equal(t, []uint32{acked}, rec.Acked)
	require.NoError(t, c.Err())
}

func TestSerialsMonotonic(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	surf.AckPending()

	last := surf.CurrentConfigure().Serial
	var sent []uint32
	for i := range 5 {
		w := int32(640 + 10*i)
		sent = append(sent, c.Configure(id, w, 480))
		require.NoError(t, s.RoundTrip())

		surf.AckPending()
		cur := surf.CurrentConfigure()
		require.GreaterOrEqual(t, cur.Serial, last, "current serial went backwards")
		require.Equal(t, w, cur.Width)
		last = cur.Serial
	}
	require.NoError(t, s.RoundTrip())

	rec, _ := c.Surface(id)
	require.IsIncreasing(t, rec.Acked, "acks reordered")
	require.Subset(t, rec.Acked, sent)
	require.NoError(t, c.Err())
}

func TestConfigureCoalescing(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	surf.AckPending()

	s1 := c.Configure(id, 800, 600, uint32(xdg.ToplevelStateMaximized))
	s2 := c.Configure(id, 640, 480)
	require.Greater(t, s2, s1)
	require.NoError(t, s.RoundTrip())

	// The newer proposal replaced the older one wholesale.
	conf, ok := surf.PendingConfigure()
	require.True(t, ok)
	require.Equal(t, s2, conf.Serial)
	require.Equal(t, int32(640), conf.Width)
	require.Equal(t, int32(480), conf.Height)
	require.Zero(t, conf.Flags)

	surf.AckPending()
	require.NoError(t, s.RoundTrip())
	rec, _ := c.Surface(id)
	require.Equal(t, s2, rec.Acked[len(rec.Acked)-1])
	require.NotContains(t, rec.Acked, s1, "superseded proposal was acked")
	require.NoError(t, c.Err())
}

func TestNotificationSuppressedWhileOutstanding(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	surf.PendingConfigure()
	surf.AckPending()

	notified := make(chan struct{}, 16)
	surf.mu.Lock()
	surf.onConfigure = func() { notified <- struct{}{} }
	surf.mu.Unlock()

	c.Configure(id, 300, 200)
	require.NoError(t, s.RoundTrip())
	require.Len(t, notified, 1)
	<-notified

	// The consumer has not called PendingConfigure yet, so newer
	// proposals pile into the pending slot silently.
	c.Configure(id, 310, 210)
	s3 := c.Configure(id, 320, 220)
	require.NoError(t, s.RoundTrip())
	require.Len(t, notified, 0, "duplicate notification for outstanding proposal")

	conf, ok := surf.PendingConfigure()
	require.True(t, ok)
	require.Equal(t, s3, conf.Serial)

	// Consuming the proposal re-arms the notification.
	c.Configure(id, 330, 230)
	require.NoError(t, s.RoundTrip())
	require.Len(t, notified, 1)
	require.NoError(t, c.Err())
}
