package wlshim

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferPoolReuse(t *testing.T) {
	s, _ := newTestShim(t, nil)

	pool := s.NewBufferPool()
	defer pool.Destroy()

	b1, err := pool.Acquire(64, 64)
	require.NoError(t, err)
	b2, err := pool.Acquire(64, 64)
	require.NoError(t, err)
	require.NotSame(t, b1, b2, "pool handed out a busy buffer")

	b1.Release()
	b3, err := pool.Acquire(64, 64)
	require.NoError(t, err)
	require.Same(t, b1, b3, "pool grew instead of reusing an idle buffer")

	pool.mu.Lock()
	n := len(pool.slots)
	pool.mu.Unlock()
	require.Equal(t, 2, n)
}

func TestBufferPoolResize(t *testing.T) {
	s, _ := newTestShim(t, nil)

	pool := s.NewBufferPool()
	defer pool.Destroy()

	b, err := pool.Acquire(32, 32)
	require.NoError(t, err)
	require.Equal(t, 32, b.Bounds().Dx())
	b.Release()

	b, err = pool.Acquire(128, 96)
	require.NoError(t, err)
	require.Equal(t, 128, b.Bounds().Dx())
	require.Equal(t, 96, b.Bounds().Dy())

	// The image view matches the new size and writes land in the
	// shared memory it wraps.
	img := b.Image()
	require.Equal(t, b.Bounds(), img.Bounds())
	img.Set(127, 95, color.RGBA{R: 0xFF, A: 0xFF})
	r, g, bl, a := img.At(127, 95).RGBA()
	require.Equal(t, uint32(0xFFFF), r)
	require.Zero(t, g)
	require.Zero(t, bl)
	require.Equal(t, uint32(0xFFFF), a)
}

func TestBufferReleasedByCompositor(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()
	configureAndAck(t, s, c, surf, id, 0, 0)

	pool := s.NewBufferPool()
	defer pool.Destroy()

	b, err := pool.Acquire(64, 64)
	require.NoError(t, err)
	committed, err := surf.CommitBuffer(b, nil)
	require.NoError(t, err)
	require.True(t, committed)

	pool.mu.Lock()
	busy := pool.slots[0].busy
	pool.mu.Unlock()
	require.True(t, busy, "committed buffer should stay busy until released")

	ok := c.WaitFor(func() bool {
		rec, _ := c.Surface(id)
		return rec.Buffer != 0
	})
	require.True(t, ok, "commit never reached the compositor")
	rec, _ := c.Surface(id)
	c.ReleaseBuffer(rec.Buffer)

	ok = c.WaitFor(func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return !pool.slots[0].busy
	})
	require.True(t, ok, "release event did not return the buffer to the pool")
	require.NoError(t, c.Err())
}
