package wlshim

import (
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubsurfaceLinksTree(t *testing.T) {
	s, c := newTestShim(t, nil)

	parent, parentID := makeToplevel(t, s, c)
	defer parent.Unref()

	child := s.CreateSurface()
	require.NoError(t, child.MakeSubsurface(parent))
	require.Equal(t, RoleSubsurface, child.Role())
	require.Same(t, parent, child.Parent())
	require.Equal(t, []*Surface{child}, parent.Children())

	ok := c.WaitFor(func() bool { return len(c.Subsurfaces()) == 1 })
	require.True(t, ok, "subsurface never reached the compositor")
	rec := c.Subsurfaces()[0]
	require.Equal(t, parentID, rec.Parent)
	require.True(t, rec.Desync, "subsurfaces must run desynchronized")

	child.Unref()
	ok = c.WaitFor(func() bool { return len(c.Subsurfaces()) == 0 })
	require.True(t, ok)
	require.Empty(t, parent.Children())
	require.NoError(t, c.Err())
}

func TestDetachChildren(t *testing.T) {
	s, c := newTestShim(t, nil)

	parent, _ := makeToplevel(t, s, c)

	children := make([]*Surface, 3)
	for i := range children {
		children[i] = s.CreateSurface()
		require.NoError(t, children[i].MakeSubsurface(parent))
	}

	parent.DetachChildren()
	require.Empty(t, parent.Children())
	for _, child := range children {
		require.Nil(t, child.Parent(), "child still linked after detach")
	}

	// With the children's references gone the parent's own handle is
	// the last one.
	parent.Unref()
	ok := c.WaitFor(func() bool { return len(c.Toplevels()) == 0 })
	require.True(t, ok, "parent not destroyed after detach")

	// Detached children are still usable surfaces.
	for _, child := range children {
		require.Equal(t, RoleSubsurface, child.Role())
		child.Unref()
	}
	require.NoError(t, c.Err())
}

// TestTeardownStress tears down depth-3 surface trees while painter
// goroutines keep committing to an unrelated sibling. Run with -race.
func TestTeardownStress(t *testing.T) {
	s, c := newTestShim(t, nil)

	sib, sibID := makeToplevel(t, s, c)
	defer sib.Unref()
	configureAndAck(t, s, c, sib, sibID, 0, 0)
	pool := s.NewBufferPool()
	defer pool.Destroy()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				buf, err := pool.Acquire(64, 64)
				if err != nil {
					return
				}
				if _, err := sib.CommitBuffer(buf, nil); err != nil {
					return
				}
			}
		}()
	}

	for i := range 6 {
		chain := make([]*Surface, 4)
		var err error
		chain[0] = s.CreateSurface()
		require.NoError(t, chain[0].MakeToplevel(nil))
		for d := 1; d < len(chain); d++ {
			chain[d] = s.CreateSurface()
			err = chain[d].MakeSubsurface(chain[d-1])
			require.NoError(t, err)
		}

		if i%2 == 0 {
			// Top down: detach every level first, then drop handles.
			for _, surf := range chain {
				surf.DetachChildren()
			}
			for _, surf := range chain {
				surf.Unref()
			}
		} else {
			// Bottom up: dropping the leaf unlinks it from its
			// parent, cascading the parents' last references.
			for d := len(chain) - 1; d >= 0; d-- {
				chain[d].Unref()
			}
		}
		for _, surf := range chain {
			require.Nil(t, surf.Parent())
		}
	}

	close(stop)
	wg.Wait()
	require.NoError(t, s.RoundTrip())
	require.NoError(t, c.Err())
}

func TestMainOutputLeftmost(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()

	right := c.AddOutput(1920, 0, 1)
	left := c.AddOutput(-1920, 0, 3)
	ok := c.WaitFor(func() bool { return c.OutputBound(right) && c.OutputBound(left) })
	require.True(t, ok, "outputs never bound")

	c.Enter(id, right)
	ok = c.WaitFor(func() bool { return surf.MainOutput() != nil })
	require.True(t, ok)
	require.Equal(t, image.Pt(1920, 0), surf.MainOutput().Position())
	require.Equal(t, int32(1), surf.Scale())

	// Overlapping a second, leftmore output moves the main output.
	c.Enter(id, left)
	ok = c.WaitFor(func() bool { return surf.Scale() == 3 })
	require.True(t, ok, "main output did not move to the leftmost entry")
	require.Equal(t, image.Pt(-1920, 0), surf.MainOutput().Position())

	c.Leave(id, left)
	ok = c.WaitFor(func() bool { return surf.Scale() == 1 })
	require.True(t, ok, "main output did not fall back after leave")
	require.NoError(t, c.Err())
}

func TestMainOutputPropagatesToChildren(t *testing.T) {
	s, c := newTestShim(t, nil)

	parent, parentID := makeToplevel(t, s, c)
	defer parent.Unref()
	child := s.CreateSurface()
	require.NoError(t, child.MakeSubsurface(parent))
	defer child.Unref()

	name := c.AddOutput(-10, 0, 2)
	ok := c.WaitFor(func() bool { return c.OutputBound(name) })
	require.True(t, ok)

	// Only the parent enters the output; the child follows it anyway
	// because it renders in the parent's coordinate space.
	c.Enter(parentID, name)
	ok = c.WaitFor(func() bool { return child.Scale() == 2 })
	require.True(t, ok, "scale did not propagate to the child")
	require.Same(t, parent.MainOutput(), child.MainOutput())

	ok = c.WaitFor(func() bool {
		subs := c.Subsurfaces()
		return len(subs) == 1 && subs[0].Scale == 2
	})
	require.True(t, ok, "set_buffer_scale not sent for the child")
	require.NoError(t, c.Err())
}

func TestSubsurfacePositionScaled(t *testing.T) {
	s, c := newTestShim(t, nil)

	parent, parentID := makeToplevel(t, s, c)
	defer parent.Unref()

	name := c.AddOutput(-10, 0, 2)
	ok := c.WaitFor(func() bool { return c.OutputBound(name) })
	require.True(t, ok)
	c.Enter(parentID, name)
	ok = c.WaitFor(func() bool { return parent.Scale() == 2 })
	require.True(t, ok)

	child := s.CreateSurface()
	require.NoError(t, child.MakeSubsurface(parent))
	defer child.Unref()
	require.Equal(t, int32(2), child.Scale(), "child did not inherit the parent's scale")

	// 100x50 window pixels are 50x25 surface units on a scale-2
	// output.
	child.ReconfigurePosition(100, 50)
	require.NoError(t, child.ReconfigureApply())

	ok = c.WaitFor(func() bool {
		subs := c.Subsurfaces()
		return len(subs) == 1 && subs[0].Position == image.Pt(50, 25)
	})
	require.True(t, ok, "scaled position never arrived: %+v", c.Subsurfaces())
	require.NoError(t, c.Err())
}

func TestOutputRemoval(t *testing.T) {
	s, c := newTestShim(t, nil)

	surf, id := makeToplevel(t, s, c)
	defer surf.Unref()

	name := c.AddOutput(-50, 0, 2)
	ok := c.WaitFor(func() bool { return c.OutputBound(name) })
	require.True(t, ok)
	c.Enter(id, name)
	ok = c.WaitFor(func() bool { return surf.Scale() == 2 })
	require.True(t, ok)

	// Unplugging the output must drop it from the surface's set even
	// though no leave event will ever come.
	c.RemoveOutput(name)
	ok = c.WaitFor(func() bool { return surf.Scale() == 1 })
	require.True(t, ok, "surface kept the removed output as main")
	ok = c.WaitFor(func() bool { return !c.OutputBound(name) })
	require.True(t, ok, "output not released")
	require.NoError(t, c.Err())
}
