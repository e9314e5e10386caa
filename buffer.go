package wlshim

import (
	"fmt"
	"image"
	"image/draw"
	"sync"

	wl "deedles.dev/wlshim/client"
)

// BufferPool owns a grow-on-demand set of shared-memory buffers. A
// buffer acquired from the pool stays busy until the compositor
// releases it or a commit rejects it; Acquire hands out only idle
// buffers and resizes them to fit.
type BufferPool struct {
	shim *Shim

	mu    sync.Mutex
	slots []*Buffer
}

// NewBufferPool creates an empty buffer pool. A pool per surface is
// the usual arrangement.
func (s *Shim) NewBufferPool() *BufferPool {
	return &BufferPool{shim: s}
}

// Buffer is one pooled pixel buffer.
type Buffer struct {
	pool *BufferPool
	img  *wl.ImageBuffer

	// busy is guarded by pool.mu.
	busy bool
}

// Acquire returns an idle buffer of the given pixel size, growing
// the pool when every existing buffer is still held by the
// compositor.
func (p *BufferPool) Acquire(width, height int32) (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range p.slots {
		if b.busy {
			continue
		}
		if err := b.img.Resize(width, height); err != nil {
			return nil, fmt.Errorf("resize pooled buffer: %w", err)
		}
		b.hookRelease()
		b.busy = true
		return b, nil
	}

	img, err := wl.NewImageBuffer(p.shim.shm, width, height)
	if err != nil {
		return nil, fmt.Errorf("create pooled buffer: %w", err)
	}
	b := &Buffer{pool: p, img: img}
	b.hookRelease()
	b.busy = true
	p.slots = append(p.slots, b)
	return b, nil
}

// hookRelease re-registers the release listener. Resizing replaces
// the underlying wl_buffer, so this runs on every acquire.
func (b *Buffer) hookRelease() {
	b.img.Buffer().Listener = (*bufferListener)(b)
}

// Release returns the buffer to the pool without presenting it.
// CommitBuffer calls it for rejected buffers; the compositor's
// release event covers presented ones.
func (b *Buffer) Release() {
	b.pool.mu.Lock()
	b.busy = false
	b.pool.mu.Unlock()
}

// Image returns a drawable view of the buffer's pixels. Drawing into
// it writes directly to the memory the compositor will read.
func (b *Buffer) Image() draw.Image {
	return b.img.Image()
}

// Bounds returns the buffer's pixel rectangle.
func (b *Buffer) Bounds() image.Rectangle {
	return b.img.Bounds()
}

func (b *Buffer) wlBuffer() *wl.Buffer {
	return b.img.Buffer()
}

// Destroy tears down every buffer in the pool. Buffers must not be
// in flight.
func (p *BufferPool) Destroy() {
	p.mu.Lock()
	slots := p.slots
	p.slots = nil
	p.mu.Unlock()

	for _, b := range slots {
		b.img.Destroy()
	}
	p.shim.client.Flush()
}

type bufferListener Buffer

func (l *bufferListener) Release() {
	(*Buffer)(l).Release()
}
