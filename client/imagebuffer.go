package wl

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"deedles.dev/wlshim/shm"
	"deedles.dev/ximage/format"
	"golang.org/x/sys/unix"
)

// ImageBuffer bundles a shared memory file, the pool that exposes it
// to the compositor, and a buffer viewing the whole pool. It is the
// simplest way to get pixels in front of a compositor.
type ImageBuffer struct {
	w, h int32
	shm  *Shm
	pool *ShmPool
	buf  *Buffer
	file *os.File
	mmap shm.Mmap
}

func NewImageBuffer(s *Shm, w, h int32) (buf *ImageBuffer, err error) {
	defer func() {
		if err != nil {
			buf.Destroy()
		}
	}()

	buf = &ImageBuffer{
		w:   w,
		h:   h,
		shm: s,
	}
	size := buf.Stride() * h

	file, err := shm.Create()
	if err != nil {
		return buf, fmt.Errorf("create shm file: %w", err)
	}
	buf.file = file
	err = buf.file.Truncate(int64(size))
	if err != nil {
		return buf, fmt.Errorf("truncate shm file: %w", err)
	}

	mmap, err := shm.Map(file, int(size), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return buf, fmt.Errorf("map shm file: %w", err)
	}
	buf.mmap = mmap

	buf.pool = s.CreatePool(file, int32(len(buf.mmap)))
	buf.buf = buf.pool.CreateBuffer(0, w, h, buf.Stride(), ShmFormatArgb8888)

	return buf, nil
}

func (buf *ImageBuffer) Destroy() {
	if buf.mmap != nil {
		buf.mmap.Unmap()
	}
	if buf.file != nil {
		buf.file.Close()
	}
	if buf.buf != nil {
		buf.buf.Destroy()
	}
	if buf.pool != nil {
		buf.pool.Destroy()
	}
}

func (buf *ImageBuffer) Shm() *Shm {
	return buf.shm
}

func (buf *ImageBuffer) ShmPool() *ShmPool {
	return buf.pool
}

func (buf *ImageBuffer) Buffer() *Buffer {
	return buf.buf
}

func (buf *ImageBuffer) Stride() int32 {
	return buf.w * 4
}

func (buf *ImageBuffer) Len() int32 {
	return buf.Stride() * buf.h
}

func (buf *ImageBuffer) Cap() int32 {
	return int32(cap(buf.mmap))
}

func (buf *ImageBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(buf.w), int(buf.h))
}

// Resize adjusts the buffer to w by h pixels. The mapping and the
// pool only grow when the new size does not fit in the existing
// capacity. The old wl_buffer is destroyed and replaced, so callers
// must re-fetch Buffer afterwards.
func (buf *ImageBuffer) Resize(w, h int32) error {
	if (w == buf.w) && (h == buf.h) {
		return nil
	}

	buf.w = w
	buf.h = h
	if buf.Len() <= buf.Cap() {
		buf.mmap = buf.mmap[:buf.Len()]
		buf.buf.Destroy()
		buf.buf = buf.pool.CreateBuffer(0, w, h, buf.Stride(), ShmFormatArgb8888)
		return nil
	}

	err := buf.file.Truncate(int64(buf.Len()))
	if err != nil {
		return fmt.Errorf("truncate shm file: %w", err)
	}

	err = buf.mmap.Unmap()
	if err != nil {
		return fmt.Errorf("unmap: %w", err)
	}
	mmap, err := shm.Map(buf.file, int(buf.Len()), unix.PROT_READ|unix.PROT_WRITE)
	if err != nil {
		return fmt.Errorf("map: %w", err)
	}
	buf.mmap = mmap

	buf.buf.Destroy()
	buf.pool.Resize(buf.Len())
	buf.buf = buf.pool.CreateBuffer(0, w, h, buf.Stride(), ShmFormatArgb8888)

	return nil
}

// Image returns a drawable view of the buffer's memory. Drawing into
// it writes directly into the shared pool.
func (buf *ImageBuffer) Image() draw.Image {
	return &format.Image{
		Format: format.ARGB8888,
		Rect:   buf.Bounds(),
		Pix:    buf.mmap,
	}
}
