// Package shm provides helpers for dealing with shared memory.
package shm

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Create makes a shared memory file with no name. The file is
// unlinked before it is returned, so it lives only as long as open
// descriptors to it do.
func Create() (*os.File, error) {
	path := "/dev/shm/wlshim-" + time.Now().String()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	return file, os.Remove(path)
}

// Mmap is a mapped region of a file.
type Mmap []byte

// Map maps size bytes of file into memory as a shared mapping.
func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})

	return mmap, err
}

func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap)
}
