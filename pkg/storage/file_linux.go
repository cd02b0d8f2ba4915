//go:build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// deviceBytes returns the size of a regular file or, for block devices,
// the size reported by the kernel.
func deviceBytes(f *os.File) (uint64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Mode()&os.ModeDevice == 0 {
		return uint64(fi.Size()), nil
	}
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, err
	}
	return uint64(size), nil
}
