//go:build !linux

package storage

import (
	"os"
)

func deviceBytes(f *os.File) (uint64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return uint64(fi.Size()), nil
}
