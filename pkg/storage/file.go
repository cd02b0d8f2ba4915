package storage

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// FileController serves a storage class from image files or host block
// devices, one per hardware partition. It lets the loader's resolution
// logic run against dumps of real cards and eMMCs.
type FileController struct {
	name     string
	paths    map[HWPartition]string
	readOnly bool

	mu      sync.Mutex
	f       *os.File
	active  HWPartition
	sectors uint32
}

// NewFileController returns a controller for the given partition backing
// files. A missing PartitionUser path makes Init fail, mirroring a card
// that does not respond.
func NewFileController(name string, paths map[HWPartition]string, readOnly bool) *FileController {
	p := make(map[HWPartition]string, len(paths))
	for k, v := range paths {
		if v != "" {
			p[k] = v
		}
	}
	return &FileController{
		name:     name,
		paths:    p,
		readOnly: readOnly,
	}
}

func (fc *FileController) Init() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.f != nil {
		return nil
	}
	if _, ok := fc.paths[PartitionUser]; !ok {
		return fmt.Errorf("%w: %s has no backing file", ErrInitFailed, fc.name)
	}
	return fc.openLocked(PartitionUser)
}

func (fc *FileController) openLocked(part HWPartition) error {
	path, ok := fc.paths[part]
	if !ok {
		return fmt.Errorf("%s has no %s partition", fc.name, part)
	}

	flag := os.O_RDWR
	if fc.readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitFailed, err)
	}
	size, err := deviceBytes(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("cannot determine size of %s: %w", path, err)
	}
	sectors := size / SectorSize
	if sectors > math.MaxUint32 {
		logrus.Warnf("%s: %d sectors exceed 32-bit addressing, truncating", path, sectors)
		sectors = math.MaxUint32
	}

	if fc.f != nil {
		fc.f.Close()
	}
	fc.f = f
	fc.active = part
	fc.sectors = uint32(sectors)
	logrus.Debugf("%s: opened %s partition %s (%d sectors)", fc.name, part, path, fc.sectors)
	return nil
}

func (fc *FileController) SetPartition(part HWPartition) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.f == nil {
		return ErrNotInitialized
	}
	if part == fc.active {
		return nil
	}
	return fc.openLocked(part)
}

func (fc *FileController) checkLocked(lba, count uint32, buf []byte) error {
	if fc.f == nil {
		return ErrNotInitialized
	}
	if uint64(lba)+uint64(count) > uint64(fc.sectors) {
		return fmt.Errorf("%w: %d+%d > %d", ErrOutOfRange, lba, count, fc.sectors)
	}
	if uint64(len(buf)) < uint64(count)*SectorSize {
		return io.ErrShortBuffer
	}
	return nil
}

func (fc *FileController) ReadSectors(lba, count uint32, buf []byte) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if err := fc.checkLocked(lba, count, buf); err != nil {
		return err
	}
	_, err := fc.f.ReadAt(buf[:uint64(count)*SectorSize], int64(lba)*SectorSize)
	return err
}

func (fc *FileController) WriteSectors(lba, count uint32, buf []byte) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.readOnly {
		return os.ErrPermission
	}
	if err := fc.checkLocked(lba, count, buf); err != nil {
		return err
	}
	_, err := fc.f.WriteAt(buf[:uint64(count)*SectorSize], int64(lba)*SectorSize)
	return err
}

func (fc *FileController) SectorCount() uint32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.sectors
}

func (fc *FileController) End() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if fc.f == nil {
		return
	}
	if err := fc.f.Close(); err != nil {
		logrus.Warnf("%s: close failed: %v", fc.name, err)
	}
	fc.f = nil
	fc.sectors = 0
	fc.active = PartitionUser
}
