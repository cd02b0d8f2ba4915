package teststorage

import (
	"errors"
	"fmt"
	"io"

	"github.com/osbuild/ums-loader/pkg/storage"
)

// ErrFakeIO is returned by a Controller with FailReads set.
var ErrFakeIO = errors.New("fake i/o error")

// Controller is an in-memory storage.Controller that records how it is
// used so tests can check that every Init is paired with End.
type Controller struct {
	Partitions map[storage.HWPartition][]byte

	FailInit  bool
	FailReads bool

	Inits  int
	Ends   int
	Reads  int
	Writes int

	initialized bool
	active      storage.HWPartition
}

// NewController returns a controller whose user partition holds data.
func NewController(data []byte) *Controller {
	return &Controller{
		Partitions: map[storage.HWPartition][]byte{
			storage.PartitionUser: data,
		},
	}
}

// NewEMMC returns a controller with user, boot0 and boot1 partitions. The
// boot partitions have the fixed eMMC boot partition size.
func NewEMMC(user []byte) *Controller {
	c := NewController(user)
	c.Partitions[storage.PartitionBoot0] = make([]byte, storage.BootPartitionSectors*storage.SectorSize)
	c.Partitions[storage.PartitionBoot1] = make([]byte, storage.BootPartitionSectors*storage.SectorSize)
	return c
}

// Failing returns a controller whose Init always fails.
func Failing() *Controller {
	return &Controller{FailInit: true}
}

// Balanced reports whether every Init was matched by an End and the
// controller is released.
func (c *Controller) Balanced() bool {
	return !c.initialized && c.Ends >= c.Inits
}

func (c *Controller) Init() error {
	c.Inits++
	if c.FailInit {
		return fmt.Errorf("%w: fake controller", storage.ErrInitFailed)
	}
	c.initialized = true
	c.active = storage.PartitionUser
	return nil
}

func (c *Controller) SetPartition(p storage.HWPartition) error {
	if !c.initialized {
		return storage.ErrNotInitialized
	}
	if _, ok := c.Partitions[p]; !ok {
		return fmt.Errorf("no partition %s", p)
	}
	c.active = p
	return nil
}

func (c *Controller) data() []byte {
	return c.Partitions[c.active]
}

func (c *Controller) check(lba, count uint32, buf []byte) error {
	if !c.initialized {
		return storage.ErrNotInitialized
	}
	if c.FailReads {
		return ErrFakeIO
	}
	if uint64(lba)+uint64(count) > uint64(c.SectorCount()) {
		return storage.ErrOutOfRange
	}
	if len(buf) < int(count)*storage.SectorSize {
		return io.ErrShortBuffer
	}
	return nil
}

func (c *Controller) ReadSectors(lba, count uint32, buf []byte) error {
	c.Reads++
	if err := c.check(lba, count, buf); err != nil {
		return err
	}
	off := int(lba) * storage.SectorSize
	copy(buf, c.data()[off:off+int(count)*storage.SectorSize])
	return nil
}

func (c *Controller) WriteSectors(lba, count uint32, buf []byte) error {
	c.Writes++
	if err := c.check(lba, count, buf); err != nil {
		return err
	}
	off := int(lba) * storage.SectorSize
	copy(c.data()[off:off+int(count)*storage.SectorSize], buf)
	return nil
}

func (c *Controller) SectorCount() uint32 {
	if !c.initialized {
		return 0
	}
	return uint32(len(c.data()) / storage.SectorSize)
}

func (c *Controller) End() {
	c.Ends++
	c.initialized = false
}
