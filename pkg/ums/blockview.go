package ums

import (
	"fmt"
	"io"

	"github.com/osbuild/ums-loader/pkg/storage"
	"github.com/osbuild/ums-loader/pkg/volume"
)

// BlockView is a block device restricted to the sector range of one
// volume. Block 0 of the view is sector Offset of the hardware partition.
type BlockView struct {
	ctrl     storage.Controller
	vol      volume.Descriptor
	start    uint32
	count    uint32
	readOnly bool
}

// OpenView opens the controller of vol's device and checks that the
// volume fits in the hardware partition. A volume of 0 sectors covers the
// partition from the offset to its end. The caller must Close the view.
func OpenView(drivers *storage.Drivers, vol volume.Descriptor) (*BlockView, error) {
	if !vol.Device.Valid() || vol.Class != vol.Device.Class() || vol.Partition != volume.PartitionID(vol.Device) {
		return nil, fmt.Errorf("inconsistent volume %s", vol)
	}
	ctrl, err := drivers.Open(vol.Device)
	if err != nil {
		return nil, err
	}

	total := ctrl.SectorCount()
	count := vol.Sectors
	if count == 0 && vol.Offset <= total {
		count = total - vol.Offset
	}
	if uint64(vol.Offset)+uint64(count) > uint64(total) {
		ctrl.End()
		return nil, fmt.Errorf("%w: %s exceeds %d sectors", ErrOutOfRange, vol, total)
	}

	return &BlockView{
		ctrl:     ctrl,
		vol:      vol,
		start:    vol.Offset,
		count:    count,
		readOnly: vol.ReadOnly,
	}, nil
}

// Volume returns the descriptor the view was opened for.
func (v *BlockView) Volume() volume.Descriptor {
	return v.vol
}

// BlockSize returns the size of a block in bytes.
func (v *BlockView) BlockSize() uint32 {
	return storage.SectorSize
}

// BlockCount returns the number of blocks in the view.
func (v *BlockView) BlockCount() uint64 {
	return uint64(v.count)
}

// IsReadOnly reports whether writes are refused.
func (v *BlockView) IsReadOnly() bool {
	return v.readOnly
}

func (v *BlockView) check(lba uint64, blocks uint32, buf []byte) error {
	if v.ctrl == nil {
		return storage.ErrNotInitialized
	}
	if lba+uint64(blocks) > uint64(v.count) {
		return fmt.Errorf("%w: blocks %d+%d of %d", ErrOutOfRange, lba, blocks, v.count)
	}
	if uint64(len(buf)) < uint64(blocks)*storage.SectorSize {
		return io.ErrShortBuffer
	}
	return nil
}

// Read reads blocks starting at lba into buf and returns the number of
// blocks read.
func (v *BlockView) Read(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	if err := v.check(lba, blocks, buf); err != nil {
		return 0, err
	}
	if err := v.ctrl.ReadSectors(v.start+uint32(lba), blocks, buf); err != nil {
		return 0, err
	}
	return blocks, nil
}

// Write writes blocks from buf starting at lba and returns the number of
// blocks written.
func (v *BlockView) Write(lba uint64, blocks uint32, buf []byte) (uint32, error) {
	if v.readOnly {
		return 0, ErrReadOnly
	}
	if err := v.check(lba, blocks, buf); err != nil {
		return 0, err
	}
	if err := v.ctrl.WriteSectors(v.start+uint32(lba), blocks, buf); err != nil {
		return 0, err
	}
	return blocks, nil
}

// Close releases the controller.
func (v *BlockView) Close() {
	if v.ctrl != nil {
		v.ctrl.End()
		v.ctrl = nil
	}
}
