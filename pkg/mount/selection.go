// Package mount holds the operator's sub-storage selection: which device,
// which partition or sector range, and whether to export it read-only.
package mount

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ums-loader/pkg/parttable"
	"github.com/osbuild/ums-loader/pkg/storage"
)

// ErrNoDevice is returned when neither storage class initialised.
var ErrNoDevice = errors.New("no storage device available")

// Mode selects how the exported range is chosen.
type Mode int

const (
	ByPartition Mode = iota
	ByOffset
)

func (m Mode) String() string {
	switch m {
	case ByPartition:
		return "partition"
	case ByOffset:
		return "offset"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// TableReader returns the partition table and physical size of a device.
// *parttable.Reader implements it.
type TableReader interface {
	Read(storage.Device) (*parttable.Table, uint32)
}

// Selection is the mutable sub-storage mount state. All mutators keep
// Offset+Size within the physical size of the device.
type Selection struct {
	reader TableReader
	state  storage.State

	device   storage.Device
	table    *parttable.Table
	mode     Mode
	index    int
	offset   uint32
	size     uint32
	readOnly bool
	physical uint32
}

// New starts a selection on the SD card, or on the eMMC GPP when the SD
// card failed to initialise. The partition table of the initial device is
// read immediately.
func New(reader TableReader, state storage.State) (*Selection, error) {
	s := &Selection{reader: reader, state: state}

	switch {
	case state.Available(storage.SD):
		s.load(storage.SD)
	case state.Available(storage.EMMCGPP):
		s.load(storage.EMMCGPP)
	default:
		return nil, ErrNoDevice
	}
	return s, nil
}

// Device returns the selected device.
func (s *Selection) Device() storage.Device { return s.device }

// Table returns the partition table of the selected device.
func (s *Selection) Table() *parttable.Table { return s.table }

// Mode returns the current selection mode.
func (s *Selection) Mode() Mode { return s.mode }

// Index returns the selected partition index.
func (s *Selection) Index() int { return s.index }

// Offset returns the first exported sector.
func (s *Selection) Offset() uint32 { return s.offset }

// Size returns the number of exported sectors.
func (s *Selection) Size() uint32 { return s.size }

// ReadOnly reports whether the export is read-only.
func (s *Selection) ReadOnly() bool { return s.readOnly }

// PhysicalSectors returns the size of the selected device.
func (s *Selection) PhysicalSectors() uint32 { return s.physical }

// CanSelectPartition reports whether ByPartition mode is possible.
func (s *Selection) CanSelectPartition() bool {
	return s.device.HasPartitionTable() && !s.table.Empty()
}

// load switches to dev and resets everything derived from the device.
func (s *Selection) load(dev storage.Device) {
	s.device = dev
	s.table, s.physical = s.reader.Read(dev)
	s.index = 0
	s.offset = 0
	s.size = s.physical
	s.readOnly = dev != storage.SD
	s.mode = ByPartition
	s.update()
	logrus.Debugf("selected %s: %d partitions, %d sectors, mode %s", dev, s.table.Len(), s.physical, s.mode)
}

// update enforces the mode and range invariants.
func (s *Selection) update() {
	if !s.CanSelectPartition() {
		s.mode = ByOffset
	}
	if s.mode == ByPartition {
		if s.index >= s.table.Len() {
			s.index = 0
		}
		e, _ := s.table.Entry(s.index)
		s.offset = e.Start
		s.size = e.Length
	}
	s.clamp()
}

func (s *Selection) clamp() {
	if s.offset > s.physical {
		s.offset = s.physical
	}
	if s.size > s.physical-s.offset {
		s.size = s.physical - s.offset
	}
}

// SetDevice selects dev and re-reads its partition table. Devices of a
// failed storage class are refused.
func (s *Selection) SetDevice(dev storage.Device) error {
	if !dev.Valid() {
		return fmt.Errorf("unknown storage device %d", uint8(dev))
	}
	if !s.state.Available(dev) {
		return fmt.Errorf("%s is not available: %s", dev.Label(), s.state)
	}
	s.load(dev)
	return nil
}

// NextDevice cycles SD -> GPP -> BOOT0 -> BOOT1 -> SD, skipping devices
// whose storage class failed. Nothing changes if no other device is
// available.
func (s *Selection) NextDevice() storage.Device {
	n := len(storage.Devices)
	for i := 1; i < n; i++ {
		next := storage.Devices[(int(s.device)+i)%n]
		if s.state.Available(next) {
			s.load(next)
			break
		}
	}
	return s.device
}

// ToggleMode flips between ByPartition and ByOffset. Entering ByPartition
// needs a non-empty table on a table-bearing device and loads the range of
// the selected partition.
func (s *Selection) ToggleMode() Mode {
	switch s.mode {
	case ByOffset:
		if s.CanSelectPartition() {
			s.mode = ByPartition
		}
	case ByPartition:
		s.mode = ByOffset
	}
	s.update()
	return s.mode
}

// SelectPartition selects partition idx, wrapping modulo the table size.
// It is a no-op outside ByPartition mode.
func (s *Selection) SelectPartition(idx int) {
	if s.mode != ByPartition || s.table.Empty() {
		return
	}
	n := s.table.Len()
	s.index = ((idx % n) + n) % n
	s.update()
}

// NextPartition advances to the next partition, wrapping at the end.
func (s *Selection) NextPartition() int {
	s.SelectPartition(s.index + 1)
	return s.index
}

// SetOffset sets the first exported sector in ByOffset mode. The offset
// is limited to the physical size and the size shrinks to fit.
func (s *Selection) SetOffset(offset uint32) uint32 {
	if s.mode != ByOffset {
		return s.offset
	}
	s.offset = offset
	s.clamp()
	return s.offset
}

// SetSize sets the number of exported sectors in ByOffset mode, limited to
// the sectors left after the offset.
func (s *Selection) SetSize(size uint32) uint32 {
	if s.mode != ByOffset {
		return s.size
	}
	s.size = size
	s.clamp()
	return s.size
}

// SetReadOnly sets the export access mode.
func (s *Selection) SetReadOnly(ro bool) {
	s.readOnly = ro
}

// ToggleReadOnly flips the export access mode.
func (s *Selection) ToggleReadOnly() bool {
	s.readOnly = !s.readOnly
	return s.readOnly
}

// Range returns the exported range after re-applying the clamp.
func (s *Selection) Range() (offset, size uint32) {
	s.clamp()
	return s.offset, s.size
}
