package parttable

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ums-loader/pkg/storage"
)

const sectorSize = storage.SectorSize

// Reader reads partition tables through the storage drivers. It keeps one
// contiguous scratch buffer that grows to the largest header plus entry
// array seen, so repeated device switches do not reallocate.
type Reader struct {
	Drivers *storage.Drivers

	scratch []byte
}

// NewReader returns a Reader for the given drivers.
func NewReader(drivers *storage.Drivers) *Reader {
	return &Reader{Drivers: drivers}
}

// Read is a shorthand for NewReader(drivers).Read(dev).
func Read(dev storage.Device, drivers *storage.Drivers) (*Table, uint32) {
	return NewReader(drivers).Read(dev)
}

// Read returns the partition table of dev together with the device's
// physical size in sectors.
//
// The eMMC boot partitions have a fixed size and no table, no I/O is done
// for them. For the SD card and the eMMC user partition the controller is
// initialised, read and released again before returning. An init failure
// returns an empty table and a physical size of 0. A read failure or an
// unknown partition scheme returns an empty table and the controller's
// size, so the device can still be exported by offset.
func (r *Reader) Read(dev storage.Device) (*Table, uint32) {
	if sectors, ok := dev.FixedSectors(); ok {
		return &Table{}, sectors
	}
	if !dev.HasPartitionTable() {
		return &Table{}, 0
	}

	ctrl, err := r.Drivers.Open(dev)
	if err != nil {
		logrus.Warnf("%s: partition table unavailable: %v", dev, err)
		return &Table{}, 0
	}
	defer ctrl.End()

	sectors := ctrl.SectorCount()
	table, err := r.readTable(ctrl, sectors)
	if err != nil {
		logrus.Warnf("%s: cannot read partition table: %v", dev, err)
		return &Table{}, sectors
	}
	logrus.Debugf("%s: %s table with %d entries, %d sectors", dev, table.Scheme, table.Len(), sectors)
	return table, sectors
}

func (r *Reader) buffer(sectors uint32) []byte {
	n := int(sectors) * sectorSize
	if cap(r.scratch) < n {
		r.scratch = make([]byte, n)
	}
	return r.scratch[:n]
}

func (r *Reader) readTable(ctrl storage.Controller, total uint32) (*Table, error) {
	if total == 0 {
		return nil, fmt.Errorf("device reports no sectors")
	}

	table := &Table{}

	// header and the default entry array in one read
	if total > gptHeaderLBA {
		window := min(uint32(gptDefaultWindow), total-gptHeaderLBA)
		buf := r.buffer(window)
		if err := ctrl.ReadSectors(gptHeaderLBA, window, buf); err != nil {
			return nil, fmt.Errorf("cannot read gpt header: %w", err)
		}
		if hdr, ok := parseGPTHeader(buf[:sectorSize]); ok {
			array, err := r.entryArray(ctrl, hdr, buf, total)
			if err != nil {
				return nil, err
			}
			table.Scheme = SchemeGPT
			parseGPTEntries(table, hdr, array)
			return table, nil
		}
	}

	buf := r.buffer(1)
	if err := ctrl.ReadSectors(0, 1, buf); err != nil {
		return nil, fmt.Errorf("cannot read mbr: %w", err)
	}
	if !parseMBR(table, buf) {
		return nil, fmt.Errorf("no gpt or mbr signature")
	}
	table.Scheme = SchemeMBR
	return table, nil
}

// entryArray returns the bytes of the GPT entry array. The default layout
// is already in buf, anything else is read separately.
func (r *Reader) entryArray(ctrl storage.Controller, hdr gptHeader, buf []byte, total uint32) ([]byte, error) {
	n := hdr.arraySectors()
	if n == 0 {
		return nil, nil
	}
	if hdr.EntriesLBA+uint64(n) > uint64(total) {
		return nil, fmt.Errorf("gpt entry array at %d+%d past device end %d", hdr.EntriesLBA, n, total)
	}

	start := (hdr.EntriesLBA - gptHeaderLBA) * sectorSize
	end := start + uint64(n)*sectorSize
	if end <= uint64(len(buf)) {
		return buf[start:end], nil
	}

	array := make([]byte, int(n)*sectorSize)
	if err := ctrl.ReadSectors(uint32(hdr.EntriesLBA), n, array); err != nil {
		return nil, fmt.Errorf("cannot read gpt entries: %w", err)
	}
	return array, nil
}
