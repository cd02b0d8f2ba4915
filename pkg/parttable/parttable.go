// Package parttable reads the GPT or MBR partition table of an SD card or
// the eMMC user partition into a bounded list of sector ranges.
package parttable

import (
	"fmt"

	"github.com/google/uuid"
)

// MaxEntries is the number of partitions the loader keeps. Entries past
// this bound are dropped.
const MaxEntries = 30

// Scheme is the partitioning scheme a table was read from.
type Scheme int

const (
	SchemeNone Scheme = iota
	SchemeGPT
	SchemeMBR
)

func (s Scheme) String() string {
	switch s {
	case SchemeNone:
		return "none"
	case SchemeGPT:
		return "gpt"
	case SchemeMBR:
		return "dos"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

func (s Scheme) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Entry is a partition as a sector range. Only Start and Length take part
// in volume resolution, the other fields are informational.
type Entry struct {
	Start  uint32 `json:"start" yaml:"start"`
	Length uint32 `json:"length" yaml:"length"`

	// GPT only
	Name string    `json:"name,omitempty" yaml:"name,omitempty"`
	Type uuid.UUID `json:"type,omitempty" yaml:"type,omitempty"`
	UUID uuid.UUID `json:"uuid,omitempty" yaml:"uuid,omitempty"`

	// MBR only
	MBRType  byte `json:"mbr_type,omitempty" yaml:"mbr_type,omitempty"`
	Bootable bool `json:"bootable,omitempty" yaml:"bootable,omitempty"`
}

// End returns the first sector after the partition.
func (e Entry) End() uint64 {
	return uint64(e.Start) + uint64(e.Length)
}

// Table is the partition table of the last selected device. An empty
// table is valid and means the partitions could not be determined.
type Table struct {
	Scheme  Scheme  `json:"scheme" yaml:"scheme"`
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Entries)
}

// Empty reports whether the table holds no partitions.
func (t *Table) Empty() bool {
	return t.Len() == 0
}

// Entry returns the idx'th partition.
func (t *Table) Entry(idx int) (Entry, bool) {
	if idx < 0 || idx >= t.Len() {
		return Entry{}, false
	}
	return t.Entries[idx], true
}

func (t *Table) add(e Entry) bool {
	if len(t.Entries) >= MaxEntries {
		return false
	}
	t.Entries = append(t.Entries, e)
	return true
}
