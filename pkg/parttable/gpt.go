package parttable

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	gptSignature     = "EFI PART"
	gptHeaderLBA     = 1
	gptEntryLBA      = 2
	gptMinEntrySize  = 128
	gptMaxEntrySize  = 1024
	gptNameOffset    = 56
	gptNameLen       = 72
	gptDefaultCount  = 128
	gptMaxScanCount  = 128
	gptDefaultWindow = 1 + gptDefaultCount*gptMinEntrySize/sectorSize // header + entry array
)

// gptHeader holds the fields of the GPT header the reader needs.
type gptHeader struct {
	EntriesLBA uint64
	NumEntries uint32
	EntrySize  uint32
}

func parseGPTHeader(sector []byte) (gptHeader, bool) {
	if len(sector) < 92 || string(sector[0:8]) != gptSignature {
		return gptHeader{}, false
	}
	hdr := gptHeader{
		EntriesLBA: binary.LittleEndian.Uint64(sector[72:80]),
		NumEntries: binary.LittleEndian.Uint32(sector[80:84]),
		EntrySize:  binary.LittleEndian.Uint32(sector[84:88]),
	}
	if hdr.EntriesLBA < gptEntryLBA {
		hdr.EntriesLBA = gptEntryLBA
	}
	if hdr.EntrySize < gptMinEntrySize {
		hdr.EntrySize = gptMinEntrySize
	}
	if hdr.EntrySize%gptMinEntrySize != 0 || hdr.EntrySize > gptMaxEntrySize {
		logrus.Warnf("gpt: ignoring header with entry size %d", hdr.EntrySize)
		return gptHeader{}, false
	}
	return hdr, true
}

// scanCount is the number of entry slots examined.
func (h gptHeader) scanCount() uint32 {
	return min(h.NumEntries, gptMaxScanCount)
}

// arraySectors is the number of sectors holding the scanned entry slots.
func (h gptHeader) arraySectors() uint32 {
	bytes := uint64(h.scanCount()) * uint64(h.EntrySize)
	return uint32((bytes + sectorSize - 1) / sectorSize)
}

// parseGPTEntries appends the used entries of the array to t. Unused slots
// (zero type GUID) are skipped.
func parseGPTEntries(t *Table, hdr gptHeader, array []byte) {
	for i := uint32(0); i < hdr.scanCount(); i++ {
		off := uint64(i) * uint64(hdr.EntrySize)
		if off+gptMinEntrySize > uint64(len(array)) {
			break
		}
		raw := array[off : off+gptMinEntrySize]

		typ := DecodeGUID(raw[0:16])
		if typ == uuid.Nil {
			continue
		}
		first := binary.LittleEndian.Uint64(raw[32:40])
		last := binary.LittleEndian.Uint64(raw[40:48])
		if last < first || last > math.MaxUint32 || last-first >= math.MaxUint32 {
			logrus.Warnf("gpt: ignoring entry %d with range %d-%d", i, first, last)
			continue
		}

		e := Entry{
			Start:  uint32(first),
			Length: uint32(last - first + 1),
			Type:   typ,
			UUID:   DecodeGUID(raw[16:32]),
			Name:   decodeName(raw[gptNameOffset : gptNameOffset+gptNameLen]),
		}
		if !t.add(e) {
			logrus.Debugf("gpt: dropping entries after %d", MaxEntries)
			return
		}
	}
}

// DecodeGUID converts an on-disk mixed-endian GUID to a uuid.UUID.
func DecodeGUID(b []byte) uuid.UUID {
	var u uuid.UUID
	copy(u[:], b[:16])
	u[0], u[1], u[2], u[3] = u[3], u[2], u[1], u[0]
	u[4], u[5] = u[5], u[4]
	u[6], u[7] = u[7], u[6]
	return u
}

// EncodeGUID is the inverse of DecodeGUID.
func EncodeGUID(u uuid.UUID) []byte {
	b := make([]byte, 16)
	copy(b, u[:])
	b[0], b[1], b[2], b[3] = b[3], b[2], b[1], b[0]
	b[4], b[5] = b[5], b[4]
	b[6], b[7] = b[7], b[6]
	return b
}

func decodeName(raw []byte) string {
	u := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		c := binary.LittleEndian.Uint16(raw[i:])
		if c == 0 {
			break
		}
		u = append(u, c)
	}
	return string(utf16.Decode(u))
}
