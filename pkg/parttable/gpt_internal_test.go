package parttable

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGUIDRoundTrip(t *testing.T) {
	u := uuid.MustParse("C12A7328-F81F-11D2-BA4B-00A0C93EC93B")
	raw := EncodeGUID(u)
	// first three fields are little endian on disk
	assert.Equal(t, []byte{0x28, 0x73, 0x2A, 0xC1, 0x1F, 0xF8, 0xD2, 0x11, 0xBA, 0x4B}, raw[:10])
	assert.Equal(t, u, DecodeGUID(raw))
}

func TestParseGPTHeaderDefaults(t *testing.T) {
	sector := make([]byte, sectorSize)
	_, ok := parseGPTHeader(sector)
	assert.False(t, ok)

	copy(sector, gptSignature)
	hdr, ok := parseGPTHeader(sector)
	assert.True(t, ok)
	assert.Equal(t, uint64(gptEntryLBA), hdr.EntriesLBA)
	assert.Equal(t, uint32(gptMinEntrySize), hdr.EntrySize)
	assert.Equal(t, uint32(0), hdr.arraySectors())

	hdr.NumEntries = 1000
	assert.Equal(t, uint32(gptMaxScanCount), hdr.scanCount())
	assert.Equal(t, uint32(32), hdr.arraySectors())
}

func TestParseGPTHeaderEntrySize(t *testing.T) {
	for size, valid := range map[uint32]bool{
		0:       true,
		128:     true,
		256:     true,
		1024:    true,
		200:     false,
		2048:    false,
		1 << 20: false,
	} {
		sector := make([]byte, sectorSize)
		copy(sector, gptSignature)
		binary.LittleEndian.PutUint32(sector[80:84], 128)
		binary.LittleEndian.PutUint32(sector[84:88], size)

		hdr, ok := parseGPTHeader(sector)
		assert.Equal(t, valid, ok, "entry size %d", size)
		if ok {
			// 128 slots of at most 1 KiB
			assert.LessOrEqual(t, hdr.arraySectors(), uint32(256))
		}
	}
}

func TestParseGPTEntriesSkipsOversizedRange(t *testing.T) {
	hdr := gptHeader{EntriesLBA: gptEntryLBA, NumEntries: 2, EntrySize: gptMinEntrySize}
	array := make([]byte, 2*gptMinEntrySize)
	typ := EncodeGUID(uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4"))

	whole := array[:gptMinEntrySize]
	copy(whole[0:16], typ)
	binary.LittleEndian.PutUint64(whole[32:40], 0)
	binary.LittleEndian.PutUint64(whole[40:48], math.MaxUint32)

	ok := array[gptMinEntrySize:]
	copy(ok[0:16], typ)
	binary.LittleEndian.PutUint64(ok[32:40], 1)
	binary.LittleEndian.PutUint64(ok[40:48], math.MaxUint32)

	table := &Table{}
	parseGPTEntries(table, hdr, array)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, uint32(1), table.Entries[0].Start)
	assert.Equal(t, uint32(math.MaxUint32), table.Entries[0].Length)
}

func TestDecodeName(t *testing.T) {
	raw := make([]byte, gptNameLen)
	copy(raw, []byte{'b', 0, 'o', 0, 'o', 0, 't', 0})
	assert.Equal(t, "boot", decodeName(raw))
	assert.Equal(t, "", decodeName(make([]byte, gptNameLen)))
}
