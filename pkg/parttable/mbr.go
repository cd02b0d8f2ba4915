package parttable

import (
	"encoding/binary"
)

const (
	mbrEntriesOffset  = 446
	mbrEntryLen       = 16
	mbrEntries        = 4
	mbrSignatureOff   = 510
	mbrBootSignature  = 0xAA55
	mbrBootableStatus = 0x80
)

// parseMBR appends the primary partitions of a boot sector to t, stopping
// at the first zero-sized record. It reports false if the sector carries
// no boot signature.
func parseMBR(t *Table, sector []byte) bool {
	if len(sector) < sectorSize || binary.LittleEndian.Uint16(sector[mbrSignatureOff:]) != mbrBootSignature {
		return false
	}
	for i := 0; i < mbrEntries; i++ {
		pte := sector[mbrEntriesOffset+i*mbrEntryLen : mbrEntriesOffset+(i+1)*mbrEntryLen]
		size := binary.LittleEndian.Uint32(pte[12:16])
		if size == 0 {
			break
		}
		t.add(Entry{
			Start:    binary.LittleEndian.Uint32(pte[8:12]),
			Length:   size,
			MBRType:  pte[4],
			Bootable: pte[0] == mbrBootableStatus,
		})
	}
	return true
}
