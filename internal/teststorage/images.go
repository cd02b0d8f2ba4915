// Package teststorage provides in-memory storage controllers and disk
// image builders for tests.
package teststorage

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/osbuild/ums-loader/pkg/parttable"
	"github.com/osbuild/ums-loader/pkg/storage"
)

// LinuxFilesystemGUID is the GPT type used for generated partitions.
var LinuxFilesystemGUID = uuid.MustParse("0FC63DAF-8483-4772-8E79-3D69D8477DE4")

// Part describes a partition to put in a generated table.
type Part struct {
	Start  uint32
	Length uint32
	Name   string
	Type   byte // MBR type, 0x83 when unset
}

// FakePartition is the partition from the reference scenario: sectors
// 2048 to 206847.
var FakePartition = Part{Start: 2048, Length: 204800, Name: "data"}

// MakeGPT returns a disk image of the given size with a protective MBR,
// a GPT header declaring 128 entries and the given partitions.
func MakeGPT(sectors uint32, parts ...Part) []byte {
	return MakeGPTDeclaring(sectors, 128, parts...)
}

// MakeGPTDeclaring is MakeGPT with an explicit entry count in the header.
// The entry array always has room for max(declared, len(parts)) entries.
func MakeGPTDeclaring(sectors uint32, declared uint32, parts ...Part) []byte {
	slots := max(int(declared), len(parts), 128)
	arraySectors := (slots*128 + storage.SectorSize - 1) / storage.SectorSize
	if int(sectors) < 2+arraySectors {
		panic(fmt.Sprintf("image of %d sectors too small for gpt", sectors))
	}
	img := make([]byte, int(sectors)*storage.SectorSize)

	// protective mbr
	putMBREntry(img[446:462], Part{Start: 1, Length: sectors - 1, Type: 0xEE})
	binary.LittleEndian.PutUint16(img[510:], 0xAA55)

	hdr := img[storage.SectorSize : 2*storage.SectorSize]
	copy(hdr[0:8], "EFI PART")
	binary.LittleEndian.PutUint32(hdr[8:12], 0x00010000)
	binary.LittleEndian.PutUint32(hdr[12:16], 92)
	binary.LittleEndian.PutUint64(hdr[24:32], 1)
	binary.LittleEndian.PutUint64(hdr[32:40], uint64(sectors-1))
	binary.LittleEndian.PutUint64(hdr[40:48], uint64(2+arraySectors))
	binary.LittleEndian.PutUint64(hdr[48:56], uint64(sectors-2-uint32(arraySectors)))
	copy(hdr[56:72], parttable.EncodeGUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte("disk"))))
	binary.LittleEndian.PutUint64(hdr[72:80], 2)
	binary.LittleEndian.PutUint32(hdr[80:84], declared)
	binary.LittleEndian.PutUint32(hdr[84:88], 128)

	array := img[2*storage.SectorSize:]
	for i, p := range parts {
		e := array[i*128 : (i+1)*128]
		copy(e[0:16], parttable.EncodeGUID(LinuxFilesystemGUID))
		copy(e[16:32], parttable.EncodeGUID(PartUUID(i)))
		binary.LittleEndian.PutUint64(e[32:40], uint64(p.Start))
		binary.LittleEndian.PutUint64(e[40:48], uint64(p.Start)+uint64(p.Length)-1)
		for j, c := range utf16.Encode([]rune(p.Name)) {
			if j >= 36 {
				break
			}
			binary.LittleEndian.PutUint16(e[56+2*j:], c)
		}
	}
	return img
}

// PartUUID is the unique GUID MakeGPT gives the idx'th partition.
func PartUUID(idx int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("part%d", idx)))
}

// MakeMBR returns a disk image with an MBR holding up to four partitions.
// Parts with zero length are written as empty records.
func MakeMBR(sectors uint32, parts ...Part) []byte {
	if len(parts) > 4 {
		panic("mbr holds at most 4 primary partitions")
	}
	img := make([]byte, int(sectors)*storage.SectorSize)
	for i, p := range parts {
		if p.Length == 0 {
			continue
		}
		putMBREntry(img[446+i*16:446+(i+1)*16], p)
	}
	binary.LittleEndian.PutUint16(img[510:], 0xAA55)
	return img
}

func putMBREntry(pte []byte, p Part) {
	typ := p.Type
	if typ == 0 {
		typ = 0x83
	}
	pte[4] = typ
	binary.LittleEndian.PutUint32(pte[8:12], p.Start)
	binary.LittleEndian.PutUint32(pte[12:16], p.Length)
}

// Blank returns an image without any partition table.
func Blank(sectors uint32) []byte {
	return make([]byte, int(sectors)*storage.SectorSize)
}

// Fill writes a recognisable byte pattern into the given sector range so
// exported images can be checked: every byte of sector n holds n&0xff.
func Fill(img []byte, start, length uint32) {
	for s := start; s < start+length; s++ {
		off := int(s) * storage.SectorSize
		for i := 0; i < storage.SectorSize; i++ {
			img[off+i] = byte(s)
		}
	}
}
