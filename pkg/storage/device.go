// Package storage describes the SD and eMMC storage devices the loader can
// export and the controller boundary used to read from them.
package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Device is one of the four exportable storage devices.
type Device uint8

const (
	SD Device = iota
	EMMCGPP
	EMMCBoot0
	EMMCBoot1
)

// Devices lists every device in configuration bit order.
var Devices = []Device{SD, EMMCGPP, EMMCBoot0, EMMCBoot1}

// BootPartitionSectors is the fixed size of the eMMC BOOT0 and BOOT1
// partitions (4 MiB).
const BootPartitionSectors = 0x2000

var deviceNames = map[Device]string{
	SD:        "sd",
	EMMCGPP:   "emmc-gpp",
	EMMCBoot0: "emmc-boot0",
	EMMCBoot1: "emmc-boot1",
}

var deviceLabels = map[Device]string{
	SD:        "SD",
	EMMCGPP:   "GPP",
	EMMCBoot0: "BOOT0",
	EMMCBoot1: "BOOT1",
}

// String returns the machine readable name, e.g. "emmc-boot0".
func (d Device) String() string {
	if name, ok := deviceNames[d]; ok {
		return name
	}
	return fmt.Sprintf("device(%d)", uint8(d))
}

// Label returns the short name shown to operators, e.g. "BOOT0".
func (d Device) Label() string {
	if label, ok := deviceLabels[d]; ok {
		return label
	}
	return d.String()
}

// Valid reports whether d is one of the known devices.
func (d Device) Valid() bool {
	_, ok := deviceNames[d]
	return ok
}

// Class returns the storage class (controller) the device lives on.
func (d Device) Class() Class {
	switch d {
	case SD:
		return ClassSD
	case EMMCGPP, EMMCBoot0, EMMCBoot1:
		return ClassEMMC
	default:
		panic(fmt.Errorf("unknown storage device %d", uint8(d)))
	}
}

// HWPartition returns the eMMC hardware partition backing the device. SD
// cards have no hardware partitions and report PartitionUser.
func (d Device) HWPartition() HWPartition {
	switch d {
	case EMMCBoot0:
		return PartitionBoot0
	case EMMCBoot1:
		return PartitionBoot1
	default:
		return PartitionUser
	}
}

// HasPartitionTable reports whether the device can carry a GPT or MBR.
// The eMMC boot partitions never do.
func (d Device) HasPartitionTable() bool {
	return d == SD || d == EMMCGPP
}

// FixedSectors returns the known size of devices with fixed geometry.
func (d Device) FixedSectors() (uint32, bool) {
	if d == EMMCBoot0 || d == EMMCBoot1 {
		return BootPartitionSectors, true
	}
	return 0, false
}

// ParseDevice accepts the machine readable name or the operator label of a
// device, case insensitive ("gpp", "emmc-gpp", "BOOT1", ...).
func ParseDevice(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, d := range Devices {
		if s == deviceNames[d] || s == strings.ToLower(deviceLabels[d]) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown storage device %q", s)
}

func (d Device) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("unknown storage device %d", uint8(d))
	}
	return []byte(d.String()), nil
}

func (d *Device) UnmarshalText(data []byte) error {
	dev, err := ParseDevice(string(data))
	if err != nil {
		return err
	}
	*d = dev
	return nil
}

// Class is a storage controller: the SD card slot or the eMMC.
type Class uint8

const (
	ClassSD Class = iota
	ClassEMMC
)

func (c Class) String() string {
	switch c {
	case ClassSD:
		return "sd"
	case ClassEMMC:
		return "emmc"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

func (c Class) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c Class) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

// HWPartition is an eMMC hardware partition as selected through the
// controller's partition switch.
type HWPartition uint8

const (
	PartitionUser  HWPartition = 0 // GPP
	PartitionBoot0 HWPartition = 1
	PartitionBoot1 HWPartition = 2
)

func (p HWPartition) String() string {
	switch p {
	case PartitionUser:
		return "user"
	case PartitionBoot0:
		return "boot0"
	case PartitionBoot1:
		return "boot1"
	default:
		return fmt.Sprintf("partition(%d)", uint8(p))
	}
}
