// Package volume turns mount selections and boot configurations into the
// sector ranges handed to the export transport.
package volume

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ums-loader/pkg/bootcfg"
	"github.com/osbuild/ums-loader/pkg/mount"
	"github.com/osbuild/ums-loader/pkg/storage"
)

// Descriptor is one exportable sector range. Partition is 0 for the SD
// card and the eMMC hardware partition plus one otherwise. A Sectors value
// of 0 means the whole partition starting at Offset.
type Descriptor struct {
	Device    storage.Device `json:"device" yaml:"device"`
	Class     storage.Class  `json:"class" yaml:"class"`
	Partition uint8          `json:"partition" yaml:"partition"`
	Offset    uint32         `json:"offset" yaml:"offset"`
	Sectors   uint32         `json:"sectors" yaml:"sectors"`
	ReadOnly  bool           `json:"read_only" yaml:"read_only"`
}

// PartitionID returns the transport partition identifier of dev.
func PartitionID(dev storage.Device) uint8 {
	if dev.Class() == storage.ClassSD {
		return 0
	}
	return uint8(dev.HWPartition()) + 1
}

// For returns a descriptor of dev with the given range.
func For(dev storage.Device, offset, sectors uint32, readOnly bool) Descriptor {
	return Descriptor{
		Device:    dev,
		Class:     dev.Class(),
		Partition: PartitionID(dev),
		Offset:    offset,
		Sectors:   sectors,
		ReadOnly:  readOnly,
	}
}

func (d Descriptor) String() string {
	access := "rw"
	if d.ReadOnly {
		access = "ro"
	}
	size := "whole"
	if d.Sectors != 0 {
		size = fmt.Sprintf("%d sectors", d.Sectors)
	}
	return fmt.Sprintf("%s (%s part %d) offset %d, %s, %s", d.Device, d.Class, d.Partition, d.Offset, size, access)
}

// Resolve returns the single volume described by a sub-storage selection.
func Resolve(sel *mount.Selection) Descriptor {
	offset, size := sel.Range()
	return For(sel.Device(), offset, size, sel.ReadOnly())
}

// ResolveDefaults returns one volume for every device the configuration
// mounts, in device order, leaving out devices whose class failed.
func ResolveDefaults(cfg bootcfg.BootConfig, state storage.State) []Descriptor {
	var vols []Descriptor
	for _, dev := range storage.Devices {
		mode := cfg.Mode(dev)
		if !mode.Mounted() {
			continue
		}
		if !state.Available(dev) {
			logrus.Debugf("skipping %s: %s", dev, state)
			continue
		}
		sectors, _ := dev.FixedSectors()
		vols = append(vols, For(dev, 0, sectors, mode == bootcfg.ReadOnly))
	}
	return vols
}

// Unavailable returns the devices the configuration mounts whose storage
// class failed to initialise.
func Unavailable(cfg bootcfg.BootConfig, state storage.State) []storage.Device {
	var devs []storage.Device
	for _, dev := range storage.Devices {
		if cfg.Mode(dev).Mounted() && !state.Available(dev) {
			devs = append(devs, dev)
		}
	}
	return devs
}

// UnavailableMessage renders the autostart warning for devs, or "" when
// every requested device is present.
func UnavailableMessage(devs []storage.Device) string {
	if len(devs) == 0 {
		return ""
	}
	labels := make([]string, len(devs))
	for i, dev := range devs {
		labels[i] = dev.Label()
	}
	return strings.Join(labels, ", ") + " requested but not available!"
}
