// Package bootcfg decodes the two configuration bytes an external flashing
// tool stores inside the loader payload.
//
// Byte layout:
//
//	magic  bit 0    autostart (1) or show the menu (0)
//	magic  bit 1-2  stop action: 0 menu, 1 power off, 2 reboot to recovery
//	config bit 0-1  SD mount mode: 0 none, 1 read-only, 2 read/write
//	config bit 2-3  eMMC GPP mount mode
//	config bit 4-5  eMMC BOOT0 mount mode
//	config bit 6-7  eMMC BOOT1 mount mode
package bootcfg

import (
	"fmt"
	"strings"

	"github.com/osbuild/ums-loader/pkg/storage"
)

const (
	autostartMask  = 0x01
	stopActionMask = 0x06
	stopShift      = 1
	modeBits       = 2
	modeMask       = 0x03
)

// MountMode is how a device is exported by the default mount flow.
type MountMode uint8

const (
	NoMount   MountMode = 0
	ReadOnly  MountMode = 1
	ReadWrite MountMode = 2
)

var mountModeNames = map[MountMode]string{
	NoMount:   "none",
	ReadOnly:  "ro",
	ReadWrite: "rw",
}

func (m MountMode) String() string {
	if s, ok := mountModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("invalid(%d)", uint8(m))
}

// Mounted reports whether the mode requests an export. The unused
// encoding 3 is exported read/write.
func (m MountMode) Mounted() bool {
	return m != NoMount
}

// Next cycles none -> ro -> rw -> none, the order of the menu toggle.
func (m MountMode) Next() MountMode {
	switch m {
	case NoMount:
		return ReadOnly
	case ReadOnly:
		return ReadWrite
	default:
		return NoMount
	}
}

// ParseMountMode parses "none", "ro" or "rw".
func ParseMountMode(s string) (MountMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for m, name := range mountModeNames {
		if s == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mount mode %q", s)
}

func (m MountMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MountMode) UnmarshalText(data []byte) error {
	mode, err := ParseMountMode(string(data))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// StopAction is what happens after an autostarted export ends.
type StopAction uint8

const (
	ReturnToMenu     StopAction = 0
	PowerOff         StopAction = 1
	RebootToRecovery StopAction = 2
)

var stopActionNames = map[StopAction]string{
	ReturnToMenu:     "menu",
	PowerOff:         "poweroff",
	RebootToRecovery: "rcm",
}

func (a StopAction) String() string {
	if s, ok := stopActionNames[a]; ok {
		return s
	}
	return fmt.Sprintf("invalid(%d)", uint8(a))
}

// ParseStopAction parses "menu", "poweroff" or "rcm".
func ParseStopAction(s string) (StopAction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, name := range stopActionNames {
		if s == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown stop action %q", s)
}

func (a StopAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *StopAction) UnmarshalText(data []byte) error {
	action, err := ParseStopAction(string(data))
	if err != nil {
		return err
	}
	*a = action
	return nil
}

// BootConfig is the decoded configuration byte pair.
type BootConfig struct {
	Autostart  bool          `json:"autostart" yaml:"autostart" toml:"autostart"`
	StopAction StopAction    `json:"stop_action" yaml:"stop_action" toml:"stop_action"`
	MountModes [4]MountMode  `json:"-" yaml:"-" toml:"-"`
	Mounts     MountSettings `json:"mounts" yaml:"mounts" toml:"mounts"`
}

// MountSettings names the per device modes for serialisation. It is kept
// in sync with BootConfig.MountModes by Decode and Normalize.
type MountSettings struct {
	SD    MountMode `json:"sd" yaml:"sd" toml:"sd"`
	GPP   MountMode `json:"emmc-gpp" yaml:"emmc-gpp" toml:"emmc-gpp"`
	Boot0 MountMode `json:"emmc-boot0" yaml:"emmc-boot0" toml:"emmc-boot0"`
	Boot1 MountMode `json:"emmc-boot1" yaml:"emmc-boot1" toml:"emmc-boot1"`
}

// Default is the configuration shipped in an unmodified payload.
var Default = Decode(0x00, 0x02)

// Decode maps the two raw bytes to a BootConfig. Every input is valid.
func Decode(magic, config byte) BootConfig {
	cfg := BootConfig{
		Autostart:  magic&autostartMask != 0,
		StopAction: StopAction((magic & stopActionMask) >> stopShift),
	}
	for _, dev := range storage.Devices {
		cfg.MountModes[dev] = MountMode((config >> (modeBits * uint(dev))) & modeMask)
	}
	cfg.syncNames()
	return cfg
}

// Encode returns the raw bytes for cfg. Decode(Encode(cfg)) == cfg for any
// decoded configuration.
func (cfg BootConfig) Encode() (magic, config byte) {
	if cfg.Autostart {
		magic |= autostartMask
	}
	magic |= (byte(cfg.StopAction) << stopShift) & stopActionMask
	for _, dev := range storage.Devices {
		config |= (byte(cfg.MountModes[dev]) & modeMask) << (modeBits * uint(dev))
	}
	return magic, config
}

// Mode returns the mount mode of dev.
func (cfg BootConfig) Mode(dev storage.Device) MountMode {
	return cfg.MountModes[dev]
}

// SetMode changes the mount mode of dev.
func (cfg *BootConfig) SetMode(dev storage.Device, mode MountMode) {
	cfg.MountModes[dev] = mode
	cfg.syncNames()
}

// Normalize copies the named mount settings back into MountModes, used
// after unmarshalling.
func (cfg *BootConfig) Normalize() {
	cfg.MountModes = [4]MountMode{cfg.Mounts.SD, cfg.Mounts.GPP, cfg.Mounts.Boot0, cfg.Mounts.Boot1}
}

func (cfg *BootConfig) syncNames() {
	cfg.Mounts = MountSettings{
		SD:    cfg.MountModes[storage.SD],
		GPP:   cfg.MountModes[storage.EMMCGPP],
		Boot0: cfg.MountModes[storage.EMMCBoot0],
		Boot1: cfg.MountModes[storage.EMMCBoot1],
	}
}

// Degrade returns a copy of cfg with every device of a failed storage
// class set to NoMount.
func (cfg BootConfig) Degrade(state storage.State) BootConfig {
	for _, dev := range storage.Devices {
		if !state.Available(dev) {
			cfg.MountModes[dev] = NoMount
		}
	}
	cfg.syncNames()
	return cfg
}
