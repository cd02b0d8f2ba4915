package loader

import (
	"fmt"

	"github.com/osbuild/ums-loader/pkg/bootcfg"
	"github.com/osbuild/ums-loader/pkg/storage"
)

// Action identifies what a main menu entry does.
type Action string

const (
	ActionToggle     Action = "toggle"
	ActionStart      Action = "start"
	ActionSubStorage Action = "substorage"
	ActionRecovery   Action = "recovery"
	ActionPowerOff   Action = "poweroff"
)

// MenuEntry is one row of the main menu.
type MenuEntry struct {
	Title    string          `json:"title" yaml:"title"`
	Action   Action          `json:"action" yaml:"action"`
	Device   *storage.Device `json:"device,omitempty" yaml:"device,omitempty"`
	Disabled bool            `json:"disabled" yaml:"disabled"`
}

var modeTitles = map[bootcfg.MountMode]string{
	bootcfg.NoMount:   "-",
	bootcfg.ReadOnly:  "RO",
	bootcfg.ReadWrite: "RW",
}

// ToggleTitle renders a mount toggle, e.g. "   GPP RO".
func ToggleTitle(dev storage.Device, mode bootcfg.MountMode) string {
	title, ok := modeTitles[mode]
	if !ok {
		// the unused encoding is exported read/write
		title = modeTitles[bootcfg.ReadWrite]
	}
	return fmt.Sprintf("%6s %s", dev.Label(), title)
}

// Menu returns the main menu for the current configuration and storage
// state.
func (l *Loader) Menu() []MenuEntry {
	var entries []MenuEntry
	for _, dev := range storage.Devices {
		dev := dev
		entries = append(entries, MenuEntry{
			Title:    ToggleTitle(dev, l.cfg.Mode(dev)),
			Action:   ActionToggle,
			Device:   &dev,
			Disabled: !l.state.Available(dev),
		})
	}
	bothFailed := l.state.Failed(storage.ClassSD) && l.state.Failed(storage.ClassEMMC)
	entries = append(entries,
		MenuEntry{Title: "Start UMS", Action: ActionStart},
		MenuEntry{Title: "Mount Substorage", Action: ActionSubStorage, Disabled: bothFailed},
		MenuEntry{Title: "Reboot RCM", Action: ActionRecovery, Disabled: !l.opts.Power.RecoverySupported()},
		MenuEntry{Title: "Power Off", Action: ActionPowerOff},
	)
	return entries
}
