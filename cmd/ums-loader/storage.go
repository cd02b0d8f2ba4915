package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/osbuild/ums-loader/pkg/datasizes"
	"github.com/osbuild/ums-loader/pkg/mount"
	"github.com/osbuild/ums-loader/pkg/parttable"
	"github.com/osbuild/ums-loader/pkg/storage"
	"github.com/osbuild/ums-loader/pkg/volume"
)

func cmdPartitions(cmd *cobra.Command, args []string) error {
	dev, err := storage.ParseDevice(args[0])
	if err != nil {
		return err
	}
	conf, err := loadHostConfig(cmd)
	if err != nil {
		return err
	}
	table, sectors := parttable.Read(dev, conf.Drivers())
	return output(cmd, newTableView(dev, table, sectors))
}

func cmdMenu(cmd *cobra.Command, args []string) error {
	conf, err := loadHostConfig(cmd)
	if err != nil {
		return err
	}
	// show the menu as it looks after autostart
	l, err := newLoader(conf, nil, false)
	if err != nil {
		return err
	}
	if _, err := l.Startup(cmd.Context()); err != nil {
		return err
	}
	return output(cmd, &menuView{State: l.State().String(), Entries: l.Menu()})
}

func cmdStart(cmd *cobra.Command, args []string) error {
	conf, err := loadHostConfig(cmd)
	if err != nil {
		return err
	}
	tr, err := transport(cmd, conf)
	if err != nil {
		return err
	}
	l, err := newLoader(conf, tr, true)
	if err != nil {
		return err
	}
	rep, err := l.Startup(cmd.Context())
	if rep.Message != "" {
		fmt.Fprintf(osStdout, "warning: %s\n", rep.Message)
	}
	return err
}

// deviceValue is a pflag.Value accepting device names and labels.
type deviceValue struct {
	dev storage.Device
}

var _ pflag.Value = &deviceValue{}

func (v *deviceValue) String() string {
	return v.dev.String()
}

func (v *deviceValue) Set(s string) error {
	dev, err := storage.ParseDevice(s)
	if err != nil {
		return err
	}
	v.dev = dev
	return nil
}

func (v *deviceValue) Type() string {
	return "device"
}

func applySelectionFlags(flags *pflag.FlagSet, sel *mount.Selection) error {
	if flags.Changed("device") {
		dev := flags.Lookup("device").Value.(*deviceValue).dev
		if err := sel.SetDevice(dev); err != nil {
			return err
		}
	}

	if flags.Changed("partition") {
		idx, err := flags.GetInt("partition")
		if err != nil {
			return err
		}
		if sel.Mode() != mount.ByPartition {
			return fmt.Errorf("%s has no partition table", sel.Device().Label())
		}
		if idx < 0 || idx >= sel.Table().Len() {
			return fmt.Errorf("partition %d out of range, %s has %d partitions", idx, sel.Device().Label(), sel.Table().Len())
		}
		sel.SelectPartition(idx)
	}

	if flags.Changed("offset") || flags.Changed("size") {
		if sel.Mode() == mount.ByPartition {
			sel.ToggleMode()
		}
		if err := setSectors(flags, "offset", sel.SetOffset); err != nil {
			return err
		}
		if err := setSectors(flags, "size", sel.SetSize); err != nil {
			return err
		}
	}

	if ro, _ := flags.GetBool("ro"); ro {
		sel.SetReadOnly(true)
	}
	if rw, _ := flags.GetBool("rw"); rw {
		sel.SetReadOnly(false)
	}
	return nil
}

func setSectors(flags *pflag.FlagSet, name string, set func(uint32) uint32) error {
	if !flags.Changed(name) {
		return nil
	}
	s, err := flags.GetString(name)
	if err != nil {
		return err
	}
	sectors, err := datasizes.ParseSectors(s)
	if err != nil {
		return fmt.Errorf("--%s: %w", name, err)
	}
	if sectors > 1<<32-1 {
		return fmt.Errorf("--%s: %d sectors exceed 32-bit addressing", name, sectors)
	}
	if got := set(uint32(sectors)); uint64(got) != sectors {
		logrus.Warnf("%s clamped from %d to %d sectors", name, sectors, got)
	}
	return nil
}

func cmdSubStorage(cmd *cobra.Command, args []string) error {
	conf, err := loadHostConfig(cmd)
	if err != nil {
		return err
	}
	tr, err := transport(cmd, conf)
	if err != nil {
		return err
	}
	l, err := newLoader(conf, tr, false)
	if err != nil {
		return err
	}
	if _, err := l.Startup(cmd.Context()); err != nil {
		return err
	}

	sel, err := l.SubStorage()
	if err != nil {
		return err
	}
	if err := applySelectionFlags(cmd.Flags(), sel); err != nil {
		return err
	}
	view := &selectionView{Labels: sel.Labels(), Volume: volume.Resolve(sel)}
	if err := output(cmd, view); err != nil {
		return err
	}
	return l.StartSubStorage(cmd.Context(), sel)
}
