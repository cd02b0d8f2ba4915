package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"

	"github.com/osbuild/ums-loader/pkg/bootcfg"
	"github.com/osbuild/ums-loader/pkg/datasizes"
	"github.com/osbuild/ums-loader/pkg/loader"
	"github.com/osbuild/ums-loader/pkg/mount"
	"github.com/osbuild/ums-loader/pkg/parttable"
	"github.com/osbuild/ums-loader/pkg/storage"
	"github.com/osbuild/ums-loader/pkg/volume"
)

type configView struct {
	bootcfg.BootConfig `yaml:",inline"`

	Magic  string `json:"magic" yaml:"magic"`
	Config string `json:"config" yaml:"config"`
}

func newConfigView(cfg bootcfg.BootConfig) *configView {
	magic, config := cfg.Encode()
	return &configView{
		BootConfig: cfg,
		Magic:      fmt.Sprintf("0x%02x", magic),
		Config:     fmt.Sprintf("0x%02x", config),
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func (v *configView) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "autostart:\t%s\n", yesNo(v.Autostart))
	fmt.Fprintf(tw, "stop action:\t%s\n", v.StopAction)
	for _, dev := range storage.Devices {
		fmt.Fprintf(tw, "%s:\t%s\n", dev.Label(), v.Mode(dev))
	}
	fmt.Fprintf(tw, "bytes:\tmagic=%s config=%s\n", v.Magic, v.Config)
	return tw.Flush()
}

type tableView struct {
	Device  storage.Device    `json:"device" yaml:"device"`
	Sectors uint32            `json:"sectors" yaml:"sectors"`
	Scheme  parttable.Scheme  `json:"scheme" yaml:"scheme"`
	Entries []parttable.Entry `json:"entries" yaml:"entries"`
}

func newTableView(dev storage.Device, table *parttable.Table, sectors uint32) *tableView {
	return &tableView{
		Device:  dev,
		Sectors: sectors,
		Scheme:  table.Scheme,
		Entries: table.Entries,
	}
}

func (v *tableView) writeText(w io.Writer) error {
	var errs []error
	size := datasizes.Format(uint64(v.Sectors) * storage.SectorSize)
	if _, err := fmt.Fprintf(w, "%s: %d sectors (%s), %s\n", v.Device.Label(), v.Sectors, size, v.Scheme); err != nil {
		errs = append(errs, err)
	}
	if len(v.Entries) == 0 {
		return errors.Join(errs...)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTART\tLENGTH\tSIZE\tTYPE\tNAME")
	for i, e := range v.Entries {
		typ := fmt.Sprintf("0x%02x", e.MBRType)
		if e.Type != uuid.Nil {
			typ = e.Type.String()
		}
		if e.Bootable {
			typ += "*"
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\n", i, e.Start, e.Length,
			datasizes.Format(uint64(e.Length)*storage.SectorSize), typ, e.Name)
	}
	errs = append(errs, tw.Flush())
	return errors.Join(errs...)
}

type selectionView struct {
	mount.Labels `yaml:",inline"`

	Volume volume.Descriptor `json:"volume" yaml:"volume"`
}

func (v *selectionView) writeText(w io.Writer) error {
	var errs []error
	for _, row := range v.Rows() {
		if _, err := fmt.Fprintln(w, row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type menuView struct {
	State   string             `json:"state" yaml:"state"`
	Entries []loader.MenuEntry `json:"entries" yaml:"entries"`
}

func (v *menuView) writeText(w io.Writer) error {
	var errs []error
	if _, err := fmt.Fprintf(w, "storage: %s\n", v.State); err != nil {
		errs = append(errs, err)
	}
	for _, e := range v.Entries {
		mark := " "
		if e.Disabled {
			mark = "x"
		}
		if _, err := fmt.Fprintf(w, "[%s] %s\n", mark, e.Title); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
