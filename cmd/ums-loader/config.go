package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/osbuild/ums-loader/pkg/bootcfg"
	"github.com/osbuild/ums-loader/pkg/storage"
)

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("cannot parse %q as a byte: %w", s, err)
	}
	return byte(v), nil
}

func cmdConfigShow(cmd *cobra.Command, args []string) error {
	conf, err := loadHostConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := conf.LoadBootConfig()
	if err != nil {
		return err
	}
	return output(cmd, newConfigView(cfg))
}

func cmdConfigDecode(cmd *cobra.Command, args []string) error {
	magic, err := parseByte(args[0])
	if err != nil {
		return err
	}
	config, err := parseByte(args[1])
	if err != nil {
		return err
	}
	return output(cmd, newConfigView(bootcfg.Decode(magic, config)))
}

// deviceFlags maps the config set flags to devices.
var deviceFlags = map[string]storage.Device{
	"sd":    storage.SD,
	"gpp":   storage.EMMCGPP,
	"boot0": storage.EMMCBoot0,
	"boot1": storage.EMMCBoot1,
}

func cmdConfigSet(cmd *cobra.Command, args []string) error {
	conf, err := loadHostConfig(cmd)
	if err != nil {
		return err
	}
	cfg, err := conf.LoadBootConfig()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("autostart") {
		if cfg.Autostart, err = flags.GetBool("autostart"); err != nil {
			return err
		}
	}
	if flags.Changed("stop-action") {
		s, err := flags.GetString("stop-action")
		if err != nil {
			return err
		}
		if cfg.StopAction, err = bootcfg.ParseStopAction(s); err != nil {
			return err
		}
	}
	for name, dev := range deviceFlags {
		if !flags.Changed(name) {
			continue
		}
		s, err := flags.GetString(name)
		if err != nil {
			return err
		}
		mode, err := bootcfg.ParseMountMode(s)
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		cfg.SetMode(dev, mode)
	}

	if err := conf.SaveBootConfig(cfg); err != nil {
		return err
	}
	return output(cmd, newConfigView(cfg))
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change the boot configuration of a payload",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the boot configuration stored in the payload",
		RunE:  cmdConfigShow,
		Args:  cobra.NoArgs,
	}
	configCmd.AddCommand(showCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode <magic> <config>",
		Short: "Decode a boot configuration byte pair, e.g. 0x05 0x02",
		RunE:  cmdConfigDecode,
		Args:  cobra.ExactArgs(2),
	}
	configCmd.AddCommand(decodeCmd)

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Change the boot configuration stored in the payload",
		RunE:  cmdConfigSet,
		Args:  cobra.NoArgs,
	}
	setCmd.Flags().Bool("autostart", false, "Start UMS without showing the menu")
	setCmd.Flags().String("stop-action", "", "Action after UMS stopped (menu,poweroff,rcm)")
	for _, name := range []string{"sd", "gpp", "boot0", "boot1"} {
		setCmd.Flags().String(name, "", fmt.Sprintf("Mount mode of %s (none,ro,rw)", deviceFlags[name].Label()))
	}
	configCmd.AddCommand(setCmd)

	for _, c := range []*cobra.Command{showCmd, decodeCmd, setCmd} {
		addFormatFlag(c)
	}
	return configCmd
}
