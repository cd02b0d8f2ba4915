package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/osbuild/ums-loader/internal/hostconfig"
	"github.com/osbuild/ums-loader/pkg/loader"
	"github.com/osbuild/ums-loader/pkg/ums"
)

var osStdout io.Writer = os.Stdout

func loadHostConfig(cmd *cobra.Command) (*hostconfig.HostConfig, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	path, err = hostconfig.Path(path)
	if err != nil {
		return nil, err
	}
	return hostconfig.New(path, nil)
}

func output(cmd *cobra.Command, res textWriter) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	rf, err := NewResultFormatter(OutputFormat(format))
	if err != nil {
		return err
	}
	return rf.Output(osStdout, res)
}

func transport(cmd *cobra.Command, conf *hostconfig.HostConfig) (ums.Transport, error) {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return nil, err
	}
	if dryRun {
		return &ums.DryRun{Out: osStdout}, nil
	}

	outputDir, err := cmd.Flags().GetString("output-dir")
	if err != nil {
		return nil, err
	}
	if outputDir == "" {
		outputDir = conf.Export.OutputDir
	}
	if outputDir == "" {
		return nil, fmt.Errorf("no output directory, use --output-dir or [export] output-dir")
	}
	return &ums.ImageExporter{
		Drivers:   conf.Drivers(),
		OutputDir: outputDir,
		ChunkSize: conf.Export.ChunkSize.Uint64(),
	}, nil
}

// newLoader returns a loader for the payload's boot configuration with
// autostart overridden.
func newLoader(conf *hostconfig.HostConfig, tr ums.Transport, autostart bool) (*loader.Loader, error) {
	cfg, err := conf.LoadBootConfig()
	if err != nil {
		return nil, err
	}
	cfg.Autostart = autostart
	return loader.New(cfg, loader.Options{
		Drivers:   conf.Drivers(),
		Transport: tr,
		SetText: func(text string) {
			logrus.Info(text)
		},
	}), nil
}

func addExportFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("dry-run", false, "Print the volumes instead of exporting them")
	cmd.Flags().String("output-dir", "", "Write raw images of the volumes to this directory")
}

func run() error {
	// the library logs progress at Info that we do not want to show
	logrus.SetLevel(logrus.WarnLevel)

	rootCmd := &cobra.Command{
		Use:   "ums-loader",
		Short: "Resolve and export SD and eMMC volumes the way the UMS loader does",
		Long: `Resolve and export SD and eMMC volumes the way the UMS loader does

ums-loader reads the boot configuration of a loader payload, probes the
storage described by a host config file and resolves the volumes the
loader would expose over USB mass storage. Volumes can be printed or
exported as raw images.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Host config file (default $"+hostconfig.EnvConfigPath+")")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show debug output")

	rootCmd.AddCommand(newConfigCmd())

	partitionsCmd := &cobra.Command{
		Use:   "partitions <device>",
		Short: "Show the partition table of a device (sd, gpp, boot0, boot1)",
		RunE:  cmdPartitions,
		Args:  cobra.ExactArgs(1),
	}
	addFormatFlag(partitionsCmd)
	rootCmd.AddCommand(partitionsCmd)

	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "Probe the storage and show the main menu",
		RunE:  cmdMenu,
		Args:  cobra.NoArgs,
	}
	addFormatFlag(menuCmd)
	rootCmd.AddCommand(menuCmd)

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Export the devices mounted by the boot configuration",
		RunE:  cmdStart,
		Args:  cobra.NoArgs,
	}
	addExportFlags(startCmd)
	rootCmd.AddCommand(startCmd)

	subCmd := &cobra.Command{
		Use:   "substorage",
		Short: "Export a single partition or sector range",
		RunE:  cmdSubStorage,
		Args:  cobra.NoArgs,
	}
	subCmd.Flags().Var(&deviceValue{}, "device", "Device to export (sd, gpp, boot0, boot1)")
	subCmd.Flags().Int("partition", 0, "Partition index to export")
	subCmd.Flags().String("offset", "", "First sector, plain numbers are sectors, units are bytes")
	subCmd.Flags().String("size", "", "Number of sectors, plain numbers are sectors, units are bytes")
	subCmd.Flags().Bool("ro", false, "Export read-only")
	subCmd.Flags().Bool("rw", false, "Export read-write")
	addFormatFlag(subCmd)
	subCmd.MarkFlagsMutuallyExclusive("partition", "offset")
	subCmd.MarkFlagsMutuallyExclusive("partition", "size")
	subCmd.MarkFlagsMutuallyExclusive("ro", "rw")
	addExportFlags(subCmd)
	rootCmd.AddCommand(subCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return rootCmd.ExecuteContext(ctx)
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %s", err)
	}
}
