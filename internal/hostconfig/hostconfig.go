// Package hostconfig loads the TOML file that maps the loader's storage
// devices and payload to files or block devices on a host.
package hostconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/osbuild/ums-loader/pkg/bootcfg"
	"github.com/osbuild/ums-loader/pkg/datasizes"
	"github.com/osbuild/ums-loader/pkg/storage"
)

// EnvConfigPath names the environment variable with the default config
// path.
const EnvConfigPath = "UMS_LOADER_CONFIG"

// ErrNoConfig is returned by Path when neither a path nor the environment
// variable is set.
var ErrNoConfig = errors.New("no host config given, use --config or " + EnvConfigPath)

type HostConfig struct {
	Payload      string  `toml:"payload"`
	ConfigOffset int64   `toml:"config-offset"`
	Storage      Storage `toml:"storage"`
	Export       Export  `toml:"export"`
}

type Storage struct {
	SD        string `toml:"sd"`
	EMMCGPP   string `toml:"emmc-gpp"`
	EMMCBoot0 string `toml:"emmc-boot0"`
	EMMCBoot1 string `toml:"emmc-boot1"`
	// ReadOnly opens every device without write access.
	ReadOnly bool `toml:"read-only"`
}

type Export struct {
	OutputDir string         `toml:"output-dir"`
	ChunkSize datasizes.Size `toml:"chunk-size"`
}

type Options struct {
	AllowUnknownFields bool
}

// Path returns path, or the value of UMS_LOADER_CONFIG when path is empty.
func Path(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}
	return "", ErrNoConfig
}

// New reads the config at path. Relative file names in the config are
// relative to the directory of the config file.
func New(path string, opts *Options) (*HostConfig, error) {
	if opts == nil {
		opts = &Options{}
	}

	conf := HostConfig{ConfigOffset: bootcfg.Offset}
	md, err := toml.DecodeFile(path, &conf)
	if err != nil {
		return nil, fmt.Errorf("cannot decode host config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 && !opts.AllowUnknownFields {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("cannot decode host config: unknown keys %s", strings.Join(keys, ", "))
	}
	if conf.ConfigOffset < 0 {
		return nil, fmt.Errorf("invalid config-offset %d", conf.ConfigOffset)
	}

	base := filepath.Dir(path)
	for _, p := range []*string{
		&conf.Payload,
		&conf.Storage.SD,
		&conf.Storage.EMMCGPP,
		&conf.Storage.EMMCBoot0,
		&conf.Storage.EMMCBoot1,
		&conf.Export.OutputDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return &conf, nil
}

// Drivers returns host controllers for the configured devices. A class
// without any configured file has no controller and an eMMC without a GPP
// file fails to initialise, both are reported as init failures.
func (c *HostConfig) Drivers() *storage.Drivers {
	drivers := &storage.Drivers{}
	if c.Storage.SD != "" {
		drivers.SD = storage.NewFileController("sd", map[storage.HWPartition]string{
			storage.PartitionUser: c.Storage.SD,
		}, c.Storage.ReadOnly)
	}
	if c.Storage.EMMCGPP != "" || c.Storage.EMMCBoot0 != "" || c.Storage.EMMCBoot1 != "" {
		drivers.EMMC = storage.NewFileController("emmc", map[storage.HWPartition]string{
			storage.PartitionUser:  c.Storage.EMMCGPP,
			storage.PartitionBoot0: c.Storage.EMMCBoot0,
			storage.PartitionBoot1: c.Storage.EMMCBoot1,
		}, c.Storage.ReadOnly)
	}
	return drivers
}

// LoadBootConfig reads the boot configuration from the payload.
func (c *HostConfig) LoadBootConfig() (bootcfg.BootConfig, error) {
	if c.Payload == "" {
		return bootcfg.BootConfig{}, fmt.Errorf("no payload configured")
	}
	f, err := os.Open(c.Payload)
	if err != nil {
		return bootcfg.BootConfig{}, err
	}
	defer f.Close()
	return bootcfg.Load(f, c.ConfigOffset)
}

// SaveBootConfig writes cfg into the payload.
func (c *HostConfig) SaveBootConfig(cfg bootcfg.BootConfig) (err error) {
	if c.Payload == "" {
		return fmt.Errorf("no payload configured")
	}
	f, err := os.OpenFile(c.Payload, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return bootcfg.Patch(f, c.ConfigOffset, cfg)
}
