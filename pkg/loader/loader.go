// Package loader implements the menu flows of the loader: storage probing
// at startup, the autostart and default mount flow, the per device mount
// toggles and the sub-storage flow.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ums-loader/pkg/bootcfg"
	"github.com/osbuild/ums-loader/pkg/mount"
	"github.com/osbuild/ums-loader/pkg/parttable"
	"github.com/osbuild/ums-loader/pkg/storage"
	"github.com/osbuild/ums-loader/pkg/ums"
	"github.com/osbuild/ums-loader/pkg/volume"
)

// ErrDeviceUnavailable is returned when acting on a device whose storage
// class failed to initialise.
var ErrDeviceUnavailable = errors.New("device not available")

// ErrEmptyRange is returned by StartSubStorage for a selection without
// sectors, which the transport would read as the whole partition.
var ErrEmptyRange = errors.New("selected range is empty")

// Options configures a Loader.
type Options struct {
	Drivers   *storage.Drivers
	Transport ums.Transport
	Power     Power

	// UI callbacks passed on to every export session, may be nil.
	SetText     func(string)
	Maintenance func(refresh bool)
}

// Loader holds the process wide state: the boot configuration and the
// probed storage state.
type Loader struct {
	opts   Options
	reader *parttable.Reader

	requested bootcfg.BootConfig
	cfg       bootcfg.BootConfig
	state     storage.State
	probed    bool
}

// Report describes the outcome of Startup.
type Report struct {
	State       storage.State    `json:"state" yaml:"state"`
	Unavailable []storage.Device `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
	// Message is the autostart warning, empty without autostart or when
	// every requested device is present.
	Message     string `json:"message,omitempty" yaml:"message,omitempty"`
	Autostarted bool   `json:"autostarted" yaml:"autostarted"`
}

// New returns a loader for cfg. Startup must be called before any flow.
func New(cfg bootcfg.BootConfig, opts Options) *Loader {
	if opts.Power == nil {
		opts.Power = NoPower{}
	}
	return &Loader{
		opts:      opts,
		reader:    parttable.NewReader(opts.Drivers),
		requested: cfg,
		cfg:       cfg,
	}
}

// Config returns the active configuration, degraded after Startup.
func (l *Loader) Config() bootcfg.BootConfig {
	return l.cfg
}

// State returns the probed storage state.
func (l *Loader) State() storage.State {
	return l.state
}

// Startup probes both storage classes, disables the devices of failed
// classes and runs the default mount flow once when autostart is set.
func (l *Loader) Startup(ctx context.Context) (Report, error) {
	l.state = storage.Probe(l.opts.Drivers)
	l.probed = true

	rep := Report{State: l.state}
	if l.requested.Autostart {
		rep.Unavailable = volume.Unavailable(l.requested, l.state)
		rep.Message = volume.UnavailableMessage(rep.Unavailable)
		if rep.Message != "" {
			logrus.Warn(rep.Message)
			l.setText(rep.Message)
		}
	}

	l.cfg = l.requested.Degrade(l.state)
	if !l.cfg.Autostart {
		return rep, nil
	}

	// autostart runs once, returning to the menu shows the menu
	l.cfg.Autostart = false
	rep.Autostarted = true
	return rep, l.StartDefault(ctx)
}

func (l *Loader) setText(text string) {
	if l.opts.SetText != nil {
		l.opts.SetText(text)
	}
}

func (l *Loader) session(vols []volume.Descriptor) *ums.Session {
	return &ums.Session{
		Volumes:     vols,
		SetText:     l.opts.SetText,
		Maintenance: l.opts.Maintenance,
	}
}

func (l *Loader) checkProbed() error {
	if !l.probed {
		return fmt.Errorf("storage not probed")
	}
	return nil
}

// ToggleMount cycles the mount mode of dev: none, ro, rw.
func (l *Loader) ToggleMount(dev storage.Device) (bootcfg.MountMode, error) {
	if err := l.checkProbed(); err != nil {
		return bootcfg.NoMount, err
	}
	if !dev.Valid() {
		return bootcfg.NoMount, fmt.Errorf("unknown storage device %d", uint8(dev))
	}
	if !l.state.Available(dev) {
		return l.cfg.Mode(dev), fmt.Errorf("%w: %s", ErrDeviceUnavailable, dev.Label())
	}
	mode := l.cfg.Mode(dev).Next()
	l.cfg.SetMode(dev, mode)
	return mode, nil
}

// StartDefault exports every configured device and then runs the stop
// action, also when the export failed.
func (l *Loader) StartDefault(ctx context.Context) error {
	if err := l.checkProbed(); err != nil {
		return err
	}
	vols := volume.ResolveDefaults(l.cfg, l.state)
	logrus.Debugf("default mount: %d volume(s)", len(vols))
	var exportErr error
	if err := l.opts.Transport.Export(ctx, l.session(vols)); err != nil {
		exportErr = fmt.Errorf("export failed: %w", err)
		logrus.Warn(exportErr)
	}
	return errors.Join(exportErr, l.Stop(l.cfg.StopAction))
}

// SubStorage starts a sub-storage selection.
func (l *Loader) SubStorage() (*mount.Selection, error) {
	if err := l.checkProbed(); err != nil {
		return nil, err
	}
	sel, err := mount.New(l.reader, l.state)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return sel, nil
}

// StartSubStorage exports the single volume of sel. The flow returns to
// the menu afterwards, the stop action does not apply.
func (l *Loader) StartSubStorage(ctx context.Context, sel *mount.Selection) error {
	if err := l.checkProbed(); err != nil {
		return err
	}
	vol := volume.Resolve(sel)
	if !l.state.Available(vol.Device) {
		return fmt.Errorf("%w: %s", ErrDeviceUnavailable, vol.Device.Label())
	}
	if vol.Sectors == 0 {
		return ErrEmptyRange
	}
	if err := l.opts.Transport.Export(ctx, l.session([]volume.Descriptor{vol})); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	return nil
}
