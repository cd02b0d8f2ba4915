package storage

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrInitFailed is returned by controllers that cannot bring up the
	// storage bus or card.
	ErrInitFailed = errors.New("storage init failed")

	// ErrNotInitialized is returned for I/O on a controller that was not
	// initialised or was already released.
	ErrNotInitialized = errors.New("storage not initialized")

	// ErrOutOfRange is returned for reads or writes past the end of the
	// selected partition.
	ErrOutOfRange = errors.New("sector range out of bounds")
)

// Controller is the driver boundary for one storage class. A controller
// is a singleton hardware resource: callers must pair every successful
// Init with End and must not hold it across operator interaction.
type Controller interface {
	// Init brings the controller up. It is called again after End.
	Init() error

	// SetPartition switches the active eMMC hardware partition. SD
	// controllers accept only PartitionUser.
	SetPartition(HWPartition) error

	// ReadSectors reads count sectors starting at lba into buf, which must
	// hold at least count*SectorSize bytes.
	ReadSectors(lba, count uint32, buf []byte) error

	// WriteSectors writes count sectors from buf starting at lba.
	WriteSectors(lba, count uint32, buf []byte) error

	// SectorCount returns the size of the active partition in sectors.
	SectorCount() uint32

	// End releases the controller.
	End()
}

// SectorSize is the size of a logical block on both storage classes.
const SectorSize = 512

// Drivers holds the controller of each storage class. Either may be nil
// when the hardware is absent, which counts as an init failure.
type Drivers struct {
	SD   Controller
	EMMC Controller
}

// For returns the controller serving the given class.
func (d *Drivers) For(c Class) Controller {
	if d == nil {
		return nil
	}
	switch c {
	case ClassSD:
		return d.SD
	case ClassEMMC:
		return d.EMMC
	default:
		return nil
	}
}

// Open initialises the controller of dev's class and selects dev's
// hardware partition. On success the caller owns the controller and must
// call End on it; on failure it is already released.
func (d *Drivers) Open(dev Device) (Controller, error) {
	ctrl := d.For(dev.Class())
	if ctrl == nil {
		return nil, fmt.Errorf("%w: no %s controller", ErrInitFailed, dev.Class())
	}
	if err := ctrl.Init(); err != nil {
		ctrl.End()
		return nil, fmt.Errorf("cannot initialize %s controller: %w", dev.Class(), err)
	}
	if dev.Class() == ClassEMMC {
		if err := ctrl.SetPartition(dev.HWPartition()); err != nil {
			ctrl.End()
			return nil, fmt.Errorf("cannot select eMMC %s partition: %w", dev.HWPartition(), err)
		}
	}
	return ctrl, nil
}

// State records sticky per-class init failures. Once a class failed it
// is never retried at this layer.
type State uint32

const (
	ErrorSD   State = 0x01
	ErrorEMMC State = 0x02
)

func classFlag(c Class) State {
	if c == ClassSD {
		return ErrorSD
	}
	return ErrorEMMC
}

// Failed reports whether the given class failed to initialise.
func (s State) Failed(c Class) bool {
	return s&classFlag(c) != 0
}

// Available reports whether the device's class initialised.
func (s State) Available(d Device) bool {
	return !s.Failed(d.Class())
}

// With returns the state with the class marked as failed.
func (s State) With(c Class) State {
	return s | classFlag(c)
}

func (s State) String() string {
	switch {
	case s.Failed(ClassSD) && s.Failed(ClassEMMC):
		return "sd,emmc failed"
	case s.Failed(ClassSD):
		return "sd failed"
	case s.Failed(ClassEMMC):
		return "emmc failed"
	default:
		return "ok"
	}
}

// Probe initialises and releases each storage class once and records the
// ones that failed.
func Probe(drivers *Drivers) State {
	var state State
	for _, class := range []Class{ClassSD, ClassEMMC} {
		ctrl := drivers.For(class)
		if ctrl == nil {
			logrus.Warnf("no %s controller present", class)
			state = state.With(class)
			continue
		}
		if err := ctrl.Init(); err != nil {
			logrus.Warnf("%s init failed: %v", class, err)
			state = state.With(class)
		}
		ctrl.End()
	}
	logrus.Debugf("storage probe: %s", state)
	return state
}
