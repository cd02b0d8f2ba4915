package loader

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ums-loader/pkg/bootcfg"
)

// Power switches the system off or into the recovery mode.
type Power interface {
	PowerOff() error
	RebootRecovery() error
	// RecoverySupported reports whether RebootRecovery is available on
	// this chip.
	RecoverySupported() bool
}

// NoPower only logs the requested transitions.
type NoPower struct{}

func (NoPower) PowerOff() error {
	logrus.Info("power off requested")
	return nil
}

func (NoPower) RebootRecovery() error {
	logrus.Info("reboot to recovery requested")
	return nil
}

func (NoPower) RecoverySupported() bool {
	return false
}

// Stop runs a post-export action. Rebooting to recovery powers off when
// the chip has no recovery mode.
func (l *Loader) Stop(action bootcfg.StopAction) error {
	power := l.opts.Power
	switch action {
	case bootcfg.PowerOff:
		return power.PowerOff()
	case bootcfg.RebootToRecovery:
		if !power.RecoverySupported() {
			logrus.Debugf("recovery not supported, powering off")
			return power.PowerOff()
		}
		return power.RebootRecovery()
	case bootcfg.ReturnToMenu:
		return nil
	default:
		logrus.Debugf("stop action %s, returning to menu", action)
		return nil
	}
}

// RebootRecovery is the menu entry of the same name.
func (l *Loader) RebootRecovery() error {
	return l.Stop(bootcfg.RebootToRecovery)
}

// PowerOff is the menu entry of the same name.
func (l *Loader) PowerOff() error {
	if err := l.opts.Power.PowerOff(); err != nil {
		return fmt.Errorf("power off failed: %w", err)
	}
	return nil
}
