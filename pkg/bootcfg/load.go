package bootcfg

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Offset is the position of the magic byte in the loader payload; the
// config byte follows it.
const Offset = 0x94

// Load reads the configuration byte pair at offset from the payload.
func Load(r io.ReaderAt, offset int64) (BootConfig, error) {
	var raw [2]byte
	if _, err := r.ReadAt(raw[:], offset); err != nil {
		return BootConfig{}, fmt.Errorf("cannot read boot config at 0x%x: %w", offset, err)
	}
	cfg := Decode(raw[0], raw[1])
	logrus.Debugf("boot config 0x%02x 0x%02x: autostart=%v stop=%s", raw[0], raw[1], cfg.Autostart, cfg.StopAction)
	return cfg, nil
}

// Patch writes cfg as the configuration byte pair at offset.
func Patch(w io.WriterAt, offset int64, cfg BootConfig) error {
	magic, config := cfg.Encode()
	if _, err := w.WriteAt([]byte{magic, config}, offset); err != nil {
		return fmt.Errorf("cannot write boot config at 0x%x: %w", offset, err)
	}
	return nil
}
