package ums

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// DryRun prints the volumes of a session instead of exporting them.
type DryRun struct {
	Out io.Writer
}

func (d *DryRun) Export(ctx context.Context, s *Session) error {
	if len(s.Volumes) == 0 {
		return ErrNoVolumes
	}
	for _, vol := range s.Volumes {
		if err := ctx.Err(); err != nil {
			return err
		}
		logrus.Debugf("dry run: %s", vol)
		if _, err := fmt.Fprintln(d.Out, vol); err != nil {
			return err
		}
	}
	s.setText(fmt.Sprintf("%d volume(s)", len(s.Volumes)))
	s.maintain(true)
	return nil
}
