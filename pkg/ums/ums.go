// Package ums is the boundary to the USB mass-storage export. A Session
// carries the resolved volumes and the UI callbacks, a Transport exports
// them until the host is done.
package ums

import (
	"context"
	"errors"

	"github.com/osbuild/ums-loader/pkg/volume"
)

var (
	// ErrOutOfRange is returned for volumes or accesses that leave the
	// hardware partition.
	ErrOutOfRange = errors.New("volume outside of the storage device")
	// ErrReadOnly is returned for writes to a read-only volume.
	ErrReadOnly = errors.New("volume is read-only")
	// ErrNoVolumes is returned when a session has nothing to export.
	ErrNoVolumes = errors.New("no volumes to export")
)

// Session is one export request.
type Session struct {
	Volumes []volume.Descriptor

	// SetText shows a status line, may be nil.
	SetText func(string)
	// Maintenance is called periodically while exporting, may be nil.
	// refresh asks the UI to redraw.
	Maintenance func(refresh bool)
}

func (s *Session) setText(text string) {
	if s.SetText != nil {
		s.SetText(text)
	}
}

func (s *Session) maintain(refresh bool) {
	if s.Maintenance != nil {
		s.Maintenance(refresh)
	}
}

// Transport exports a session. Export blocks until the session ended.
type Transport interface {
	Export(ctx context.Context, s *Session) error
}
