package ums

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/ums-loader/pkg/datasizes"
	"github.com/osbuild/ums-loader/pkg/storage"
	"github.com/osbuild/ums-loader/pkg/volume"
)

// DefaultChunkSize is the amount of data copied between maintenance calls.
const DefaultChunkSize = 4 * datasizes.MiB

// ImageExporter writes every volume of a session to a raw image file in
// OutputDir.
type ImageExporter struct {
	Drivers   *storage.Drivers
	OutputDir string
	// ChunkSize in bytes, rounded down to whole sectors.
	// DefaultChunkSize is used when zero.
	ChunkSize uint64
}

// ImageName returns the file name of the idx'th volume of a session.
func ImageName(idx int, vol volume.Descriptor) string {
	return fmt.Sprintf("%02d-%s-%d.img", idx, vol.Device, vol.Offset)
}

func (e *ImageExporter) chunkSectors() uint32 {
	size := e.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	sectors := size / storage.SectorSize
	if sectors == 0 {
		return 1
	}
	if sectors > 1<<16 {
		return 1 << 16
	}
	return uint32(sectors)
}

// Export copies all volumes. A failed volume stops the export and its
// partial image is removed.
func (e *ImageExporter) Export(ctx context.Context, s *Session) error {
	if len(s.Volumes) == 0 {
		return ErrNoVolumes
	}
	if err := os.MkdirAll(e.OutputDir, 0o755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}

	for idx, vol := range s.Volumes {
		path := filepath.Join(e.OutputDir, ImageName(idx, vol))
		if err := e.exportOne(ctx, s, vol, path); err != nil {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = errors.Join(err, rmErr)
			}
			return fmt.Errorf("cannot export %s: %w", vol.Device, err)
		}
		logrus.Infof("exported %s to %s", vol, path)
	}
	s.setText("Export finished")
	s.maintain(true)
	return nil
}

func (e *ImageExporter) exportOne(ctx context.Context, s *Session, vol volume.Descriptor, path string) (err error) {
	view, err := OpenView(e.Drivers, vol)
	if err != nil {
		return err
	}
	defer view.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	chunk := e.chunkSectors()
	buf := make([]byte, int(chunk)*storage.SectorSize)
	total := view.BlockCount()
	for lba := uint64(0); lba < total; {
		if err := ctx.Err(); err != nil {
			return err
		}
		n := uint32(min(uint64(chunk), total-lba))
		if _, err := view.Read(lba, n, buf); err != nil {
			return fmt.Errorf("read at sector %d: %w", uint64(vol.Offset)+lba, err)
		}
		if _, err := f.Write(buf[:int(n)*storage.SectorSize]); err != nil {
			return err
		}
		lba += uint64(n)
		s.setText(fmt.Sprintf("%s: %s / %s", vol.Device.Label(),
			datasizes.Format(lba*storage.SectorSize), datasizes.Format(total*storage.SectorSize)))
		s.maintain(false)
	}
	return nil
}
