package ums_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ums-loader/internal/teststorage"
	"github.com/osbuild/ums-loader/pkg/storage"
	"github.com/osbuild/ums-loader/pkg/ums"
	"github.com/osbuild/ums-loader/pkg/volume"
)

func TestImageExporter(t *testing.T) {
	sd := filledSD(100)
	emmc := teststorage.NewEMMC(teststorage.Blank(64))
	teststorage.Fill(emmc.Partitions[storage.PartitionBoot0], 0, 16)

	exp := &ums.ImageExporter{
		Drivers:   &storage.Drivers{SD: sd, EMMC: emmc},
		OutputDir: filepath.Join(t.TempDir(), "out"),
		ChunkSize: 8 * 512,
	}

	var texts []string
	maint := 0
	s := &ums.Session{
		Volumes: []volume.Descriptor{
			volume.For(storage.SD, 10, 0, false),
			volume.For(storage.EMMCBoot0, 0, storage.BootPartitionSectors, true),
		},
		SetText:     func(text string) { texts = append(texts, text) },
		Maintenance: func(bool) { maint++ },
	}
	require.NoError(t, exp.Export(context.Background(), s))

	sdImg, err := os.ReadFile(filepath.Join(exp.OutputDir, "00-sd-10.img"))
	require.NoError(t, err)
	assert.Len(t, sdImg, 90*512)
	assert.Equal(t, byte(10), sdImg[0])
	assert.Equal(t, byte(99), sdImg[len(sdImg)-1])

	bootImg, err := os.ReadFile(filepath.Join(exp.OutputDir, "01-emmc-boot0-0.img"))
	require.NoError(t, err)
	assert.Len(t, bootImg, storage.BootPartitionSectors*512)
	assert.Equal(t, byte(15), bootImg[15*512])
	assert.Equal(t, byte(0), bootImg[16*512])

	// 90 sectors in chunks of 8 plus 0x2000 sectors in chunks of 8
	assert.Equal(t, 12+1024+1, maint)
	assert.Equal(t, "SD: 4 KiB / 45 KiB", texts[0])
	assert.Equal(t, "Export finished", texts[len(texts)-1])

	assert.True(t, sd.Balanced())
	assert.True(t, emmc.Balanced())
}

func TestImageExporterFailureRemovesImage(t *testing.T) {
	sd := filledSD(64)
	sd.FailReads = true
	exp := &ums.ImageExporter{
		Drivers:   &storage.Drivers{SD: sd},
		OutputDir: t.TempDir(),
	}

	err := exp.Export(context.Background(), &ums.Session{
		Volumes: []volume.Descriptor{volume.For(storage.SD, 0, 0, true)},
	})
	assert.ErrorIs(t, err, teststorage.ErrFakeIO)
	assert.ErrorContains(t, err, "cannot export sd: read at sector 0")
	assert.NoFileExists(t, filepath.Join(exp.OutputDir, "00-sd-0.img"))
	assert.True(t, sd.Balanced())
}

func TestImageExporterCancel(t *testing.T) {
	sd := filledSD(64)
	exp := &ums.ImageExporter{Drivers: &storage.Drivers{SD: sd}, OutputDir: t.TempDir()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := exp.Export(ctx, &ums.Session{Volumes: []volume.Descriptor{volume.For(storage.SD, 0, 0, true)}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, sd.Balanced())
}

func TestExportWithoutVolumes(t *testing.T) {
	exp := &ums.ImageExporter{OutputDir: t.TempDir()}
	assert.ErrorIs(t, exp.Export(context.Background(), &ums.Session{}), ums.ErrNoVolumes)

	dry := &ums.DryRun{Out: &bytes.Buffer{}}
	assert.ErrorIs(t, dry.Export(context.Background(), &ums.Session{}), ums.ErrNoVolumes)
}

func TestDryRun(t *testing.T) {
	var out bytes.Buffer
	var status string
	s := &ums.Session{
		Volumes: []volume.Descriptor{
			volume.For(storage.SD, 0, 0, false),
			volume.For(storage.EMMCBoot1, 0, storage.BootPartitionSectors, true),
		},
		SetText: func(text string) { status = text },
	}

	var transport ums.Transport = &ums.DryRun{Out: &out}
	require.NoError(t, transport.Export(context.Background(), s))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"sd (sd part 0) offset 0, whole, rw",
		"emmc-boot1 (emmc part 3) offset 0, 8192 sectors, ro",
	}, lines)
	assert.Equal(t, "2 volume(s)", status)
}
