package ums_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ums-loader/internal/teststorage"
	"github.com/osbuild/ums-loader/pkg/storage"
	"github.com/osbuild/ums-loader/pkg/ums"
	"github.com/osbuild/ums-loader/pkg/volume"
)

func filledSD(sectors uint32) *teststorage.Controller {
	img := teststorage.Blank(sectors)
	teststorage.Fill(img, 0, sectors)
	return teststorage.NewController(img)
}

func TestOpenViewWindow(t *testing.T) {
	ctrl := filledSD(64)
	view, err := ums.OpenView(&storage.Drivers{SD: ctrl}, volume.For(storage.SD, 10, 20, true))
	require.NoError(t, err)

	assert.Equal(t, uint32(512), view.BlockSize())
	assert.Equal(t, uint64(20), view.BlockCount())
	assert.True(t, view.IsReadOnly())

	buf := make([]byte, 2*512)
	n, err := view.Read(0, 2, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
	assert.Equal(t, byte(10), buf[0])
	assert.Equal(t, byte(11), buf[512])

	_, err = view.Read(19, 2, buf)
	assert.ErrorIs(t, err, ums.ErrOutOfRange)

	_, err = view.Read(0, 4, buf)
	assert.Error(t, err)

	_, err = view.Write(0, 1, buf)
	assert.ErrorIs(t, err, ums.ErrReadOnly)
	assert.Equal(t, 0, ctrl.Writes)

	view.Close()
	assert.True(t, ctrl.Balanced())
	_, err = view.Read(0, 1, buf)
	assert.ErrorIs(t, err, storage.ErrNotInitialized)
}

func TestOpenViewWrite(t *testing.T) {
	ctrl := filledSD(64)
	view, err := ums.OpenView(&storage.Drivers{SD: ctrl}, volume.For(storage.SD, 32, 0, false))
	require.NoError(t, err)
	defer view.Close()

	assert.Equal(t, uint64(32), view.BlockCount())

	buf := make([]byte, 512)
	for i := range buf {
		buf[i] = 0xA5
	}
	n, err := view.Write(31, 1, buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), n)
	assert.Equal(t, byte(0xA5), ctrl.Partitions[storage.PartitionUser][63*512])
	assert.Equal(t, byte(62), ctrl.Partitions[storage.PartitionUser][62*512])

	_, err = view.Write(32, 1, buf)
	assert.ErrorIs(t, err, ums.ErrOutOfRange)
}

func TestOpenViewBootPartition(t *testing.T) {
	emmc := teststorage.NewEMMC(teststorage.Blank(64))
	view, err := ums.OpenView(&storage.Drivers{EMMC: emmc}, volume.For(storage.EMMCBoot1, 0, storage.BootPartitionSectors, true))
	require.NoError(t, err)
	assert.Equal(t, uint64(storage.BootPartitionSectors), view.BlockCount())
	view.Close()
	assert.True(t, emmc.Balanced())
}

func TestOpenViewRejects(t *testing.T) {
	type testCase struct {
		vol         volume.Descriptor
		expectedErr error
	}

	testCases := map[string]testCase{
		"past-end": {
			vol:         volume.For(storage.SD, 60, 8, false),
			expectedErr: ums.ErrOutOfRange,
		},
		"offset-past-end-whole": {
			vol:         volume.For(storage.SD, 65, 0, false),
			expectedErr: ums.ErrOutOfRange,
		},
		"no-controller": {
			vol:         volume.For(storage.EMMCGPP, 0, 0, false),
			expectedErr: storage.ErrInitFailed,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ctrl := filledSD(64)
			_, err := ums.OpenView(&storage.Drivers{SD: ctrl}, tc.vol)
			assert.ErrorIs(t, err, tc.expectedErr)
			assert.True(t, ctrl.Balanced())
		})
	}

	vol := volume.For(storage.SD, 0, 0, false)
	vol.Partition = 2
	_, err := ums.OpenView(&storage.Drivers{SD: filledSD(64)}, vol)
	assert.ErrorContains(t, err, "inconsistent volume")
}
