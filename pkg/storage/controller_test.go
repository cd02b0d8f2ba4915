package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ums-loader/internal/teststorage"
	"github.com/osbuild/ums-loader/pkg/storage"
)

func TestProbe(t *testing.T) {
	testCases := map[string]struct {
		sd, emmc *teststorage.Controller
		expected storage.State
	}{
		"all-ok":    {teststorage.NewController(teststorage.Blank(64)), teststorage.NewEMMC(teststorage.Blank(64)), 0},
		"sd-fail":   {teststorage.Failing(), teststorage.NewEMMC(teststorage.Blank(64)), storage.ErrorSD},
		"emmc-fail": {teststorage.NewController(teststorage.Blank(64)), teststorage.Failing(), storage.ErrorEMMC},
		"both-fail": {teststorage.Failing(), teststorage.Failing(), storage.ErrorSD | storage.ErrorEMMC},
	}

	for name := range testCases {
		tc := testCases[name]
		t.Run(name, func(t *testing.T) {
			state := storage.Probe(&storage.Drivers{SD: tc.sd, EMMC: tc.emmc})
			assert.Equal(t, tc.expected, state)
			// released even after a failed init
			assert.Equal(t, 1, tc.sd.Ends)
			assert.Equal(t, 1, tc.emmc.Ends)
		})
	}
}

func TestProbeMissingControllers(t *testing.T) {
	state := storage.Probe(&storage.Drivers{SD: teststorage.NewController(teststorage.Blank(8))})
	assert.False(t, state.Failed(storage.ClassSD))
	assert.True(t, state.Failed(storage.ClassEMMC))
	assert.True(t, state.Available(storage.SD))
	assert.False(t, state.Available(storage.EMMCBoot1))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ok", storage.State(0).String())
	assert.Equal(t, "sd failed", storage.State(0).With(storage.ClassSD).String())
	assert.Equal(t, "emmc failed", storage.ErrorEMMC.String())
	assert.Equal(t, "sd,emmc failed", (storage.ErrorSD | storage.ErrorEMMC).String())
}

func TestDriversOpen(t *testing.T) {
	emmc := teststorage.NewEMMC(teststorage.Blank(64))
	drivers := &storage.Drivers{EMMC: emmc}

	ctrl, err := drivers.Open(storage.EMMCBoot1)
	require.NoError(t, err)
	assert.Equal(t, uint32(storage.BootPartitionSectors), ctrl.SectorCount())
	ctrl.End()
	assert.True(t, emmc.Balanced())

	_, err = drivers.Open(storage.SD)
	assert.ErrorIs(t, err, storage.ErrInitFailed)

	failing := teststorage.Failing()
	_, err = (&storage.Drivers{SD: failing}).Open(storage.SD)
	assert.ErrorIs(t, err, storage.ErrInitFailed)
	assert.Equal(t, 1, failing.Inits)
	assert.Equal(t, 1, failing.Ends)
	assert.True(t, failing.Balanced())

	// a failed partition switch releases the controller again
	delete(emmc.Partitions, storage.PartitionBoot0)
	_, err = drivers.Open(storage.EMMCBoot0)
	assert.ErrorContains(t, err, "cannot select eMMC boot0 partition")
	assert.True(t, emmc.Balanced())
}
