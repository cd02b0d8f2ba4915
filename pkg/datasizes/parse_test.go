package datasizes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/ums-loader/pkg/datasizes"
)

func TestParse(t *testing.T) {
	cases := []struct {
		input   string
		success bool
		output  uint64
	}{
		{"123", true, 123},
		{"0x2000", true, 0x2000},
		{"123 kB", true, 123000},
		{"123 KiB", true, 123 * 1024},
		{"123 MB", true, 123 * 1000 * 1000},
		{"123 MiB", true, 123 * 1024 * 1024},
		{"123 GB", true, 123 * 1000 * 1000 * 1000},
		{"123 GiB", true, 123 * 1024 * 1024 * 1024},
		{"123 TB", true, 123 * 1000 * 1000 * 1000 * 1000},
		{"123 TiB", true, 123 * 1024 * 1024 * 1024 * 1024},
		{"2048 s", true, 2048 * 512},
		{"2048 sectors", true, 2048 * 512},
		{"123kB", true, 123000},
		{" 123  ", true, 123},
		{"  123KiB  ", true, 123 * 1024},
		{"123 mb", false, 0},
		{"123 PB", false, 0},
		{"-1", false, 0},
		{"", false, 0},
		{"0xffffffffffffffff TiB", false, 0},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			result, err := datasizes.Parse(c.input)
			if c.success {
				require.NoError(t, err)
				assert.EqualValues(t, c.output, result)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseSectors(t *testing.T) {
	cases := []struct {
		input  string
		output uint64
		err    string
	}{
		{input: "2048", output: 2048},
		{input: "0x800", output: 2048},
		{input: "1 MiB", output: 2048},
		{input: "4096 B", output: 8},
		{input: "16 s", output: 16},
		{input: "1000 B", err: `size "1000 B" is not a multiple of the 512 byte sector size`},
		{input: "12 furlongs", err: "unknown data size units in string: 12 furlongs"},
	}

	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			result, err := datasizes.ParseSectors(c.input)
			if c.err != "" {
				assert.EqualError(t, err, c.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.output, result)
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100 MiB", datasizes.Format(100*datasizes.MiB))
	assert.Equal(t, "4 MiB", datasizes.Format(0x2000*datasizes.SectorSize))
	assert.Equal(t, "3 KiB", datasizes.Format(3*datasizes.KiB))
	assert.Equal(t, "1536 KiB", datasizes.Format(1536*datasizes.KiB))
	assert.Equal(t, "1000 B", datasizes.Format(1000))
	assert.Equal(t, "0 B", datasizes.Format(0))
}
