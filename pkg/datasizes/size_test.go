package datasizes_test

import (
	"encoding/json"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/osbuild/ums-loader/pkg/datasizes"
)

type chunkConfig struct {
	Chunk datasizes.Size `json:"chunk" toml:"chunk" yaml:"chunk"`
}

func TestSizeDecodeErrors(t *testing.T) {
	type testCase struct {
		decode      func([]byte, any) error
		input       string
		expectedErr string
	}

	testCases := map[string]testCase{
		"toml/bool": {
			decode:      toml.Unmarshal,
			input:       `chunk = true`,
			expectedErr: `toml: line 1 (last key "chunk"): error decoding TOML size: failed to convert value "true" to number`,
		},
		"toml/float": {
			decode:      toml.Unmarshal,
			input:       `chunk = 0.5`,
			expectedErr: `toml: line 1 (last key "chunk"): error decoding TOML size: cannot be float`,
		},
		"toml/negative": {
			decode:      toml.Unmarshal,
			input:       `chunk = -512`,
			expectedErr: `toml: line 1 (last key "chunk"): error decoding TOML size: cannot be negative`,
		},
		"toml/unit": {
			decode:      toml.Unmarshal,
			input:       `chunk = "4 sectorz"`,
			expectedErr: `toml: line 1 (last key "chunk"): error decoding TOML size: unknown data size units in string: 4 sectorz`,
		},
		"json/bool": {
			decode:      json.Unmarshal,
			input:       `{"chunk": false}`,
			expectedErr: `error decoding size: failed to convert value "false" to number`,
		},
		"json/float": {
			decode:      json.Unmarshal,
			input:       `{"chunk": 0.5}`,
			expectedErr: `error decoding size: strconv.ParseUint: parsing "0.5": invalid syntax`,
		},
		"json/unit": {
			decode:      json.Unmarshal,
			input:       `{"chunk": "4 sectorz"}`,
			expectedErr: `error decoding size: unknown data size units in string: 4 sectorz`,
		},
		"yaml/unit": {
			decode:      yaml.Unmarshal,
			input:       `chunk: 4 sectorz`,
			expectedErr: `error decoding YAML size: unknown data size units in string: 4 sectorz`,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var cfg chunkConfig
			err := tc.decode([]byte(tc.input), &cfg)
			assert.EqualError(t, err, tc.expectedErr)
		})
	}
}

func TestSizeDecode(t *testing.T) {
	type testCase struct {
		json, toml, yaml string
		expected         datasizes.Size
	}

	testCases := map[string]testCase{
		"bytes": {
			json:     `{"chunk": 4096}`,
			toml:     `chunk = 4096`,
			yaml:     `chunk: 4096`,
			expected: 4096,
		},
		"quoted-bytes": {
			json:     `{"chunk": "4096"}`,
			toml:     `chunk = "4096"`,
			yaml:     `chunk: "4096"`,
			expected: 4096,
		},
		"binary-unit": {
			json:     `{"chunk": "4 MiB"}`,
			toml:     `chunk = "4 MiB"`,
			yaml:     `chunk: 4 MiB`,
			expected: 4 * datasizes.MiB,
		},
		"sectors": {
			json:     `{"chunk": "8 sectors"}`,
			toml:     `chunk = "8 sectors"`,
			yaml:     `chunk: 8 sectors`,
			expected: 8 * datasizes.SectorSize,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			for _, in := range []struct {
				decode func([]byte, any) error
				input  string
			}{
				{json.Unmarshal, tc.json},
				{toml.Unmarshal, tc.toml},
				{yaml.Unmarshal, tc.yaml},
			} {
				var cfg chunkConfig
				require.NoError(t, in.decode([]byte(in.input), &cfg), in.input)
				assert.Equal(t, tc.expected, cfg.Chunk, in.input)
			}
		})
	}
}

func TestSizeHelpers(t *testing.T) {
	size := datasizes.Size(4 * datasizes.MiB)
	assert.Equal(t, uint64(4*datasizes.MiB), size.Uint64())
	assert.Equal(t, uint64(0x2000), size.Sectors())
	assert.Equal(t, "4 MiB", size.String())
	assert.Equal(t, uint64(1), datasizes.Size(1023).Sectors())
}
