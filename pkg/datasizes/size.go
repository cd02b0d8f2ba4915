package datasizes

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Size is a wrapper around uint64 with support for reading from string
// yaml/toml, so {"size": 123}, {"size": "1234"}, {"size": "1 GiB"} are
// all supported
type Size uint64

// Uint64 returns the size as uint64. This is a convenience functions,
// it is strictly equivalent to uint64(Size(1))
func (si Size) Uint64() uint64 {
	return uint64(si)
}

// Sectors returns the number of whole sectors covered by the size.
func (si Size) Sectors() uint64 {
	return uint64(si) / SectorSize
}

func (si Size) String() string {
	return Format(uint64(si))
}

func (si *Size) UnmarshalTOML(data interface{}) error {
	i, err := decodeSize(data)
	if err != nil {
		return fmt.Errorf("error decoding TOML size: %w", err)
	}
	*si = Size(i)
	return nil
}

func (si *Size) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	// json numbers are float64, keep integers exact by re-parsing
	if _, ok := v.(float64); ok {
		i, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf("error decoding size: %w", err)
		}
		*si = Size(i)
		return nil
	}
	i, err := decodeSize(v)
	if err != nil {
		return fmt.Errorf("error decoding size: %w", err)
	}
	*si = Size(i)
	return nil
}

func (si *Size) UnmarshalYAML(node *yaml.Node) error {
	i, err := decodeSize(node.Value)
	if err != nil {
		return fmt.Errorf("error decoding YAML size: %w", err)
	}
	*si = Size(i)
	return nil
}

// decodeSize takes an integer or string representing a data size (with a
// data suffix) and returns the uint64 representation.
func decodeSize(size any) (uint64, error) {
	switch s := size.(type) {
	case string:
		return Parse(s)
	case int64:
		if s < 0 {
			return 0, fmt.Errorf("cannot be negative")
		}
		return uint64(s), nil
	case uint64:
		return s, nil
	case float64, float32:
		return 0, fmt.Errorf("cannot be float")
	default:
		return 0, fmt.Errorf("failed to convert value \"%v\" to number", size)
	}
}
