package datasizes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var unitMultipliers = []struct {
	units      []string
	multiplier uint64
}{
	{[]string{"B", ""}, 1},
	{[]string{"kB", "KB"}, KiloByte},
	{[]string{"KiB"}, KiB},
	{[]string{"MB"}, MegaByte},
	{[]string{"MiB"}, MiB},
	{[]string{"GB"}, GigaByte},
	{[]string{"GiB"}, GiB},
	{[]string{"TB"}, TeraByte},
	{[]string{"TiB"}, TiB},
	{[]string{"s", "sectors"}, SectorSize},
}

var sizeRegexp = regexp.MustCompile(`^(0x[0-9a-fA-F]+|[0-9]+)\s*([a-zA-Z]*)$`)

// Parse converts a size specified as a string in KB/KiB/MB/etc. or in
// sectors ("2048 s") to a number of bytes represented by uint64.
// Plain numbers may be written in decimal or with a 0x prefix.
func Parse(size string) (uint64, error) {
	size = strings.TrimSpace(size)

	m := sizeRegexp.FindStringSubmatch(size)
	if m == nil {
		return 0, fmt.Errorf("failed to parse size %q", size)
	}

	value, err := strconv.ParseUint(m[1], 0, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse size %q: %w", size, err)
	}

	for _, u := range unitMultipliers {
		for _, name := range u.units {
			if name != m[2] {
				continue
			}
			if u.multiplier != 1 && value > ^uint64(0)/u.multiplier {
				return 0, fmt.Errorf("size %q overflows", size)
			}
			return value * u.multiplier, nil
		}
	}

	return 0, fmt.Errorf("unknown data size units in string: %s", size)
}

// ParseSectors converts a size string to a sector count. A plain number
// without units is already a sector count, sizes with units must be a
// multiple of the sector size.
func ParseSectors(size string) (uint64, error) {
	trimmed := strings.TrimSpace(size)
	if m := sizeRegexp.FindStringSubmatch(trimmed); m != nil && m[2] == "" {
		return strconv.ParseUint(m[1], 0, 64)
	}

	bytes, err := Parse(size)
	if err != nil {
		return 0, err
	}
	if bytes%SectorSize != 0 {
		return 0, fmt.Errorf("size %q is not a multiple of the %d byte sector size", trimmed, SectorSize)
	}
	return bytes / SectorSize, nil
}

// Format renders a byte count with the largest binary unit that divides it
// exactly, e.g. 104857600 becomes "100 MiB".
func Format(bytes uint64) string {
	for _, u := range []struct {
		name string
		mul  uint64
	}{{"TiB", TiB}, {"GiB", GiB}, {"MiB", MiB}, {"KiB", KiB}} {
		if bytes >= u.mul && bytes%u.mul == 0 {
			return fmt.Sprintf("%d %s", bytes/u.mul, u.name)
		}
	}
	return fmt.Sprintf("%d B", bytes)
}
