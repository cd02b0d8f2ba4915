package mount

import "fmt"

var modeLabels = map[Mode]string{
	ByPartition: "Mode Partition",
	ByOffset:    "Mode Offset + Size",
}

// Labels is the textual rendering of a selection, one string per menu row.
type Labels struct {
	Device    string `json:"device" yaml:"device"`
	Mode      string `json:"mode" yaml:"mode"`
	Partition string `json:"partition" yaml:"partition"`
	Offset    string `json:"offset" yaml:"offset"`
	Size      string `json:"size" yaml:"size"`
	Total     string `json:"total" yaml:"total"`
	Access    string `json:"access" yaml:"access"`
}

// Labels renders the selection. Partition numbers above 99 are shown as 99.
func (s *Selection) Labels() Labels {
	part := s.index
	if part > 99 {
		part = 99
	}
	access := "RW"
	if s.readOnly {
		access = "RO"
	}
	offset, size := s.Range()
	return Labels{
		Device:    "Device " + s.device.Label(),
		Mode:      modeLabels[s.mode],
		Partition: fmt.Sprintf("Part. %02d", part),
		Offset:    fmt.Sprintf("Offset 0x%08x", offset),
		Size:      fmt.Sprintf("Size 0x%08x", size),
		Total:     fmt.Sprintf("tot. size 0x%08x", s.physical),
		Access:    "Mount " + access,
	}
}

// Rows returns the labels in menu order.
func (l Labels) Rows() []string {
	return []string{l.Device, l.Mode, l.Partition, l.Offset, l.Size, l.Total, l.Access}
}
