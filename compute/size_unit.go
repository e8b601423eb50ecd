package compute

import "strings"

type SizeUnit int

const (
	SizeUnitUnknown SizeUnit = iota
	SizeUnitB
	SizeUnitK
	SizeUnitM
	SizeUnitG
)

func (SizeUnit SizeUnit) String() string {
	switch SizeUnit {
	default:
		return "unknown"
	case SizeUnitB:
		return "B"
	case SizeUnitK:
		return "K"
	case SizeUnitM:
		return "M"
	case SizeUnitG:
		return "G"
	}
}

// NewSizeUnit accepts the single letter form as well as the kB/MB/GB
// spellings found in dmidecode output, case insensitive.
func NewSizeUnit(input string) SizeUnit {
	switch strings.ToUpper(input) {
	default:
		return SizeUnitUnknown
	case "B", "BYTES":
		return SizeUnitB
	case "K", "KB", "KIB":
		return SizeUnitK
	case "M", "MB", "MIB":
		return SizeUnitM
	case "G", "GB", "GIB":
		return SizeUnitG
	}
}
