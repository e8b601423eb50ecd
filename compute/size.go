package compute

import "fmt"

type Size struct {
	Value uint64
	Unit  SizeUnit
}

func NewSize(value uint64, unit SizeUnit) Size {
	return Size{value, unit}
}

// ParseSize reads sizes as printed by dmidecode and lscpu, e.g. "16384 MB".
func ParseSize(input string) (Size, error) {
	var value uint64
	var unit string
	if _, err := fmt.Sscanf(input, "%d %s", &value, &unit); err != nil {
		return Size{}, fmt.Errorf("cannot parse size %q: %s", input, err)
	}
	sizeUnit := NewSizeUnit(unit)
	if sizeUnit == SizeUnitUnknown {
		return Size{}, fmt.Errorf("unknown size unit %q", unit)
	}
	return Size{Value: value, Unit: sizeUnit}, nil
}

func (s Size) Bytes() uint64 {
	switch s.Unit {
	default:
		panic("unknown size unit")
	case SizeUnitB:
		return s.Value
	case SizeUnitK:
		return s.Value * 1024
	case SizeUnitM:
		return s.Value * 1024 * 1024
	case SizeUnitG:
		return s.Value * 1024 * 1024 * 1024
	}
}

func (s Size) K() uint64 {
	return s.Bytes() / 1024
}

func (s Size) M() uint64 {
	return s.Bytes() / 1024 / 1024
}

func (s Size) G() uint64 {
	return s.Bytes() / 1024 / 1024 / 1024
}

func (s Size) Add(other Size) Size {
	return Size{Value: s.Bytes() + other.Bytes(), Unit: SizeUnitB}
}
