// Package cpulist converts between explicit CPU id lists and the compact
// range notation used by kernel, tuned, nova and OVS configuration
// ("0,1,2,4" <-> "0-2,4").
//
// See the List Format section of
// https://www.man7.org/linux/man-pages/man7/cpuset.7.html
package cpulist

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-set/v3"
)

var ErrInvalidRangeToken = errors.New("invalid range token")

var (
	numberRe  = regexp.MustCompile(`^\d+$`)
	spanRe    = regexp.MustCompile(`^(\d+)-(\d+)$`)
	excludeRe = regexp.MustCompile(`^\^(\d+)$`)
)

// Parse expands a range list into sorted, unique cpu ids.
//
// Tokens are bare ids, inclusive "a-b" spans or "^n" exclusions. Exclusions
// are applied after every other token is expanded, whatever their position.
// The bracketed list form produced by FormatArray is accepted too.
func Parse(text string) ([]int, error) {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "[]")
	text = strings.NewReplacer("'", "", `"`, "", " ", "").Replace(text)
	if text == "" {
		return []int{}, nil
	}

	included := set.New[int](0)
	excluded := set.New[int](0)
	for _, token := range strings.Split(text, ",") {
		switch {
		case numberRe.MatchString(token):
			cpu, err := cpuId(token, token)
			if err != nil {
				return nil, err
			}
			included.Insert(cpu)
		case spanRe.MatchString(token):
			values := spanRe.FindStringSubmatch(token)
			low, err := cpuId(values[1], token)
			if err != nil {
				return nil, err
			}
			high, err := cpuId(values[2], token)
			if err != nil {
				return nil, err
			}
			if low > high {
				return nil, fmt.Errorf("%w: %q has lower bound above upper bound", ErrInvalidRangeToken, token)
			}
			for cpu := low; cpu <= high; cpu++ {
				included.Insert(cpu)
			}
		case excludeRe.MatchString(token):
			cpu, err := cpuId(token[1:], token)
			if err != nil {
				return nil, err
			}
			excluded.Insert(cpu)
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidRangeToken, token)
		}
	}
	for cpu := range excluded.Items() {
		included.Remove(cpu)
	}
	ids := included.Slice()
	slices.Sort(ids)
	return ids, nil
}

// MaxCpuId bounds the ids Parse accepts, well above any kernel NR_CPUS.
const MaxCpuId = 1<<16 - 1

func cpuId(value, token string) (int, error) {
	id, err := strconv.Atoi(value)
	if err != nil || id > MaxCpuId {
		return 0, fmt.Errorf("%w: %q is not a cpu id", ErrInvalidRangeToken, token)
	}
	return id, nil
}

func ranges(ids []int) []string {
	if len(ids) == 0 {
		return []string{}
	}
	sorted := set.From(ids).Slice()
	slices.Sort(sorted)

	parts := []string{}
	low, high := sorted[0], sorted[0]
	flush := func() {
		if low == high {
			parts = append(parts, strconv.Itoa(low))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", low, high))
		}
	}
	for _, id := range sorted[1:] {
		if id == high+1 {
			high = id
			continue
		}
		flush()
		low, high = id, id
	}
	flush()
	return parts
}

// Format renders ids in range notation, e.g. [0 1 2 4 5 7] -> "0-2,4-5,7".
func Format(ids []int) string {
	return strings.Join(ranges(ids), ",")
}

// FormatArray renders ids as a bracketed list of quoted range tokens,
// e.g. "['0-2','4-5','7']", the way heat templates expect list literals.
func FormatArray(ids []int) string {
	quoted := []string{}
	for _, part := range ranges(ids) {
		quoted = append(quoted, "'"+part+"'")
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

// Join renders ids as a flat comma separated list keeping their order.
func Join(ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ",")
}

// ParseMask converts a hexadecimal cpu mask (as stored in OVS other_config
// pmd-cpu-mask or dpdk-lcore-mask) into ascending cpu ids.
func ParseMask(mask string) ([]int, error) {
	mask = strings.Trim(strings.TrimSpace(mask), `"`)
	mask = strings.TrimPrefix(strings.TrimPrefix(mask, "0x"), "0X")
	if mask == "" {
		return []int{}, nil
	}
	value, ok := new(big.Int).SetString(mask, 16)
	if !ok {
		return nil, fmt.Errorf("%w: cpu mask %q is not hexadecimal", ErrInvalidRangeToken, mask)
	}
	ids := []int{}
	for bit := 0; bit < value.BitLen(); bit++ {
		if value.Bit(bit) == 1 {
			ids = append(ids, bit)
		}
	}
	return ids, nil
}

// Equal reports whether a and b hold the same cpu ids regardless of order
// or duplicates.
func Equal(a, b []int) bool {
	left, right := set.From(a), set.From(b)
	if left.Size() != right.Size() {
		return false
	}
	for _, id := range b {
		if !left.Contains(id) {
			return false
		}
	}
	return true
}
