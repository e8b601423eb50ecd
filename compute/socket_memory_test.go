package compute

import (
	"reflect"
	"testing"
)

func TestRoundupMtu(t *testing.T) {
	tests := map[int]int{1500: 2048, 9000: 9216, 1024: 1024, 1: 1024}
	for mtu, want := range tests {
		if got := RoundupMtu(mtu); got != want {
			t.Errorf("RoundupMtu(%d) = %d, want %d", mtu, got, want)
		}
	}
}

func TestNodeSocketMemory(t *testing.T) {
	tests := []struct {
		name string
		nics []DpdkNicNumaInfo
		want int
	}{
		{name: "no nics", nics: nil, want: 2048},
		{name: "jumbo", nics: []DpdkNicNumaInfo{{NumaNode: 0, Mtu: 9000}}, want: 3072},
		{name: "standard", nics: []DpdkNicNumaInfo{{NumaNode: 0, Mtu: 1500}}, want: 2048},
		{
			name: "duplicate mtu counted once",
			nics: []DpdkNicNumaInfo{{NumaNode: 0, Mtu: 9000}, {NumaNode: 0, Mtu: 9000}},
			want: 3072,
		},
		{
			name: "mixed mtu",
			nics: []DpdkNicNumaInfo{{NumaNode: 0, Mtu: 9000}, {NumaNode: 0, Mtu: 1500}},
			want: 4096,
		},
		{name: "other node only", nics: []DpdkNicNumaInfo{{NumaNode: 1, Mtu: 9000}}, want: 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NodeSocketMemory(0, tt.nics, DefaultMinimumSocketMemory); got != tt.want {
				t.Errorf("NodeSocketMemory() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSocketMemory(t *testing.T) {
	nics := []DpdkNicNumaInfo{{NumaNode: 1, Mtu: 9000}}
	got := SocketMemory([]int{0, 1}, nics, DefaultMinimumSocketMemory)
	if !reflect.DeepEqual(got, []int{2048, 3072}) {
		t.Errorf("SocketMemory() = %v", got)
	}
	if got := SocketMemory([]int{0}, nil, 3000); !reflect.DeepEqual(got, []int{3072}) {
		t.Errorf("SocketMemory() with custom minimum = %v", got)
	}
}
