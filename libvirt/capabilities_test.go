package libvirt

import (
	"errors"
	"reflect"
	"testing"

	"nfvpe/derive-params/compute"
)

const capsXml = `<capabilities>
  <host>
    <uuid>4c4c4544-0051-4810-8036-b4c04f595831</uuid>
    <cpu>
      <arch>x86_64</arch>
      <model>Broadwell-IBRS</model>
      <vendor>Intel</vendor>
    </cpu>
    <iommu support='yes'/>
    <topology>
      <cells num='2'>
        <cell id='1'>
          <memory unit='KiB'>8388608</memory>
          <cpus num='4'>
            <cpu id='1' socket_id='1' core_id='0' siblings='1,5'/>
            <cpu id='3' socket_id='1' core_id='1' siblings='3,7'/>
            <cpu id='5' socket_id='1' core_id='0' siblings='1,5'/>
            <cpu id='7' socket_id='1' core_id='1' siblings='3,7'/>
          </cpus>
        </cell>
        <cell id='0'>
          <memory unit='KiB'>8388608</memory>
          <cpus num='4'>
            <cpu id='0' socket_id='0' core_id='0' siblings='0,4'/>
            <cpu id='2' socket_id='0' core_id='1' siblings='2,6'/>
            <cpu id='4' socket_id='0' core_id='0' siblings='0,4'/>
            <cpu id='6' socket_id='0' core_id='1' siblings='2,6'/>
          </cpus>
        </cell>
      </cells>
    </topology>
  </host>
</capabilities>`

func TestParseCapabilities(t *testing.T) {
	topology, err := ParseCapabilities(capsXml)
	if err != nil {
		t.Fatal(err)
	}
	want := compute.Cores{
		{NumaNode: 0, CoreId: 0, ThreadSiblings: []int{0, 4}},
		{NumaNode: 0, CoreId: 1, ThreadSiblings: []int{2, 6}},
		{NumaNode: 1, CoreId: 0, ThreadSiblings: []int{1, 5}},
		{NumaNode: 1, CoreId: 1, ThreadSiblings: []int{3, 7}},
	}
	if !reflect.DeepEqual(topology.Cpus, want) {
		t.Errorf("ParseCapabilities() cpus = %v, want %v", topology.Cpus, want)
	}
	if topology.TotalMemory.M() != 16384 {
		t.Errorf("TotalMemory = %d MB", topology.TotalMemory.M())
	}
	if !topology.Iommu || topology.CpuVendor != "Intel" {
		t.Errorf("unexpected host cpu info: %+v", topology)
	}
	if topology.String() != "4 cores on 2 numa nodes, 16384 MB" {
		t.Errorf("String() = %s", topology.String())
	}
}

func TestParseCapabilitiesWithoutSiblings(t *testing.T) {
	topology, err := ParseCapabilities(`<capabilities><host><topology><cells num='1'><cell id='0'>
		<cpus num='2'><cpu id='0' socket_id='0' core_id='0'/><cpu id='1' socket_id='0' core_id='1'/></cpus>
	</cell></cells></topology></host></capabilities>`)
	if err != nil {
		t.Fatal(err)
	}
	if len(topology.Cpus) != 2 || !reflect.DeepEqual(topology.Cpus[1].ThreadSiblings, []int{1}) {
		t.Errorf("ParseCapabilities() cpus = %v", topology.Cpus)
	}
}

func TestParseCapabilitiesErrors(t *testing.T) {
	tests := map[string]string{
		"no cells":   `<capabilities><host></host></capabilities>`,
		"no cpus":    `<capabilities><host><topology><cells num='1'><cell id='0'></cell></cells></topology></host></capabilities>`,
		"no core id": `<capabilities><host><topology><cells num='1'><cell id='0'><cpus num='1'><cpu id='0'/></cpus></cell></cells></topology></host></capabilities>`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCapabilities(input)
			if !errors.Is(err, compute.ErrMissingTopologyData) {
				t.Errorf("ParseCapabilities() error = %v, want ErrMissingTopologyData", err)
			}
		})
	}
	if _, err := ParseCapabilities(`<capabilities`); err == nil {
		t.Error("ParseCapabilities() accepted broken XML")
	}
}
