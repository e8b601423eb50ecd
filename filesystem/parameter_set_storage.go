package filesystem

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"time"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/util"
)

var ErrParameterSetNotFound = errors.New("recorded parameter set not found")

type parameterSetRecord struct {
	Host                 string    `json:"host"`
	Mode                 string    `json:"mode"`
	RecordedAt           time.Time `json:"recorded_at"`
	PmdCpus              []int     `json:"pmd_cpus,omitempty"`
	HostCpus             []int     `json:"host_cpus"`
	SocketMemory         []int     `json:"socket_memory,omitempty"`
	MemoryChannels       int       `json:"memory_channels,omitempty"`
	GuestCpus            []int     `json:"guest_cpus"`
	ReservedHostMemoryMb int       `json:"reserved_host_memory_mb"`
	IsolatedCpus         []int     `json:"isolated_cpus"`
	KernelArgs           string    `json:"kernel_args"`
}

func newParameterSetRecord(host string, params *compute.ParameterSet, now time.Time) *parameterSetRecord {
	return &parameterSetRecord{
		Host:                 host,
		Mode:                 params.Mode.String(),
		RecordedAt:           now.UTC(),
		PmdCpus:              params.PmdCpus,
		HostCpus:             params.HostCpus,
		SocketMemory:         params.SocketMemory,
		MemoryChannels:       params.MemoryChannels,
		GuestCpus:            params.GuestCpus,
		ReservedHostMemoryMb: params.ReservedHostMemoryMb,
		IsolatedCpus:         params.IsolatedCpus,
		KernelArgs:           params.KernelArgs.String(),
	}
}

func (record *parameterSetRecord) parameterSet() *compute.ParameterSet {
	return &compute.ParameterSet{
		Mode:                 compute.NewMode(record.Mode),
		PmdCpus:              record.PmdCpus,
		HostCpus:             record.HostCpus,
		SocketMemory:         record.SocketMemory,
		MemoryChannels:       record.MemoryChannels,
		GuestCpus:            record.GuestCpus,
		ReservedHostMemoryMb: record.ReservedHostMemoryMb,
		IsolatedCpus:         record.IsolatedCpus,
		KernelArgs:           compute.ParseKernelArgs(record.KernelArgs),
	}
}

// ParameterSetStorage keeps the last derivation of every host in a JSON
// file so deployed hosts can later be compared against it.
type ParameterSetStorage struct {
	filename string
	mu       *sync.RWMutex
	now      func() time.Time
}

func NewParameterSetStorage(filename string) (*ParameterSetStorage, error) {
	filename = util.ExpandHomeDir(filename)
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, util.NewError(err, "cannot create base directory")
	}
	return &ParameterSetStorage{filename: filename, mu: &sync.RWMutex{}, now: time.Now}, nil
}

// loadLocked and saveLocked expect the caller to hold mu.
func (storage *ParameterSetStorage) loadLocked() ([]*parameterSetRecord, error) {
	content, err := ioutil.ReadFile(storage.filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []*parameterSetRecord{}, nil
		}
		return nil, util.NewError(err, "cannot open storage file")
	}
	records := []*parameterSetRecord{}
	if err := json.Unmarshal(content, &records); err != nil {
		return nil, util.NewError(err, "cannot parse parameters file")
	}
	return records, nil
}

func (storage *ParameterSetStorage) saveLocked(records []*parameterSetRecord) error {
	content, err := json.MarshalIndent(&records, "", "  ")
	if err != nil {
		return util.NewError(err, "cannot marshal parameters")
	}
	if err := ioutil.WriteFile(storage.filename, content, 0644); err != nil {
		return util.NewError(err, "cannot write parameters file")
	}
	return nil
}

// Get returns the parameters last recorded for host in the given mode.
func (storage *ParameterSetStorage) Get(host string, mode compute.Mode) (*compute.ParameterSet, error) {
	storage.mu.RLock()
	defer storage.mu.RUnlock()
	records, err := storage.loadLocked()
	if err != nil {
		return nil, util.NewError(err, "cannot load parameters")
	}
	for _, record := range records {
		if record.Host == host && record.Mode == mode.String() {
			return record.parameterSet(), nil
		}
	}
	return nil, ErrParameterSetNotFound
}

// Save records params for host, replacing an earlier record of the same
// mode.
func (storage *ParameterSetStorage) Save(host string, params *compute.ParameterSet) error {
	storage.mu.Lock()
	defer storage.mu.Unlock()
	records, err := storage.loadLocked()
	if err != nil {
		return err
	}
	record := newParameterSetRecord(host, params, storage.now())
	found := false
	for idx, existing := range records {
		if existing.Host == host && existing.Mode == record.Mode {
			records[idx] = record
			found = true
		}
	}
	if !found {
		records = append(records, record)
	}
	return storage.saveLocked(records)
}
