package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"nfvpe/derive-params/config"
	"nfvpe/derive-params/filesystem"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T, withStorage bool) http.Handler {
	t.Helper()
	var storage ParameterSetStorage
	if withStorage {
		fsStorage, err := filesystem.NewParameterSetStorage(filepath.Join(t.TempDir(), "parameters.json"))
		require.NoError(t, err)
		storage = fsStorage
	}
	handler, err := New(config.Default(), zerolog.Nop(), storage)
	require.NoError(t, err)
	return handler
}

func deriveBody(t *testing.T, request string, host string) *bytes.Buffer {
	t.Helper()
	introspection, err := os.ReadFile("../compute/testdata/introspection.json")
	require.NoError(t, err)
	body := map[string]interface{}{
		"request":       json.RawMessage(request),
		"introspection": json.RawMessage(introspection),
	}
	if host != "" {
		body["host"] = host
	}
	content, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewBuffer(content)
}

func do(handler http.Handler, method, path string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(method, path, body))
	return recorder
}

func TestHealth(t *testing.T) {
	recorder := do(newTestEnv(t, false), "GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"status": "ok"`)
}

func TestDeriveDpdk(t *testing.T) {
	handler := newTestEnv(t, true)
	body := deriveBody(t, `{"dpdk_nics": [{"nic": "nic3", "mtu": 9000}], "num_phy_cores_per_numa_node_for_pmd": 2}`, "compute-0")
	recorder := do(handler, "POST", "/api/v1/derive/dpdk", body)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	response := struct {
		Mode       string                 `json:"mode"`
		NumaNodes  []int                  `json:"numa_nodes"`
		DpdkNics   []nicResponse          `json:"dpdk_nics"`
		Parameters map[string]interface{} `json:"parameters"`
		Recorded   bool                   `json:"recorded"`
	}{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Equal(t, "dpdk", response.Mode)
	require.Equal(t, []int{0, 1}, response.NumaNodes)
	require.Equal(t, []nicResponse{{Nic: "nic3", Name: "p1p1", NumaNode: 1, Mtu: 9000}}, response.DpdkNics)
	require.Equal(t, "1,5-6,9,13-14", response.Parameters["NeutronDpdkCoreList"])
	require.Equal(t, "0,4,8,12", response.Parameters["HostCpusList"])
	require.Equal(t, "2048,3072", response.Parameters["NeutronDpdkSocketMemory"])
	require.Equal(t, map[string]interface{}{
		"default_hugepagesz": "1GB",
		"hugepagesz":         "1G",
		"hugepages":          "62",
		"intel_iommu":        "on",
	}, response.Parameters["ComputeKernelArgs"])
	require.True(t, response.Recorded)

	recorder = do(handler, "GET", "/api/v1/parameters/dpdk/compute-0", nil)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	recorded := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &recorded))
	require.Equal(t, "1,5-6,9,13-14", recorded["NeutronDpdkCoreList"])

	recorder = do(handler, "GET", "/api/v1/parameters/sriov/compute-0", nil)
	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestDeriveSriov(t *testing.T) {
	recorder := do(newTestEnv(t, false), "POST", "/api/v1/derive/sriov", deriveBody(t, `{"huge_page_allocation_percentage": 75}`, ""))
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	response := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	parameters := response["parameters"].(map[string]interface{})
	require.NotContains(t, parameters, "NeutronDpdkCoreList")
	require.Equal(t, "93", parameters["ComputeKernelArgs"].(map[string]interface{})["hugepages"])
	require.Equal(t, false, response["recorded"])
}

func TestDeriveErrors(t *testing.T) {
	handler := newTestEnv(t, false)
	tests := []struct {
		name string
		path string
		body *bytes.Buffer
		want int
	}{
		{
			name: "unknown key",
			path: "/api/v1/derive/dpdk",
			body: deriveBody(t, `{"dpdk_nics": [{"nic": "nic3", "mtu": 9000}], "foo": 1}`, ""),
			want: http.StatusBadRequest,
		},
		{
			name: "invalid nic",
			path: "/api/v1/derive/dpdk",
			body: deriveBody(t, `{"dpdk_nics": [{"nic": "nic9", "mtu": 9000}]}`, ""),
			want: http.StatusBadRequest,
		},
		{
			name: "broken body",
			path: "/api/v1/derive/sriov",
			body: bytes.NewBufferString(`{`),
			want: http.StatusBadRequest,
		},
		{
			name: "missing introspection",
			path: "/api/v1/derive/sriov",
			body: bytes.NewBufferString(`{"request": {}}`),
			want: http.StatusBadRequest,
		},
		{
			name: "no topology",
			path: "/api/v1/derive/sriov",
			body: bytes.NewBufferString(`{"request": {}, "introspection": {"inventory": {"cpu": {"flags": ["pdpe1gb"]}, "memory": {"physical_mb": 8192}}}}`),
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "no 1GB hugepages",
			path: "/api/v1/derive/sriov",
			body: bytes.NewBufferString(`{"request": {}, "introspection": {"inventory": {"cpu": {"flags": []}, "memory": {"physical_mb": 8192}}, "numa_topology": {"cpus": [{"cpu": 0, "numa_node": 0, "thread_siblings": [0, 1]}]}}}`),
			want: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := do(handler, "POST", tt.path, tt.body)
			require.Equal(t, tt.want, recorder.Code, recorder.Body.String())
			require.Contains(t, recorder.Body.String(), `"error"`)
		})
	}
}

func TestRoutes(t *testing.T) {
	handler := newTestEnv(t, false)
	require.Equal(t, http.StatusNotFound, do(handler, "POST", "/api/v1/derive/ovs", deriveBody(t, `{}`, "")).Code)
	require.Equal(t, http.StatusNotFound, do(handler, "GET", "/api/v1/parameters/dpdk/compute-0", nil).Code)
}
