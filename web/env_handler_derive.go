package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/filesystem"
	"nfvpe/derive-params/output"

	"github.com/gorilla/mux"
)

type deriveRequest struct {
	Request       json.RawMessage `json:"request"`
	Introspection json.RawMessage `json:"introspection"`
	Host          string          `json:"host"`
}

type nicResponse struct {
	Nic      string `json:"nic"`
	Name     string `json:"name"`
	NumaNode int    `json:"numa_node"`
	Mtu      int    `json:"mtu"`
}

type deriveResponse struct {
	Mode       string                 `json:"mode"`
	NumaNodes  []int                  `json:"numa_nodes"`
	DpdkNics   []nicResponse          `json:"dpdk_nics"`
	Parameters map[string]interface{} `json:"parameters"`
	Recorded   bool                   `json:"recorded"`
}

func (env *Environ) Health(rw http.ResponseWriter, req *http.Request) {
	data := struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}{"ok", AppVersion}
	if err := env.render.JSON(rw, http.StatusOK, data); err != nil {
		env.error(rw, req, err, "failed to render response", http.StatusInternalServerError)
	}
}

// Derive runs a derivation over the introspection document posted along
// with the request. A host name records the result for later validation.
func (env *Environ) Derive(rw http.ResponseWriter, req *http.Request) {
	mode := compute.NewMode(mux.Vars(req)["mode"])
	body := deriveRequest{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		env.error(rw, req, err, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(body.Request) == 0 {
		body.Request = json.RawMessage("{}")
	}
	request, err := compute.ParseRequest(mode, body.Request)
	if err != nil {
		env.error(rw, req, err, "invalid request", errorStatus(err))
		return
	}
	if len(body.Introspection) == 0 {
		env.error(rw, req, nil, "introspection data is missing", http.StatusBadRequest)
		return
	}
	facts, err := compute.ParseIntrospection(body.Introspection)
	if err != nil {
		env.error(rw, req, err, "invalid introspection data", errorStatus(err))
		return
	}
	derivation, err := compute.Derive(facts, request, env.options)
	if err != nil {
		env.error(rw, req, err, "derivation failed", errorStatus(err))
		return
	}

	response := deriveResponse{
		Mode:       mode.String(),
		NumaNodes:  derivation.NumaNodes,
		DpdkNics:   []nicResponse{},
		Parameters: output.Document(derivation.Parameters, env.names),
	}
	for _, nic := range derivation.DpdkNics {
		response.DpdkNics = append(response.DpdkNics, nicResponse{nic.NicId, nic.ResolvedName, nic.NumaNode, nic.Mtu})
	}
	if body.Host != "" && env.storage != nil {
		if err := env.storage.Save(body.Host, derivation.Parameters); err != nil {
			env.error(rw, req, err, "cannot record parameters", http.StatusInternalServerError)
			return
		}
		response.Recorded = true
	}
	env.logger.Info().Str("mode", mode.String()).Str("host", body.Host).Msg("parameters derived")
	if err := env.render.JSON(rw, http.StatusOK, response); err != nil {
		env.error(rw, req, err, "failed to render response", http.StatusInternalServerError)
	}
}

func (env *Environ) ParameterSetDetail(rw http.ResponseWriter, req *http.Request) {
	if env.storage == nil {
		env.error(rw, req, nil, "parameter recording is disabled", http.StatusNotFound)
		return
	}
	urlvars := mux.Vars(req)
	params, err := env.storage.Get(urlvars["host"], compute.NewMode(urlvars["mode"]))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, filesystem.ErrParameterSetNotFound) {
			status = http.StatusNotFound
		}
		env.error(rw, req, err, "cannot get recorded parameters", status)
		return
	}
	if err := env.render.JSON(rw, http.StatusOK, output.Document(params, env.names)); err != nil {
		env.error(rw, req, err, "failed to render response", http.StatusInternalServerError)
	}
}
