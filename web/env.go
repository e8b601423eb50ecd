package web

import (
	"errors"
	"net/http"

	"nfvpe/derive-params/compute"
	"nfvpe/derive-params/config"
	"nfvpe/derive-params/cpulist"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/unrolled/render"
)

var AppVersion string

// ParameterSetStorage keeps derivations recorded through the api.
type ParameterSetStorage interface {
	Get(host string, mode compute.Mode) (*compute.ParameterSet, error)
	Save(host string, params *compute.ParameterSet) error
}

type Environ struct {
	render  *render.Render
	logger  zerolog.Logger
	router  *mux.Router
	options compute.Options
	names   compute.ParameterNames
	storage ParameterSetStorage
	cfg     *config.WebConfig
}

func New(cfg *config.Config, logger zerolog.Logger, storage ParameterSetStorage) (http.Handler, error) {
	names, err := compute.NewParameterNames(cfg.ParameterNames)
	if err != nil {
		return nil, err
	}
	env := &Environ{
		cfg:     &cfg.Web,
		logger:  logger,
		router:  mux.NewRouter(),
		options: cfg.ComputeOptions(),
		names:   names,
		storage: storage,
		render: render.New(render.Options{
			IsDevelopment: cfg.Web.Debug,
			IndentJSON:    true,
		}),
	}

	api := env.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", env.Health).Methods("GET").Name("health")
	api.HandleFunc("/derive/{mode:dpdk|sriov}", env.Derive).Methods("POST").Name("derive")
	api.HandleFunc("/parameters/{mode:dpdk|sriov}/{host}", env.ParameterSetDetail).Methods("GET").Name("parameter-set-detail")
	return env, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

// errorStatus maps derivation failures to http statuses: bad input is the
// caller's fault, unusable hardware data cannot be processed.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, compute.ErrInvalidUserInput),
		errors.Is(err, compute.ErrInvalidDpdkNic),
		errors.Is(err, cpulist.ErrInvalidRangeToken):
		return http.StatusBadRequest
	case errors.Is(err, compute.ErrMissingTopologyData),
		errors.Is(err, compute.ErrNoActiveInterfaces),
		errors.Is(err, compute.ErrUnsupportedHugepageSize):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (env *Environ) error(rw http.ResponseWriter, req *http.Request, err error, message string, status int) {
	if err != nil {
		env.logger.Warn().Int("Status", status).Str("path", req.URL.Path).Err(err).Msg("request error occured")
		message = message + ": " + err.Error()
	}
	if err := env.render.JSON(rw, status, errorResponse{Error: message}); err != nil {
		http.Error(rw, "failed to render response", http.StatusInternalServerError)
	}
}

func (env *Environ) ServeHTTP(w http.ResponseWriter, request *http.Request) {
	env.router.ServeHTTP(w, request)
}
