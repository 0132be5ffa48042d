package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"

	"github.com/barneyonline/core/internal/core"
	"github.com/barneyonline/core/internal/hub"
)

const maxBodyBytes = 1 << 20

// Options wires the HTTP surface.
type Options struct {
	Hub        *hub.Hub
	Plugins    []core.Plugin
	Metrics    *prometheus.Registry
	Dashboards map[string][]byte
	Events     *EventStream
	Logger     *slog.Logger
}

// NewRouter builds the HTTP handler: health, metrics, dashboards and, when a
// hub is given, the REST API under /api.
func NewRouter(opts Options) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", HealthHandler).Methods("GET")
	r.Handle("/health/plugins", PluginHealthHandler(opts.Plugins)).Methods("GET")
	if opts.Metrics != nil {
		r.Handle("/metrics", MetricsHandler(opts.Metrics)).Methods("GET")
	}
	r.PathPrefix("/dashboards/").Handler(DashboardsHandler("/dashboards/", opts.Dashboards)).Methods("GET")

	if opts.Hub == nil {
		return r
	}
	a := &apiController{hub: opts.Hub, logger: opts.Logger}
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/states", a.listStates).Methods("GET")
	api.HandleFunc("/states/{entity_id}", a.getState).Methods("GET")
	api.HandleFunc("/services", a.listServices).Methods("GET")
	api.HandleFunc("/services/{domain}/{service}", a.callService).Methods("POST")
	api.HandleFunc("/devices", a.listDevices).Methods("GET")
	api.HandleFunc("/devices/{device_id}/actions", a.listDeviceActions).Methods("GET")
	api.HandleFunc("/devices/{device_id}/actions", a.callDeviceAction).Methods("POST")
	if opts.Events != nil {
		api.Handle("/websocket", opts.Events).Methods("GET")
	}
	return r
}

type apiController struct {
	hub    *hub.Hub
	logger *slog.Logger
}

type apiError struct {
	Message string `json:"message"`
}

func (a *apiController) listStates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.hub.States.All(r.URL.Query().Get("domain")))
}

func (a *apiController) getState(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["entity_id"]
	st, ok := a.hub.States.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, apiError{Message: "Entity not found."})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *apiController) listServices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.hub.Services.Services())
}

type callResult struct {
	ContextID string `json:"context_id"`
}

// callService runs a service with the JSON object body as service data.
// ?blocking=false returns once the call is scheduled.
func (a *apiController) callService(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	data, ok := a.readObject(w, r)
	if !ok {
		return
	}

	var callOpts []hub.CallOption
	if r.URL.Query().Get("blocking") == "false" {
		callOpts = append(callOpts, hub.NonBlocking())
	}
	callCtx, err := a.hub.Services.Call(r.Context(), vars["domain"], vars["service"], data, callOpts...)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callResult{ContextID: callCtx.ID})
}

type deviceView struct {
	hub.Device
	Entities []string `json:"entities"`
}

func (a *apiController) listDevices(w http.ResponseWriter, _ *http.Request) {
	devices := a.hub.Devices.List()
	out := make([]deviceView, 0, len(devices))
	for _, dev := range devices {
		view := deviceView{Device: dev, Entities: []string{}}
		for _, e := range a.hub.Entities.EntriesForDevice(dev.ID) {
			view.Entities = append(view.Entities, e.EntityID)
		}
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *apiController) listDeviceActions(w http.ResponseWriter, r *http.Request) {
	actions, err := a.hub.Actions.ListForDevice(r.Context(), mux.Vars(r)["device_id"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	if actions == nil {
		actions = []hub.ActionConfig{}
	}
	writeJSON(w, http.StatusOK, actions)
}

func (a *apiController) callDeviceAction(w http.ResponseWriter, r *http.Request) {
	data, ok := a.readObject(w, r)
	if !ok {
		return
	}
	action := hub.ActionConfig(data)
	action[hub.ActionDeviceID] = mux.Vars(r)["device_id"]

	callCtx := hub.NewContext()
	if err := a.hub.Actions.Call(r.Context(), action, nil, callCtx); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, callResult{ContextID: callCtx.ID})
}

// readObject decodes a JSON object body. An empty body is an empty object.
func (a *apiController) readObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Unable to read request body."})
		return nil, false
	}
	if len(body) == 0 {
		return map[string]any{}, true
	}
	if !gjson.ValidBytes(body) {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Data should be valid JSON."})
		return nil, false
	}
	result := gjson.ParseBytes(body)
	if !result.IsObject() {
		writeJSON(w, http.StatusBadRequest, apiError{Message: "Data should be a JSON object."})
		return nil, false
	}
	data, _ := result.Value().(map[string]any)
	return data, true
}

func (a *apiController) writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), apiError{Message: err.Error()})
	if a.logger != nil {
		a.logger.Debug("api request failed", "error", err)
	}
}

func httpStatus(err error) int {
	var userErr *hub.Error
	switch {
	case errors.Is(err, hub.ErrServiceNotFound),
		errors.Is(err, hub.ErrEntityNotFound),
		errors.Is(err, hub.ErrDeviceNotFound),
		errors.Is(err, hub.ErrNoActionHandler):
		return http.StatusNotFound
	case errors.Is(err, hub.ErrInvalidData), errors.As(err, &userErr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
