package api

import (
	"encoding/json"
	"net/http"

	"github.com/Riley94/multi-cloud-manager/internal/cloud"
	"github.com/Riley94/multi-cloud-manager/internal/logging"
	"github.com/go-chi/chi/v5"
)

// registerAPI mounts the uniform cloud operations. Every route funnels
// through the dispatcher; handlers only parse the request and render the
// OperationResult.
func registerAPI(r chi.Router, d *cloud.Dispatcher, logger logging.Logger) {
	h := &handlers{d: d, logger: logger}

	r.Get("/providers", h.providers)
	r.Route("/{provider}", func(r chi.Router) {
		r.Get("/instances", h.listInstances)
		r.Post("/instances", h.createInstance)
		r.Post("/instances/{id}", h.modifyInstance)
		r.Delete("/instances/{id}", h.deleteInstance)
		r.Get("/buckets", h.listBuckets)
		r.Post("/buckets", h.createBucket)
		r.Delete("/buckets/{name}", h.deleteBucket)
		r.Get("/images", h.listImages)
	})

	r.Get("/obs/metrics", metricsHandler)
	r.Get("/obs/operations", operationsHandler)
	r.Get("/obs/logs", logsHandler)
	r.Get("/trace/recent", traceRecent)
	r.Get("/trace/{id}", traceGet)
}

type handlers struct {
	d      *cloud.Dispatcher
	logger logging.Logger
}

type providerInfo struct {
	Name    string   `json:"name"`
	Regions []string `json:"regions"`
	Buckets bool     `json:"buckets"`
	Images  bool     `json:"images"`
}

func (h *handlers) providers(w http.ResponseWriter, r *http.Request) {
	var out []providerInfo
	for _, p := range h.d.Providers() {
		out = append(out, providerInfo{
			Name:    string(p),
			Regions: h.d.Regions(p),
			Buckets: h.d.Supports(p, cloud.ActionListBuckets),
			Images:  h.d.Supports(p, cloud.ActionListImages),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) listInstances(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, cloud.ActionListInstances, cloud.Params{Region: r.URL.Query().Get("region")})
}

type createInstanceRequest struct {
	Name        string            `json:"name"`
	Region      string            `json:"region"`
	MachineType string            `json:"machineType"`
	Image       string            `json:"image,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

func (h *handlers) createInstance(w http.ResponseWriter, r *http.Request) {
	var req createInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	h.dispatch(w, r, cloud.ActionCreateInstance, cloud.Params{
		Name:        req.Name,
		Region:      req.Region,
		MachineType: req.MachineType,
		Image:       req.Image,
		Labels:      req.Labels,
	})
}

type modifyInstanceRequest struct {
	Region      string            `json:"region"`
	PowerState  string            `json:"powerState,omitempty"`
	MachineType string            `json:"machineType,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (h *handlers) modifyInstance(w http.ResponseWriter, r *http.Request) {
	var req modifyInstanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	h.dispatch(w, r, cloud.ActionModifyInstance, cloud.Params{
		ID:          chi.URLParam(r, "id"),
		Region:      req.Region,
		PowerState:  req.PowerState,
		MachineType: req.MachineType,
		Labels:      req.Labels,
		Metadata:    req.Metadata,
	})
}

func (h *handlers) deleteInstance(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, cloud.ActionDeleteInstance, cloud.Params{
		ID:     chi.URLParam(r, "id"),
		Region: r.URL.Query().Get("region"),
	})
}

func (h *handlers) listBuckets(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, cloud.ActionListBuckets, cloud.Params{})
}

type createBucketRequest struct {
	Name string `json:"name"`
}

func (h *handlers) createBucket(w http.ResponseWriter, r *http.Request) {
	var req createBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	h.dispatch(w, r, cloud.ActionCreateBucket, cloud.Params{Name: req.Name})
}

func (h *handlers) deleteBucket(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, cloud.ActionDeleteBucket, cloud.Params{Name: chi.URLParam(r, "name")})
}

func (h *handlers) listImages(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, cloud.ActionListImages, cloud.Params{Region: r.URL.Query().Get("region")})
}

func (h *handlers) dispatch(w http.ResponseWriter, r *http.Request, action cloud.Action, p cloud.Params) {
	provider := cloud.Provider(chi.URLParam(r, "provider"))
	addEvent(r, "dispatch", map[string]any{"provider": string(provider), "action": string(action), "region": p.Region})
	res := h.d.Dispatch(r.Context(), provider, action, p)
	status := http.StatusOK
	if !res.Success {
		status = statusFor(res.Code)
		addEvent(r, "dispatch.failed", map[string]any{"code": string(res.Code), "message": res.Message})
	}
	writeJSON(w, status, res)
}

// statusFor maps the uniform error taxonomy onto HTTP status codes.
func statusFor(code cloud.Code) int {
	switch code {
	case cloud.CodeUnknownProvider, cloud.CodeNotFound:
		return http.StatusNotFound
	case cloud.CodeUnsupportedAction, cloud.CodeRegionInvalid, cloud.CodeInvalidSpec, cloud.CodeInvalidName:
		return http.StatusBadRequest
	case cloud.CodeResourceConflict, cloud.CodeNameTaken, cloud.CodeNotEmpty, cloud.CodeUnsupported:
		return http.StatusConflict
	case cloud.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	case cloud.CodeProviderUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
