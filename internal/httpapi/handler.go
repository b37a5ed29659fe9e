// Package httpapi translates HTTP requests to and from the event
// service and maps the domain error taxonomy to status codes.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventcore/internal/core"
	"eventcore/internal/infra/blob"
	"eventcore/internal/partial"
	"eventcore/pkg/domain"
)

// Handler holds the HTTP handlers of the import and fee API.
type Handler struct {
	svc    *core.Service
	logger core.Logger
}

// NewRouter builds the chi router serving the API.
func NewRouter(svc *core.Service, logger core.Logger) chi.Router {
	h := &Handler{svc: svc, logger: logger}
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Post("/partial-import", h.PartialImport)
		r.Get("/registrations/{registrationID}/fee", h.RegistrationFee)
		r.Get("/imports", h.ListImports)
	})
	return r
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		notFound    domain.NotFoundError
		version     domain.VersionMismatchError
		integrity   domain.ReferentialIntegrityError
		constraint  domain.ConstraintViolationError
		validation  domain.ValidationError
		stale       domain.StaleTokenError
		concurrency domain.ConcurrencyError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &version):
		return http.StatusBadRequest
	case errors.As(err, &integrity), errors.As(err, &constraint), errors.As(err, &validation):
		return http.StatusConflict
	case errors.As(err, &stale):
		return http.StatusPreconditionFailed
	case errors.As(err, &concurrency):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PartialImport handles POST /events/{eventID}/partial-import. The body
// is the JSON delta; ?dry_run=true previews, ?token=<tok> asserts the
// previewed transaction token.
func (h *Handler) PartialImport(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 8<<20)
	var delta partial.Delta
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&delta); err != nil {
		writeError(w, http.StatusBadRequest, "invalid delta payload: "+err.Error())
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"
	token := r.URL.Query().Get("token")

	result, err := h.svc.PartialImport(r.Context(), eventID, delta, token, dryRun)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	status := http.StatusOK
	if !dryRun {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// RegistrationFee handles GET /events/{eventID}/registrations/{id}/fee.
func (h *Handler) RegistrationFee(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}
	registrationID, err := pathID(r, "registrationID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid registration ID")
		return
	}
	owed, err := h.svc.CalculateFee(r.Context(), eventID, registrationID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"amount_owed": owed.String()})
}

// ListImports handles GET /events/{eventID}/imports.
func (h *Handler) ListImports(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathID(r, "eventID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event ID")
		return
	}
	infos, err := h.svc.ListArchivedImports(r.Context(), eventID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	if infos == nil {
		infos = []blob.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}
