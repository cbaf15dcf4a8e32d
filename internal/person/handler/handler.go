// Package handler is the thin HTTP layer over the registry engine. It
// delegates to the service without embedding business logic so transport
// concerns remain isolated.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"civreg/internal/person/approve"
	"civreg/internal/person/index"
	"civreg/internal/person/models"
	"civreg/internal/person/service"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/platform/httputil"
	"civreg/pkg/requestcontext"
)

// Service defines the engine operations the handler consumes.
type Service interface {
	Create(ctx context.Context, p *models.Person) (string, error)
	Update(ctx context.Context, healthID string, fields map[string]any) (*models.Person, error)
	ResolvePending(ctx context.Context, healthID, field string, decision approve.Decision, value any) (*models.Person, error)
	FindByHealthID(ctx context.Context, healthID string) (*models.Person, error)
	FindByIdentifier(ctx context.Context, kind index.Kind, value string) (*models.Person, error)
	FindByCatchment(ctx context.Context, catchmentID string, since time.Time, after int64, limit int) (*service.CatchmentPage, error)
	ListPendingApprovals(ctx context.Context, catchmentID string, after, before int64, limit int) ([]service.PendingSummary, error)
	PendingApprovals(ctx context.Context, healthID string) (models.PendingApprovalSet, error)
}

// Handler wires registry endpoints to the engine.
type Handler struct {
	service  Service
	logger   *slog.Logger
	pageSize int
}

func New(service Service, logger *slog.Logger, pageSize int) *Handler {
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Handler{service: service, logger: logger, pageSize: pageSize}
}

// Register mounts the registry endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/patients", h.handleCreate)
		r.Get("/patients", h.handleFindByIdentifier)
		r.Get("/patients/{healthID}", h.handleFind)
		r.Put("/patients/{healthID}", h.handleUpdate)
		r.Get("/patients/{healthID}/approvals", h.handlePendingForRecord)
		r.Put("/patients/{healthID}/approvals/{field}", h.handleAccept)
		r.Delete("/patients/{healthID}/approvals/{field}", h.handleReject)
		r.Get("/catchments/{catchmentID}/patients", h.handleCatchment)
		r.Get("/catchments/{catchmentID}/approvals", h.handleCatchmentApprovals)
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	person, ok := httputil.DecodeAndPrepare[models.Person](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	healthID, err := h.service.Create(ctx, &person)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/patients/"+healthID)
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"hid": healthID})
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	person, err := h.service.FindByHealthID(r.Context(), chi.URLParam(r, "healthID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

// queryKinds maps query parameters to identifier index kinds.
var queryKinds = map[string]index.Kind{
	"nid":            index.KindNationalID,
	"bin_brn":        index.KindBirthRegistration,
	"uid":            index.KindUID,
	"household_code": index.KindHouseholdCode,
	"phone_no":       index.KindPhoneNumber,
}

func (h *Handler) handleFindByIdentifier(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for param, kind := range queryKinds {
		if value := q.Get(param); value != "" {
			person, err := h.service.FindByIdentifier(r.Context(), kind, value)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			httputil.WriteJSON(w, http.StatusOK, person)
			return
		}
	}
	if given := q.Get("given_name"); given != "" {
		key := nameLocationKey(q.Get("division_id"), q.Get("district_id"), q.Get("upazila_id"), given, q.Get("sur_name"))
		if key == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput,
				"name search requires division_id, district_id, and upazila_id"))
			return
		}
		person, err := h.service.FindByIdentifier(r.Context(), index.KindNameLocation, key)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, person)
		return
	}
	httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "no search identifier supplied"))
}

// nameLocationKey mirrors the compound key the index maintainer derives.
func nameLocationKey(division, district, upazila, given, sur string) string {
	if division == "" || district == "" || upazila == "" {
		return ""
	}
	key := division + district + upazila + ":" + strings.ToLower(strings.TrimSpace(given))
	if sur != "" {
		key += ":" + strings.ToLower(strings.TrimSpace(sur))
	}
	return key
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw, ok := httputil.DecodeAndPrepare[map[string]json.RawMessage](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	fields := make(map[string]any, len(raw))
	for name, value := range raw {
		decoded, err := models.DecodeValue(name, value)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		fields[name] = decoded
	}

	person, err := h.service.Update(ctx, chi.URLParam(r, "healthID"), fields)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, person)
}

func (h *Handler) handlePendingForRecord(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.PendingApprovals(r.Context(), chi.URLParam(r, "healthID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, set)
}

// resolveRequest restates the value being accepted or rejected.
type resolveRequest struct {
	Value json.RawMessage `json:"value"`
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, approve.Accept)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, approve.Reject)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, decision approve.Decision) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	field := chi.URLParam(r, "field")

	req, ok := httputil.DecodeAndPrepare[resolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	value, err := models.DecodeValue(field, req.Value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	person, err := h.service.ResolvePending(ctx, chi.URLParam(r, "healthID"), field, decision, value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"hid": person.HealthID})
}

func (h *Handler) handleCatchment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since time.Time
	if raw := q.Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "since must be RFC3339"))
			return
		}
		since = parsed
	}
	after := parseMarker(q.Get("last_marker"))

	page, err := h.service.FindByCatchment(r.Context(), chi.URLParam(r, "catchmentID"), since, after, h.pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := map[string]any{"results": page.Records}
	if page.LastMarker > 0 {
		resp["last_marker"] = strconv.FormatInt(page.LastMarker, 10)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCatchmentApprovals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	after := parseMarker(q.Get("after"))
	before := parseMarker(q.Get("before"))

	summaries, err := h.service.ListPendingApprovals(r.Context(), chi.URLParam(r, "catchmentID"), after, before, h.pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": summaries})
}

func parseMarker(raw string) int64 {
	if raw == "" {
		return 0
	}
	marker, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return marker
}
