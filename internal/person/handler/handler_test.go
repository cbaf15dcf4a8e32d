package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/person/models"
	"civreg/internal/person/policy"
	"civreg/internal/person/service"
	"civreg/internal/person/store"
	id "civreg/pkg/domain"
	"civreg/pkg/requestcontext"
)

type seqIDs struct{ n int }

func (a *seqIDs) NextID() string {
	a.n++
	return fmt.Sprintf("hid-%03d", a.n)
}

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	engine := service.New(service.Stores{
		Records:     store.NewMemoryRecords(),
		Approvals:   store.NewMemoryApprovals(),
		Indexes:     store.NewMemoryIndexes(),
		Catchments:  store.NewMemoryMappings(),
		ApprovalMap: store.NewMemoryMappings(),
	}, policy.Default(), &seqIDs{})

	router := chi.NewRouter()
	router.Use(testContext)
	New(engine, slog.Default(), 25).Register(router)
	return router
}

// testContext plays the part of the auth and request-time middleware chain.
func testContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithRequester(r.Context(), id.Requester{FacilityID: "f-100"})
		ctx = requestcontext.WithCatchmentAuthority(ctx, []string{"1020"})
		ctx = requestcontext.WithTime(ctx, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func createPatient(t *testing.T, router chi.Router) string {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/api/v1/patients", map[string]any{
		"nid":        "1234567890123",
		"given_name": "Rahim",
		"gender":     "M",
		"present_address": map[string]string{
			"division_id": "10", "district_id": "20", "upazila_id": "30",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		HID string `json:"hid"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.HID)
	return resp.HID
}

func TestCreateAndFetchPatient(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/patients/"+hid, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var person models.Person
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&person))
	assert.Equal(t, hid, person.HealthID)
	assert.Equal(t, "Rahim", person.GivenName)
}

func TestCreateSetsLocationHeader(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/patients", map[string]any{"given_name": "X"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "/api/v1/patients/"))
}

func TestFetchUnknownPatient(t *testing.T) {
	router := newRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/api/v1/patients/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMalformedBody(t *testing.T) {
	router := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchByIdentifier(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	t.Run("by nid", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/patients?nid=1234567890123", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var person models.Person
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&person))
		assert.Equal(t, hid, person.HealthID)
	})

	t.Run("by name within catchment", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet,
			"/api/v1/patients?given_name=Rahim&division_id=10&district_id=20&upazila_id=30", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var person models.Person
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&person))
		assert.Equal(t, hid, person.HealthID)
	})

	t.Run("name search without full location", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/patients?given_name=Rahim&division_id=10", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("no identifier at all", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/patients", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("unknown identifier value", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/patients?nid=0000000000000", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateDirectAndPending(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid, map[string]any{
		"occupation": "teacher",
		"gender":     "F",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var person models.Person
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&person))
	assert.Equal(t, "teacher", person.Occupation)
	assert.Equal(t, "M", person.Gender, "approval field stays at its canonical value")

	pending := doJSON(t, router, http.MethodGet, "/api/v1/patients/"+hid+"/approvals", nil)
	require.Equal(t, http.StatusOK, pending.Code)

	var set models.PendingApprovalSet
	require.NoError(t, json.NewDecoder(pending.Body).Decode(&set))
	require.NotNil(t, set.Get(models.FieldGender))
	assert.Equal(t, "F", set.Get(models.FieldGender).Details[0].Value)
}

func TestUpdateUnknownField(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid, map[string]any{"hid": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAcceptPendingApproval(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid, map[string]any{"gender": "F"})
	require.Equal(t, http.StatusOK, rec.Code)

	accept := doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid+"/approvals/gender",
		map[string]any{"value": "F"})
	require.Equal(t, http.StatusOK, accept.Code, accept.Body.String())

	fetched := doJSON(t, router, http.MethodGet, "/api/v1/patients/"+hid, nil)
	var person models.Person
	require.NoError(t, json.NewDecoder(fetched.Body).Decode(&person))
	assert.Equal(t, "F", person.Gender)
}

func TestRejectPendingApproval(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid, map[string]any{"gender": "F"})

	reject := doJSON(t, router, http.MethodDelete, "/api/v1/patients/"+hid+"/approvals/gender",
		map[string]any{"value": "F"})
	require.Equal(t, http.StatusOK, reject.Code, reject.Body.String())

	fetched := doJSON(t, router, http.MethodGet, "/api/v1/patients/"+hid, nil)
	var person models.Person
	require.NoError(t, json.NewDecoder(fetched.Body).Decode(&person))
	assert.Equal(t, "M", person.Gender)
}

func TestResolveValueMismatch(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid, map[string]any{"gender": "F"})

	accept := doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid+"/approvals/gender",
		map[string]any{"value": "X"})
	assert.Equal(t, http.StatusNotFound, accept.Code)
}

func TestResolveBlockValue(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	update := doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid, map[string]any{
		"phone_number": map[string]string{"country_code": "880", "number": "1712345678"},
	})
	require.Equal(t, http.StatusOK, update.Code)

	accept := doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid+"/approvals/phone_number",
		map[string]any{"value": map[string]string{"country_code": "880", "number": "1712345678"}})
	require.Equal(t, http.StatusOK, accept.Code, accept.Body.String())

	fetched := doJSON(t, router, http.MethodGet, "/api/v1/patients/"+hid, nil)
	var person models.Person
	require.NoError(t, json.NewDecoder(fetched.Body).Decode(&person))
	assert.Equal(t, "1712345678", person.PhoneNumber.Number)
}

func TestCatchmentListing(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)

	t.Run("lists the record", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/catchments/1020/patients", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Results    []models.Person `json:"results"`
			LastMarker string          `json:"last_marker"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, hid, resp.Results[0].HealthID)
		assert.NotEmpty(t, resp.LastMarker)
	})

	t.Run("marker pages past the record", func(t *testing.T) {
		first := doJSON(t, router, http.MethodGet, "/api/v1/catchments/1020/patients", nil)
		var resp struct {
			LastMarker string `json:"last_marker"`
		}
		require.NoError(t, json.NewDecoder(first.Body).Decode(&resp))

		next := doJSON(t, router, http.MethodGet,
			"/api/v1/catchments/1020/patients?last_marker="+resp.LastMarker, nil)
		require.Equal(t, http.StatusOK, next.Code)
		var page struct {
			Results []models.Person `json:"results"`
		}
		require.NoError(t, json.NewDecoder(next.Body).Decode(&page))
		assert.Empty(t, page.Results)
	})

	t.Run("bad since parameter", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/v1/catchments/1020/patients?since=yesterday", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})
}

func TestCatchmentApprovalInbox(t *testing.T) {
	router := newRouter(t)
	hid := createPatient(t, router)
	doJSON(t, router, http.MethodPut, "/api/v1/patients/"+hid, map[string]any{"gender": "F"})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/catchments/1020/approvals", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []service.PendingSummary `json:"results"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, hid, resp.Results[0].HealthID)
	assert.Equal(t, []string{models.FieldGender}, resp.Results[0].Fields)
}
