/*
handlers_test.go - HTTP-level tests for the allowance service

Tests for:
- Trip/leg/meal CRUD round trips
- Allowance computation over stored trips
- Stateless preview computation
- Rate upserts and validation
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/allowance-engine/api"
	"github.com/warp/allowance-engine/rates"
	"github.com/warp/allowance-engine/store/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SeedRates(context.Background(), rates.StatutoryRates()))

	server := httptest.NewServer(api.NewRouter(api.NewHandler(store)))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// =============================================================================
// TRIP CRUD
// =============================================================================

func TestCreateAndGetTrip(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/trips", map[string]string{
		"name":       "Messe München",
		"start_date": "2025-03-10",
		"end_date":   "2025-03-10",
		"start_time": "08:00",
		"end_time":   "20:00",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[map[string]any](t, resp)
	require.NotEmpty(t, created["id"])

	resp = doJSON(t, http.MethodGet, server.URL+"/api/trips/"+created["id"].(string), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[map[string]any](t, resp)
	assert.Equal(t, "Messe München", got["name"])
	assert.Equal(t, "2025-03-10", got["start_date"])
}

func TestCreateTrip_InvertedDates_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/trips", map[string]string{
		"start_date": "2025-03-10",
		"end_date":   "2025-03-08",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetTrip_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/trips/missing", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReplaceLegs_OutsideTripSpan_Rejected(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/trips", map[string]string{
		"start_date": "2025-03-10",
		"end_date":   "2025-03-11",
	})
	created := decode[map[string]any](t, resp)
	tripID := created["id"].(string)

	resp = doJSON(t, http.MethodPut, server.URL+"/api/trips/"+tripID+"/legs", map[string]any{
		"legs": []map[string]any{
			{"date": "2025-04-01", "trip_type": "domestic"},
		},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// ALLOWANCE OVER STORED TRIPS
// =============================================================================

func TestStoredTripAllowance_EndToEnd(t *testing.T) {
	server := newTestServer(t)

	// Single-day domestic trip, 08:00-20:00, no meals: partial rate 14.00.
	resp := doJSON(t, http.MethodPost, server.URL+"/api/trips", map[string]string{
		"name":       "Tagestermin",
		"start_date": "2025-03-10",
		"end_date":   "2025-03-10",
		"start_time": "08:00",
		"end_time":   "20:00",
	})
	created := decode[map[string]any](t, resp)
	tripID := created["id"].(string)

	resp = doJSON(t, http.MethodPut, server.URL+"/api/trips/"+tripID+"/legs", map[string]any{
		"legs": []map[string]any{
			{"date": "2025-03-10", "trip_type": "domestic"},
		},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/trips/"+tripID+"/allowance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[api.TripSummaryDTO](t, resp)

	require.Len(t, summary.Days, 1)
	assert.Equal(t, 12.0, summary.Days[0].StayHours)
	assert.Equal(t, "DE", summary.Days[0].BaseCountryCode)
	assert.Equal(t, "14.00", summary.Days[0].FinalAllowance)
	assert.Equal(t, "14.00", summary.Total)
	assert.Empty(t, summary.Warnings)
}

func TestStoredTripAllowance_MealsReduceTotal(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/trips", map[string]string{
		"start_date": "2025-03-10",
		"end_date":   "2025-03-10",
		"start_time": "08:00",
		"end_time":   "20:00",
	})
	created := decode[map[string]any](t, resp)
	tripID := created["id"].(string)

	resp = doJSON(t, http.MethodPut, server.URL+"/api/trips/"+tripID+"/legs", map[string]any{
		"legs": []map[string]any{{"date": "2025-03-10", "trip_type": "domestic"}},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Breakfast provided: deduction 20% of 14.00 = 2.80.
	resp = doJSON(t, http.MethodPut, server.URL+"/api/trips/"+tripID+"/meals", map[string]any{
		"records": []map[string]any{
			{"date": "2025-03-10", "breakfast": true},
		},
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/trips/"+tripID+"/allowance", nil)
	summary := decode[api.TripSummaryDTO](t, resp)

	require.Len(t, summary.Days, 1)
	assert.Equal(t, "2.80", summary.Days[0].DeductionAmount)
	assert.Equal(t, "11.20", summary.Days[0].FinalAllowance)
	assert.True(t, summary.Days[0].Meals.Breakfast)
}

// =============================================================================
// PREVIEW
// =============================================================================

func TestPreviewAllowance_InternationalFirstDay(t *testing.T) {
	server := newTestServer(t)

	// First day of a France trip, departing 14:00: 10 hours, partial
	// bracket, reduced to 80% of FR partial (36 * 0.8 = 28.80).
	resp := doJSON(t, http.MethodPost, server.URL+"/api/allowance/preview", map[string]any{
		"trip": map[string]string{
			"start_date": "2025-06-02",
			"end_date":   "2025-06-04",
			"start_time": "14:00",
			"end_time":   "18:00",
		},
		"legs": []map[string]any{
			{"date": "2025-06-02", "trip_type": "international", "departure_country": "DE", "arrival_country": "FR"},
			{"date": "2025-06-03", "trip_type": "international", "departure_country": "FR", "arrival_country": "FR"},
			{"date": "2025-06-04", "trip_type": "international", "departure_country": "FR", "arrival_country": "DE"},
		},
		"meals": []map[string]any{},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[api.TripSummaryDTO](t, resp)

	require.Len(t, summary.Days, 3)
	assert.Equal(t, "28.80", summary.Days[0].BaseAmount)
	assert.Equal(t, "53.00", summary.Days[1].FinalAllowance, "middle day uses the unreduced FR full-day rate")
	assert.Empty(t, summary.Warnings)
}

func TestPreviewAllowance_InvalidBounds_BadRequest(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/allowance/preview", map[string]any{
		"trip": map[string]string{
			"start_date": "2025-06-04",
			"end_date":   "2025-06-02",
		},
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// RATES
// =============================================================================

func TestRates_UpsertAndGet(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPut, server.URL+"/api/rates/XX", map[string]string{
		"full_day":    "45.00",
		"partial_day": "30.00",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, server.URL+"/api/rates/XX", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rate := decode[api.RateDTO](t, resp)
	assert.Equal(t, "45.00", rate.FullDay)
	assert.Equal(t, "30.00", rate.PartialDay)
}

func TestRates_NegativeAmount_Rejected(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodPut, server.URL+"/api/rates/XX", map[string]string{
		"full_day":    "-1",
		"partial_day": "30.00",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRates_GetUnknown_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/rates/ZZ", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
