/*
handlers.go - HTTP API handlers for the travel allowance service

PURPOSE:
  Exposes trip/leg/meal CRUD and the allowance computation via REST.
  Handles HTTP request/response and JSON serialization, and delegates the
  math to the allowance engine.

ENDPOINTS:
  Trips:
    GET    /api/trips                   List trips
    POST   /api/trips                   Create trip
    GET    /api/trips/{id}              Get trip
    DELETE /api/trips/{id}              Delete trip (cascades)
    GET    /api/trips/{id}/legs         Get leg schedule
    PUT    /api/trips/{id}/legs         Replace leg schedule
    GET    /api/trips/{id}/meals        Get hospitality records
    PUT    /api/trips/{id}/meals        Replace hospitality records
    GET    /api/trips/{id}/allowance    Compute the trip's allowance

  Allowance:
    POST   /api/allowance/preview       Stateless compute from the body

  Rates:
    GET    /api/rates                   List country rates
    GET    /api/rates/{code}            Get one country's rate
    PUT    /api/rates/{code}            Upsert one country's rate

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, invalid trip bounds
  - 404: Trip or rate not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/rates"
	"github.com/warp/allowance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store  *sqlite.Store
	Rates  *rates.Table
	Engine *allowance.Engine
}

// NewHandler creates a handler whose rate table is backed by the store.
func NewHandler(store *sqlite.Store) *Handler {
	table := rates.NewTable(store)
	return &Handler{
		Store:  store,
		Rates:  table,
		Engine: &allowance.Engine{Rates: table},
	}
}

// =============================================================================
// TRIPS
// =============================================================================

func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.Store.ListTrips(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list trips", err)
		return
	}

	dtos := make([]TripDTO, 0, len(trips))
	for _, t := range trips {
		dtos = append(dtos, toTripDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req CreateTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	record, err := tripRecordFromRequest(uuid.NewString(), req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trip", err)
		return
	}

	if err := h.Store.SaveTrip(r.Context(), record); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save trip", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTripDTO(record))
}

func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, err := h.Store.GetTrip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trip", err)
		return
	}
	if trip == nil {
		writeError(w, http.StatusNotFound, "trip not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTripDTO(*trip))
}

func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteTrip(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete trip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tripRecordFromRequest(id string, req CreateTripRequest) (sqlite.TripRecord, error) {
	start, err := allowance.ParseDay(req.StartDate)
	if err != nil {
		return sqlite.TripRecord{}, err
	}
	end, err := allowance.ParseDay(req.EndDate)
	if err != nil {
		return sqlite.TripRecord{}, err
	}
	if end.Before(start) {
		return sqlite.TripRecord{}, &allowance.TripBoundsError{
			StartDate: start, EndDate: end, Reason: "end date before start date",
		}
	}
	return sqlite.TripRecord{
		ID:        id,
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, nil
}

// =============================================================================
// LEGS
// =============================================================================

func (h *Handler) GetLegs(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	records, err := h.Store.ListLegs(r.Context(), tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list legs", err)
		return
	}

	dtos := make([]LegDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toLegDTO(rec.Leg))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ReplaceLegs(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	trip, err := h.Store.GetTrip(r.Context(), tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trip", err)
		return
	}
	if trip == nil {
		writeError(w, http.StatusNotFound, "trip not found", nil)
		return
	}

	var req ReplaceLegsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	records := make([]sqlite.LegRecord, 0, len(req.Legs))
	for _, dto := range req.Legs {
		leg, err := dto.toLeg()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid leg", err)
			return
		}
		if leg.Date.Before(trip.StartDate) || leg.Date.After(trip.EndDate) {
			writeError(w, http.StatusBadRequest, "leg date outside trip span", nil)
			return
		}
		records = append(records, sqlite.LegRecord{
			ID:     uuid.NewString(),
			TripID: tripID,
			Leg:    leg,
		})
	}

	if err := h.Store.ReplaceLegs(r.Context(), tripID, records); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save legs", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// MEAL RECORDS
// =============================================================================

func (h *Handler) GetMeals(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")
	rows, err := h.Store.ListMealRecords(r.Context(), tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list meal records", err)
		return
	}

	dtos := make([]MealRecordDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, MealRecordDTO{
			Date:      row.Record.Date.String(),
			Breakfast: row.Record.Meals.Breakfast,
			Lunch:     row.Record.Meals.Lunch,
			Dinner:    row.Record.Meals.Dinner,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ReplaceMeals(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	trip, err := h.Store.GetTrip(r.Context(), tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trip", err)
		return
	}
	if trip == nil {
		writeError(w, http.StatusNotFound, "trip not found", nil)
		return
	}

	var req ReplaceMealsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	rows := make([]sqlite.MealRecordRow, 0, len(req.Records))
	for _, dto := range req.Records {
		record, err := dto.toRecord()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid meal record", err)
			return
		}
		rows = append(rows, sqlite.MealRecordRow{
			ID:     uuid.NewString(),
			TripID: tripID,
			Record: record,
		})
	}

	if err := h.Store.ReplaceMealRecords(r.Context(), tripID, rows); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save meal records", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ALLOWANCE
// =============================================================================

// GetAllowance computes the stored trip's full allowance summary.
func (h *Handler) GetAllowance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tripID := chi.URLParam(r, "id")

	trip, err := h.Store.GetTrip(ctx, tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trip", err)
		return
	}
	if trip == nil {
		writeError(w, http.StatusNotFound, "trip not found", nil)
		return
	}

	legsByDate, err := h.Store.LegsByDate(ctx, tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load legs", err)
		return
	}
	mealsByDate, err := h.Store.MealsByDate(ctx, tripID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load meal records", err)
		return
	}

	summary, err := h.Engine.ComputeTripAllowance(ctx, trip.ToTrip(), legsByDate, mealsByDate)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, allowance.ErrMissingTripBounds) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "failed to compute allowance", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// PreviewAllowance computes an allowance summary from an unsaved trip in
// the request body. Nothing is persisted.
func (h *Handler) PreviewAllowance(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	record, err := tripRecordFromRequest("preview", req.Trip)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid trip", err)
		return
	}

	legsByDate := make(map[allowance.Day][]allowance.Leg)
	for _, dto := range req.Legs {
		leg, err := dto.toLeg()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid leg", err)
			return
		}
		legsByDate[leg.Date] = append(legsByDate[leg.Date], leg)
	}

	records := make([]allowance.MealRecord, 0, len(req.Meals))
	for _, dto := range req.Meals {
		rec, err := dto.toRecord()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid meal record", err)
			return
		}
		records = append(records, rec)
	}

	summary, err := h.Engine.ComputeTripAllowance(r.Context(), record.ToTrip(), legsByDate, allowance.ReduceMeals(records))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, allowance.ErrMissingTripBounds) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "failed to compute allowance", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// RATES
// =============================================================================

func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	all, err := h.Store.ListRates(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list rates", err)
		return
	}

	dtos := make([]RateDTO, 0, len(all))
	for _, rate := range all {
		dtos = append(dtos, toRateDTO(rate))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	rate, err := h.Store.GetRate(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rate", err)
		return
	}
	if rate == nil {
		writeError(w, http.StatusNotFound, "no rate for country "+code, nil)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(*rate))
}

func (h *Handler) UpsertRate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req UpsertRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	fullDay, err := decimal.NewFromString(req.FullDay)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid full-day amount", err)
		return
	}
	partialDay, err := decimal.NewFromString(req.PartialDay)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid partial-day amount", err)
		return
	}
	if fullDay.IsNegative() || partialDay.IsNegative() {
		writeError(w, http.StatusBadRequest, "rate amounts must not be negative", nil)
		return
	}

	rate := allowance.CountryRate{CountryCode: code, FullDay: fullDay, PartialDay: partialDay}
	if err := h.Store.UpsertRate(r.Context(), rate); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save rate", err)
		return
	}
	writeJSON(w, http.StatusOK, toRateDTO(rate))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]string{"error": message}
	if err != nil {
		body["detail"] = err.Error()
	}
	writeJSON(w, status, body)
}
