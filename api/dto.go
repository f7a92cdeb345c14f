/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the
  internal domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

CONVENTIONS:
  Dates travel as "2006-01-02", times as "HH:MM", euro amounts as decimal
  strings ("28.00") so no client is tempted to do float math on money.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/store/sqlite"
)

// =============================================================================
// TRIPS
// =============================================================================

type TripDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

type CreateTripRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func toTripDTO(t sqlite.TripRecord) TripDTO {
	return TripDTO{
		ID:        t.ID,
		Name:      t.Name,
		StartDate: t.StartDate.String(),
		EndDate:   t.EndDate.String(),
		StartTime: t.StartTime,
		EndTime:   t.EndTime,
	}
}

// =============================================================================
// LEGS
// =============================================================================

type LegDTO struct {
	Date             string  `json:"date"`
	TripType         string  `json:"trip_type"` // "domestic", "international" or ""
	DepartureCountry string  `json:"departure_country,omitempty"`
	DepartureCity    string  `json:"departure_city,omitempty"`
	ArrivalCountry   string  `json:"arrival_country,omitempty"`
	ArrivalCity      string  `json:"arrival_city,omitempty"`
	StayHours        float64 `json:"stay_hours,omitempty"`
	FirstDayOfTrip   bool    `json:"first_day_of_trip,omitempty"`
	LastDayOfTrip    bool    `json:"last_day_of_trip,omitempty"`
}

type ReplaceLegsRequest struct {
	Legs []LegDTO `json:"legs"`
}

func (l LegDTO) toLeg() (allowance.Leg, error) {
	date, err := allowance.ParseDay(l.Date)
	if err != nil {
		return allowance.Leg{}, err
	}
	return allowance.Leg{
		Date:                 date,
		Type:                 allowance.ParseTripType(l.TripType),
		DepartureCountryCode: l.DepartureCountry,
		DepartureCity:        l.DepartureCity,
		ArrivalCountryCode:   l.ArrivalCountry,
		ArrivalCity:          l.ArrivalCity,
		StayHours:            l.StayHours,
		IsFirstDayOfTrip:     l.FirstDayOfTrip,
		IsLastDayOfTrip:      l.LastDayOfTrip,
	}, nil
}

func toLegDTO(l allowance.Leg) LegDTO {
	return LegDTO{
		Date:             l.Date.String(),
		TripType:         l.Type.String(),
		DepartureCountry: l.DepartureCountryCode,
		DepartureCity:    l.DepartureCity,
		ArrivalCountry:   l.ArrivalCountryCode,
		ArrivalCity:      l.ArrivalCity,
		StayHours:        l.StayHours,
		FirstDayOfTrip:   l.IsFirstDayOfTrip,
		LastDayOfTrip:    l.IsLastDayOfTrip,
	}
}

// =============================================================================
// MEAL RECORDS
// =============================================================================

type MealRecordDTO struct {
	Date      string `json:"date"`
	Breakfast bool   `json:"breakfast"`
	Lunch     bool   `json:"lunch"`
	Dinner    bool   `json:"dinner"`
}

type ReplaceMealsRequest struct {
	Records []MealRecordDTO `json:"records"`
}

func (m MealRecordDTO) toRecord() (allowance.MealRecord, error) {
	date, err := allowance.ParseDay(m.Date)
	if err != nil {
		return allowance.MealRecord{}, err
	}
	return allowance.MealRecord{
		Date: date,
		Meals: allowance.ProvidedMeals{
			Breakfast: m.Breakfast,
			Lunch:     m.Lunch,
			Dinner:    m.Dinner,
		},
	}, nil
}

// =============================================================================
// RATES
// =============================================================================

type RateDTO struct {
	CountryCode string `json:"country_code"`
	FullDay     string `json:"full_day"`
	PartialDay  string `json:"partial_day"`
}

type UpsertRateRequest struct {
	FullDay    string `json:"full_day"`
	PartialDay string `json:"partial_day"`
}

func toRateDTO(r allowance.CountryRate) RateDTO {
	return RateDTO{
		CountryCode: r.CountryCode,
		FullDay:     r.FullDay.StringFixed(2),
		PartialDay:  r.PartialDay.StringFixed(2),
	}
}

// =============================================================================
// ALLOWANCE RESULTS
// =============================================================================

type DailyResultDTO struct {
	Date            string  `json:"date"`
	StayHours       float64 `json:"stay_hours"`
	BaseCountryCode string  `json:"base_country_code,omitempty"`
	BaseAmount      string  `json:"base_amount"`
	DeductionAmount string  `json:"deduction_amount"`
	FinalAllowance  string  `json:"final_allowance"`
	Meals           struct {
		Breakfast bool `json:"breakfast"`
		Lunch     bool `json:"lunch"`
		Dinner    bool `json:"dinner"`
	} `json:"meals_provided"`
}

type WarningDTO struct {
	Code   string `json:"code"`
	Date   string `json:"date"`
	Detail string `json:"detail"`
}

type TripSummaryDTO struct {
	Days     []DailyResultDTO `json:"days"`
	Total    string           `json:"total"`
	Warnings []WarningDTO     `json:"warnings"`
}

func toSummaryDTO(s *allowance.TripSummary) TripSummaryDTO {
	dto := TripSummaryDTO{
		Days:     make([]DailyResultDTO, 0, len(s.Days)),
		Total:    s.Total.StringFixed(2),
		Warnings: make([]WarningDTO, 0, len(s.Warnings)),
	}
	for _, d := range s.Days {
		row := DailyResultDTO{
			Date:            d.Date.String(),
			StayHours:       d.StayHours,
			BaseCountryCode: d.BaseCountryCode,
			BaseAmount:      d.BaseAmount.StringFixed(2),
			DeductionAmount: d.DeductionAmount.StringFixed(2),
			FinalAllowance:  d.FinalAllowance.StringFixed(2),
		}
		row.Meals.Breakfast = d.MealsProvided.Breakfast
		row.Meals.Lunch = d.MealsProvided.Lunch
		row.Meals.Dinner = d.MealsProvided.Dinner
		dto.Days = append(dto.Days, row)
	}
	for _, w := range s.Warnings {
		dto.Warnings = append(dto.Warnings, WarningDTO{
			Code:   string(w.Code),
			Date:   w.Date.String(),
			Detail: w.Detail,
		})
	}
	return dto
}

// =============================================================================
// PREVIEW
// =============================================================================

// PreviewRequest carries a full unsaved trip for stateless computation.
// The host UI calls this after every edit and replaces its displayed
// summary with the response.
type PreviewRequest struct {
	Trip  CreateTripRequest `json:"trip"`
	Legs  []LegDTO          `json:"legs"`
	Meals []MealRecordDTO   `json:"meals"`
}
