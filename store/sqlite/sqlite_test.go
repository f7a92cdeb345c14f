package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/allowance-engine/allowance"
	"github.com/warp/allowance-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testTrip(id string) sqlite.TripRecord {
	return sqlite.TripRecord{
		ID:        id,
		Name:      "Kundentermin Paris",
		StartDate: allowance.NewDay(2025, time.May, 5),
		EndDate:   allowance.NewDay(2025, time.May, 7),
		StartTime: "06:30",
		EndTime:   "21:00",
	}
}

func TestTrip_SaveGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTrip(ctx, testTrip("trip-1")))

	got, err := store.GetTrip(ctx, "trip-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Kundentermin Paris", got.Name)
	assert.True(t, got.StartDate.Equal(allowance.NewDay(2025, time.May, 5)))
	assert.True(t, got.EndDate.Equal(allowance.NewDay(2025, time.May, 7)))
	assert.Equal(t, "06:30", got.StartTime)
}

func TestTrip_GetAbsent_NilNil(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetTrip(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTrip_SaveTwice_Updates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	trip := testTrip("trip-1")
	require.NoError(t, store.SaveTrip(ctx, trip))

	trip.EndDate = allowance.NewDay(2025, time.May, 9)
	require.NoError(t, store.SaveTrip(ctx, trip))

	got, err := store.GetTrip(ctx, "trip-1")
	require.NoError(t, err)
	assert.True(t, got.EndDate.Equal(allowance.NewDay(2025, time.May, 9)))

	trips, err := store.ListTrips(ctx)
	require.NoError(t, err)
	assert.Len(t, trips, 1)
}

func TestLegs_ReplaceAndGroupByDate_OrderPreserved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTrip(ctx, testTrip("trip-1")))

	d := allowance.NewDay(2025, time.May, 5)
	legs := []sqlite.LegRecord{
		{ID: "leg-1", TripID: "trip-1", Leg: allowance.Leg{
			Date: d, Type: allowance.TripInternational,
			DepartureCountryCode: "DE", ArrivalCountryCode: "AT", StayHours: 3,
			IsFirstDayOfTrip: true,
		}},
		{ID: "leg-2", TripID: "trip-1", Leg: allowance.Leg{
			Date: d, Type: allowance.TripInternational,
			DepartureCountryCode: "AT", ArrivalCountryCode: "FR", StayHours: 10,
		}},
	}
	require.NoError(t, store.ReplaceLegs(ctx, "trip-1", legs))

	byDate, err := store.LegsByDate(ctx, "trip-1")
	require.NoError(t, err)
	require.Len(t, byDate[d], 2)
	assert.Equal(t, "AT", byDate[d][0].ArrivalCountryCode, "entry order must survive the round trip")
	assert.Equal(t, "FR", byDate[d][1].ArrivalCountryCode)
	assert.Equal(t, allowance.TripInternational, byDate[d][0].Type)
	assert.True(t, byDate[d][0].IsFirstDayOfTrip)

	// Replacing again drops the old schedule.
	require.NoError(t, store.ReplaceLegs(ctx, "trip-1", legs[:1]))
	byDate, err = store.LegsByDate(ctx, "trip-1")
	require.NoError(t, err)
	assert.Len(t, byDate[d], 1)
}

func TestMealRecords_ReduceOnLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTrip(ctx, testTrip("trip-1")))

	d := allowance.NewDay(2025, time.May, 6)
	records := []sqlite.MealRecordRow{
		{ID: "meal-1", TripID: "trip-1", Record: allowance.MealRecord{
			Date: d, Meals: allowance.ProvidedMeals{Breakfast: true},
		}},
		{ID: "meal-2", TripID: "trip-1", Record: allowance.MealRecord{
			Date: d, Meals: allowance.ProvidedMeals{Dinner: true},
		}},
	}
	require.NoError(t, store.ReplaceMealRecords(ctx, "trip-1", records))

	byDate, err := store.MealsByDate(ctx, "trip-1")
	require.NoError(t, err)
	meals := byDate[d]
	assert.True(t, meals.Breakfast, "records on the same date must be OR-reduced")
	assert.False(t, meals.Lunch)
	assert.True(t, meals.Dinner)
}

func TestDeleteTrip_CascadesToLegsAndMeals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveTrip(ctx, testTrip("trip-1")))

	d := allowance.NewDay(2025, time.May, 5)
	require.NoError(t, store.ReplaceLegs(ctx, "trip-1", []sqlite.LegRecord{
		{ID: "leg-1", TripID: "trip-1", Leg: allowance.Leg{Date: d, Type: allowance.TripDomestic}},
	}))
	require.NoError(t, store.ReplaceMealRecords(ctx, "trip-1", []sqlite.MealRecordRow{
		{ID: "meal-1", TripID: "trip-1", Record: allowance.MealRecord{Date: d}},
	}))

	require.NoError(t, store.DeleteTrip(ctx, "trip-1"))

	legs, err := store.ListLegs(ctx, "trip-1")
	require.NoError(t, err)
	assert.Empty(t, legs)

	meals, err := store.ListMealRecords(ctx, "trip-1")
	require.NoError(t, err)
	assert.Empty(t, meals)
}

func TestRates_SourceSemantics(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Absent code: nil, nil - expected outcome, not an error.
	row, err := store.GetRate(ctx, "FR")
	require.NoError(t, err)
	assert.Nil(t, row)

	fr := allowance.CountryRate{
		CountryCode: "FR",
		FullDay:     decimal.NewFromInt(53),
		PartialDay:  decimal.NewFromInt(36),
	}
	require.NoError(t, store.UpsertRate(ctx, fr))

	row, err = store.GetRate(ctx, "FR")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.True(t, row.FullDay.Equal(decimal.NewFromInt(53)))
	assert.True(t, row.PartialDay.Equal(decimal.NewFromInt(36)))

	// Upsert overwrites.
	fr.PartialDay = decimal.NewFromInt(40)
	require.NoError(t, store.UpsertRate(ctx, fr))
	row, err = store.GetRate(ctx, "FR")
	require.NoError(t, err)
	assert.True(t, row.PartialDay.Equal(decimal.NewFromInt(40)))
}

func TestSeedRates_OnlyWhenEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	custom := allowance.CountryRate{
		CountryCode: "FR",
		FullDay:     decimal.NewFromInt(60),
		PartialDay:  decimal.NewFromInt(40),
	}
	require.NoError(t, store.UpsertRate(ctx, custom))

	// Seeding must not clobber existing rows.
	seed := map[string]allowance.CountryRate{
		"FR": {CountryCode: "FR", FullDay: decimal.NewFromInt(53), PartialDay: decimal.NewFromInt(36)},
		"AT": {CountryCode: "AT", FullDay: decimal.NewFromInt(50), PartialDay: decimal.NewFromInt(33)},
	}
	require.NoError(t, store.SeedRates(ctx, seed))

	row, err := store.GetRate(ctx, "FR")
	require.NoError(t, err)
	assert.True(t, row.FullDay.Equal(decimal.NewFromInt(60)), "seed must not overwrite")

	row, err = store.GetRate(ctx, "AT")
	require.NoError(t, err)
	assert.Nil(t, row, "non-empty table must not be seeded at all")
}
