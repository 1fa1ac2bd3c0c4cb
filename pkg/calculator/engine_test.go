package calculator

import (
	"context"
	"io"
	"testing"

	"cohort-retention/pkg/cache"
	"cohort-retention/pkg/cohort"
	"cohort-retention/pkg/logger"
	"cohort-retention/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func complete(user, at string) models.RawOrder {
	return models.RawOrder{UserID: user, CreatedAt: at, Status: "Complete"}
}

func ordersTable() models.OrderTable {
	return models.OrderTable{HasStatus: true, Rows: []models.RawOrder{
		complete("u1", "2023-01-03"),
		complete("u1", "2023-01-17"),
		complete("u2", "2023-01-10"),
		complete("u3", "2023-01-11"),
		complete("u3", "2023-02-08"),
		complete("u4", "2023-02-07"),
	}}
}

func TestEngineRetentionIsMemoized(t *testing.T) {
	store := cache.NewMemory(8)
	e := New(store, nil)
	p := models.Params{Granularity: models.Month, MaxAge: 1}

	first, err := e.Retention(context.Background(), ordersTable(), p)
	require.NoError(t, err)
	second, err := e.Retention(context.Background(), ordersTable(), p)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	require.Len(t, second.Matrix.Rows, len(first.Matrix.Rows))
	for i := range first.Matrix.Rows {
		assert.Equal(t, first.Matrix.Rows[i].Label, second.Matrix.Rows[i].Label)
		assert.Equal(t, first.Matrix.Rows[i].Values, second.Matrix.Rows[i].Values)
	}
	assert.Len(t, second.Cells, len(first.Cells))

	p.MaxAge = 2
	_, err = e.Retention(context.Background(), ordersTable(), p)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len(), "different parameters get their own entry")
}

func TestEngineRetentionLogsStageSizes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := New(cache.NewMemory(8), &logger.Logger{SugaredLogger: zap.New(core).Sugar()})
	p := models.Params{Granularity: models.Month, MaxAge: 1}

	_, err := e.Retention(context.Background(), ordersTable(), p)
	require.NoError(t, err)
	_, err = e.Retention(context.Background(), ordersTable(), p)
	require.NoError(t, err)

	stages := logs.FilterMessage("retention stages").All()
	require.Len(t, stages, 1, "a cache hit skips the stages")
	assert.Equal(t, zapcore.DebugLevel, stages[0].Level)
	fields := stages[0].ContextMap()
	assert.EqualValues(t, 6, fields["rows"])
	assert.EqualValues(t, 6, fields["orders"])
	assert.EqualValues(t, 2, fields["cohorts"])

	computed := logs.FilterMessage("retention computed").All()
	require.Len(t, computed, 2)
	assert.Equal(t, true, computed[1].ContextMap()["cache_hit"])
}

func TestEngineRetentionRejectsInvalidParams(t *testing.T) {
	store := cache.NewMemory(8)
	e := New(store, nil)

	_, err := e.Retention(context.Background(), ordersTable(), models.Params{Granularity: "year"})
	assert.ErrorIs(t, err, cohort.ErrInvalidParams)
	assert.Equal(t, 0, store.Len())
}

func TestEngineRetentionEmptyInput(t *testing.T) {
	e := New(nil, nil)
	_, err := e.Retention(context.Background(), models.OrderTable{HasStatus: true}, models.Params{Granularity: models.Month})
	assert.ErrorIs(t, err, cohort.ErrEmptyInput)
}

func TestEngineWeekdayForcesDailyCells(t *testing.T) {
	e := New(nil, nil)
	p := models.Params{Granularity: models.Month, MaxAge: 30, DropAgeZero: true}

	report, err := e.Weekday(context.Background(), ordersTable(), p)
	require.NoError(t, err)
	require.Len(t, report.ByEventWeekday, 7)
	require.Len(t, report.ByCohortWeekday, 7)
	require.Len(t, report.WeekendSplit, 2)

	active := 0
	for _, r := range report.ByEventWeekday {
		active += r.ActiveUsers
	}
	assert.Equal(t, 2, active, "u1 returns on day 14, u3 on day 28")
}

func TestEngineDrilldown(t *testing.T) {
	e := New(cache.NewMemory(16), nil, WithParallelism(2), WithProgress(io.Discard))
	p := models.Params{Granularity: models.Week, MaxAge: 4}

	results, err := e.Drilldown(context.Background(), ordersTable(), p, "122022", "022023")
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "2022-12", results[0].Month)
	assert.True(t, results[0].Skipped)
	assert.Nil(t, results[0].Report)

	assert.Equal(t, "2023-01", results[1].Month)
	require.NotNil(t, results[1].Report)
	assert.Len(t, results[1].Report.Matrix.Rows, 2, "weeks of 2023-01-02 and 2023-01-09")

	assert.Equal(t, "2023-02", results[2].Month)
	require.NotNil(t, results[2].Report)
	require.Len(t, results[2].Report.Matrix.Rows, 1)
	assert.Equal(t, 1, results[2].Report.Matrix.Rows[0].Size)
}

func TestEngineDrilldownRejects(t *testing.T) {
	e := New(nil, nil)
	ctx := context.Background()

	_, err := e.Drilldown(ctx, ordersTable(), models.Params{Granularity: models.Month}, "012023", "022023")
	assert.ErrorIs(t, err, cohort.ErrInvalidParams)

	_, err = e.Drilldown(ctx, ordersTable(), models.Params{Granularity: models.Week}, "2023-01", "022023")
	assert.ErrorContains(t, err, "start_month")

	_, err = e.Drilldown(ctx, ordersTable(), models.Params{Granularity: models.Week}, "032023", "022023")
	assert.ErrorContains(t, err, "end_month < start_month")
}

func TestEngineRepeatAndDistribution(t *testing.T) {
	e := New(cache.NewMemory(8), nil)
	ctx := context.Background()

	months, err := e.RepeatPurchasers(ctx, ordersTable(), 2023)
	require.NoError(t, err)
	require.Len(t, months, 2)
	assert.Equal(t, 0, months[0].Returning)
	assert.Equal(t, 2, months[1].Purchasers)
	assert.Equal(t, 1, months[1].Returning)

	dist, err := e.PurchaseDistribution(ctx, ordersTable())
	require.NoError(t, err)
	assert.Equal(t, []models.PurchaseBucket{{Purchases: 1, Users: 2}, {Purchases: 2, Users: 2}}, dist)
}
