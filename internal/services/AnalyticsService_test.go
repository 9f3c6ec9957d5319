package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hed/internal/structures"
)

type recordingRunner struct {
	queries []string
	args    [][]any
	rows    []map[string]any
	err     error
}

func (r *recordingRunner) Query(_ context.Context, query string, args ...any) ([]map[string]any, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return r.rows, r.err
}

func newTestAnalytics(runner QueryRunner) *AnalyticsService {
	return NewAnalyticsService(&structures.Config{Warehouse: structures.WarehouseConfig{Dataset: "health_analytics"}}, runner)
}

func TestAnalyticsService_QueriesTargetDatasetTables(t *testing.T) {
	as := newTestAnalytics(&recordingRunner{})
	tables := map[TrendKind]string{
		TrendNutrition: `"health_analytics"."food_entries"`,
		TrendExercise:  `"health_analytics"."exercise_entries"`,
		TrendSleep:     `"health_analytics"."sleep_entries"`,
		TrendHydration: `"health_analytics"."water_entries"`,
		TrendMood:      `"health_analytics"."mood_entries"`,
	}
	for kind, table := range tables {
		q, ok := as.queries[kind]
		require.True(t, ok, kind)
		assert.Contains(t, q, "FROM "+table, kind)
		assert.Contains(t, q, "ORDER BY 1 DESC", kind)
		assert.Contains(t, q, "$1", kind)
		assert.NotContains(t, q, "$2", kind)
	}
}

func TestAnalyticsService_PassesLookbackAsOnlyParameter(t *testing.T) {
	runner := &recordingRunner{rows: []map[string]any{{"date": "2024-01-02"}, {"date": "2024-01-01"}}}
	as := newTestAnalytics(runner)

	rows, err := as.NutritionTrends(context.Background(), 7)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, [][]any{{7}}, runner.args)
}

func TestAnalyticsService_NoCaching(t *testing.T) {
	runner := &recordingRunner{}
	as := newTestAnalytics(runner)

	for i := 0; i < 3; i++ {
		_, err := as.SleepTrends(context.Background(), 30)
		require.NoError(t, err)
	}
	assert.Len(t, runner.queries, 3)
}

func TestAnalyticsService_InvalidLookback(t *testing.T) {
	runner := &recordingRunner{}
	as := newTestAnalytics(runner)

	_, err := as.ExerciseTrends(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidLookback)
	_, err = as.MoodTrends(context.Background(), -1)
	assert.ErrorIs(t, err, ErrInvalidLookback)
	assert.Empty(t, runner.queries)
}

func TestAnalyticsService_EngineErrorUnchanged(t *testing.T) {
	engineErr := errors.New("relation does not exist")
	as := newTestAnalytics(&recordingRunner{err: engineErr})

	_, err := as.HydrationTrends(context.Background(), 7)
	assert.Same(t, engineErr, err)
}

func TestParseTrendKind(t *testing.T) {
	for _, k := range TrendKinds() {
		got, err := ParseTrendKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseTrendKind("steps")
	assert.ErrorIs(t, err, ErrUnknownTrend)
	assert.ErrorContains(t, err, "supported kinds are nutrition, exercise, sleep, hydration, mood")
}
