package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"hed/internal/models"
	"hed/internal/structures"
)

var (
	ErrInvalidLookback = errors.New("lookback must be a positive number of days")
	ErrUnknownTrend    = errors.New("unknown trend")
)

type TrendKind string

const (
	TrendNutrition TrendKind = "nutrition"
	TrendExercise  TrendKind = "exercise"
	TrendSleep     TrendKind = "sleep"
	TrendHydration TrendKind = "hydration"
	TrendMood      TrendKind = "mood"
)

// QueryRunner executes a read-only statement against the warehouse.
type QueryRunner interface {
	Query(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

type AnalyticsServiceInterface interface {
	NutritionTrends(ctx context.Context, days int) ([]map[string]any, error)
	ExerciseTrends(ctx context.Context, days int) ([]map[string]any, error)
	SleepTrends(ctx context.Context, days int) ([]map[string]any, error)
	HydrationTrends(ctx context.Context, days int) ([]map[string]any, error)
	MoodTrends(ctx context.Context, days int) ([]map[string]any, error)
	Trends(ctx context.Context, kind TrendKind, days int) ([]map[string]any, error)
}

// Each template takes the lookback in days as its only parameter.
var trendTemplates = map[TrendKind]struct {
	category models.Category
	query    string
}{
	TrendNutrition: {models.CategoryFood, `SELECT DATE("timestamp" AT TIME ZONE 'UTC') AS "date",
	COUNT(DISTINCT "anonymous_user_id") AS users,
	COUNT(*) AS entries,
	AVG("calories") AS avg_calories,
	AVG("protein") AS avg_protein,
	AVG("carbs") AS avg_carbs,
	AVG("fat") AS avg_fat,
	AVG("fiber") AS avg_fiber
FROM %s
WHERE "timestamp" >= NOW() - make_interval(days => $1::int)
GROUP BY 1
ORDER BY 1 DESC`},
	TrendExercise: {models.CategoryExercise, `SELECT DATE("timestamp" AT TIME ZONE 'UTC') AS "date",
	"exercise_type",
	COUNT(*) AS sessions,
	COUNT(DISTINCT "anonymous_user_id") AS users,
	AVG("duration") AS avg_duration,
	SUM("duration") AS total_duration,
	AVG("calories_burned") AS avg_calories_burned
FROM %s
WHERE "timestamp" >= NOW() - make_interval(days => $1::int)
GROUP BY 1, 2
ORDER BY 1 DESC, sessions DESC`},
	TrendSleep: {models.CategorySleep, `SELECT DATE("timestamp" AT TIME ZONE 'UTC') AS "date",
	COUNT(DISTINCT "anonymous_user_id") AS users,
	AVG("duration") AS avg_duration,
	AVG("quality") AS avg_quality
FROM %s
WHERE "timestamp" >= NOW() - make_interval(days => $1::int)
GROUP BY 1
ORDER BY 1 DESC`},
	TrendHydration: {models.CategoryWater, `SELECT DATE("timestamp" AT TIME ZONE 'UTC') AS "date",
	COUNT(DISTINCT "anonymous_user_id") AS users,
	SUM("amount") AS total_amount,
	SUM("amount") / NULLIF(COUNT(DISTINCT "anonymous_user_id"), 0) AS avg_amount_per_user
FROM %s
WHERE "timestamp" >= NOW() - make_interval(days => $1::int)
GROUP BY 1
ORDER BY 1 DESC`},
	TrendMood: {models.CategoryMood, `SELECT DATE("timestamp" AT TIME ZONE 'UTC') AS "date",
	COUNT(DISTINCT "anonymous_user_id") AS users,
	AVG("rating") AS avg_rating,
	AVG("energy_level") AS avg_energy_level
FROM %s
WHERE "timestamp" >= NOW() - make_interval(days => $1::int)
GROUP BY 1
ORDER BY 1 DESC`},
}

// TrendKinds lists the supported trends in a stable order.
func TrendKinds() []TrendKind {
	return []TrendKind{TrendNutrition, TrendExercise, TrendSleep, TrendHydration, TrendMood}
}

func trendKindNames() []string {
	kinds := TrendKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}

func ParseTrendKind(s string) (TrendKind, error) {
	k := TrendKind(s)
	if _, ok := trendTemplates[k]; !ok {
		return "", fmt.Errorf("%w: %q, supported kinds are %s", ErrUnknownTrend, s, strings.Join(trendKindNames(), ", "))
	}
	return k, nil
}

// AnalyticsService runs population-level trend queries. Results are never
// cached and engine errors are returned as they are.
type AnalyticsService struct {
	runner  QueryRunner
	queries map[TrendKind]string
}

func NewAnalyticsService(conf *structures.Config, runner QueryRunner) *AnalyticsService {
	queries := make(map[TrendKind]string, len(trendTemplates))
	for kind, tpl := range trendTemplates {
		table := pgx.Identifier{conf.Warehouse.Dataset, tpl.category.Table()}.Sanitize()
		queries[kind] = fmt.Sprintf(tpl.query, table)
	}
	return &AnalyticsService{runner: runner, queries: queries}
}

func (as *AnalyticsService) Trends(ctx context.Context, kind TrendKind, days int) ([]map[string]any, error) {
	if days <= 0 {
		return nil, ErrInvalidLookback
	}
	query, ok := as.queries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrend, kind)
	}
	return as.runner.Query(ctx, query, days)
}

func (as *AnalyticsService) NutritionTrends(ctx context.Context, days int) ([]map[string]any, error) {
	return as.Trends(ctx, TrendNutrition, days)
}

func (as *AnalyticsService) ExerciseTrends(ctx context.Context, days int) ([]map[string]any, error) {
	return as.Trends(ctx, TrendExercise, days)
}

func (as *AnalyticsService) SleepTrends(ctx context.Context, days int) ([]map[string]any, error) {
	return as.Trends(ctx, TrendSleep, days)
}

func (as *AnalyticsService) HydrationTrends(ctx context.Context, days int) ([]map[string]any, error) {
	return as.Trends(ctx, TrendHydration, days)
}

func (as *AnalyticsService) MoodTrends(ctx context.Context, days int) ([]map[string]any, error) {
	return as.Trends(ctx, TrendMood, days)
}
