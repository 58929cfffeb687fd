package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/foodloop/foodloop-api/internal/dto"
)

func newPredictionFixture(t *testing.T) PredictionService {
	t.Helper()
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewPredictionService(validate, zerolog.Nop())
}

func TestEstimateIsDeterministic(t *testing.T) {
	svc := newPredictionFixture(t)

	payload := dto.PredictionRequest{
		PlannedQuantityKg: 100,
		MealType:          "lunch",
		Storage:           "refrigerated",
		Category:          "vegetarian",
	}

	first, err := svc.Estimate(context.Background(), payload)
	require.NoError(t, err)
	second, err := svc.Estimate(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, 18.0, first.PredictedSurplusKg)
	require.Equal(t, 48.0, first.PredictedSafeHours)
}

func TestEstimateHolidayRaisesSurplus(t *testing.T) {
	svc := newPredictionFixture(t)

	base := dto.PredictionRequest{
		PlannedQuantityKg: 50,
		MealType:          "dinner",
		Storage:           "room",
		Category:          "non-vegetarian",
	}
	holiday := base
	holiday.IsHoliday = true

	normal, err := svc.Estimate(context.Background(), base)
	require.NoError(t, err)
	festive, err := svc.Estimate(context.Background(), holiday)
	require.NoError(t, err)

	require.Greater(t, festive.PredictedSurplusKg, normal.PredictedSurplusKg)
}

func TestEstimateSafeHoursNeverNegative(t *testing.T) {
	svc := newPredictionFixture(t)

	result, err := svc.Estimate(context.Background(), dto.PredictionRequest{
		PlannedQuantityKg: 10,
		MealType:          "snacks",
		Storage:           "room",
		Category:          "desserts",
		HoursSincePrep:    100,
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.PredictedSafeHours)
}

func TestEstimateRejectsUnknownCategory(t *testing.T) {
	svc := newPredictionFixture(t)

	_, err := svc.Estimate(context.Background(), dto.PredictionRequest{
		PlannedQuantityKg: 10,
		MealType:          "lunch",
		Storage:           "room",
		Category:          "mystery",
	})
	require.Error(t, err)
}
