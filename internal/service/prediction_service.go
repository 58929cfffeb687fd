package service

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/dto"
)

// PredictionService estimates the surplus left over from a planned batch and
// the hours it stays safe to redistribute. The estimator is a deterministic
// heuristic standing in for the trained surplus and spoilage models; it
// exists to pre-fill the create form, not to be accurate.
type PredictionService interface {
	Estimate(ctx context.Context, payload dto.PredictionRequest) (dto.PredictionResponse, error)
}

type predictionService struct {
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPredictionService builds the deterministic estimator.
func NewPredictionService(validate *validator.Validate, logger zerolog.Logger) PredictionService {
	return &predictionService{
		validator: validate,
		logger:    logger.With().Str("component", "prediction_service").Logger(),
	}
}

// Baseline share of a planned batch that goes unserved, before adjustments.
const baseWasteRatio = 0.18

var mealTypeWasteFactor = map[string]float64{
	"breakfast": 0.9,
	"lunch":     1.0,
	"dinner":    1.1,
	"snacks":    1.3,
}

// Safe redistribution window in hours from preparation, by storage mode.
var storageSafeHours = map[string]float64{
	"room":         6,
	"refrigerated": 48,
}

var categorySafeFactor = map[string]float64{
	"vegetarian":     1.0,
	"non-vegetarian": 0.6,
	"vegan":          1.0,
	"beverages":      1.2,
	"snacks":         1.5,
	"desserts":       0.8,
}

func (s *predictionService) Estimate(ctx context.Context, payload dto.PredictionRequest) (dto.PredictionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.PredictionResponse{}, err
	}

	ratio := baseWasteRatio * mealTypeWasteFactor[payload.MealType]
	if payload.IsHoliday {
		// Holiday footfall is unpredictable; assume more goes unserved.
		ratio *= 1.4
	}
	if payload.PeakDemandRatio > 0 {
		ratio *= 1.6 - 0.8*payload.PeakDemandRatio
	}
	if payload.StaffOnDuty > 0 && payload.StaffOnDuty < 3 {
		ratio *= 1.15
	}
	ratio = math.Min(ratio, 0.6)

	surplusKg := round1(payload.PlannedQuantityKg * ratio)

	safeHours := storageSafeHours[payload.Storage] * categorySafeFactor[payload.Category]
	safeHours -= payload.HoursSincePrep
	if safeHours < 0 {
		safeHours = 0
	}

	return dto.PredictionResponse{
		PredictedSurplusKg: surplusKg,
		PredictedSafeHours: round1(safeHours),
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
