package dto

// PredictionRequest carries the planning inputs for the surplus/spoilage
// estimate. The estimator behind it is a deterministic stand-in, not a
// trained model.
type PredictionRequest struct {
	PlannedQuantityKg  float64 `json:"planned_quantity_kg" validate:"required,gt=0"`
	MealType           string  `json:"meal_type" validate:"required,oneof=breakfast lunch dinner snacks"`
	IsHoliday          bool    `json:"is_holiday"`
	StaffOnDuty        int     `json:"staff_on_duty" validate:"omitempty,min=0"`
	PeakDemandRatio    float64 `json:"peak_demand_ratio" validate:"omitempty,gte=0,lte=1"`
	HoursSincePrep     float64 `json:"hours_since_prep" validate:"omitempty,gte=0"`
	Storage            string  `json:"storage" validate:"required,oneof=room refrigerated"`
	Category           string  `json:"category" validate:"required,oneof=vegetarian non-vegetarian vegan beverages snacks desserts"`
}

// PredictionResponse combines the surplus estimate and the remaining safe
// window used to pre-fill quantity and expiry on the create form.
type PredictionResponse struct {
	PredictedSurplusKg float64 `json:"predicted_surplus_kg"`
	PredictedSafeHours float64 `json:"predicted_safe_hours"`
}
