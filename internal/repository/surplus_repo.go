package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/foodloop/foodloop-api/internal/models"
)

// SurplusRepository persists surplus records. Claim and AssignDriver are
// compare-and-set writes: the WHERE clause carries the precondition and the
// boolean result reports whether this caller won the update. Listing methods
// filter on a single indexed column; residual filtering and sorting happen
// in the service layer so the storage contract stays portable to stores
// without compound indexes.
type SurplusRepository interface {
	Create(ctx context.Context, record *models.FoodSurplus) error
	GetByID(ctx context.Context, id uint) (models.FoodSurplus, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.FoodSurplus, error)
	ListByStatus(ctx context.Context, status models.SurplusStatus) ([]models.FoodSurplus, error)
	ListByCanteen(ctx context.Context, canteenID string) ([]models.FoodSurplus, error)
	ListByClaimer(ctx context.Context, claimerID string) ([]models.FoodSurplus, error)
	ListByDriver(ctx context.Context, driverID string) ([]models.FoodSurplus, error)
	Claim(ctx context.Context, id uint, claimerID, claimerName string, at time.Time) (bool, error)
	AssignDriver(ctx context.Context, id uint, driverID, driverName, code string, at time.Time) (bool, error)
	MarkPickupVerified(ctx context.Context, id uint, at time.Time) error
	MarkDelivered(ctx context.Context, id uint, at time.Time) error
}

type surplusRepository struct {
	db *gorm.DB
}

// NewSurplusRepository constructs a surplus repository backed by GORM.
func NewSurplusRepository(db *gorm.DB) SurplusRepository {
	return &surplusRepository{db: db}
}

func (r *surplusRepository) Create(ctx context.Context, record *models.FoodSurplus) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *surplusRepository) GetByID(ctx context.Context, id uint) (models.FoodSurplus, error) {
	var record models.FoodSurplus
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.FoodSurplus{}, err
	}
	return record, nil
}

func (r *surplusRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.FoodSurplus, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var records []models.FoodSurplus
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *surplusRepository) ListByStatus(ctx context.Context, status models.SurplusStatus) ([]models.FoodSurplus, error) {
	var records []models.FoodSurplus
	if err := r.db.WithContext(ctx).Where("status = ?", status).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *surplusRepository) ListByCanteen(ctx context.Context, canteenID string) ([]models.FoodSurplus, error) {
	var records []models.FoodSurplus
	if err := r.db.WithContext(ctx).Where("canteen_id = ?", canteenID).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *surplusRepository) ListByClaimer(ctx context.Context, claimerID string) ([]models.FoodSurplus, error) {
	var records []models.FoodSurplus
	if err := r.db.WithContext(ctx).Where("claimed_by = ?", claimerID).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *surplusRepository) ListByDriver(ctx context.Context, driverID string) ([]models.FoodSurplus, error) {
	var records []models.FoodSurplus
	if err := r.db.WithContext(ctx).Where("assigned_driver_id = ?", driverID).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// Claim transitions available -> claimed. Exactly one of two racing
// claimants observes true; the loser's UPDATE matches zero rows.
func (r *surplusRepository) Claim(ctx context.Context, id uint, claimerID, claimerName string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FoodSurplus{}).
		Where("id = ? AND status = ?", id, models.SurplusAvailable).
		Updates(map[string]interface{}{
			"status":       models.SurplusClaimed,
			"claimed_by":   claimerID,
			"claimer_name": claimerName,
			"claimed_at":   at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// AssignDriver sets the driver fields and the delivery code in one guarded
// UPDATE. The assigned_driver_id IS NULL precondition makes the write
// first-wins; the code is therefore written exactly once per record.
func (r *surplusRepository) AssignDriver(ctx context.Context, id uint, driverID, driverName, code string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.FoodSurplus{}).
		Where("id = ? AND status = ? AND assigned_driver_id IS NULL", id, models.SurplusClaimed).
		Updates(map[string]interface{}{
			"assigned_driver_id":   driverID,
			"assigned_driver_name": driverName,
			"delivery_code":        gorm.Expr("COALESCE(delivery_code, ?)", code),
			"updated_at":           at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *surplusRepository) MarkPickupVerified(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FoodSurplus{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"driver_pickup_verified_at": at,
			"updated_at":                at,
		}).Error
}

// MarkDelivered writes the delivery timestamp and the collected status as a
// single UPDATE so neither is ever visible without the other.
func (r *surplusRepository) MarkDelivered(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.FoodSurplus{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"ngo_delivery_verified_at": at,
			"status":                   models.SurplusCollected,
			"updated_at":               at,
		}).Error
}
