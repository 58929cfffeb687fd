package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"sort"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/observability"
	"github.com/foodloop/foodloop-api/internal/repository"
)

var (
	// ErrSurplusValidation indicates bad input values on record creation.
	ErrSurplusValidation = errors.New("invalid surplus input")
	// ErrInvalidState indicates a precondition on status or assignment
	// fields was not met, including an unknown record id.
	ErrInvalidState = errors.New("record is not in the required state")
	// ErrNotReady indicates a verification step was attempted before its
	// prerequisite step.
	ErrNotReady = errors.New("verification prerequisite not met")
	// ErrCodeMismatch indicates the submitted delivery code is wrong.
	ErrCodeMismatch = errors.New("delivery code does not match")
	// ErrNotParty indicates the caller is not the record party allowed to
	// perform the operation.
	ErrNotParty = errors.New("caller is not a party to this record")
	// ErrImageNotAllowed indicates the uploaded photo is not an image.
	ErrImageNotAllowed = errors.New("surplus photo must be an image")
)

// availableListLimit caps claimable-inventory listings.
const availableListLimit = 50

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// LifecycleNotifier receives lifecycle events addressed to a counterpart
// user. Implementations must not block the calling operation on failure.
type LifecycleNotifier interface {
	Notify(ctx context.Context, userID, eventType, message string)
}

// SurplusService owns the surplus record state machine: creation, claiming,
// driver assignment, OTP issuance and the two-step delivery verification.
type SurplusService interface {
	Create(ctx context.Context, caller Caller, payload dto.SurplusCreateRequest, image *multipart.FileHeader) (dto.SurplusResponse, error)
	Get(ctx context.Context, id uint) (dto.SurplusResponse, error)
	ListAvailable(ctx context.Context) ([]dto.SurplusResponse, error)
	ListForCanteen(ctx context.Context, canteenID string) ([]dto.SurplusResponse, error)
	ListClaimedBy(ctx context.Context, claimerID string) ([]dto.SurplusResponse, error)
	ListAssignedTo(ctx context.Context, driverID string) ([]dto.SurplusResponse, error)
	ListClaimedNeedingDriver(ctx context.Context) ([]dto.SurplusResponse, error)
	Claim(ctx context.Context, id uint, caller Caller) error
	AssignDriver(ctx context.Context, id uint, caller Caller) (dto.AssignDriverResponse, error)
	VerifyPickup(ctx context.Context, id uint, caller Caller, code string) error
	VerifyDelivery(ctx context.Context, id uint, caller Caller, code string) error
}

type surplusService struct {
	repo      repository.SurplusRepository
	validator *validator.Validate
	uploader  FileUploader
	notifier  LifecycleNotifier
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	code      func() string
}

// NewSurplusService builds the lifecycle engine. uploader and notifier may
// be nil; photo upload and notifications are then skipped.
func NewSurplusService(repo repository.SurplusRepository, validate *validator.Validate, uploader FileUploader, notifier LifecycleNotifier, logger zerolog.Logger) SurplusService {
	return &surplusService{
		repo:      repo,
		validator: validate,
		uploader:  uploader,
		notifier:  notifier,
		logger:    logger.With().Str("component", "surplus_service").Logger(),
		tracer:    otel.Tracer("github.com/foodloop/foodloop-api/internal/service/surplus"),
		now:       time.Now,
		code:      newDeliveryCode,
	}
}

// newDeliveryCode draws a uniform 4-digit code. Collisions across records
// are tolerated; the code is scoped to one record's two-party exchange.
func newDeliveryCode() string {
	return fmt.Sprintf("%04d", 1000+rand.Intn(9000))
}

func (s *surplusService) Create(ctx context.Context, caller Caller, payload dto.SurplusCreateRequest, image *multipart.FileHeader) (dto.SurplusResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SurplusResponse{}, err
	}

	expiry, err := time.Parse(time.RFC3339, payload.ExpiryTime)
	if err != nil {
		return dto.SurplusResponse{}, fmt.Errorf("%w: invalid expiry time: %v", ErrSurplusValidation, err)
	}

	now := s.now()
	if !expiry.After(now) {
		return dto.SurplusResponse{}, fmt.Errorf("%w: expiry time must be in the future", ErrSurplusValidation)
	}

	record := models.FoodSurplus{
		CanteenID:      caller.ID,
		CanteenName:    caller.Name,
		FoodName:       payload.FoodName,
		Category:       payload.Category,
		Quantity:       payload.Quantity,
		Unit:           payload.Unit,
		PickupLocation: payload.PickupLocation,
		AdditionalInfo: payload.AdditionalInfo,
		ExpiryTime:     expiry,
		Status:         models.SurplusAvailable,
	}

	if image != nil {
		url, err := s.uploadPhoto(ctx, image)
		if err != nil {
			return dto.SurplusResponse{}, err
		}
		record.ImageURL = url
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		return dto.SurplusResponse{}, err
	}

	observability.LifecycleTransitions().WithLabelValues("create").Inc()
	s.logger.Info().Uint("surplus_id", record.ID).Str("canteen_id", caller.ID).Msg("surplus record created")

	return dto.NewSurplusResponse(record), nil
}

func (s *surplusService) Get(ctx context.Context, id uint) (dto.SurplusResponse, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SurplusResponse{}, fmt.Errorf("%w: record %d not found", ErrInvalidState, id)
		}
		return dto.SurplusResponse{}, err
	}
	return dto.NewSurplusResponse(record), nil
}

// ListAvailable returns claimable inventory: status available AND not past
// the expiry boundary, soonest-expiring first. Expiry is a read-time
// predicate; nothing flips the stored status here.
func (s *surplusService) ListAvailable(ctx context.Context) ([]dto.SurplusResponse, error) {
	records, err := s.repo.ListByStatus(ctx, models.SurplusAvailable)
	if err != nil {
		return nil, err
	}

	now := s.now()
	fresh := records[:0]
	for _, record := range records {
		if !record.ExpiredAt(now) {
			fresh = append(fresh, record)
		}
	}

	sort.Slice(fresh, func(i, j int) bool {
		return fresh[i].ExpiryTime.Before(fresh[j].ExpiryTime)
	})

	if len(fresh) > availableListLimit {
		fresh = fresh[:availableListLimit]
	}

	return dto.NewSurplusResponseSlice(fresh), nil
}

func (s *surplusService) ListForCanteen(ctx context.Context, canteenID string) ([]dto.SurplusResponse, error) {
	records, err := s.repo.ListByCanteen(ctx, canteenID)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return dto.NewSurplusResponseSlice(records), nil
}

func (s *surplusService) ListClaimedBy(ctx context.Context, claimerID string) ([]dto.SurplusResponse, error) {
	records, err := s.repo.ListByClaimer(ctx, claimerID)
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return claimedAtOf(records[i]).After(claimedAtOf(records[j]))
	})

	return dto.NewSurplusResponseSlice(records), nil
}

func (s *surplusService) ListAssignedTo(ctx context.Context, driverID string) ([]dto.SurplusResponse, error) {
	records, err := s.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	active := records[:0]
	for _, record := range records {
		if record.Status == models.SurplusClaimed || record.Status == models.SurplusAvailable {
			active = append(active, record)
		}
	}

	return dto.NewSurplusResponseSlice(active), nil
}

// ListClaimedNeedingDriver lists claimed records with no driver yet: the
// driver work queue. Single status filter server-side, residual filter here.
func (s *surplusService) ListClaimedNeedingDriver(ctx context.Context) ([]dto.SurplusResponse, error) {
	records, err := s.repo.ListByStatus(ctx, models.SurplusClaimed)
	if err != nil {
		return nil, err
	}

	unassigned := records[:0]
	for _, record := range records {
		if record.AssignedDriverID == nil {
			unassigned = append(unassigned, record)
		}
	}

	sort.Slice(unassigned, func(i, j int) bool {
		return claimedAtOf(unassigned[i]).After(claimedAtOf(unassigned[j]))
	})

	if len(unassigned) > availableListLimit {
		unassigned = unassigned[:availableListLimit]
	}

	return dto.NewSurplusResponseSlice(unassigned), nil
}

// Claim reserves an available record for the calling NGO. The write is a
// compare-and-set on status; of two racing claimants exactly one succeeds
// and the other observes ErrInvalidState.
func (s *surplusService) Claim(ctx context.Context, id uint, caller Caller) error {
	ctx, span := s.tracer.Start(ctx, "surplus.claim", trace.WithAttributes(
		attribute.Int("surplus.id", int(id)),
		attribute.String("surplus.claimer_id", caller.ID),
	))
	defer span.End()

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: record %d not found", ErrInvalidState, id)
		}
		return err
	}

	// The expiry boundary also guards the write path, not just listings.
	if record.ExpiredAt(s.now()) {
		return fmt.Errorf("%w: record %d has expired", ErrInvalidState, id)
	}

	won, err := s.repo.Claim(ctx, id, caller.ID, caller.Name, s.now())
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !won {
		return fmt.Errorf("%w: record %d is no longer available", ErrInvalidState, id)
	}

	observability.LifecycleTransitions().WithLabelValues("claim").Inc()
	s.logger.Info().Uint("surplus_id", id).Str("claimer_id", caller.ID).Msg("surplus claimed")
	s.notify(ctx, record.CanteenID, "surplus_claimed",
		fmt.Sprintf("%s claimed your surplus %q", caller.Name, record.FoodName))

	return nil
}

// AssignDriver lets a driver take responsibility for a claimed record and
// returns the shared delivery code. The guarded UPDATE keys on
// assignedDriverId being null, so exactly one racing driver wins and the
// code is generated exactly once.
func (s *surplusService) AssignDriver(ctx context.Context, id uint, caller Caller) (dto.AssignDriverResponse, error) {
	ctx, span := s.tracer.Start(ctx, "surplus.assign_driver", trace.WithAttributes(
		attribute.Int("surplus.id", int(id)),
		attribute.String("surplus.driver_id", caller.ID),
	))
	defer span.End()

	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignDriverResponse{}, fmt.Errorf("%w: record %d not found", ErrInvalidState, id)
		}
		return dto.AssignDriverResponse{}, err
	}

	code := s.code()
	won, err := s.repo.AssignDriver(ctx, id, caller.ID, caller.Name, code, s.now())
	if err != nil {
		span.RecordError(err)
		return dto.AssignDriverResponse{}, err
	}
	if !won {
		return dto.AssignDriverResponse{}, fmt.Errorf("%w: record %d already has a driver or is not claimed", ErrInvalidState, id)
	}

	observability.LifecycleTransitions().WithLabelValues("assign_driver").Inc()
	s.logger.Info().Uint("surplus_id", id).Str("driver_id", caller.ID).Msg("driver assigned")

	if record.ClaimedBy != nil {
		s.notify(ctx, *record.ClaimedBy, "driver_assigned",
			fmt.Sprintf("%s will deliver %q", caller.Name, record.FoodName))
	}
	s.notify(ctx, record.CanteenID, "driver_assigned",
		fmt.Sprintf("%s will pick up %q", caller.Name, record.FoodName))

	return dto.AssignDriverResponse{SurplusID: id, DeliveryCode: code}, nil
}

// VerifyPickup is the canteen-side confirmation that the driver collected
// the food. It requires an assigned driver and an issued code.
func (s *surplusService) VerifyPickup(ctx context.Context, id uint, caller Caller, code string) error {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: record %d not found", ErrInvalidState, id)
		}
		return err
	}

	if record.CanteenID != caller.ID {
		return ErrNotParty
	}
	if record.AssignedDriverID == nil || record.DeliveryCode == nil {
		return fmt.Errorf("%w: no driver assigned yet", ErrNotReady)
	}
	if *record.DeliveryCode != code {
		return ErrCodeMismatch
	}

	if err := s.repo.MarkPickupVerified(ctx, id, s.now()); err != nil {
		return err
	}

	observability.LifecycleTransitions().WithLabelValues("verify_pickup").Inc()
	s.logger.Info().Uint("surplus_id", id).Msg("driver pickup verified")

	if record.ClaimedBy != nil {
		s.notify(ctx, *record.ClaimedBy, "pickup_verified",
			fmt.Sprintf("%q left the canteen and is on its way", record.FoodName))
	}

	return nil
}

// VerifyDelivery is the NGO-side confirmation. It can only follow a
// verified pickup, and it moves the record to its terminal collected state
// together with the timestamp in one write.
func (s *surplusService) VerifyDelivery(ctx context.Context, id uint, caller Caller, code string) error {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: record %d not found", ErrInvalidState, id)
		}
		return err
	}

	if record.ClaimedBy == nil || *record.ClaimedBy != caller.ID {
		return ErrNotParty
	}
	if record.Status != models.SurplusClaimed {
		return fmt.Errorf("%w: record %d is not awaiting delivery", ErrInvalidState, id)
	}
	if record.DriverPickupVerifiedAt == nil {
		return fmt.Errorf("%w: pickup has not been verified", ErrNotReady)
	}
	if record.DeliveryCode == nil || *record.DeliveryCode != code {
		return ErrCodeMismatch
	}

	if err := s.repo.MarkDelivered(ctx, id, s.now()); err != nil {
		return err
	}

	observability.LifecycleTransitions().WithLabelValues("verify_delivery").Inc()
	s.logger.Info().Uint("surplus_id", id).Msg("delivery verified, record collected")
	s.notify(ctx, record.CanteenID, "delivery_verified",
		fmt.Sprintf("%q was delivered and confirmed", record.FoodName))

	return nil
}

func (s *surplusService) notify(ctx context.Context, userID, eventType, message string) {
	if s.notifier == nil || userID == "" {
		return
	}
	s.notifier.Notify(ctx, userID, eventType, message)
}

func (s *surplusService) uploadPhoto(ctx context.Context, file *multipart.FileHeader) (string, error) {
	if s.uploader == nil {
		return "", nil
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open photo: %w", err)
	}
	defer src.Close()

	mime, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to sniff photo type: %w", err)
	}
	if !isImageMIME(mime.String()) {
		return "", ErrImageNotAllowed
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind photo: %w", err)
	}

	url, err := s.uploader.Upload(ctx, file.Filename, src)
	if err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}

	return url, nil
}

func isImageMIME(mime string) bool {
	return len(mime) > 6 && mime[:6] == "image/"
}

func claimedAtOf(record models.FoodSurplus) time.Time {
	if record.ClaimedAt == nil {
		return time.Time{}
	}
	return *record.ClaimedAt
}
