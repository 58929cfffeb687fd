package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/foodloop/foodloop-api/internal/dto"
	"github.com/foodloop/foodloop-api/internal/models"
	"github.com/foodloop/foodloop-api/internal/repository"
)

const defaultNearbyRadiusKm = 10

// ErrLocationUnavailable indicates the proximity index is not configured.
var ErrLocationUnavailable = errors.New("proximity lookups are unavailable")

// DirectoryService resolves who a user may reach out to. Contacts lists the
// counterpart roles wholesale; Nearby narrows them by distance using the
// Redis geospatial index.
type DirectoryService interface {
	Contacts(ctx context.Context, caller Caller) ([]dto.ContactResponse, error)
	Nearby(ctx context.Context, caller Caller, query dto.NearbyQuery) ([]dto.NearbyContactResponse, error)
	UpsertLocation(ctx context.Context, caller Caller, payload dto.LocationUpdateRequest) error
}

type directoryService struct {
	users     repository.UserRepository
	redis     *redis.Client
	geoKey    string
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewDirectoryService builds the contact directory. redisClient may be nil;
// Nearby then returns ErrLocationUnavailable.
func NewDirectoryService(users repository.UserRepository, redisClient *redis.Client, channelBase string, validate *validator.Validate, logger zerolog.Logger) DirectoryService {
	geoKey := "directory:geo"
	if channelBase != "" {
		geoKey = channelBase + ":geo:users"
	}

	return &directoryService{
		users:     users,
		redis:     redisClient,
		geoKey:    geoKey,
		validator: validate,
		logger:    logger.With().Str("component", "directory_service").Logger(),
	}
}

// counterpartRoles maps a caller's role category to the raw role tags it may
// contact. The legacy volunteer tag rides along with driver so historical
// accounts stay reachable.
func counterpartRoles(role models.Role) []string {
	switch role {
	case models.RoleCanteen:
		return []string{string(models.RoleNGO), string(models.RoleDriver), models.RoleVolunteer}
	case models.RoleNGO:
		return []string{string(models.RoleCanteen), string(models.RoleDriver), models.RoleVolunteer}
	case models.RoleDriver:
		return []string{string(models.RoleCanteen), string(models.RoleNGO)}
	default:
		return nil
	}
}

func (s *directoryService) Contacts(ctx context.Context, caller Caller) ([]dto.ContactResponse, error) {
	roles := counterpartRoles(caller.Role)
	if len(roles) == 0 {
		return []dto.ContactResponse{}, nil
	}

	users, err := s.users.ListByRoles(ctx, roles)
	if err != nil {
		return nil, err
	}

	return dto.NewContactResponseSlice(users), nil
}

// Nearby returns counterpart contacts within the requested radius, closest
// first. Distance is a plain circle check against last-reported coordinates.
func (s *directoryService) Nearby(ctx context.Context, caller Caller, query dto.NearbyQuery) ([]dto.NearbyContactResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}
	if s.redis == nil {
		return nil, ErrLocationUnavailable
	}

	radius := query.RadiusKm
	if radius <= 0 {
		radius = defaultNearbyRadiusKm
	}

	locations, err := s.redis.GeoRadius(ctx, s.geoKey, query.Longitude, query.Latitude, &redis.GeoRadiusQuery{
		Radius:    radius,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
		Count:     100,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius lookup: %w", err)
	}

	wantRole := models.NormalizeRole(query.Role)
	allowed := make(map[models.Role]struct{})
	for _, raw := range counterpartRoles(caller.Role) {
		allowed[models.NormalizeRole(raw)] = struct{}{}
	}

	ids := make([]string, 0, len(locations))
	byID := make(map[string]redis.GeoLocation, len(locations))
	for _, loc := range locations {
		if loc.Name == caller.ID {
			continue
		}
		ids = append(ids, loc.Name)
		byID[loc.Name] = loc
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	userByID := make(map[string]models.User, len(users))
	for _, user := range users {
		userByID[user.ID] = user
	}

	// Walk the ids in index order to keep the closest-first sort.
	out := make([]dto.NearbyContactResponse, 0, len(ids))
	for _, id := range ids {
		user, ok := userByID[id]
		if !ok {
			continue
		}
		role := user.NormalizedRole()
		if _, ok := allowed[role]; !ok {
			continue
		}
		if wantRole != "" && role != wantRole {
			continue
		}
		loc := byID[id]
		out = append(out, dto.NearbyContactResponse{
			ContactResponse: dto.NewContactResponse(user),
			Latitude:        loc.Latitude,
			Longitude:       loc.Longitude,
			DistanceKm:      loc.Dist,
		})
	}

	return out, nil
}

// UpsertLocation stores the caller's coordinates in both the relational
// directory and the geospatial index.
func (s *directoryService) UpsertLocation(ctx context.Context, caller Caller, payload dto.LocationUpdateRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	if err := s.users.UpdateLocation(ctx, caller.ID, payload.Latitude, payload.Longitude); err != nil {
		return err
	}

	if s.redis == nil {
		return nil
	}

	err := s.redis.GeoAdd(ctx, s.geoKey, &redis.GeoLocation{
		Name:      caller.ID,
		Latitude:  payload.Latitude,
		Longitude: payload.Longitude,
	}).Err()
	if err != nil {
		// The relational write already committed; the index catches up on
		// the next report.
		s.logger.Warn().Err(err).Str("user_id", caller.ID).Msg("failed to update geo index")
	}

	return nil
}
