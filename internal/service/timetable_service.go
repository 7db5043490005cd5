package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/schedulify/timetable-api/internal/dto"
	"github.com/schedulify/timetable-api/internal/models"
	"github.com/schedulify/timetable-api/pkg/config"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
)

// TimetableRepository abstracts persistence for stored timetables.
type TimetableRepository interface {
	Create(ctx context.Context, timetable *models.Timetable) error
	ListByUser(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error)
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	Delete(ctx context.Context, id string) error
}

// TimetableService runs timetable generation and manages stored results. Each
// Generate call builds its own catalog, occupancy index, and randomness
// source, so concurrent requests never share mutable state.
type TimetableService struct {
	repo     TimetableRepository
	cache    *CacheService
	metrics  *MetricsService
	cfg      config.GeneratorConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewTimetableService constructs the timetable service.
func NewTimetableService(repo TimetableRepository, cache *CacheService, metrics *MetricsService, cfg config.GeneratorConfig, logger *zap.Logger) *TimetableService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1000
	}
	if len(cfg.Days) == 0 {
		cfg.Days = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}
	}
	return &TimetableService{
		repo:     repo,
		cache:    cache,
		metrics:  metrics,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// Generate runs one constructive pass over the request's collections and
// returns the grid, the ordered slot labels, and the fitness score. Partial
// fill is a normal outcome; only missing input collections are errors.
func (s *TimetableService) Generate(ctx context.Context, req *dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if req == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request body is required")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, validationMessage(err))
	}

	cat, err := buildCatalog(req)
	if err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if req.Seed != nil {
		seed = *req.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	start := time.Now()
	eng := newEngine(cat, s.cfg.Days, s.cfg.MaxAttempts, rng)
	eng.run()
	grid := eng.grid()

	report := evaluateFitness(grid, cat.SlotLabels)
	if report.ClashCount > 0 {
		s.logger.Error("generated grid contains clashes",
			zap.Int("clash_count", report.ClashCount),
			zap.Int64("seed", seed),
			zap.Int("attempts", eng.attempts),
		)
		return nil, appErrors.Wrap(
			fmt.Errorf("clash count %d in generated grid", report.ClashCount),
			appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, appErrors.ErrInvariant.Message,
		)
	}

	if s.metrics != nil {
		s.metrics.RecordGeneration(time.Since(start), report.FillRatio, report.Score)
	}
	s.logger.Info("timetable generated",
		zap.Float64("fill_ratio", report.FillRatio),
		zap.Float64("fitness", report.Score),
		zap.Int("attempts", eng.attempts),
		zap.Duration("duration", time.Since(start)),
	)

	return &dto.GenerateTimetableResponse{
		Success:   true,
		Timetable: grid,
		TimeSlots: cat.SlotLabels,
		Fitness:   report.Score,
	}, nil
}

// Save persists a generated grid for the given user. Stored rows are
// append-only; there is no update path.
func (s *TimetableService) Save(ctx context.Context, userID string, req *dto.SaveTimetableRequest) (*models.Timetable, error) {
	if userID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, validationMessage(err))
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Timetable " + time.Now().Format("2006-01-02 15:04")
	}

	grid, err := json.Marshal(req.Timetable)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}
	slots, err := json.Marshal(req.TimeSlots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, appErrors.ErrInternal.Message)
	}

	timetable := &models.Timetable{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		Grid:      types.JSONText(grid),
		TimeSlots: types.JSONText(slots),
		Fitness:   req.Fitness,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, timetable); err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, fmt.Sprintf("timetable:list:%s:*", userID))
	}
	s.logger.Info("timetable saved", zap.String("timetable_id", timetable.ID), zap.String("user_id", userID))
	return timetable, nil
}

// List returns the user's stored timetables, newest first.
func (s *TimetableService) List(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, *models.Pagination, error) {
	if filter.UserID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	cacheKey := fmt.Sprintf("timetable:list:%s:%d:%d", filter.UserID, filter.Page, filter.PageSize)
	if s.cache != nil {
		var cached struct {
			Items      []models.Timetable `json:"items"`
			Pagination models.Pagination  `json:"pagination"`
		}
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached.Items, &cached.Pagination, nil
		}
	}

	items, total, err := s.repo.ListByUser(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}

	if s.cache != nil {
		payload := struct {
			Items      []models.Timetable `json:"items"`
			Pagination models.Pagination  `json:"pagination"`
		}{Items: items, Pagination: *pagination}
		_ = s.cache.Set(ctx, cacheKey, payload, s.cfg.CacheTTL)
	}
	return items, pagination, nil
}

// Get fetches one stored timetable, enforcing ownership.
func (s *TimetableService) Get(ctx context.Context, userID, id string) (*models.Timetable, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "timetable id is required")
	}

	cacheKey := "timetable:id:" + id
	if s.cache != nil {
		var cached models.Timetable
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			if cached.UserID != userID {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
			}
			return &cached, nil
		}
	}

	timetable, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Ownership failures surface as not-found to avoid leaking row existence.
	if timetable.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, timetable, s.cfg.CacheTTL)
	}
	return timetable, nil
}

// Delete removes a stored timetable owned by the user.
func (s *TimetableService) Delete(ctx context.Context, userID, id string) error {
	timetable, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, timetable.ID); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, "timetable:id:"+id)
		_ = s.cache.Invalidate(ctx, fmt.Sprintf("timetable:list:%s:*", userID))
	}
	s.logger.Info("timetable deleted", zap.String("timetable_id", id), zap.String("user_id", userID))
	return nil
}

// validationMessage flattens a validator error into a single client-facing
// sentence naming the first offending field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fieldName(fe))
		case "min":
			return fmt.Sprintf("%s must contain at least %s item(s)", fieldName(fe), fe.Param())
		case "email":
			return fmt.Sprintf("%s must be a valid email address", fieldName(fe))
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", fieldName(fe), fe.Param())
		default:
			return fmt.Sprintf("%s is invalid", fieldName(fe))
		}
	}
	return "validation failed"
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
}
