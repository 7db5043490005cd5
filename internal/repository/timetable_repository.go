package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/schedulify/timetable-api/internal/models"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
)

// TimetableRepository provides database access for stored timetables. Rows
// are append-only; there is no update statement.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository creates a new instance of TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// Create inserts a stored timetable.
func (r *TimetableRepository) Create(ctx context.Context, timetable *models.Timetable) error {
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO timetables (id, user_id, name, grid, time_slots, fitness, created_at) VALUES (:id, :user_id, :name, :grid, :time_slots, :fitness, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, timetable); err != nil {
		return fmt.Errorf("create timetable: %w", err)
	}
	return nil
}

// ListByUser returns the user's timetables, newest first, with a total count.
func (r *TimetableRepository) ListByUser(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT id, user_id, name, grid, time_slots, fitness, created_at FROM timetables WHERE user_id = $1 ORDER BY created_at DESC LIMIT %d OFFSET %d`, pageSize, offset)
	var timetables []models.Timetable
	if err := r.db.SelectContext(ctx, &timetables, listQuery, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("list timetables: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM timetables WHERE user_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, filter.UserID); err != nil {
		return nil, 0, fmt.Errorf("count timetables: %w", err)
	}

	return timetables, total, nil
}

// FindByID returns one stored timetable.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	const query = `SELECT id, user_id, name, grid, time_slots, fitness, created_at FROM timetables WHERE id = $1 LIMIT 1`
	var timetable models.Timetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, fmt.Errorf("find timetable by id: %w", err)
	}
	return &timetable, nil
}

// Delete removes a stored timetable.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	return nil
}
