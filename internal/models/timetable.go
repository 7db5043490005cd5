package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Timetable is a stored generation result. Rows are append-only: a grid is
// never modified after creation, only listed, fetched, or deleted.
type Timetable struct {
	ID        string         `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"user_id"`
	Name      string         `db:"name" json:"name"`
	Grid      types.JSONText `db:"grid" json:"grid"`
	TimeSlots types.JSONText `db:"time_slots" json:"time_slots"`
	Fitness   float64        `db:"fitness" json:"fitness"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// TimetableFilter describes query params for listing stored timetables.
type TimetableFilter struct {
	UserID   string
	Page     int
	PageSize int
}
