package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schedulify/timetable-api/internal/dto"
)

func entry(subject, teacher, room string) *dto.TimetableEntry {
	return &dto.TimetableEntry{Subject: subject, Teacher: teacher, Room: room, Section: "Section A"}
}

func TestEvaluateFitnessEmptyGrid(t *testing.T) {
	grid := dto.TimetableGrid{
		"Monday":  {"08:00 - 09:00": nil, "09:00 - 10:00": nil},
		"Tuesday": {"08:00 - 09:00": nil, "09:00 - 10:00": nil},
	}
	report := evaluateFitness(grid, []string{"08:00 - 09:00", "09:00 - 10:00"})

	assert.Equal(t, 0.0, report.FillRatio)
	assert.Zero(t, report.ClashCount)
	assert.Equal(t, 0.0, report.LoadImbalance)
	assert.Equal(t, 0.0, report.Score)
}

func TestEvaluateFitnessFullGridBalancedLoad(t *testing.T) {
	grid := dto.TimetableGrid{
		"Monday": {
			"08:00 - 09:00": entry("Math", "Alice", "R1"),
			"09:00 - 10:00": entry("History", "Bob", "R1"),
		},
		"Tuesday": {
			"08:00 - 09:00": entry("History", "Bob", "R2"),
			"09:00 - 10:00": entry("Math", "Alice", "R2"),
		},
	}
	report := evaluateFitness(grid, []string{"08:00 - 09:00", "09:00 - 10:00"})

	assert.Equal(t, 1.0, report.FillRatio)
	assert.Zero(t, report.ClashCount)
	assert.Equal(t, 0.0, report.LoadImbalance)
	assert.Equal(t, 1.0, report.Score)
}

func TestEvaluateFitnessPenalisesUnevenLoad(t *testing.T) {
	grid := dto.TimetableGrid{
		"Monday": {
			"08:00 - 09:00": entry("Math", "Alice", "R1"),
			"09:00 - 10:00": entry("Math", "Alice", "R1"),
		},
		"Tuesday": {
			"08:00 - 09:00": entry("Math", "Alice", "R1"),
			"09:00 - 10:00": entry("History", "Bob", "R1"),
		},
	}
	report := evaluateFitness(grid, []string{"08:00 - 09:00", "09:00 - 10:00"})

	assert.Equal(t, 1.0, report.FillRatio)
	assert.Greater(t, report.LoadImbalance, 0.0)
	assert.LessOrEqual(t, report.LoadImbalance, 1.0)
	assert.Less(t, report.Score, 1.0)
	assert.InDelta(t, 1.0-loadImbalanceWeight*report.LoadImbalance, report.Score, 1e-9)
}

func TestEvaluateFitnessPartialFill(t *testing.T) {
	grid := dto.TimetableGrid{
		"Monday": {
			"08:00 - 09:00": entry("Math", "Alice", "R1"),
			"09:00 - 10:00": nil,
		},
	}
	report := evaluateFitness(grid, []string{"08:00 - 09:00", "09:00 - 10:00"})

	assert.Equal(t, 0.5, report.FillRatio)
	assert.Equal(t, 0.5, report.Score)
}

func TestLoadImbalance(t *testing.T) {
	assert.Equal(t, 0.0, loadImbalance(nil))
	assert.Equal(t, 0.0, loadImbalance(map[string]int{"Alice": 5}))
	assert.Equal(t, 0.0, loadImbalance(map[string]int{"Alice": 3, "Bob": 3}))

	skewed := loadImbalance(map[string]int{"Alice": 9, "Bob": 1})
	assert.Greater(t, skewed, 0.0)
	assert.LessOrEqual(t, skewed, 1.0)

	// Extreme skew clamps at 1 rather than growing unbounded.
	extreme := loadImbalance(map[string]int{"A": 100, "B": 0, "C": 0, "D": 0})
	assert.Equal(t, 1.0, extreme)
}
