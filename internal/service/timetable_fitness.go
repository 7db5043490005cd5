package service

import (
	"math"

	"github.com/schedulify/timetable-api/internal/dto"
)

const loadImbalanceWeight = 0.5

// fitnessReport scores a finished grid. Score is the headline number; the
// remaining fields are the raw terms it was computed from.
type fitnessReport struct {
	Score         float64
	FillRatio     float64
	ClashCount    int
	LoadImbalance float64
}

// evaluateFitness recomputes everything from the grid itself rather than
// trusting engine bookkeeping. The clash scan rebuilds teacher and room
// occupancy from scratch; any duplicate occupant at the same (day, slot)
// counts once per extra appearance. Deterministic given the grid.
func evaluateFitness(grid dto.TimetableGrid, slotLabels []string) fitnessReport {
	var filled, total int
	teacherLoads := make(map[string]int)
	teacherBusy := make(map[slotKey]map[string]bool)
	roomBusy := make(map[slotKey]map[string]bool)
	clashes := 0

	for day, row := range grid {
		for _, label := range slotLabels {
			total++
			entry := row[label]
			if entry == nil {
				continue
			}
			filled++
			teacherLoads[entry.Teacher]++

			key := slotKey{Day: day, Label: label}
			if teacherBusy[key] == nil {
				teacherBusy[key] = make(map[string]bool)
				roomBusy[key] = make(map[string]bool)
			}
			if teacherBusy[key][entry.Teacher] {
				clashes++
			}
			teacherBusy[key][entry.Teacher] = true
			if roomBusy[key][entry.Room] {
				clashes++
			}
			roomBusy[key][entry.Room] = true
		}
	}

	report := fitnessReport{ClashCount: clashes}
	if total > 0 {
		report.FillRatio = float64(filled) / float64(total)
	}
	report.LoadImbalance = loadImbalance(teacherLoads)
	report.Score = report.FillRatio - float64(report.ClashCount) - loadImbalanceWeight*report.LoadImbalance
	return report
}

// loadImbalance is the coefficient of variation of per-teacher assignment
// counts, clamped to [0, 1]. Zero or one distinct teacher means perfectly
// balanced.
func loadImbalance(loads map[string]int) float64 {
	if len(loads) < 2 {
		return 0
	}
	var sum float64
	for _, n := range loads {
		sum += float64(n)
	}
	mean := sum / float64(len(loads))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, n := range loads {
		d := float64(n) - mean
		variance += d * d
	}
	variance /= float64(len(loads))
	cv := math.Sqrt(variance) / mean
	if cv > 1 {
		return 1
	}
	return cv
}
