package service

import (
	"fmt"
	"math/rand"
	"strings"

	appErrors "github.com/schedulify/timetable-api/pkg/errors"

	"github.com/schedulify/timetable-api/internal/dto"
)

// catalog holds the cleaned input collections for one generation run. It is
// built once per request and never mutated afterwards; the engine only reads
// from it.
type catalog struct {
	Teachers  []dto.TeacherInput
	Rooms     []dto.RoomInput
	Subjects  []dto.SubjectInput
	Sections  []dto.SectionInput
	TimeSlots []dto.TimeSlotInput

	// SlotLabels are the display labels in input order, one per retained time
	// slot. Slots rendering to an identical label collapse to the first.
	SlotLabels []string
}

// buildCatalog filters unusable entries from the raw request and verifies each
// collection still has at least one member. Unusable means a blank name, a
// teacher with no subject labels, or a slot missing its start or end.
func buildCatalog(req *dto.GenerateTimetableRequest) (*catalog, error) {
	c := &catalog{}

	for _, t := range req.Teachers {
		if strings.TrimSpace(t.Name) == "" {
			continue
		}
		subjects := make([]string, 0, len(t.Subjects))
		for _, s := range t.Subjects {
			if strings.TrimSpace(s) != "" {
				subjects = append(subjects, s)
			}
		}
		if len(subjects) == 0 {
			continue
		}
		t.Subjects = subjects
		c.Teachers = append(c.Teachers, t)
	}
	if len(c.Teachers) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one teacher with subjects is required")
	}

	for _, r := range req.Rooms {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		c.Rooms = append(c.Rooms, r)
	}
	if len(c.Rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one room is required")
	}

	for _, s := range req.Subjects {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		c.Subjects = append(c.Subjects, s)
	}
	if len(c.Subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one subject is required")
	}

	for _, s := range req.Sections {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		c.Sections = append(c.Sections, s)
	}
	if len(c.Sections) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one section is required")
	}

	seenLabels := make(map[string]bool)
	for _, ts := range req.TimeSlots {
		if strings.TrimSpace(ts.Start) == "" || strings.TrimSpace(ts.End) == "" {
			continue
		}
		label := fmt.Sprintf("%s - %s", ts.Start, ts.End)
		// The grid is keyed by label, so a second slot with the same start and
		// end can never hold its own cell. First occurrence wins.
		if seenLabels[label] {
			continue
		}
		seenLabels[label] = true
		c.TimeSlots = append(c.TimeSlots, ts)
		c.SlotLabels = append(c.SlotLabels, label)
	}
	if len(c.TimeSlots) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one time slot with start and end is required")
	}

	return c, nil
}

// slotKey identifies one (day, period) cell for occupancy tracking.
type slotKey struct {
	Day   string
	Label string
}

// busyIndex tracks which teachers and rooms are already committed in each
// (day, period) cell. Occupants are keyed by teacherKey/roomKey so two
// teachers sharing a display name stay distinct.
type busyIndex struct {
	teachers map[string]map[slotKey]bool
	rooms    map[string]map[slotKey]bool
}

func newBusyIndex() *busyIndex {
	return &busyIndex{
		teachers: make(map[string]map[slotKey]bool),
		rooms:    make(map[string]map[slotKey]bool),
	}
}

func (b *busyIndex) IsTeacherFree(id string, key slotKey) bool {
	return !b.teachers[id][key]
}

func (b *busyIndex) IsRoomFree(id string, key slotKey) bool {
	return !b.rooms[id][key]
}

// Reserve marks both the teacher and the room busy for the cell. Callers must
// have checked availability first; reserving an occupied cell is a bug.
func (b *busyIndex) Reserve(teacherID, roomID string, key slotKey) {
	if b.teachers[teacherID] == nil {
		b.teachers[teacherID] = make(map[slotKey]bool)
	}
	b.teachers[teacherID][key] = true
	if b.rooms[roomID] == nil {
		b.rooms[roomID] = make(map[slotKey]bool)
	}
	b.rooms[roomID][key] = true
}

// teacherKey identifies a teacher for occupancy tracking. Entries without an
// ID fall back to the display name.
func teacherKey(t dto.TeacherInput) string {
	if t.ID != "" {
		return t.ID
	}
	return t.Name
}

// roomKey identifies a room for occupancy tracking, ID first, name fallback.
func roomKey(r dto.RoomInput) string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name
}

// teacherCanTeach reports whether a teacher's subject list covers the subject.
// The match is a case-insensitive substring test in both directions, so
// "Math" covers "Mathematics" and vice versa. Short labels over-match ("Art"
// matches "Martial Arts"); callers accept that in exchange for tolerating
// free-text subject entry.
func teacherCanTeach(t dto.TeacherInput, subject string) bool {
	want := strings.ToLower(subject)
	for _, s := range t.Subjects {
		have := strings.ToLower(s)
		if strings.Contains(have, want) || strings.Contains(want, have) {
			return true
		}
	}
	return false
}

// engine performs one constructive generation pass over the catalog. All
// randomness flows through rng so a caller-supplied seed makes the run
// reproducible.
type engine struct {
	catalog     *catalog
	days        []string
	maxAttempts int
	rng         *rand.Rand

	busy *busyIndex
	// cells is indexed [dayIdx][slotIdx]; nil means the cell is free.
	cells    [][]*dto.TimetableEntry
	attempts int
}

func newEngine(c *catalog, days []string, maxAttempts int, rng *rand.Rand) *engine {
	cells := make([][]*dto.TimetableEntry, len(days))
	for i := range cells {
		cells[i] = make([]*dto.TimetableEntry, len(c.TimeSlots))
	}
	return &engine{
		catalog:     c,
		days:        days,
		maxAttempts: maxAttempts,
		rng:         rng,
		busy:        newBusyIndex(),
		cells:       cells,
	}
}

// run walks the grid day by day, period by period, section by section, and
// commits at most one entry per cell. Each iteration draws a random subject,
// then a random qualified free teacher, then a random free room; any failed
// draw skips the combination without retry. The attempt budget counts
// committed placements and aborts the walk outright when exhausted.
func (e *engine) run() {
	for dayIdx, day := range e.days {
		for slotIdx := range e.catalog.TimeSlots {
			key := slotKey{Day: day, Label: e.catalog.SlotLabels[slotIdx]}
			for _, section := range e.catalog.Sections {
				if e.attempts >= e.maxAttempts {
					return
				}
				// An earlier section already claimed this cell; the grid holds
				// one entry per (day, slot) regardless of section count.
				if e.cells[dayIdx][slotIdx] != nil {
					continue
				}

				subject := e.catalog.Subjects[e.rng.Intn(len(e.catalog.Subjects))]

				teacher, ok := e.pickTeacher(subject.Name, key)
				if !ok {
					continue
				}
				room, ok := e.pickRoom(key)
				if !ok {
					continue
				}

				e.busy.Reserve(teacherKey(teacher), roomKey(room), key)
				e.cells[dayIdx][slotIdx] = &dto.TimetableEntry{
					Subject: subject.Name,
					Teacher: teacher.Name,
					Room:    room.Name,
					Section: section.Name,
				}
				e.attempts++
			}
		}
	}
}

// pickTeacher draws uniformly from the teachers that are qualified for the
// subject and free in the cell.
func (e *engine) pickTeacher(subject string, key slotKey) (dto.TeacherInput, bool) {
	eligible := make([]dto.TeacherInput, 0, len(e.catalog.Teachers))
	for _, t := range e.catalog.Teachers {
		if teacherCanTeach(t, subject) && e.busy.IsTeacherFree(teacherKey(t), key) {
			eligible = append(eligible, t)
		}
	}
	if len(eligible) == 0 {
		return dto.TeacherInput{}, false
	}
	return eligible[e.rng.Intn(len(eligible))], true
}

// pickRoom draws uniformly from the rooms free in the cell.
func (e *engine) pickRoom(key slotKey) (dto.RoomInput, bool) {
	free := make([]dto.RoomInput, 0, len(e.catalog.Rooms))
	for _, r := range e.catalog.Rooms {
		if e.busy.IsRoomFree(roomKey(r), key) {
			free = append(free, r)
		}
	}
	if len(free) == 0 {
		return dto.RoomInput{}, false
	}
	return free[e.rng.Intn(len(free))], true
}

// grid exports the cell matrix as the day -> slot label -> entry map used on
// the wire. Every (day, label) key is present; free cells carry nil.
func (e *engine) grid() dto.TimetableGrid {
	out := make(dto.TimetableGrid, len(e.days))
	for dayIdx, day := range e.days {
		row := make(map[string]*dto.TimetableEntry, len(e.catalog.SlotLabels))
		for slotIdx, label := range e.catalog.SlotLabels {
			row[label] = e.cells[dayIdx][slotIdx]
		}
		out[day] = row
	}
	return out
}
