package service

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schedulify/timetable-api/internal/dto"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
)

func singletonRequest() *dto.GenerateTimetableRequest {
	return &dto.GenerateTimetableRequest{
		Teachers:  []dto.TeacherInput{{ID: "t1", Name: "Alice", Subjects: []string{"Math"}}},
		Rooms:     []dto.RoomInput{{ID: "r1", Name: "Room 101"}},
		Subjects:  []dto.SubjectInput{{ID: "s1", Name: "Math"}},
		Sections:  []dto.SectionInput{{ID: "c1", Name: "Section A"}},
		TimeSlots: []dto.TimeSlotInput{{ID: "ts1", Start: "08:00", End: "09:00"}},
	}
}

func TestBuildCatalogFiltersBlankEntries(t *testing.T) {
	req := singletonRequest()
	req.Teachers = append(req.Teachers,
		dto.TeacherInput{ID: "t2", Name: "  ", Subjects: []string{"Math"}},
		dto.TeacherInput{ID: "t3", Name: "Bob", Subjects: []string{" ", ""}},
	)
	req.Rooms = append(req.Rooms, dto.RoomInput{ID: "r2", Name: ""})
	req.TimeSlots = append(req.TimeSlots, dto.TimeSlotInput{ID: "ts2", Start: "09:00", End: ""})

	cat, err := buildCatalog(req)
	require.NoError(t, err)
	assert.Len(t, cat.Teachers, 1)
	assert.Len(t, cat.Rooms, 1)
	assert.Len(t, cat.TimeSlots, 1)
	assert.Equal(t, []string{"08:00 - 09:00"}, cat.SlotLabels)
}

func TestBuildCatalogRejectsEmptyCollections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*dto.GenerateTimetableRequest)
	}{
		{"no teachers", func(r *dto.GenerateTimetableRequest) { r.Teachers = nil }},
		{"teachers without subjects", func(r *dto.GenerateTimetableRequest) {
			r.Teachers = []dto.TeacherInput{{ID: "t1", Name: "Alice"}}
		}},
		{"no rooms", func(r *dto.GenerateTimetableRequest) { r.Rooms = nil }},
		{"no subjects", func(r *dto.GenerateTimetableRequest) { r.Subjects = nil }},
		{"no sections", func(r *dto.GenerateTimetableRequest) { r.Sections = nil }},
		{"no usable slots", func(r *dto.GenerateTimetableRequest) {
			r.TimeSlots = []dto.TimeSlotInput{{ID: "ts1", Start: "08:00"}}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := singletonRequest()
			tc.mutate(req)
			_, err := buildCatalog(req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestBuildCatalogDeduplicatesSlotLabels(t *testing.T) {
	req := singletonRequest()
	req.TimeSlots = []dto.TimeSlotInput{
		{ID: "ts1", Start: "08:00", End: "09:00"},
		{ID: "ts2", Start: "08:00", End: "09:00"},
		{ID: "ts3", Start: "09:00", End: "10:00"},
	}

	cat, err := buildCatalog(req)
	require.NoError(t, err)
	assert.Equal(t, []string{"08:00 - 09:00", "09:00 - 10:00"}, cat.SlotLabels)
	require.Len(t, cat.TimeSlots, 2)
	assert.Equal(t, "ts1", cat.TimeSlots[0].ID)
}

func TestEngineDuplicateTimeSlotsStayClashFree(t *testing.T) {
	req := singletonRequest()
	req.TimeSlots = []dto.TimeSlotInput{
		{ID: "ts1", Start: "08:00", End: "09:00"},
		{ID: "ts2", Start: "08:00", End: "09:00"},
	}
	cat, err := buildCatalog(req)
	require.NoError(t, err)

	eng := newEngine(cat, []string{"Monday"}, 1000, rand.New(rand.NewSource(1)))
	eng.run()
	grid := eng.grid()

	require.Len(t, grid["Monday"], 1)
	require.NotNil(t, grid["Monday"]["08:00 - 09:00"])
	assert.Equal(t, 1, eng.attempts)

	report := evaluateFitness(grid, cat.SlotLabels)
	assert.Zero(t, report.ClashCount)
	assert.Equal(t, 1.0, report.FillRatio)
}

func TestBusyIndexTracksTeachersByID(t *testing.T) {
	first := dto.TeacherInput{ID: "t1", Name: "Alice"}
	second := dto.TeacherInput{ID: "t2", Name: "Alice"}
	anonymous := dto.TeacherInput{Name: "Bob"}

	assert.NotEqual(t, teacherKey(first), teacherKey(second))
	assert.Equal(t, "Bob", teacherKey(anonymous))
	assert.Equal(t, "r1", roomKey(dto.RoomInput{ID: "r1", Name: "Room 101"}))
	assert.Equal(t, "Room 101", roomKey(dto.RoomInput{Name: "Room 101"}))

	busy := newBusyIndex()
	key := slotKey{Day: "Monday", Label: "08:00 - 09:00"}
	busy.Reserve(teacherKey(first), "r1", key)

	assert.False(t, busy.IsTeacherFree(teacherKey(first), key))
	assert.True(t, busy.IsTeacherFree(teacherKey(second), key))
}

func TestTeacherCanTeachBidirectionalSubstring(t *testing.T) {
	teacher := dto.TeacherInput{Name: "Alice", Subjects: []string{"Math", "physics"}}

	assert.True(t, teacherCanTeach(teacher, "Math"))
	assert.True(t, teacherCanTeach(teacher, "MATHEMATICS"))
	assert.True(t, teacherCanTeach(teacher, "Physics"))
	assert.True(t, teacherCanTeach(dto.TeacherInput{Subjects: []string{"Mathematics"}}, "Math"))
	assert.False(t, teacherCanTeach(teacher, "Chemistry"))
}

func TestEngineSingleFeasibleCell(t *testing.T) {
	cat, err := buildCatalog(singletonRequest())
	require.NoError(t, err)

	eng := newEngine(cat, []string{"Monday"}, 1000, rand.New(rand.NewSource(1)))
	eng.run()
	grid := eng.grid()

	entry := grid["Monday"]["08:00 - 09:00"]
	require.NotNil(t, entry)
	assert.Equal(t, "Math", entry.Subject)
	assert.Equal(t, "Alice", entry.Teacher)
	assert.Equal(t, "Room 101", entry.Room)
	assert.Equal(t, "Section A", entry.Section)

	report := evaluateFitness(grid, cat.SlotLabels)
	assert.Equal(t, 1.0, report.FillRatio)
	assert.Zero(t, report.ClashCount)
	assert.Equal(t, 1.0, report.Score)
}

func TestEngineNoQualifiedTeacherLeavesGridEmpty(t *testing.T) {
	req := singletonRequest()
	req.Teachers = []dto.TeacherInput{{ID: "t1", Name: "Alice", Subjects: []string{"Physics"}}}
	cat, err := buildCatalog(req)
	require.NoError(t, err)

	eng := newEngine(cat, []string{"Monday"}, 1000, rand.New(rand.NewSource(1)))
	eng.run()
	grid := eng.grid()

	assert.Nil(t, grid["Monday"]["08:00 - 09:00"])

	report := evaluateFitness(grid, cat.SlotLabels)
	assert.Equal(t, 0.0, report.FillRatio)
	assert.Equal(t, 0.0, report.Score)
}

func TestEngineSharedCellAcrossSections(t *testing.T) {
	req := singletonRequest()
	req.Sections = []dto.SectionInput{
		{ID: "c1", Name: "Section A"},
		{ID: "c2", Name: "Section B"},
	}
	cat, err := buildCatalog(req)
	require.NoError(t, err)

	eng := newEngine(cat, []string{"Monday"}, 1000, rand.New(rand.NewSource(1)))
	eng.run()
	grid := eng.grid()

	// The cell holds one entry even with two sections competing for it.
	entry := grid["Monday"]["08:00 - 09:00"]
	require.NotNil(t, entry)
	assert.Equal(t, "Section A", entry.Section)
	assert.Equal(t, 1, eng.attempts)
}

func TestEngineNeverDoubleBooks(t *testing.T) {
	req := &dto.GenerateTimetableRequest{
		Teachers: []dto.TeacherInput{
			{ID: "t1", Name: "Alice", Subjects: []string{"Math"}},
			{ID: "t2", Name: "Bob", Subjects: []string{"Math", "History"}},
			{ID: "t3", Name: "Carol", Subjects: []string{"History"}},
		},
		Rooms: []dto.RoomInput{
			{ID: "r1", Name: "Room 101"},
			{ID: "r2", Name: "Room 102"},
		},
		Subjects: []dto.SubjectInput{
			{ID: "s1", Name: "Math"},
			{ID: "s2", Name: "History"},
		},
		Sections: []dto.SectionInput{
			{ID: "c1", Name: "Section A"},
			{ID: "c2", Name: "Section B"},
		},
		TimeSlots: []dto.TimeSlotInput{
			{ID: "ts1", Start: "08:00", End: "09:00"},
			{ID: "ts2", Start: "09:00", End: "10:00"},
			{ID: "ts3", Start: "10:00", End: "11:00"},
		},
	}
	days := []string{"Monday", "Tuesday", "Wednesday"}

	for seed := int64(0); seed < 25; seed++ {
		cat, err := buildCatalog(req)
		require.NoError(t, err)
		eng := newEngine(cat, days, 1000, rand.New(rand.NewSource(seed)))
		eng.run()
		grid := eng.grid()

		teacherBusy := make(map[string]bool)
		roomBusy := make(map[string]bool)
		for day, row := range grid {
			for label, entry := range row {
				if entry == nil {
					continue
				}
				tk := fmt.Sprintf("%s|%s|%s", day, label, entry.Teacher)
				rk := fmt.Sprintf("%s|%s|%s", day, label, entry.Room)
				assert.False(t, teacherBusy[tk], "teacher double-booked at seed %d: %s", seed, tk)
				assert.False(t, roomBusy[rk], "room double-booked at seed %d: %s", seed, rk)
				teacherBusy[tk] = true
				roomBusy[rk] = true

				// Every filled entry names a qualified teacher.
				var teacher dto.TeacherInput
				for _, cand := range cat.Teachers {
					if cand.Name == entry.Teacher {
						teacher = cand
					}
				}
				assert.True(t, teacherCanTeach(teacher, entry.Subject), "unqualified assignment at seed %d", seed)
			}
		}

		report := evaluateFitness(grid, cat.SlotLabels)
		assert.Zero(t, report.ClashCount, "seed %d", seed)
	}
}

func TestEngineDeterministicUnderSeed(t *testing.T) {
	req := singletonRequest()
	req.Teachers = append(req.Teachers, dto.TeacherInput{ID: "t2", Name: "Bob", Subjects: []string{"Math"}})
	req.Rooms = append(req.Rooms, dto.RoomInput{ID: "r2", Name: "Room 102"})
	req.TimeSlots = append(req.TimeSlots, dto.TimeSlotInput{ID: "ts2", Start: "09:00", End: "10:00"})
	days := []string{"Monday", "Tuesday"}

	run := func(seed int64) dto.TimetableGrid {
		cat, err := buildCatalog(req)
		require.NoError(t, err)
		eng := newEngine(cat, days, 1000, rand.New(rand.NewSource(seed)))
		eng.run()
		return eng.grid()
	}

	assert.Equal(t, run(42), run(42))
	assert.Equal(t, run(7), run(7))
}

func TestEngineAttemptBudgetIsHardCutoff(t *testing.T) {
	req := singletonRequest()
	req.TimeSlots = []dto.TimeSlotInput{
		{ID: "ts1", Start: "08:00", End: "09:00"},
		{ID: "ts2", Start: "09:00", End: "10:00"},
		{ID: "ts3", Start: "10:00", End: "11:00"},
	}
	cat, err := buildCatalog(req)
	require.NoError(t, err)

	eng := newEngine(cat, []string{"Monday", "Tuesday"}, 2, rand.New(rand.NewSource(1)))
	eng.run()
	grid := eng.grid()

	filled := 0
	for _, row := range grid {
		for _, entry := range row {
			if entry != nil {
				filled++
			}
		}
	}
	assert.Equal(t, 2, filled)
	assert.Equal(t, 2, eng.attempts)
}
