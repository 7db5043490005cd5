package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schedulify/timetable-api/internal/dto"
	"github.com/schedulify/timetable-api/internal/models"
	"github.com/schedulify/timetable-api/pkg/config"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
)

type mockTimetableRepo struct {
	stored  map[string]*models.Timetable
	deleted []string
}

func newMockTimetableRepo() *mockTimetableRepo {
	return &mockTimetableRepo{stored: make(map[string]*models.Timetable)}
}

func (m *mockTimetableRepo) Create(ctx context.Context, timetable *models.Timetable) error {
	m.stored[timetable.ID] = timetable
	return nil
}

func (m *mockTimetableRepo) ListByUser(ctx context.Context, filter models.TimetableFilter) ([]models.Timetable, int, error) {
	var out []models.Timetable
	for _, tt := range m.stored {
		if tt.UserID == filter.UserID {
			out = append(out, *tt)
		}
	}
	return out, len(out), nil
}

func (m *mockTimetableRepo) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	tt, ok := m.stored[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}
	return tt, nil
}

func (m *mockTimetableRepo) Delete(ctx context.Context, id string) error {
	delete(m.stored, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func testGeneratorConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		Days:        []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"},
		MaxAttempts: 1000,
	}
}

func newTestTimetableService(repo TimetableRepository) *TimetableService {
	return NewTimetableService(repo, nil, nil, testGeneratorConfig(), zap.NewNop())
}

func TestTimetableServiceGenerateRejectsMissingCollections(t *testing.T) {
	svc := newTestTimetableService(newMockTimetableRepo())

	req := singletonRequest()
	req.Rooms = nil
	_, err := svc.Generate(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerateWireShape(t *testing.T) {
	svc := newTestTimetableService(newMockTimetableRepo())

	res, err := svc.Generate(context.Background(), singletonRequest())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"08:00 - 09:00"}, res.TimeSlots)
	require.Len(t, res.Timetable, 5)
	for _, day := range testGeneratorConfig().Days {
		row, ok := res.Timetable[day]
		require.True(t, ok, "missing day %s", day)
		assert.Contains(t, row, "08:00 - 09:00")
	}
}

func TestTimetableServiceGenerateDeterministicWithSeed(t *testing.T) {
	svc := newTestTimetableService(newMockTimetableRepo())

	seed := int64(42)
	req1 := singletonRequest()
	req1.Teachers = append(req1.Teachers, dto.TeacherInput{ID: "t2", Name: "Bob", Subjects: []string{"Math"}})
	req1.Seed = &seed
	req2 := singletonRequest()
	req2.Teachers = append(req2.Teachers, dto.TeacherInput{ID: "t2", Name: "Bob", Subjects: []string{"Math"}})
	req2.Seed = &seed

	res1, err := svc.Generate(context.Background(), req1)
	require.NoError(t, err)
	res2, err := svc.Generate(context.Background(), req2)
	require.NoError(t, err)

	assert.Equal(t, res1.Timetable, res2.Timetable)
	assert.Equal(t, res1.Fitness, res2.Fitness)
}

func TestTimetableServiceGenerateToleratesDuplicateSlots(t *testing.T) {
	svc := newTestTimetableService(newMockTimetableRepo())

	seed := int64(1)
	req := singletonRequest()
	req.TimeSlots = append(req.TimeSlots, dto.TimeSlotInput{ID: "ts2", Start: "08:00", End: "09:00"})
	req.Seed = &seed

	res, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"08:00 - 09:00"}, res.TimeSlots)
	for _, day := range testGeneratorConfig().Days {
		require.Len(t, res.Timetable[day], 1)
	}
}

func TestTimetableServiceSaveAndGet(t *testing.T) {
	repo := newMockTimetableRepo()
	svc := newTestTimetableService(repo)

	res, err := svc.Generate(context.Background(), singletonRequest())
	require.NoError(t, err)

	saved, err := svc.Save(context.Background(), "u1", &dto.SaveTimetableRequest{
		Name:      "First Draft",
		Timetable: res.Timetable,
		TimeSlots: res.TimeSlots,
		Fitness:   res.Fitness,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "First Draft", saved.Name)

	fetched, err := svc.Get(context.Background(), "u1", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, fetched.ID)
}

func TestTimetableServiceSaveDefaultsName(t *testing.T) {
	svc := newTestTimetableService(newMockTimetableRepo())

	res, err := svc.Generate(context.Background(), singletonRequest())
	require.NoError(t, err)

	saved, err := svc.Save(context.Background(), "u1", &dto.SaveTimetableRequest{
		Timetable: res.Timetable,
		TimeSlots: res.TimeSlots,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.Name)
}

func TestTimetableServiceGetEnforcesOwnership(t *testing.T) {
	repo := newMockTimetableRepo()
	svc := newTestTimetableService(repo)

	res, err := svc.Generate(context.Background(), singletonRequest())
	require.NoError(t, err)
	saved, err := svc.Save(context.Background(), "owner", &dto.SaveTimetableRequest{
		Timetable: res.Timetable,
		TimeSlots: res.TimeSlots,
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "intruder", saved.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceDelete(t *testing.T) {
	repo := newMockTimetableRepo()
	svc := newTestTimetableService(repo)

	res, err := svc.Generate(context.Background(), singletonRequest())
	require.NoError(t, err)
	saved, err := svc.Save(context.Background(), "u1", &dto.SaveTimetableRequest{
		Timetable: res.Timetable,
		TimeSlots: res.TimeSlots,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), "u1", saved.ID))
	assert.Contains(t, repo.deleted, saved.ID)

	_, err = svc.Get(context.Background(), "u1", saved.ID)
	require.Error(t, err)
}
