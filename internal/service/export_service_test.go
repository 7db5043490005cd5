package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/schedulify/timetable-api/internal/models"
	"github.com/schedulify/timetable-api/pkg/config"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
	"github.com/schedulify/timetable-api/pkg/storage"
)

func storedTimetable(userID string) *models.Timetable {
	grid := `{
		"Tuesday": {"08:00 - 09:00": {"subject":"History","teacher":"Bob","room":"Room 102","section":"Section A"}},
		"Monday":  {"08:00 - 09:00": {"subject":"Math","teacher":"Alice","room":"Room 101","section":"Section A"}, "09:00 - 10:00": null}
	}`
	return &models.Timetable{
		ID:        "tt1",
		UserID:    userID,
		Name:      "Week 12",
		Grid:      types.JSONText(grid),
		TimeSlots: types.JSONText(`["08:00 - 09:00","09:00 - 10:00"]`),
		Fitness:   0.75,
		CreatedAt: time.Now().UTC(),
	}
}

func newTestExportService(t *testing.T, repo TimetableRepository) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewExportService(repo, store, nil, config.ExportsConfig{
		WorkerConcurrency: 1,
		ResultTTL:         time.Hour,
		CleanupInterval:   time.Hour,
	}, zap.NewNop())
}

func TestBuildExportDataset(t *testing.T) {
	dataset, err := buildExportDataset(storedTimetable("u1"))
	require.NoError(t, err)

	assert.Equal(t, []string{"Day", "08:00 - 09:00", "09:00 - 10:00"}, dataset.Headers)
	require.Len(t, dataset.Rows, 2)
	assert.Equal(t, "Monday", dataset.Rows[0]["Day"])
	assert.Equal(t, "Math / Alice / Room 101", dataset.Rows[0]["08:00 - 09:00"])
	assert.Empty(t, dataset.Rows[0]["09:00 - 10:00"])
	assert.Equal(t, "Tuesday", dataset.Rows[1]["Day"])
	assert.Equal(t, "History / Bob / Room 102", dataset.Rows[1]["08:00 - 09:00"])
}

func TestBuildExportDatasetMalformedGrid(t *testing.T) {
	tt := storedTimetable("u1")
	tt.Grid = types.JSONText(`{"Monday": "not a row"}`)
	_, err := buildExportDataset(tt)
	require.Error(t, err)
}

func TestSortDays(t *testing.T) {
	days := []string{"Exam Day", "friday", "Monday", "Wednesday", "Career Day"}
	sortDays(days)
	assert.Equal(t, []string{"Monday", "Wednesday", "friday", "Career Day", "Exam Day"}, days)
}

func TestExportServiceEnqueueRejectsBadFormat(t *testing.T) {
	repo := newMockTimetableRepo()
	svc := newTestExportService(t, repo)

	_, err := svc.Enqueue(context.Background(), "u1", "tt1", models.ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportServiceEnqueueEnforcesOwnership(t *testing.T) {
	repo := newMockTimetableRepo()
	tt := storedTimetable("owner")
	require.NoError(t, repo.Create(context.Background(), tt))
	svc := newTestExportService(t, repo)
	svc.Start(context.Background())
	defer svc.Stop()

	_, err := svc.Enqueue(context.Background(), "intruder", tt.ID, models.ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Enqueue(context.Background(), "owner", "missing", models.ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceRendersCSVArtifact(t *testing.T) {
	repo := newMockTimetableRepo()
	tt := storedTimetable("u1")
	require.NoError(t, repo.Create(context.Background(), tt))
	svc := newTestExportService(t, repo)
	svc.Start(context.Background())
	defer svc.Stop()

	job, err := svc.Enqueue(context.Background(), "u1", tt.ID, models.ExportFormatCSV)
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.NotEqual(t, models.ExportStatusFailed, job.Status)

	require.Eventually(t, func() bool {
		record, err := svc.Get("u1", job.ID)
		return err == nil && record.Status == models.ExportStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	file, filename, err := svc.OpenArtifact("u1", job.ID)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, "timetable-tt1.csv", filename)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "Day,08:00 - 09:00"))
	assert.Contains(t, string(content), "Math / Alice / Room 101")
}

func TestExportServiceArtifactNotReady(t *testing.T) {
	repo := newMockTimetableRepo()
	tt := storedTimetable("u1")
	require.NoError(t, repo.Create(context.Background(), tt))
	svc := newTestExportService(t, repo)
	svc.Start(context.Background())
	defer svc.Stop()

	// Hidden from other users entirely.
	_, _, err := svc.OpenArtifact("intruder", "nonexistent")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
