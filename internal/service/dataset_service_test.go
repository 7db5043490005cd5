package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/schedulify/timetable-api/pkg/errors"
)

func validUploads() map[string][]byte {
	return map[string][]byte{
		UploadTeachers: []byte("id,name,subjects\nt1,Alice,Math;Physics\nt2,Bob,History\n"),
		UploadRooms:    []byte("id,name\nr1,Room 101\nr2,Room 102\n"),
		UploadSubjects: []byte("id,name\ns1,Math\ns2,History\n"),
		UploadSections: []byte("id,name\nc1,Section A\n"),
		UploadTimeSlots: []byte(
			"id,start,end\nts1,08:00,09:00\nts2,09:00,10:00\n"),
	}
}

func TestDatasetServiceImport(t *testing.T) {
	svc := NewDatasetService(nil, 0, zap.NewNop())

	res, err := svc.Import(context.Background(), "u1", validUploads())
	require.NoError(t, err)

	require.Len(t, res.Teachers, 2)
	assert.Equal(t, "Alice", res.Teachers[0].Name)
	assert.Equal(t, []string{"Math", "Physics"}, res.Teachers[0].Subjects)
	assert.Len(t, res.Rooms, 2)
	assert.Len(t, res.Subjects, 2)
	assert.Len(t, res.Sections, 1)
	require.Len(t, res.TimeSlots, 2)
	assert.Equal(t, "08:00", res.TimeSlots[0].Start)
	assert.Zero(t, res.Skipped)
}

func TestDatasetServiceImportSkipsMalformedRows(t *testing.T) {
	uploads := validUploads()
	uploads[UploadTeachers] = []byte("id,name,subjects\nt1,Alice,Math\nt2,,History\nt3,Carol,\n")
	uploads[UploadTimeSlots] = []byte("id,start,end\nts1,08:00,09:00\nts2,,10:00\n")

	svc := NewDatasetService(nil, 0, zap.NewNop())
	res, err := svc.Import(context.Background(), "u1", uploads)
	require.NoError(t, err)

	assert.Len(t, res.Teachers, 1)
	assert.Len(t, res.TimeSlots, 1)
	assert.Equal(t, 3, res.Skipped)
}

func TestDatasetServiceImportRequiresAllFiles(t *testing.T) {
	uploads := validUploads()
	delete(uploads, UploadRooms)

	svc := NewDatasetService(nil, 0, zap.NewNop())
	_, err := svc.Import(context.Background(), "u1", uploads)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDatasetServiceImportEnforcesSizeLimit(t *testing.T) {
	uploads := validUploads()
	svc := NewDatasetService(nil, 8, zap.NewNop())

	_, err := svc.Import(context.Background(), "u1", uploads)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDatasetServiceImportRejectsBadCSV(t *testing.T) {
	uploads := validUploads()
	uploads[UploadRooms] = []byte("id,name\n\"unterminated\n")

	svc := NewDatasetService(nil, 0, zap.NewNop())
	_, err := svc.Import(context.Background(), "u1", uploads)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
