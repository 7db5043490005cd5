package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/schedulify/timetable-api/internal/dto"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
	"github.com/schedulify/timetable-api/pkg/storage"
)

// Upload file keys expected in the multipart form.
const (
	UploadTeachers  = "teachers"
	UploadRooms     = "rooms"
	UploadSubjects  = "subjects"
	UploadSections  = "sections"
	UploadTimeSlots = "timeslots"
)

// DatasetService parses uploaded CSV files into the generation input
// collections. Raw uploads are retained on disk so a bad import can be
// inspected after the fact.
type DatasetService struct {
	storage      *storage.LocalStorage
	maxFileBytes int64
	logger       *zap.Logger
}

// NewDatasetService constructs the dataset service.
func NewDatasetService(store *storage.LocalStorage, maxFileBytes int64, logger *zap.Logger) *DatasetService {
	if maxFileBytes <= 0 {
		maxFileBytes = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DatasetService{storage: store, maxFileBytes: maxFileBytes, logger: logger}
}

// Import parses the uploaded files keyed by collection name. All five files
// are required. Rows with missing required columns are skipped and counted,
// not rejected.
func (s *DatasetService) Import(ctx context.Context, userID string, uploads map[string][]byte) (*dto.DatasetImportResponse, error) {
	for _, key := range []string{UploadTeachers, UploadRooms, UploadSubjects, UploadSections, UploadTimeSlots} {
		data, ok := uploads[key]
		if !ok || len(data) == 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s.csv is required", key))
		}
		if int64(len(data)) > s.maxFileBytes {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s.csv exceeds the upload size limit", key))
		}
	}

	resp := &dto.DatasetImportResponse{}

	teachers, skipped, err := parseTeachers(uploads[UploadTeachers])
	if err != nil {
		return nil, err
	}
	resp.Teachers = teachers
	resp.Skipped += skipped

	rooms, skipped, err := parseNamed(uploads[UploadRooms], UploadRooms)
	if err != nil {
		return nil, err
	}
	for _, r := range rooms {
		resp.Rooms = append(resp.Rooms, dto.RoomInput{ID: r.id, Name: r.name})
	}
	resp.Skipped += skipped

	subjects, skipped, err := parseNamed(uploads[UploadSubjects], UploadSubjects)
	if err != nil {
		return nil, err
	}
	for _, r := range subjects {
		resp.Subjects = append(resp.Subjects, dto.SubjectInput{ID: r.id, Name: r.name})
	}
	resp.Skipped += skipped

	sections, skipped, err := parseNamed(uploads[UploadSections], UploadSections)
	if err != nil {
		return nil, err
	}
	for _, r := range sections {
		resp.Sections = append(resp.Sections, dto.SectionInput{ID: r.id, Name: r.name})
	}
	resp.Skipped += skipped

	slots, skipped, err := parseTimeSlots(uploads[UploadTimeSlots])
	if err != nil {
		return nil, err
	}
	resp.TimeSlots = slots
	resp.Skipped += skipped

	s.retainUploads(userID, uploads)
	s.logger.Info("dataset imported",
		zap.String("user_id", userID),
		zap.Int("teachers", len(resp.Teachers)),
		zap.Int("rooms", len(resp.Rooms)),
		zap.Int("subjects", len(resp.Subjects)),
		zap.Int("sections", len(resp.Sections)),
		zap.Int("time_slots", len(resp.TimeSlots)),
		zap.Int("skipped", resp.Skipped),
	)
	return resp, nil
}

func (s *DatasetService) retainUploads(userID string, uploads map[string][]byte) {
	if s.storage == nil {
		return
	}
	stamp := time.Now().UTC().Format("20060102-150405")
	for key, data := range uploads {
		name := fmt.Sprintf("%s/%s/%s.csv", userID, stamp, key)
		if _, err := s.storage.Save(name, data); err != nil {
			s.logger.Warn("failed to retain dataset upload", zap.String("file", name), zap.Error(err))
		}
	}
}

type namedRow struct {
	id   string
	name string
}

// parseTeachers reads id,name,subjects rows. Subjects are separated with ';'
// inside the third column.
func parseTeachers(data []byte) ([]dto.TeacherInput, int, error) {
	records, err := readCSV(data, UploadTeachers)
	if err != nil {
		return nil, 0, err
	}
	var out []dto.TeacherInput
	skipped := 0
	for _, rec := range records {
		if len(rec) < 3 || strings.TrimSpace(rec[1]) == "" {
			skipped++
			continue
		}
		subjects := make([]string, 0)
		for _, s := range strings.Split(rec[2], ";") {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				subjects = append(subjects, trimmed)
			}
		}
		if len(subjects) == 0 {
			skipped++
			continue
		}
		out = append(out, dto.TeacherInput{
			ID:       strings.TrimSpace(rec[0]),
			Name:     strings.TrimSpace(rec[1]),
			Subjects: subjects,
		})
	}
	return out, skipped, nil
}

// parseNamed reads id,name rows shared by rooms, subjects, and sections.
func parseNamed(data []byte, file string) ([]namedRow, int, error) {
	records, err := readCSV(data, file)
	if err != nil {
		return nil, 0, err
	}
	var out []namedRow
	skipped := 0
	for _, rec := range records {
		if len(rec) < 2 || strings.TrimSpace(rec[1]) == "" {
			skipped++
			continue
		}
		out = append(out, namedRow{id: strings.TrimSpace(rec[0]), name: strings.TrimSpace(rec[1])})
	}
	return out, skipped, nil
}

// parseTimeSlots reads id,start,end rows.
func parseTimeSlots(data []byte) ([]dto.TimeSlotInput, int, error) {
	records, err := readCSV(data, UploadTimeSlots)
	if err != nil {
		return nil, 0, err
	}
	var out []dto.TimeSlotInput
	skipped := 0
	for _, rec := range records {
		if len(rec) < 3 || strings.TrimSpace(rec[1]) == "" || strings.TrimSpace(rec[2]) == "" {
			skipped++
			continue
		}
		out = append(out, dto.TimeSlotInput{
			ID:    strings.TrimSpace(rec[0]),
			Start: strings.TrimSpace(rec[1]),
			End:   strings.TrimSpace(rec[2]),
		})
	}
	return out, skipped, nil
}

// readCSV parses the file and drops a leading header row when the first cell
// reads "id".
func readCSV(data []byte, file string) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s.csv is not valid CSV", file))
		}
		records = append(records, rec)
	}
	if len(records) > 0 && strings.EqualFold(strings.TrimSpace(records[0][0]), "id") {
		records = records[1:]
	}
	return records, nil
}
