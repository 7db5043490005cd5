package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schedulify/timetable-api/internal/dto"
	"github.com/schedulify/timetable-api/internal/models"
	"github.com/schedulify/timetable-api/pkg/config"
	appErrors "github.com/schedulify/timetable-api/pkg/errors"
	"github.com/schedulify/timetable-api/pkg/export"
	"github.com/schedulify/timetable-api/pkg/jobs"
	"github.com/schedulify/timetable-api/pkg/storage"
)

// ExportService renders stored timetables to CSV or PDF in the background.
// Job records live in memory; artifacts live on disk and expire after the
// configured TTL.
type ExportService struct {
	timetables TimetableRepository
	storage    *storage.LocalStorage
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        config.ExportsConfig

	mu      sync.RWMutex
	records map[string]*models.ExportJob

	queue  *jobs.Queue
	cancel context.CancelFunc
}

// NewExportService constructs the export service and its worker queue.
func NewExportService(timetables TimetableRepository, store *storage.LocalStorage, metrics *MetricsService, cfg config.ExportsConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		timetables: timetables,
		storage:    store,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		records:    make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("timetable-exports", s.process, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool and the artifact cleanup loop.
func (s *ExportService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)
	go s.cleanupLoop(ctx)
}

// Stop shuts down workers.
func (s *ExportService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.queue.Stop()
}

// Enqueue creates a job record and schedules the render.
func (s *ExportService) Enqueue(ctx context.Context, userID, timetableID string, format models.ExportFormat) (*models.ExportJob, error) {
	if format != models.ExportFormatCSV && format != models.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	timetable, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		return nil, err
	}
	if timetable.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
	}

	record := &models.ExportJob{
		ID:          uuid.NewString(),
		TimetableID: timetableID,
		UserID:      userID,
		Format:      format,
		Status:      models.ExportStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
	s.mu.Lock()
	s.records[record.ID] = record
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: "export", Ref: record.ID}); err != nil {
		s.mu.Lock()
		delete(s.records, record.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	s.logger.Info("export job queued",
		zap.String("job_id", record.ID),
		zap.String("timetable_id", timetableID),
		zap.String("format", string(format)),
	)
	return s.snapshot(record.ID), nil
}

// Get returns the job record for the owning user.
func (s *ExportService) Get(userID, jobID string) (*models.ExportJob, error) {
	record := s.snapshot(jobID)
	if record == nil || record.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return record, nil
}

// OpenArtifact opens the rendered file for a completed job and returns a
// download filename alongside it. The caller closes the file.
func (s *ExportService) OpenArtifact(userID, jobID string) (*os.File, string, error) {
	record, err := s.Get(userID, jobID)
	if err != nil {
		return nil, "", err
	}
	if record.Status != models.ExportStatusCompleted || record.FilePath == "" {
		return nil, "", appErrors.Clone(appErrors.ErrConflict, "export is not ready")
	}
	file, err := s.storage.Open(record.FilePath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export artifact has expired")
	}
	return file, fmt.Sprintf("timetable-%s.%s", record.TimetableID, record.Format), nil
}

func (s *ExportService) process(ctx context.Context, job jobs.Job) error {
	record := s.snapshot(job.Ref)
	if record == nil {
		return nil
	}

	timetable, err := s.timetables.FindByID(ctx, record.TimetableID)
	if err != nil {
		return s.fail(record.ID, fmt.Errorf("load timetable: %w", err))
	}

	dataset, err := buildExportDataset(timetable)
	if err != nil {
		// Malformed stored payloads never succeed on retry.
		_ = s.fail(record.ID, err)
		return nil
	}

	var payload []byte
	switch record.Format {
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, timetable.Name)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		_ = s.fail(record.ID, fmt.Errorf("render %s: %w", record.Format, err))
		return nil
	}

	filename := fmt.Sprintf("%s/%s.%s", record.UserID, record.ID, record.Format)
	if _, err := s.storage.Save(filename, payload); err != nil {
		return s.fail(record.ID, fmt.Errorf("store artifact: %w", err))
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if r := s.records[record.ID]; r != nil {
		r.Status = models.ExportStatusCompleted
		r.FilePath = filename
		r.Error = ""
		r.CompletedAt = &now
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordExportJob(string(record.Format), "completed")
	}
	s.logger.Info("export job completed", zap.String("job_id", record.ID), zap.String("file", filename))
	return nil
}

func (s *ExportService) fail(jobID string, err error) error {
	now := time.Now().UTC()
	s.mu.Lock()
	var format string
	if r := s.records[jobID]; r != nil {
		r.Status = models.ExportStatusFailed
		r.Error = err.Error()
		r.CompletedAt = &now
		format = string(r.Format)
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordExportJob(format, "failed")
	}
	s.logger.Warn("export job failed", zap.String("job_id", jobID), zap.Error(err))
	return err
}

func (s *ExportService) snapshot(jobID string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[jobID]
	if !ok {
		return nil
	}
	copied := *record
	return &copied
}

func (s *ExportService) cleanupLoop(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.pruneRecords(deleted)
				s.logger.Info("expired export artifacts removed", zap.Int("count", len(deleted)))
			}
		}
	}
}

func (s *ExportService) pruneRecords(deletedFiles []string) {
	removed := make(map[string]bool, len(deletedFiles))
	for _, f := range deletedFiles {
		removed[f] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, record := range s.records {
		if record.FilePath != "" && removed[record.FilePath] {
			delete(s.records, id)
		}
	}
}

// buildExportDataset flattens a stored grid into one row per day with one
// column per time slot.
func buildExportDataset(timetable *models.Timetable) (export.Dataset, error) {
	var grid dto.TimetableGrid
	if err := json.Unmarshal(timetable.Grid, &grid); err != nil {
		return export.Dataset{}, fmt.Errorf("unmarshal grid: %w", err)
	}
	var slots []string
	if err := json.Unmarshal(timetable.TimeSlots, &slots); err != nil {
		return export.Dataset{}, fmt.Errorf("unmarshal time slots: %w", err)
	}

	days := make([]string, 0, len(grid))
	for day := range grid {
		days = append(days, day)
	}
	sortDays(days)

	headers := append([]string{"Day"}, slots...)
	rows := make([]map[string]string, 0, len(days))
	for _, day := range days {
		row := map[string]string{"Day": day}
		for _, label := range slots {
			if entry := grid[day][label]; entry != nil {
				row[label] = fmt.Sprintf("%s / %s / %s", entry.Subject, entry.Teacher, entry.Room)
			}
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

var weekdayRank = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// sortDays orders canonical weekday names first, anything else alphabetically
// after them.
func sortDays(days []string) {
	sort.SliceStable(days, func(i, j int) bool {
		ri, iOK := weekdayRank[strings.ToLower(days[i])]
		rj, jOK := weekdayRank[strings.ToLower(days[j])]
		switch {
		case iOK && jOK:
			return ri < rj
		case iOK:
			return true
		case jOK:
			return false
		default:
			return days[i] < days[j]
		}
	})
}
