package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/pkg/jobs"
)

// Cleanup job types dispatched on the background queue after a subject is
// deleted. The API response never waits on these.
const (
	JobTypeDeleteStorageObject  = "storage.delete_object"
	JobTypeDeleteGradeRange     = "grade_range.delete"
	JobTypeDeleteAssignmentFile = "assignment_file.delete"
	JobTypeDeleteStudentFile    = "student_file.delete"
)

// StorageObjectPayload names one stored object to remove.
type StorageObjectPayload struct {
	Key string
}

// SubjectPayload scopes a cleanup job to one subject.
type SubjectPayload struct {
	SubjectID string
}

// FileIDsPayload carries row identifiers for a bulk file-record delete.
type FileIDsPayload struct {
	IDs []string
}

type cleanupStorage interface {
	Delete(filename string) error
}

type cleanupFileRepository interface {
	DeleteFilesByIDs(ctx context.Context, ids []string) error
	DeleteStudentFilesByIDs(ctx context.Context, ids []string) error
}

type cleanupScoreRepository interface {
	DeleteGradeRangeBySubject(ctx context.Context, subjectID string) error
}

// CleanupService executes the deferred deletions behind subject removal:
// stored objects, file records and grade ranges. It is wired as the handler
// of the "cleanup" queue.
type CleanupService struct {
	storage cleanupStorage
	files   cleanupFileRepository
	scores  cleanupScoreRepository
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCleanupService builds the queue handler.
func NewCleanupService(storage cleanupStorage, files cleanupFileRepository, scores cleanupScoreRepository, metrics *MetricsService, logger *zap.Logger) *CleanupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupService{storage: storage, files: files, scores: scores, metrics: metrics, logger: logger}
}

// Handle dispatches one queued cleanup job.
func (s *CleanupService) Handle(ctx context.Context, job jobs.Job) error {
	if err := s.handle(ctx, job); err != nil {
		s.metrics.RecordCleanupFailed()
		return err
	}
	s.metrics.RecordCleanupProcessed()
	return nil
}

func (s *CleanupService) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobTypeDeleteStorageObject:
		payload, ok := job.Payload.(StorageObjectPayload)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		if err := s.storage.Delete(payload.Key); err != nil {
			return fmt.Errorf("delete storage object %s: %w", payload.Key, err)
		}
		s.logger.Debug("deleted storage object", zap.String("key", payload.Key))
		return nil

	case JobTypeDeleteGradeRange:
		payload, ok := job.Payload.(SubjectPayload)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		if err := s.scores.DeleteGradeRangeBySubject(ctx, payload.SubjectID); err != nil {
			return fmt.Errorf("delete grade range for subject %s: %w", payload.SubjectID, err)
		}
		return nil

	case JobTypeDeleteAssignmentFile:
		payload, ok := job.Payload.(FileIDsPayload)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		if err := s.files.DeleteFilesByIDs(ctx, payload.IDs); err != nil {
			return fmt.Errorf("delete assignment file records: %w", err)
		}
		return nil

	case JobTypeDeleteStudentFile:
		payload, ok := job.Payload.(FileIDsPayload)
		if !ok {
			return fmt.Errorf("job %s: unexpected payload %T", job.Type, job.Payload)
		}
		if err := s.files.DeleteStudentFilesByIDs(ctx, payload.IDs); err != nil {
			return fmt.Errorf("delete student file records: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown cleanup job type %q", job.Type)
	}
}
