package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
	"github.com/tatugacamp/school-api/pkg/export"
)

// Report formats supported by the score export.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

// ReportFile describes a rendered report and the signed token to fetch it.
type ReportFile struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Format        string    `json:"format"`
	DownloadToken string    `json:"download_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type reportSubjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type reportScoreRepository interface {
	SummarizeBySubject(ctx context.Context, subjectID string) ([]models.StudentScoreSummary, error)
}

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type downloadSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
}

// ReportService renders subject score summaries into downloadable CSV or PDF
// files behind signed tokens.
type ReportService struct {
	subjects reportSubjectRepository
	scores   reportScoreRepository
	storage  reportStorage
	signer   downloadSigner
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	authz    subjectAuthorizer
	logger   *zap.Logger
}

// NewReportService wires the score report exporter.
func NewReportService(subjects reportSubjectRepository, scores reportScoreRepository, storage reportStorage, signer downloadSigner, authz subjectAuthorizer, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		subjects: subjects,
		scores:   scores,
		storage:  storage,
		signer:   signer,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		authz:    authz,
		logger:   logger,
	}
}

// ExportScores renders the subject's score summary in the requested format,
// persists it, and returns a signed download token.
func (s *ReportService) ExportScores(ctx context.Context, subjectID, format, userID string) (*ReportFile, error) {
	if format != ReportFormatCSV && format != ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	if _, err := s.authz.RequireSchoolMember(ctx, userID, subject.SchoolID); err != nil {
		return nil, err
	}

	summaries, err := s.scores.SummarizeBySubject(ctx, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize scores")
	}

	dataset := buildScoreDataset(summaries)
	var payload []byte
	switch format {
	case ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("%s scores", subject.Title))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	filename := path.Join("reports", fmt.Sprintf("subject-%s-scores-%d.%s", subjectID, time.Now().Unix(), format))
	if _, err := s.storage.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	s.logger.Info("score report exported",
		zap.String("subject_id", subjectID),
		zap.String("report_id", reportID),
		zap.String("format", format),
		zap.Int("students", len(summaries)))

	return &ReportFile{
		ID:            reportID,
		Filename:      filename,
		Format:        format,
		DownloadToken: token,
		ExpiresAt:     expiresAt,
	}, nil
}

// Download resolves a signed token into an open file handle.
func (s *ReportService) Download(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report no longer available")
	}
	return file, path.Base(relPath), nil
}

func buildScoreDataset(summaries []models.StudentScoreSummary) export.Dataset {
	rows := make([][]string, 0, len(summaries))
	for _, summary := range summaries {
		rows = append(rows, []string{
			summary.Number,
			summary.FirstName,
			summary.LastName,
			strconv.FormatFloat(summary.TotalScore, 'f', 2, 64),
		})
	}
	return export.Dataset{
		Columns: []string{"Number", "First Name", "Last Name", "Total Score"},
		Rows:    rows,
	}
}
