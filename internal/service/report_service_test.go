package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tatugacamp/school-api/internal/models"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
	"github.com/tatugacamp/school-api/pkg/storage"
)

type mockScoreSummaries struct {
	summaries []models.StudentScoreSummary
}

func (m *mockScoreSummaries) SummarizeBySubject(ctx context.Context, subjectID string) ([]models.StudentScoreSummary, error) {
	return m.summaries, nil
}

func newReportFixture(t *testing.T) *ReportService {
	t.Helper()

	subjects := &mockSubjectRepo{
		subjects: map[string]models.Subject{
			"subj-1": {ID: "subj-1", Title: "Math", SchoolID: "school-1"},
		},
	}
	scores := &mockScoreSummaries{
		summaries: []models.StudentScoreSummary{
			{StudentOnSubjectID: "sos-1", FirstName: "Alice", LastName: "Lee", Number: "1", TotalScore: 87.5},
			{StudentOnSubjectID: "sos-2", FirstName: "Bob", LastName: "Rae", Number: "2", TotalScore: 42},
		},
	}

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)

	return NewReportService(subjects, scores, store, signer, &mockAuthz{member: true}, zap.NewNop())
}

func TestExportScoresCSVRoundTrip(t *testing.T) {
	svc := newReportFixture(t)

	report, err := svc.ExportScores(context.Background(), "subj-1", ReportFormatCSV, "user-1")
	require.NoError(t, err)
	assert.Equal(t, ReportFormatCSV, report.Format)
	assert.NotEmpty(t, report.DownloadToken)
	assert.True(t, report.ExpiresAt.After(time.Now()))

	file, name, err := svc.Download(report.DownloadToken)
	require.NoError(t, err)
	defer file.Close()

	assert.True(t, strings.HasSuffix(name, ".csv"))
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Number,First Name,Last Name,Total Score")
	assert.Contains(t, string(content), "1,Alice,Lee,87.50")
	assert.Contains(t, string(content), "2,Bob,Rae,42.00")
}

func TestExportScoresPDF(t *testing.T) {
	svc := newReportFixture(t)

	report, err := svc.ExportScores(context.Background(), "subj-1", ReportFormatPDF, "user-1")
	require.NoError(t, err)

	file, name, err := svc.Download(report.DownloadToken)
	require.NoError(t, err)
	defer file.Close()

	assert.True(t, strings.HasSuffix(name, ".pdf"))
	header := make([]byte, 4)
	_, err = file.Read(header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportScoresRejectsUnknownFormat(t *testing.T) {
	svc := newReportFixture(t)

	_, err := svc.ExportScores(context.Background(), "subj-1", "xlsx", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDownloadRejectsTamperedToken(t *testing.T) {
	svc := newReportFixture(t)

	report, err := svc.ExportScores(context.Background(), "subj-1", ReportFormatCSV, "user-1")
	require.NoError(t, err)

	_, _, err = svc.Download(report.DownloadToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
