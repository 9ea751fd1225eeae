package handler

import (
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tatugacamp/school-api/internal/service"
	appErrors "github.com/tatugacamp/school-api/pkg/errors"
	"github.com/tatugacamp/school-api/pkg/response"
)

// ReportHandler exposes score report export and download endpoints.
type ReportHandler struct {
	service *service.ReportService
}

// NewReportHandler constructs a report handler.
func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{service: svc}
}

// ExportScores godoc
// @Summary Export a subject's score summary as CSV or PDF
// @Tags Reports
// @Produce json
// @Param id path string true "Subject ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /subjects/{id}/score-report [post]
func (h *ReportHandler) ExportScores(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", service.ReportFormatCSV))
	report, err := h.service.ExportScores(c.Request.Context(), c.Param("id"), format, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Download godoc
// @Summary Download a previously exported report by signed token
// @Tags Reports
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /reports/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, name, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", contentTypeFor(name))
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".csv"):
		return "text/csv"
	case strings.HasSuffix(name, ".pdf"):
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
