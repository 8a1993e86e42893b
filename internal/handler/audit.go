package handler

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/awacs/annotate/internal/service"
	"github.com/awacs/annotate/pkg/response"
)

type AuditHandler struct {
	audits    *service.AuditService
	uploadDir string
}

func NewAuditHandler(audits *service.AuditService, uploadDir string) *AuditHandler {
	return &AuditHandler{
		audits:    audits,
		uploadDir: uploadDir,
	}
}

func (h *AuditHandler) saveUpload(c *fiber.Ctx, field string) (filename, path string, err error) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", "", fmt.Errorf("%s is required", field)
	}
	if !service.ValidExtension(file.Filename) {
		return "", "", fmt.Errorf("%s: invalid file type, expected .xlsx or .xls", field)
	}

	stored := fmt.Sprintf("%s_%s_%s", time.Now().Format("20060102150405"), field, filepath.Base(file.Filename))
	path = filepath.Join(h.uploadDir, stored)
	if err := c.SaveFile(file, path); err != nil {
		return "", "", fmt.Errorf("save upload: %w", err)
	}
	return file.Filename, path, nil
}

type auditResponse struct {
	AuditID        string      `json:"audit_id"`
	AIFile         string      `json:"ai_file"`
	ManualFile     string      `json:"manual_file"`
	ReportFilename string      `json:"report_filename"`
	Summary        interface{} `json:"summary"`
	Stats          interface{} `json:"stats"`
}

// Run handles POST /api/audit: compares an AI output workbook against a
// manually labeled one and answers with the accuracy summary.
func (h *AuditHandler) Run(c *fiber.Ctx) error {
	aiFilename, aiPath, err := h.saveUpload(c, "ai_file")
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	manualFilename, manualPath, err := h.saveUpload(c, "manual_file")
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	report, err := h.audits.Run(aiPath, aiFilename, manualPath, manualFilename)
	if err != nil {
		var inputErr *service.AuditInputError
		if errors.As(err, &inputErr) {
			return response.AuditInputError(c, inputErr.Error())
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, auditResponse{
		AuditID:        report.ID,
		AIFile:         report.AIFilename,
		ManualFile:     report.ManualFilename,
		ReportFilename: report.ReportFilename,
		Summary:        report.Result.Summary,
		Stats:          report.Result.Stats,
	})
}

// Get handles GET /api/audit/:id
func (h *AuditHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	report, err := h.audits.Get(id)
	if err != nil {
		return response.NotFound(c, err.Error())
	}
	return response.OK(c, auditResponse{
		AuditID:        report.ID,
		AIFile:         report.AIFilename,
		ManualFile:     report.ManualFilename,
		ReportFilename: report.ReportFilename,
		Summary:        report.Result.Summary,
		Stats:          report.Result.Stats,
	})
}

// Download handles GET /api/audit/:id/download
func (h *AuditHandler) Download(c *fiber.Ctx) error {
	id := c.Params("id")

	report, err := h.audits.Get(id)
	if err != nil {
		return response.NotFound(c, err.Error())
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, report.ReportFilename))
	return c.SendFile(report.ReportPath)
}
