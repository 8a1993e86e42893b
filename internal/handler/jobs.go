package handler

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/awacs/annotate/internal/service"
	"github.com/awacs/annotate/internal/store"
	"github.com/awacs/annotate/pkg/response"
)

const maxUploadSize = 50 * 1024 * 1024 // 50MB

type JobHandler struct {
	jobs      *service.JobService
	uploadDir string
}

func NewJobHandler(jobs *service.JobService, uploadDir string) *JobHandler {
	return &JobHandler{
		jobs:      jobs,
		uploadDir: uploadDir,
	}
}

// saveUpload persists a multipart workbook into the upload directory
// under a timestamped name and returns its path.
func (h *JobHandler) saveUpload(c *fiber.Ctx, field string) (filename, path string, err error) {
	file, err := c.FormFile(field)
	if err != nil {
		return "", "", fmt.Errorf("%s is required", field)
	}
	if file.Size > maxUploadSize {
		return "", "", fmt.Errorf("file size exceeds 50MB limit")
	}
	if !service.ValidExtension(file.Filename) {
		return "", "", fmt.Errorf("invalid file type, expected .xlsx or .xls")
	}

	stored := fmt.Sprintf("%s_%s", time.Now().Format("20060102150405"), filepath.Base(file.Filename))
	path = filepath.Join(h.uploadDir, stored)
	if err := c.SaveFile(file, path); err != nil {
		return "", "", fmt.Errorf("save upload: %w", err)
	}
	return file.Filename, path, nil
}

// Upload handles POST /api/upload: a workbook of Ad IDs that still
// need to be scraped before classification.
func (h *JobHandler) Upload(c *fiber.Ctx) error {
	filename, path, err := h.saveUpload(c, "file")
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	job, err := h.jobs.CreateFromFile(c.Context(), filename, path, false)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.Created(c, job.Created())
}

// Reannotate handles POST /api/reannotate: a previously annotated or
// fetched workbook that already carries breadcrumbs and image URLs.
func (h *JobHandler) Reannotate(c *fiber.Ctx) error {
	filename, path, err := h.saveUpload(c, "file")
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}

	job, err := h.jobs.CreateFromFile(c.Context(), filename, path, true)
	if err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	return response.Created(c, job.Created())
}

// Start handles POST /api/jobs/:id/start
func (h *JobHandler) Start(c *fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.jobs.Start(c.Context(), id)
	if err != nil {
		var stateErr *service.InvalidStateError
		switch {
		case errors.Is(err, store.ErrNotFound):
			return response.NotFound(c, fmt.Sprintf("job %s not found", id))
		case errors.As(err, &stateErr):
			return response.Conflict(c, stateErr.Error())
		default:
			return response.ServiceError(c, err.Error())
		}
	}
	return response.Accepted(c, job.Snapshot())
}

// Get handles GET /api/jobs/:id
func (h *JobHandler) Get(c *fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.jobs.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, fmt.Sprintf("job %s not found", id))
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, job.Snapshot())
}

// Progress handles GET /api/jobs/:id/progress
func (h *JobHandler) Progress(c *fiber.Ctx) error {
	id := c.Params("id")

	progress, err := h.jobs.Progress(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, fmt.Sprintf("job %s not found", id))
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, progress)
}

// Download handles GET /api/jobs/:id/download
func (h *JobHandler) Download(c *fiber.Ctx) error {
	id := c.Params("id")

	job, err := h.jobs.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return response.NotFound(c, fmt.Sprintf("job %s not found", id))
		}
		return response.ServiceError(c, err.Error())
	}
	if job.OutputPath == "" {
		return response.Conflict(c, fmt.Sprintf("job %s has no output yet (status %s)", id, job.Status))
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename=%q`, job.OutputFilename))
	return c.SendFile(job.OutputPath)
}
