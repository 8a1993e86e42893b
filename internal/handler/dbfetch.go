package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/awacs/annotate/internal/model"
	"github.com/awacs/annotate/internal/service"
	"github.com/awacs/annotate/pkg/response"
)

type DBFetchHandler struct {
	fetches   *service.DBFetchService
	jobs      *service.JobService
	validator *validator.Validate
}

func NewDBFetchHandler(fetches *service.DBFetchService, jobs *service.JobService, v *validator.Validate) *DBFetchHandler {
	return &DBFetchHandler{
		fetches:   fetches,
		jobs:      jobs,
		validator: v,
	}
}

// Fetch handles POST /api/db-fetch: pulls one page of listings from the
// partner database and stages them for annotation.
func (h *DBFetchHandler) Fetch(c *fiber.Ctx) error {
	var req model.DBFetchRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, err.Error(), nil)
	}
	if !h.fetches.Configured() && req.ClientID == "" {
		return response.ValidationError(c, "database API credentials are not configured", nil)
	}

	result, err := h.fetches.Fetch(c.Context(), &req)
	if err != nil {
		var ingErr *service.IngestionError
		if errors.As(err, &ingErr) {
			return response.IngestionError(c, ingErr.Error())
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, result)
}

// StartAnnotation handles POST /api/db-fetch/:id/start-annotation:
// turns a staged fetch into an annotation job and starts it.
func (h *DBFetchHandler) StartAnnotation(c *fiber.Ctx) error {
	id := c.Params("id")

	records, filename, path, err := h.fetches.StartAnnotation(id)
	if err != nil {
		return response.NotFound(c, err.Error())
	}

	job, err := h.jobs.CreateFromRecords(c.Context(), filename, path, records)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	job, err = h.jobs.Start(c.Context(), job.ID)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}
	return response.Accepted(c, job.Snapshot())
}
