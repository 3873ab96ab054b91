package quality

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services"
	"github.com/sahilchouksey/face-gallery-api/utils/response"
	"github.com/sahilchouksey/face-gallery-api/utils/validation"
)

// QualityHandler handles quality check requests
type QualityHandler struct {
	quality   *services.QualityService
	sweep     *services.QualitySweep
	reports   *services.ReportService
	students  *services.StudentService
	validator *validation.Validator
}

// NewQualityHandler creates a new quality handler
func NewQualityHandler(quality *services.QualityService, sweep *services.QualitySweep,
	reports *services.ReportService, students *services.StudentService) *QualityHandler {
	return &QualityHandler{
		quality:   quality,
		sweep:     sweep,
		reports:   reports,
		students:  students,
		validator: validation.NewValidator(),
	}
}

// CheckStudent handles POST /api/v1/quality/students/:regNo
func (h *QualityHandler) CheckStudent(c *fiber.Ctx) error {
	reg := c.Params("regNo")
	batch, err := h.students.ResolveBatch(reg)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	result, err := h.quality.CheckStudent(c.Context(), batch, reg)
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Quality check failed", "QUALITY_CHECK_FAILED", err.Error())
	}

	return response.Success(c, fiber.Map{
		"reg_no":   reg,
		"category": result.Category,
		"issues":   result.Issues(),
		"details":  result.Details,
	})
}

// RunSweepRequest represents the request body for a batch quality sweep
type RunSweepRequest struct {
	Batch string `json:"batch" validate:"required"`
	Force bool   `json:"force"`
}

// RunSweep handles POST /api/v1/quality/sweep
func (h *QualityHandler) RunSweep(c *fiber.Ctx) error {
	var req RunSweepRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Batch is required")
	}

	batch, err := model.ParseBatchDir(req.Batch)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if h.sweep.Running(batch) {
		return response.Conflict(c, "Quality sweep already running for this batch")
	}

	report, err := h.sweep.RunBatch(c.Context(), batch, req.Force)
	if err != nil {
		return response.InternalServerError(c, err.Error())
	}
	return response.SuccessWithMessage(c, "Quality sweep complete", report)
}

// GetReport handles GET /api/v1/quality/reports/:batch
func (h *QualityHandler) GetReport(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	report, err := h.reports.GetReport(c.Context(), batch)
	if err != nil {
		return response.NotFound(c, "No quality report for this batch")
	}
	return response.Success(c, report)
}

// GetSummary handles GET /api/v1/quality/reports/:batch/summary
func (h *QualityHandler) GetSummary(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	summary, err := h.reports.GetSummary(c.Context(), batch)
	if err != nil {
		return response.NotFound(c, "No quality report for this batch")
	}
	return response.Success(c, summary)
}

// GetResultsByStatus handles GET /api/v1/quality/reports/:batch/results
func (h *QualityHandler) GetResultsByStatus(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	status := model.QualityStatus(c.Query("status"))
	switch status {
	case "", model.QualityStatusPass, model.QualityStatusFail, model.QualityStatusBorderline:
	default:
		return response.BadRequest(c, "Invalid status filter")
	}

	results, err := h.reports.StudentResults(c.Context(), batch, status)
	if err != nil {
		return response.NotFound(c, "No quality report for this batch")
	}
	return response.Success(c, results)
}

// PromoteBorderline handles POST /api/v1/quality/students/:regNo/promote
func (h *QualityHandler) PromoteBorderline(c *fiber.Ctx) error {
	reg := c.Params("regNo")
	batch, err := h.students.ResolveBatch(reg)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.students.PromoteBorderline(batch, reg); err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Promotion failed", "PROMOTE_FAILED", err.Error())
	}
	return response.SuccessWithMessage(c, "Student promoted to pass", fiber.Map{"reg_no": reg})
}

// DeleteByQualityRequest represents the request body for a quality purge
type DeleteByQualityRequest struct {
	Batch   string `json:"batch" validate:"required"`
	Quality string `json:"quality" validate:"required,oneof=fail borderline"`
}

// DeleteByQuality handles DELETE /api/v1/quality/students
func (h *QualityHandler) DeleteByQuality(c *fiber.Ctx) error {
	var req DeleteByQualityRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Batch and quality (fail or borderline) are required")
	}

	batch, err := model.ParseBatchDir(req.Batch)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	removed, err := h.students.DeleteByQuality(batch, req.Quality)
	if err != nil {
		return response.InternalServerError(c, err.Error())
	}
	return response.SuccessWithMessage(c, "Students removed", fiber.Map{
		"batch":   batch.Dir(),
		"removed": removed,
		"count":   len(removed),
	})
}
