package batch

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services"
	"github.com/sahilchouksey/face-gallery-api/utils/response"
	"github.com/sahilchouksey/face-gallery-api/utils/validation"
)

// BatchHandler handles batch year, department and cohort requests
type BatchHandler struct {
	batches    *services.BatchService
	students   *services.StudentService
	extraction *services.ExtractionService
	validator  *validation.Validator
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(batches *services.BatchService, students *services.StudentService,
	extraction *services.ExtractionService) *BatchHandler {
	return &BatchHandler{
		batches:    batches,
		students:   students,
		extraction: extraction,
		validator:  validation.NewValidator(),
	}
}

// ListYears handles GET /api/v1/batches/years
func (h *BatchHandler) ListYears(c *fiber.Ctx) error {
	years, err := h.batches.ListYears()
	if err != nil {
		return response.InternalServerError(c, "Failed to list years")
	}
	return response.Success(c, years)
}

// AddYearRequest represents the request body for adding a batch year
type AddYearRequest struct {
	Year string `json:"year" validate:"required,len=4,numeric"`
}

// AddYear handles POST /api/v1/batches/years
func (h *BatchHandler) AddYear(c *fiber.Ctx) error {
	var req AddYearRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Year must be a four-digit number")
	}

	year, err := h.batches.AddYear(req.Year)
	if err != nil {
		return response.InternalServerError(c, "Failed to add year")
	}
	return response.Created(c, year)
}

// ListDepartments handles GET /api/v1/batches/departments
func (h *BatchHandler) ListDepartments(c *fiber.Ctx) error {
	departments, err := h.batches.ListDepartments()
	if err != nil {
		return response.InternalServerError(c, "Failed to list departments")
	}
	return response.Success(c, departments)
}

// AddDepartmentRequest represents the request body for adding a department
type AddDepartmentRequest struct {
	Code string `json:"code" validate:"required,min=2,max=10"`
	Name string `json:"name" validate:"required,max=100"`
}

// AddDepartment handles POST /api/v1/batches/departments
func (h *BatchHandler) AddDepartment(c *fiber.Ctx) error {
	var req AddDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Code and name are required")
	}

	dept, err := h.batches.AddDepartment(req.Code, req.Name)
	if err != nil {
		return response.InternalServerError(c, "Failed to add department")
	}
	return response.Created(c, dept)
}

// ListDataBatches handles GET /api/v1/batches
func (h *BatchHandler) ListDataBatches(c *fiber.Ctx) error {
	batches, err := h.batches.ListDataBatches()
	if err != nil {
		return response.InternalServerError(c, "Failed to scan student data")
	}
	return response.Success(c, batches)
}

// ListStudents handles GET /api/v1/batches/:batch/students
func (h *BatchHandler) ListStudents(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	students, err := h.students.ListBatchStudents(batch)
	if err != nil {
		return response.NotFound(c, "Batch has no student data")
	}
	return response.Success(c, students)
}

// ExtractFaces handles POST /api/v1/batches/:batch/extract
func (h *BatchHandler) ExtractFaces(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	results, err := h.extraction.ExtractBatch(c.Context(), batch)
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Batch extraction failed", "EXTRACTION_FAILED", err.Error())
	}

	extracted := 0
	for _, result := range results {
		if result.Error == "" {
			extracted++
		}
	}
	return response.Success(c, fiber.Map{
		"batch":     batch.Dir(),
		"students":  len(results),
		"extracted": extracted,
		"results":   results,
	})
}

// Summary handles GET /api/v1/batches/:batch/summary
func (h *BatchHandler) Summary(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	summary, err := h.students.Summary(batch)
	if err != nil {
		return response.NotFound(c, "Batch has no student data")
	}
	return response.Success(c, summary)
}

// DatabaseStats handles GET /api/v1/batches/stats
func (h *BatchHandler) DatabaseStats(c *fiber.Ctx) error {
	stats, err := h.students.DatabaseStats()
	if err != nil {
		return response.InternalServerError(c, "Failed to collect stats")
	}
	return response.Success(c, stats)
}
