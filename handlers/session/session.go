package session

import (
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services"
	"github.com/sahilchouksey/face-gallery-api/utils/regno"
	"github.com/sahilchouksey/face-gallery-api/utils/response"
	"github.com/sahilchouksey/face-gallery-api/utils/validation"
)

// SessionHandler handles enrollment session requests
type SessionHandler struct {
	db         *gorm.DB
	paths      *services.Paths
	sessions   *services.SessionStore
	students   *services.StudentService
	videos     *services.VideoService
	extraction *services.ExtractionService
	validator  *validation.Validator
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(db *gorm.DB, paths *services.Paths, sessions *services.SessionStore,
	students *services.StudentService, videos *services.VideoService,
	extraction *services.ExtractionService) *SessionHandler {
	return &SessionHandler{
		db:         db,
		paths:      paths,
		sessions:   sessions,
		students:   students,
		videos:     videos,
		extraction: extraction,
		validator:  validation.NewValidator(),
	}
}

// StartSessionRequest represents the request body for starting a session
type StartSessionRequest struct {
	RegNo string `json:"reg_no" validate:"required,min=9,max=20"`
	Name  string `json:"name" validate:"omitempty,max=100"`
	DOB   string `json:"dob" validate:"omitempty,max=10"`
}

// StartSession handles POST /api/v1/sessions/start
func (h *SessionHandler) StartSession(c *fiber.Ctx) error {
	var req StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		fields := validation.FormatValidationErrors(err)
		msgs := make([]string, 0, len(fields))
		for _, msg := range fields {
			msgs = append(msgs, msg)
		}
		return response.ErrorWithDetails(c, fiber.StatusBadRequest,
			"Invalid request body", "VALIDATION_ERROR", strings.Join(msgs, "; "))
	}

	info, err := regno.Parse(req.RegNo)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	batch, err := h.students.ResolveBatch(req.RegNo)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if _, err := h.paths.EnsureStudentDir(batch, req.RegNo); err != nil {
		return response.InternalServerError(c, "Failed to create student directory")
	}

	yearDisplay, _ := regno.YearDisplay(req.RegNo)
	sessionPath := h.paths.SessionPath(batch, req.RegNo)
	doc, err := h.sessions.Update(sessionPath, func(d *model.SessionDocument) {
		d.ApplyDefaults(req.RegNo, batch.DeptCode, batch.Year)
		if req.Name != "" {
			d.Name = req.Name
		}
		if d.StartTime == "" {
			d.StartTime = time.Now().UTC().Format(time.RFC3339)
		}
		d.YearDisplay = yearDisplay
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to create session")
	}

	// Keep the student table in sync with the session.
	if _, err := h.students.Upsert(model.Student{
		RegisterNo:   req.RegNo,
		Name:         req.Name,
		DOB:          req.DOB,
		DepartmentID: batch.DeptCode,
		Batch:        batch.Dir(),
	}); err != nil {
		return response.InternalServerError(c, "Failed to store student record")
	}

	return response.SuccessWithMessage(c, "Session started", fiber.Map{
		"session":         doc,
		"batch":           batch.Dir(),
		"admission_year":  info.AdmissionYear,
		"graduation_year": info.GraduationYear,
	})
}

// UploadVideo handles POST /api/v1/sessions/:regNo/video
func (h *SessionHandler) UploadVideo(c *fiber.Ctx) error {
	reg := c.Params("regNo")
	batch, err := h.students.ResolveBatch(reg)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	fileHeader, err := c.FormFile("video")
	if err != nil {
		return response.BadRequest(c, "Missing video file")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to open upload")
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return response.InternalServerError(c, "Failed to read upload")
	}

	doc, err := h.videos.UploadVideo(c.Context(), batch, reg, raw)
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Video conversion failed", "CONVERSION_FAILED", err.Error())
	}

	return response.SuccessWithMessage(c, "Video uploaded", doc)
}

// GetStatus handles GET /api/v1/sessions/:regNo
func (h *SessionHandler) GetStatus(c *fiber.Ctx) error {
	reg := c.Params("regNo")
	batch, err := h.students.ResolveBatch(reg)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	status, err := h.students.Status(batch, reg)
	if err != nil {
		return response.InternalServerError(c, "Failed to read session")
	}
	return response.Success(c, status)
}

// Lookup handles GET /api/v1/sessions/lookup/:regNo and returns the
// fields decoded from the registration number.
func (h *SessionHandler) Lookup(c *fiber.Ctx) error {
	info, err := regno.Parse(c.Params("regNo"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	batch, err := h.students.ResolveBatch(info.RegNo)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	yearDisplay, _ := regno.YearDisplay(info.RegNo)
	return response.Success(c, fiber.Map{
		"reg_no":          info.RegNo,
		"admission_year":  info.AdmissionYear,
		"graduation_year": info.GraduationYear,
		"dept_code":       batch.DeptCode,
		"batch":           batch.Dir(),
		"year_display":    yearDisplay,
	})
}

// ExtractFaces handles POST /api/v1/sessions/:regNo/extract
func (h *SessionHandler) ExtractFaces(c *fiber.Ctx) error {
	reg := c.Params("regNo")
	batch, err := h.students.ResolveBatch(reg)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	count, err := h.extraction.ExtractFaces(c.Context(), batch, reg)
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Face extraction failed", "EXTRACTION_FAILED", err.Error())
	}

	return response.SuccessWithMessage(c, "Faces extracted", fiber.Map{
		"reg_no":      reg,
		"faces_count": count,
	})
}

// ResetFaces handles POST /api/v1/sessions/:regNo/reset-faces
func (h *SessionHandler) ResetFaces(c *fiber.Ctx) error {
	reg := c.Params("regNo")
	batch, err := h.students.ResolveBatch(reg)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.extraction.ResetFaces(batch, reg); err != nil {
		return response.InternalServerError(c, "Failed to reset faces")
	}
	return response.SuccessWithMessage(c, "Faces reset", fiber.Map{"reg_no": reg})
}
