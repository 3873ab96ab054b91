package gallery

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/face-gallery-api/model"
	"github.com/sahilchouksey/face-gallery-api/services"
	"github.com/sahilchouksey/face-gallery-api/utils/response"
	"github.com/sahilchouksey/face-gallery-api/utils/validation"
)

// GalleryHandler handles gallery build and management requests
type GalleryHandler struct {
	galleries *services.GalleryService
	archive   *services.ArchiveService
	validator *validation.Validator
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(galleries *services.GalleryService, archive *services.ArchiveService) *GalleryHandler {
	return &GalleryHandler{
		galleries: galleries,
		archive:   archive,
		validator: validation.NewValidator(),
	}
}

// BuildGalleryRequest represents the request body for gallery builds
type BuildGalleryRequest struct {
	Batch        string  `json:"batch" validate:"required"`
	AugmentRatio float64 `json:"augment_ratio" validate:"gte=0,lte=1"`
	AugsPerImage int     `json:"augs_per_image" validate:"gte=0,lte=16"`
}

// Create handles POST /api/v1/galleries
func (h *GalleryHandler) Create(c *fiber.Ctx) error {
	var req BuildGalleryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.BadRequest(c, "Batch is required and augment_ratio must be in [0,1]")
	}

	batch, err := model.ParseBatchDir(req.Batch)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	gallery, err := h.galleries.CreateGallery(c.Context(), batch, req.AugmentRatio, req.AugsPerImage)
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Gallery build failed", "GALLERY_BUILD_FAILED", err.Error())
	}
	h.archiveBestEffort(c, batch)
	return response.Created(c, gallery)
}

// Update handles PUT /api/v1/galleries/:batch
func (h *GalleryHandler) Update(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	// Updates default to half-rate augmentation; builds default to none.
	req := BuildGalleryRequest{AugmentRatio: 0.5}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}

	gallery, err := h.galleries.UpdateGallery(c.Context(), batch, req.AugmentRatio, req.AugsPerImage)
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Gallery update failed", "GALLERY_UPDATE_FAILED", err.Error())
	}
	h.archiveBestEffort(c, batch)
	return response.SuccessWithMessage(c, "Gallery updated", gallery)
}

// archiveBestEffort pushes the fresh artifact off-site when a bucket is
// configured. A failed copy never fails the build that produced it.
func (h *GalleryHandler) archiveBestEffort(c *fiber.Ctx, batch model.Batch) {
	if !h.archive.Enabled() {
		return
	}
	if _, err := h.archive.ArchiveGallery(c.Context(), batch); err != nil {
		log.Printf("Failed to archive gallery %s: %v", batch, err)
	}
}

// Delete handles DELETE /api/v1/galleries/:batch
func (h *GalleryHandler) Delete(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	if err := h.galleries.DeleteGallery(batch); err != nil {
		return response.InternalServerError(c, err.Error())
	}
	return response.SuccessWithMessage(c, "Gallery deleted", fiber.Map{"batch": batch.Dir()})
}

// Info handles GET /api/v1/galleries/:batch
func (h *GalleryHandler) Info(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	identities, err := h.galleries.GalleryInfo(batch)
	if err != nil {
		return response.NotFound(c, "Gallery not found")
	}
	return response.Success(c, fiber.Map{
		"batch":      batch.Dir(),
		"identities": identities,
		"count":      len(identities),
	})
}

// List handles GET /api/v1/galleries
func (h *GalleryHandler) List(c *fiber.Ctx) error {
	galleries, err := h.galleries.ListGalleries()
	if err != nil {
		return response.InternalServerError(c, "Failed to list galleries")
	}
	return response.Success(c, galleries)
}

// Sync handles POST /api/v1/galleries/sync
func (h *GalleryHandler) Sync(c *fiber.Ctx) error {
	added, removed, err := h.galleries.SyncGalleries()
	if err != nil {
		return response.InternalServerError(c, err.Error())
	}
	return response.SuccessWithMessage(c, "Galleries synced", fiber.Map{
		"added":   added,
		"removed": removed,
	})
}

// Archive handles POST /api/v1/galleries/:batch/archive
func (h *GalleryHandler) Archive(c *fiber.Ctx) error {
	batch, err := model.ParseBatchDir(c.Params("batch"))
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	key, err := h.archive.ArchiveGallery(c.Context(), batch)
	if err != nil {
		return response.ServiceUnavailable(c, err.Error())
	}
	return response.SuccessWithMessage(c, "Gallery archived", fiber.Map{
		"batch": batch.Dir(),
		"key":   key,
	})
}

// ListArchived handles GET /api/v1/galleries/archived
func (h *GalleryHandler) ListArchived(c *fiber.Ctx) error {
	keys, err := h.archive.ListArchivedGalleries(c.Context())
	if err != nil {
		return response.ServiceUnavailable(c, err.Error())
	}
	return response.Success(c, keys)
}
