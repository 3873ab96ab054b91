package recognition

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/sahilchouksey/face-gallery-api/services"
	"github.com/sahilchouksey/face-gallery-api/utils/response"
)

// RecognitionHandler handles face recognition queries
type RecognitionHandler struct {
	recognition *services.RecognitionService
}

// NewRecognitionHandler creates a new recognition handler
func NewRecognitionHandler(recognition *services.RecognitionService) *RecognitionHandler {
	return &RecognitionHandler{recognition: recognition}
}

// Recognize handles POST /api/v1/recognize. The request is multipart:
// an "image" file plus a comma-separated "galleries" field naming the
// batch galleries to search.
func (h *RecognitionHandler) Recognize(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		return response.BadRequest(c, "Missing query image")
	}

	galleriesField := c.FormValue("galleries")
	if galleriesField == "" {
		return response.BadRequest(c, "Missing galleries field")
	}
	var galleryNames []string
	for _, name := range strings.Split(galleriesField, ",") {
		if name = strings.TrimSpace(name); name != "" {
			galleryNames = append(galleryNames, name)
		}
	}
	if len(galleryNames) == 0 {
		return response.BadRequest(c, "Missing galleries field")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to open upload")
	}
	defer file.Close()

	query, _, err := image.Decode(file)
	if err != nil {
		return response.BadRequest(c, "Query image could not be decoded")
	}

	result, err := h.recognition.Recognize(c.Context(), query, galleryNames)
	if err != nil {
		return response.ErrorWithDetails(c, fiber.StatusUnprocessableEntity,
			"Recognition failed", "RECOGNITION_FAILED", err.Error())
	}

	payload := fiber.Map{
		"matches": result.Matches,
		"count":   len(result.Matches),
	}

	// The annotated image is only rendered into the response when asked
	// for, it roughly doubles the payload size.
	if c.QueryBool("annotated", false) && result.Annotated != nil {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, result.Annotated, &jpeg.Options{Quality: 90}); err != nil {
			return response.InternalServerError(c, "Failed to encode annotated image")
		}
		payload["annotated_image"] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}

	return response.Success(c, payload)
}
