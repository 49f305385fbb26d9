package docs

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cehpoint/project-portal/project-portal-backend/pkg/textgen"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documentation-generation", h.Suggest)
}

type suggestRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

func (h *Handler) Suggest(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	text, err := h.service.Suggest(c.Request.Context(), req.Title, req.Description, req.Language)
	if err != nil {
		WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestedMessages": text})
}

// WriteError maps documentation and upstream model errors to responses
func WriteError(c *gin.Context, err error) {
	var apiErr *textgen.APIError
	switch {
	case errors.Is(err, ErrMissingProjectFields), errors.Is(err, ErrMissingSuggestFields), errors.Is(err, ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": apiErr.Message, "name": apiErr.Name})
	case errors.Is(err, ErrUnreadableDocument):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Could not read the uploaded document"})
	case errors.Is(err, textgen.ErrNotConfigured), errors.Is(err, ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to improve documentation. Please try again."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
