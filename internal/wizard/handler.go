package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/auth"
	"cehpoint/project-portal/project-portal-backend/internal/docs"
)

// MaxUploadSize is the largest accepted documentation upload
const MaxUploadSize = 10 << 20

var errUploadTooLarge = errors.New("file exceeds the 10MB limit")

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the wizard under rg. Callers must be authenticated.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	w := rg.Group("/wizard")
	{
		w.GET("", h.Get)
		w.PATCH("", h.Update)
		w.DELETE("", h.Reset)

		w.POST("/next", h.step(h.service.Next))
		w.POST("/prev", h.step(h.service.Prev))
		w.POST("/validate", h.step(h.service.Validate))
		w.POST("/quotation", h.step(h.service.Quotation))

		w.POST("/documentation/generate", h.step(h.service.GenerateDocumentation))
		w.POST("/documentation/upload", h.UploadDocumentation)
		w.POST("/documentation/improve", h.ImproveDocumentation)

		w.POST("/submit", h.Submit)

		w.GET("/export/quotation.pdf", h.ExportQuotation)
		w.GET("/export/documentation.pdf", h.ExportDocumentation)
	}
}

func (h *Handler) Get(c *gin.Context) {
	snap, err := h.service.Get(c.Request.Context(), auth.MustClaims(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Update(c *gin.Context) {
	var patch FormPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.service.Update(c.Request.Context(), auth.MustClaims(c).UserID, patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Reset(c *gin.Context) {
	snap, err := h.service.Reset(c.Request.Context(), auth.MustClaims(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// step adapts a body-less draft operation
func (h *Handler) step(op func(ctx context.Context, userID string) (Snapshot, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, err := op(c.Request.Context(), auth.MustClaims(c).UserID)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func (h *Handler) UploadDocumentation(c *gin.Context) {
	name, content, ok := h.readUpload(c)
	if !ok {
		return
	}

	snap, err := h.service.UploadDocumentation(c.Request.Context(), auth.MustClaims(c).UserID, name, content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) ImproveDocumentation(c *gin.Context) {
	name, content, ok := h.readUpload(c)
	if !ok {
		return
	}

	snap, err := h.service.ImproveDocumentation(c.Request.Context(), auth.MustClaims(c).UserID, name, content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Submit(c *gin.Context) {
	project, err := h.service.Submit(c.Request.Context(), auth.MustClaims(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

func (h *Handler) ExportQuotation(c *gin.Context) {
	out, err := h.service.ExportQuotation(c.Request.Context(), auth.MustClaims(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="quotation.pdf"`)
	c.Data(http.StatusOK, "application/pdf", out)
}

func (h *Handler) ExportDocumentation(c *gin.Context) {
	export, err := h.service.ExportDocumentation(c.Request.Context(), auth.MustClaims(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if export.Body != nil {
		defer export.Body.Close()
		c.DataFromReader(http.StatusOK, -1, export.ContentType, export.Body, map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", export.FileName),
		})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName))
	c.Data(http.StatusOK, "application/pdf", export.PDF)
}

// readUpload reads the multipart "file" field, writing the error response itself
func (h *Handler) readUpload(c *gin.Context) (string, []byte, bool) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return "", nil, false
	}
	if header.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errUploadTooLarge.Error()})
		return "", nil, false
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return "", nil, false
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return "", nil, false
	}
	if len(content) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": errUploadTooLarge.Error()})
		return "", nil, false
	}
	return header.Filename, content, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "validationErrors": vErr.Fields})
	case errors.Is(err, ErrSubmissionInProgress), errors.Is(err, ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoQuotation), errors.Is(err, ErrNoDocumentation):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrDocumentMissing):
		h.logger.Error("Wizard export failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "The uploaded document is unavailable. Please upload it again."})
	case errors.Is(err, ErrUploadFailed):
		h.logger.Error("Wizard upload failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to upload the document. Please try again."})
	case errors.Is(err, ErrSubmissionFailed):
		h.logger.Error("Wizard submission failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to submit your project. Please try again."})
	default:
		docs.WriteError(c, err)
	}
}
