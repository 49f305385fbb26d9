package projects

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cehpoint/project-portal/project-portal-backend/internal/auth"
	"cehpoint/project-portal/project-portal-backend/pkg/workflows"
)

// Linker presigns stored document keys
type Linker interface {
	URL(ctx context.Context, key string) (string, error)
}

// AdminProject is the admin view of a project
type AdminProject struct {
	*Project
	AllowedTransitions []string `json:"allowedTransitions"`
}

type Handler struct {
	service *Service
	links   Linker
	logger  *zap.Logger
}

// NewHandler leaves document links empty when links is nil
func NewHandler(service *Service, links Linker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, links: links, logger: logger}
}

// RegisterClientRoutes expects rg to be restricted to clients
func (h *Handler) RegisterClientRoutes(rg *gin.RouterGroup) {
	client := rg.Group("/client/projects")
	{
		client.GET("", h.ListClientProjects)
		client.GET("/recent", h.RecentClientProjects)
		client.GET("/:id", h.GetClientProject)
	}
}

// RegisterAdminRoutes expects rg to be restricted to admins
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin/projects")
	{
		admin.GET("", h.ListProjects)
		admin.GET("/search", h.SearchProjects)
		admin.GET("/export", h.ExportProjects)
		admin.GET("/:id", h.GetProject)
		admin.GET("/:id/history", h.GetHistory)
		admin.PUT("/:id/status", h.UpdateStatus)
		admin.PUT("/:id/deadline", h.SetDeadline)
		admin.PUT("/:id/final-cost", h.SetFinalCost)
		admin.PUT("/:id/developers", h.AssignDevelopers)
	}
}

// RegisterDeveloperRoutes expects rg to be restricted to developers
func (h *Handler) RegisterDeveloperRoutes(rg *gin.RouterGroup) {
	dev := rg.Group("/developer/projects")
	{
		dev.GET("", h.ListDeveloperProjects)
		dev.GET("/:id", h.GetDeveloperProject)
		dev.PUT("/:id/progress", h.ReportProgress)
	}
}

// ============================================================================
// Client
// ============================================================================

func (h *Handler) ListClientProjects(c *gin.Context) {
	claims := auth.MustClaims(c)
	projects, err := h.service.ListForClient(c.Request.Context(), claims.Email, c.Query("status"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProjects(c, projects)
}

func (h *Handler) RecentClientProjects(c *gin.Context) {
	claims := auth.MustClaims(c)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "5"), 10, 64)
	projects, err := h.service.Recent(c.Request.Context(), claims.Email, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProjects(c, projects)
}

func (h *Handler) GetClientProject(c *gin.Context) {
	claims := auth.MustClaims(c)
	project, err := h.service.GetForClient(c.Request.Context(), c.Param("id"), claims.Email)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProject(c, project)
}

// ============================================================================
// Admin
// ============================================================================

func (h *Handler) ListProjects(c *gin.Context) {
	var (
		projects []*Project
		err      error
	)
	if status := c.Query("status"); status != "" {
		projects, err = h.service.ListByStatus(c.Request.Context(), strings.Split(status, ",")...)
	} else {
		projects, err = h.service.ListAll(c.Request.Context())
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProjects(c, projects)
}

func (h *Handler) SearchProjects(c *gin.Context) {
	projects, err := h.service.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProjects(c, projects)
}

func (h *Handler) ExportProjects(c *gin.Context) {
	fileName := "projects-" + time.Now().Format("20060102") + ".xlsx"
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+fileName)

	if err := h.service.Export(c.Request.Context(), c.Writer); err != nil {
		h.logger.Error("Failed to export projects", zap.Error(err))
		h.writeError(c, err)
		return
	}
}

func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAdminProject(c, project)
}

func (h *Handler) GetHistory(c *gin.Context) {
	history, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	var req StatusChange
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := auth.MustClaims(c)
	project, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAdminProject(c, project)
}

func (h *Handler) SetDeadline(c *gin.Context) {
	var req struct {
		Deadline time.Time `json:"deadline" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.SetDeadline(c.Request.Context(), c.Param("id"), req.Deadline)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAdminProject(c, project)
}

func (h *Handler) SetFinalCost(c *gin.Context) {
	var req struct {
		FinalCost *int64 `json:"finalCost" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.SetFinalCost(c.Request.Context(), c.Param("id"), *req.FinalCost)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAdminProject(c, project)
}

func (h *Handler) AssignDevelopers(c *gin.Context) {
	var req struct {
		Developers []string `json:"developers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	project, err := h.service.AssignDevelopers(c.Request.Context(), c.Param("id"), req.Developers)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeAdminProject(c, project)
}

// ============================================================================
// Developer
// ============================================================================

func (h *Handler) ListDeveloperProjects(c *gin.Context) {
	claims := auth.MustClaims(c)
	projects, err := h.service.ListForDeveloper(c.Request.Context(), claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProjects(c, projects)
}

func (h *Handler) GetDeveloperProject(c *gin.Context) {
	claims := auth.MustClaims(c)
	project, err := h.service.GetForDeveloper(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProject(c, project)
}

func (h *Handler) ReportProgress(c *gin.Context) {
	var req ProgressReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := auth.MustClaims(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	var (
		project *Project
		err     error
	)
	switch {
	case req.Value != nil:
		project, err = h.service.ReportProgress(ctx, id, claims.UserID, *req.Value)
	case req.Done != nil && req.Total != nil:
		project, err = h.service.ReportTaskProgress(ctx, id, claims.UserID, *req.Done, *req.Total)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "either value or done and total are required"})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.writeProject(c, project)
}

func (h *Handler) writeProject(c *gin.Context, project *Project) {
	h.fillLinks(c.Request.Context(), project)
	c.JSON(http.StatusOK, project)
}

func (h *Handler) writeAdminProject(c *gin.Context, project *Project) {
	h.fillLinks(c.Request.Context(), project)
	c.JSON(http.StatusOK, AdminProject{
		Project:            project,
		AllowedTransitions: h.service.AllowedTransitions(project),
	})
}

func (h *Handler) writeProjects(c *gin.Context, projects []*Project) {
	h.fillLinks(c.Request.Context(), projects...)
	c.JSON(http.StatusOK, projects)
}

func (h *Handler) fillLinks(ctx context.Context, projects ...*Project) {
	if h.links == nil {
		return
	}
	for _, p := range projects {
		p.QuotationURL = h.link(ctx, p.QuotationKey)
		p.DocumentationURL = h.link(ctx, p.DocumentationKey)
	}
}

func (h *Handler) link(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	url, err := h.links.URL(ctx, key)
	if err != nil {
		h.logger.Warn("Failed to presign document link", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrProjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflows.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotAssigned):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrUnknownStatus),
		errors.Is(err, ErrProgressOutOfRange),
		errors.Is(err, ErrProgressNotIncreasing),
		errors.Is(err, ErrInvalidTaskCount),
		errors.Is(err, ErrInvalidFinalCost):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Project request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
