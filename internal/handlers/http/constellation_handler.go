package http

import (
	"net/http"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/internal/core/services"
	"astrelay/internal/infrastructure/middleware"
	"astrelay/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ConstellationHandler struct {
	constellationService ports.ConstellationService
	authService          services.AuthService
}

func NewConstellationHandler(constellationService ports.ConstellationService, authService services.AuthService) *ConstellationHandler {
	return &ConstellationHandler{
		constellationService: constellationService,
		authService:          authService,
	}
}

func (h *ConstellationHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/constellations", h.List)
		api.GET("/constellations/:id", h.Get)
	}

	authed := router.Group("/api/v1", middleware.AuthMiddleware(h.authService))
	{
		authed.POST("/constellations", h.Create)
		authed.PUT("/constellations/:id", h.Update)
		authed.DELETE("/constellations/:id", h.Delete)
	}
}

type ConstellationRequest struct {
	Name        string            `json:"name" binding:"required,min=1,max=100"`
	Stars       []domain.Star     `json:"stars" binding:"max=500"`
	Connections []domain.StarLink `json:"connections" binding:"max=1000"`
	LineColor   string            `json:"line_color" binding:"max=32"`
}

func (h *ConstellationHandler) Create(c *gin.Context) {
	h.upsert(c, "")
}

func (h *ConstellationHandler) Update(c *gin.Context) {
	h.upsert(c, domain.ConstellationID(c.Param("id")))
}

func (h *ConstellationHandler) upsert(c *gin.Context, id domain.ConstellationID) {
	var req ConstellationRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	entity := &domain.Constellation{
		ID:          id,
		Name:        req.Name,
		Stars:       req.Stars,
		Connections: req.Connections,
		LineColor:   req.LineColor,
		UpdatedAt:   time.Now(),
	}

	stored, err := h.constellationService.Upsert(c.Request.Context(), requesterID(c), entity)
	if err == domain.ErrStaleRevision {
		// Lost the last-write-wins race; the caller should refetch.
		current, getErr := h.constellationService.Get(c.Request.Context(), id)
		if getErr == nil {
			c.JSON(http.StatusConflict, gin.H{
				"error":         "a newer revision exists",
				"constellation": current,
			})
			return
		}
		c.Error(err)
		return
	}
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if id == "" {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"constellation": stored})
}

func (h *ConstellationHandler) Get(c *gin.Context) {
	constellation, err := h.constellationService.Get(c.Request.Context(), domain.ConstellationID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"constellation": constellation})
}

func (h *ConstellationHandler) List(c *gin.Context) {
	constellations, err := h.constellationService.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"constellations": constellations})
}

func (h *ConstellationHandler) Delete(c *gin.Context) {
	err := h.constellationService.Delete(c.Request.Context(), requesterID(c), domain.ConstellationID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
