package http

import (
	"net/http"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/internal/core/services"
	"astrelay/internal/infrastructure/middleware"
	"astrelay/pkg/errors"

	"github.com/gin-gonic/gin"
)

type StreamHandler struct {
	streamService ports.StreamService
	authService   services.AuthService
}

func NewStreamHandler(streamService ports.StreamService, authService services.AuthService) *StreamHandler {
	return &StreamHandler{
		streamService: streamService,
		authService:   authService,
	}
}

func (h *StreamHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/streams", h.ListStreams)
		api.GET("/streams/:id", h.GetStream)
		api.GET("/streams/:id/stats", h.GetStreamStats)
	}

	authed := router.Group("/api/v1", middleware.AuthMiddleware(h.authService))
	{
		authed.POST("/streams", h.CreateStream)
		authed.POST("/streams/:id/join", h.JoinStream)
		authed.POST("/streams/:id/leave", h.LeaveStream)
		authed.POST("/streams/:id/end", h.EndStream)
	}
}

func (h *StreamHandler) CreateStream(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required,min=1,max=140"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	hostID := requesterID(c)
	stream, err := h.streamService.CreateStream(c.Request.Context(), hostID, req.Title)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"stream": stream})
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	stream, err := h.streamService.GetStream(c.Request.Context(), domain.StreamID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": stream})
}

func (h *StreamHandler) ListStreams(c *gin.Context) {
	streams, err := h.streamService.ListLive(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"streams": streams})
}

func (h *StreamHandler) JoinStream(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))
	if err := h.streamService.Join(c.Request.Context(), streamID, requesterID(c)); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

func (h *StreamHandler) LeaveStream(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))
	if err := h.streamService.Leave(c.Request.Context(), streamID, requesterID(c)); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (h *StreamHandler) EndStream(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))
	err := h.streamService.End(c.Request.Context(), streamID, requesterID(c))
	if err == domain.ErrNotStreamHost {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the host can end a stream"})
		return
	}
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *StreamHandler) GetStreamStats(c *gin.Context) {
	stats, err := h.streamService.Stats(c.Request.Context(), domain.StreamID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// requesterID reads the user resolved by the auth middleware.
func requesterID(c *gin.Context) domain.UserID {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(domain.UserID); ok {
			return id
		}
	}
	return ""
}
