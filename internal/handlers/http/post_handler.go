package http

import (
	"net/http"
	"strconv"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/internal/core/services"
	"astrelay/internal/infrastructure/middleware"
	"astrelay/pkg/errors"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	postService ports.PostService
	authService services.AuthService
}

func NewPostHandler(postService ports.PostService, authService services.AuthService) *PostHandler {
	return &PostHandler{
		postService: postService,
		authService: authService,
	}
}

func (h *PostHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/posts", h.ListPosts)
		api.GET("/posts/:id", h.GetPost)
	}

	authed := router.Group("/api/v1", middleware.AuthMiddleware(h.authService))
	{
		authed.POST("/posts", h.CreatePost)
		authed.POST("/posts/:id/react", h.React)
	}
}

type CreatePostRequest struct {
	Body  string `json:"body" binding:"required,min=1,max=2000"`
	Sigil string `json:"sigil" binding:"max=32"`
}

type ReactRequest struct {
	Like     bool   `json:"like"`
	Reaction string `json:"reaction" binding:"max=32"`
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	authorName, _ := c.Get("username")
	name, _ := authorName.(string)

	post, err := h.postService.CreatePost(c.Request.Context(), requesterID(c), name, req.Body, req.Sigil)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"post": post})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	post, err := h.postService.GetPost(c.Request.Context(), domain.PostID(c.Param("id")))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": post})
}

func (h *PostHandler) ListPosts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	posts, err := h.postService.ListPosts(c.Request.Context(), limit)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

func (h *PostHandler) React(c *gin.Context) {
	var req ReactRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}
	if !req.Like && req.Reaction == "" {
		c.Error(errors.NewInvalidInputError("either like or reaction must be set"))
		return
	}

	delta := domain.EngagementDelta{PostID: domain.PostID(c.Param("id"))}
	if req.Like {
		delta.Likes = 1
	}
	if req.Reaction != "" {
		delta.Reaction = req.Reaction
		delta.Count = 1
	}

	if err := h.postService.React(c.Request.Context(), delta); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
