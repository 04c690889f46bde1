package http

import (
	"net/http"
	"strings"
	"time"

	"astrelay/internal/core/services"
	"astrelay/pkg/errors"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService    services.AuthService
	zodiacService  services.ZodiacService
	accessTokenTTL time.Duration
}

func NewAuthHandler(authService services.AuthService, zodiacService services.ZodiacService, accessTokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		zodiacService:  zodiacService,
		accessTokenTTL: accessTokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/register", h.Register)
		api.POST("/login", h.Login)
		api.POST("/refresh", h.RefreshToken)
	}
}

type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=50"`
	Email     string `json:"email" binding:"required,email,max=254"`
	Password  string `json:"password" binding:"required,min=6,max=128"`
	BirthDate string `json:"birth_date" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		c.Error(errors.NewInvalidInputError("birth_date must be YYYY-MM-DD"))
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password, birthDate)
	if err != nil {
		c.Error(err)
		return
	}

	accessToken, err := h.authService.GenerateToken(user.ID, user.Username)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate token"))
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken(user.ID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to generate refresh token"))
		return
	}

	profile := h.zodiacService.Profile(c.Request.Context(), user.BirthDate)

	c.JSON(http.StatusCreated, gin.H{
		"user":          user,
		"zodiac":        profile,
		"sigil":         h.zodiacService.Sigil(user.ID, profile.Sign),
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(h.accessTokenTTL / time.Second),
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	accessToken, refreshToken, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(h.accessTokenTTL / time.Second),
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	accessToken, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(h.accessTokenTTL / time.Second),
	})
}
