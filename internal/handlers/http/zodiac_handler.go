package http

import (
	"net/http"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/services"
	"astrelay/pkg/errors"

	"github.com/gin-gonic/gin"
)

type ZodiacHandler struct {
	zodiacService services.ZodiacService
}

func NewZodiacHandler(zodiacService services.ZodiacService) *ZodiacHandler {
	return &ZodiacHandler{zodiacService: zodiacService}
}

func (h *ZodiacHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/zodiac")
	{
		api.GET("/profile", h.Profile)
		api.GET("/numerology", h.Numerology)
		api.GET("/compatibility", h.Compatibility)
		api.GET("/sigil", h.Sigil)
		api.GET("/influence/:sign", h.Influence)
	}
}

var validSigns = map[domain.ZodiacSign]bool{
	domain.Aries: true, domain.Taurus: true, domain.Gemini: true,
	domain.Cancer: true, domain.Leo: true, domain.Virgo: true,
	domain.Libra: true, domain.Scorpio: true, domain.Sagittarius: true,
	domain.Capricorn: true, domain.Aquarius: true, domain.Pisces: true,
}

func parseBirthDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("birth_date")
	if raw == "" {
		c.Error(errors.NewInvalidInputError("birth_date query parameter required"))
		return time.Time{}, false
	}
	birthDate, err := time.Parse("2006-01-02", raw)
	if err != nil {
		c.Error(errors.NewInvalidInputError("birth_date must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return birthDate, true
}

func (h *ZodiacHandler) Profile(c *gin.Context) {
	birthDate, ok := parseBirthDate(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": h.zodiacService.Profile(c.Request.Context(), birthDate),
	})
}

func (h *ZodiacHandler) Numerology(c *gin.Context) {
	birthDate, ok := parseBirthDate(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"life_path_number": h.zodiacService.LifePathNumber(birthDate),
	})
}

func (h *ZodiacHandler) Compatibility(c *gin.Context) {
	a := domain.ZodiacSign(c.Query("sign_a"))
	b := domain.ZodiacSign(c.Query("sign_b"))
	if !validSigns[a] || !validSigns[b] {
		c.Error(errors.NewInvalidInputError("sign_a and sign_b must be valid zodiac signs"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sign_a": a,
		"sign_b": b,
		"score":  h.zodiacService.Compatibility(a, b),
	})
}

func (h *ZodiacHandler) Sigil(c *gin.Context) {
	userID := domain.UserID(c.Query("user_id"))
	sign := domain.ZodiacSign(c.Query("sign"))
	if userID == "" || !validSigns[sign] {
		c.Error(errors.NewInvalidInputError("user_id and a valid sign are required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sigil": h.zodiacService.Sigil(userID, sign),
	})
}

func (h *ZodiacHandler) Influence(c *gin.Context) {
	sign := domain.ZodiacSign(c.Param("sign"))
	if !validSigns[sign] {
		c.Error(errors.NewInvalidInputError("unknown zodiac sign"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"influence": h.zodiacService.InfluenceStats(c.Request.Context(), sign, time.Now()),
	})
}
