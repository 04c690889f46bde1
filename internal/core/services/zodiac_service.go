package services

import (
	"context"
	"fmt"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/pkg/cache"
)

// ZodiacService computes the astrology-derived read models served over
// REST. Results are pure functions of their inputs, so they are memoized.
type ZodiacService interface {
	Profile(ctx context.Context, birthDate time.Time) domain.ZodiacProfile
	LifePathNumber(birthDate time.Time) int
	Compatibility(a, b domain.ZodiacSign) int
	Sigil(userID domain.UserID, sign domain.ZodiacSign) string
	InfluenceStats(ctx context.Context, sign domain.ZodiacSign, now time.Time) InfluenceStats
}

// InfluenceStats is the daily cosmic-influence read model for a sign.
type InfluenceStats struct {
	Sign      domain.ZodiacSign `json:"sign"`
	Energy    int               `json:"energy"`
	Harmony   int               `json:"harmony"`
	Fortune   int               `json:"fortune"`
	ValidDate string            `json:"valid_date"`
}

type zodiacService struct {
	cache *cache.Cache
}

func NewZodiacService() ZodiacService {
	return &zodiacService{
		cache: cache.NewCache(6 * time.Hour),
	}
}

type signRange struct {
	sign         domain.ZodiacSign
	element      domain.Element
	rulingPlanet string
	month        time.Month
	day          int // first day of the sign
}

// Ordered by start date within the calendar year.
var signRanges = []signRange{
	{domain.Capricorn, domain.ElementEarth, "Saturn", time.January, 1},
	{domain.Aquarius, domain.ElementAir, "Uranus", time.January, 20},
	{domain.Pisces, domain.ElementWater, "Neptune", time.February, 19},
	{domain.Aries, domain.ElementFire, "Mars", time.March, 21},
	{domain.Taurus, domain.ElementEarth, "Venus", time.April, 20},
	{domain.Gemini, domain.ElementAir, "Mercury", time.May, 21},
	{domain.Cancer, domain.ElementWater, "Moon", time.June, 21},
	{domain.Leo, domain.ElementFire, "Sun", time.July, 23},
	{domain.Virgo, domain.ElementEarth, "Mercury", time.August, 23},
	{domain.Libra, domain.ElementAir, "Venus", time.September, 23},
	{domain.Scorpio, domain.ElementWater, "Pluto", time.October, 23},
	{domain.Sagittarius, domain.ElementFire, "Jupiter", time.November, 22},
	{domain.Capricorn, domain.ElementEarth, "Saturn", time.December, 22},
}

func (s *zodiacService) Profile(ctx context.Context, birthDate time.Time) domain.ZodiacProfile {
	key := "profile:" + birthDate.Format("2006-01-02")
	if v, ok := s.cache.Get(key); ok {
		return v.(domain.ZodiacProfile)
	}

	r := signRanges[0]
	for _, candidate := range signRanges {
		start := time.Date(birthDate.Year(), candidate.month, candidate.day, 0, 0, 0, 0, time.UTC)
		if !birthDate.Before(start) {
			r = candidate
		}
	}

	profile := domain.ZodiacProfile{
		Sign:           r.sign,
		Element:        r.element,
		RulingPlanet:   r.rulingPlanet,
		LifePathNumber: s.LifePathNumber(birthDate),
	}

	s.cache.Set(key, profile)
	return profile
}

// LifePathNumber reduces the digits of the birth date to a single digit,
// keeping the master numbers 11 and 22.
func (s *zodiacService) LifePathNumber(birthDate time.Time) int {
	n := digitSum(birthDate.Year()) + digitSum(int(birthDate.Month())) + digitSum(birthDate.Day())
	for n > 9 && n != 11 && n != 22 {
		n = digitSum(n)
	}
	return n
}

// Compatibility scores two signs 0-100: same element scores highest,
// complementary element pairs (fire/air, earth/water) above average.
func (s *zodiacService) Compatibility(a, b domain.ZodiacSign) int {
	ea := elementOf(a)
	eb := elementOf(b)

	switch {
	case ea == eb:
		return 85
	case complementary(ea, eb):
		return 70
	default:
		return 45
	}
}

// Sigil derives a deterministic glyph string from the user and sign.
func (s *zodiacService) Sigil(userID domain.UserID, sign domain.ZodiacSign) string {
	var h uint32 = 2166136261
	for _, c := range []byte(string(userID) + ":" + string(sign)) {
		h ^= uint32(c)
		h *= 16777619
	}

	glyphs := []rune("☉☽☿♀♂♃♄♅♆♇✦✧")
	runes := make([]rune, 0, 6)
	for i := 0; i < 6; i++ {
		runes = append(runes, glyphs[h%uint32(len(glyphs))])
		h /= uint32(len(glyphs))
		if h == 0 {
			h = 2166136261 + uint32(i)
		}
	}
	return string(runes)
}

func (s *zodiacService) InfluenceStats(ctx context.Context, sign domain.ZodiacSign, now time.Time) InfluenceStats {
	date := now.UTC().Format("2006-01-02")
	key := fmt.Sprintf("influence:%s:%s", sign, date)
	if v, ok := s.cache.Get(key); ok {
		return v.(InfluenceStats)
	}

	seed := hashString(string(sign) + date)
	stats := InfluenceStats{
		Sign:      sign,
		Energy:    int(seed%61) + 40,
		Harmony:   int((seed/61)%61) + 40,
		Fortune:   int((seed/3721)%61) + 40,
		ValidDate: date,
	}

	s.cache.Set(key, stats)
	return stats
}

func digitSum(n int) int {
	sum := 0
	for n > 0 {
		sum += n % 10
		n /= 10
	}
	return sum
}

func elementOf(sign domain.ZodiacSign) domain.Element {
	for _, r := range signRanges {
		if r.sign == sign {
			return r.element
		}
	}
	return domain.ElementFire
}

func complementary(a, b domain.Element) bool {
	pair := func(x, y domain.Element) bool {
		return (a == x && b == y) || (a == y && b == x)
	}
	return pair(domain.ElementFire, domain.ElementAir) || pair(domain.ElementEarth, domain.ElementWater)
}

func hashString(s string) uint64 {
	var h uint64 = 14695981039346656037
	for _, c := range []byte(s) {
		h ^= uint64(c)
		h *= 1099511628211
	}
	return h
}
