package services

import (
	"context"
	"sync"
	"time"

	"astrelay/internal/core/domain"
	"astrelay/internal/core/ports"
	"astrelay/pkg/utils"

	"golang.org/x/time/rate"
)

// recentActionCap bounds the server-side feed; clients display fewer.
const recentActionCap = 50

type actionService struct {
	broadcaster ports.Broadcaster
	cooldown    time.Duration

	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	recent   []domain.RecentAction
}

func NewActionService(broadcaster ports.Broadcaster, cooldown time.Duration) ports.ActionService {
	if cooldown <= 0 {
		cooldown = time.Second
	}
	return &actionService{
		broadcaster: broadcaster,
		cooldown:    cooldown,
		limiters:    make(map[domain.UserID]*rate.Limiter),
	}
}

// Trigger enforces the per-user cooldown before anything reaches the
// broadcast path. Throttled calls return domain.ErrActionThrottled and
// emit nothing.
func (s *actionService) Trigger(ctx context.Context, userID domain.UserID, username string, action domain.ActionType) (*domain.RecentAction, error) {
	if !domain.KnownAction(action) {
		return nil, domain.ErrUnknownAction
	}

	if !s.limiterFor(userID).Allow() {
		return nil, domain.ErrActionThrottled
	}

	entry := domain.RecentAction{
		ID:         utils.GenerateActionID(),
		UserID:     userID,
		Username:   username,
		Action:     action,
		OccurredAt: time.Now(),
	}

	s.mu.Lock()
	s.recent = append(s.recent, entry)
	if len(s.recent) > recentActionCap {
		s.recent = s.recent[len(s.recent)-recentActionCap:]
	}
	s.mu.Unlock()

	s.broadcaster.ActionPerformed(&entry)
	return &entry, nil
}

func (s *actionService) Recent(ctx context.Context) []domain.RecentAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.RecentAction, len(s.recent))
	copy(out, s.recent)
	return out
}

func (s *actionService) limiterFor(userID domain.UserID) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(s.cooldown), 1)
		s.limiters[userID] = limiter
	}
	return limiter
}
