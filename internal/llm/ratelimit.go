package llm

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// limiterSet guards concurrent provider calls with a per-provider token
// bucket. The Gateway uses one bucket per provider name so a burst against
// "openai" never starves "anthropic".
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

func newLimiterSet(rps float64, burst int) *limiterSet {
	return &limiterSet{limiters: map[string]*rate.Limiter{}, rps: rps, burst: burst}
}

func (s *limiterSet) wait(ctx context.Context, provider string) error {
	if s.rps <= 0 {
		return nil
	}
	s.mu.Lock()
	lim, ok := s.limiters[provider]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(s.rps), s.burst)
		s.limiters[provider] = lim
	}
	s.mu.Unlock()
	return lim.Wait(ctx)
}
