package youtube

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/constants"
	"github.com/kapu/channel-ranking-go/pkg/errors"
)

// quotaTracker mirrors the Data API daily quota, which resets at midnight Pacific time.
type quotaTracker struct {
	mu     sync.Mutex
	limit  int
	margin int
	used   int
	reset  time.Time
	now    func() time.Time
	logger *zap.Logger
}

func newQuotaTracker(limit int, logger *zap.Logger) *quotaTracker {
	if limit <= 0 {
		limit = constants.YouTubeAPI.DailyQuotaLimit
	}
	margin := constants.YouTubeAPI.QuotaSafetyMargin
	if margin >= limit {
		margin = limit / 10
	}
	q := &quotaTracker{
		limit:  limit,
		margin: margin,
		now:    time.Now,
		logger: logger,
	}
	q.reset = nextQuotaReset(q.now())
	return q
}

func nextQuotaReset(now time.Time) time.Time {
	pt, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		pt = time.UTC
	}
	local := now.In(pt)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, pt)
}

func (q *quotaTracker) rollover() {
	if now := q.now(); now.After(q.reset) {
		q.used = 0
		q.reset = nextQuotaReset(now)
		q.logger.Info("YouTube API quota auto-reset", zap.Time("nextReset", q.reset))
	}
}

// check fails when cost would eat into the safety margin.
func (q *quotaTracker) check(cost int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	if q.used+cost > q.limit-q.margin {
		return errors.NewQuotaExceededError(q.used, q.limit, cost)
	}
	return nil
}

func (q *quotaTracker) consume(cost int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	q.used += cost
	remaining := q.limit - q.used

	q.logger.Debug("YouTube API quota consumed",
		zap.Int("cost", cost),
		zap.Int("used", q.used),
		zap.Int("remaining", remaining),
	)

	if remaining < q.margin {
		q.logger.Warn("YouTube API quota running low",
			zap.Int("remaining", remaining),
			zap.Time("resetTime", q.reset),
		)
	}
}

// exhaust marks the quota as spent after the API itself reported it exceeded.
func (q *quotaTracker) exhaust() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.used = q.limit
}

func (q *quotaTracker) status() (used int, remaining int, resetTime time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollover()
	return q.used, q.limit - q.used, q.reset
}
