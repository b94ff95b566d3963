package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

// Submitter accepts messages for the matching core.
type Submitter interface {
	Submit(ctx context.Context, msg engine.Message) error
}

// DailyLimitScheduler opens and closes products with trading windows. Each
// tick computes whether the product should be open at that instant and
// submits a DailyLimitOperation only when that differs from the last state
// it submitted.
type DailyLimitScheduler struct {
	catalog   *domain.Catalog
	submitter Submitter
	interval  time.Duration
	loc       *time.Location
	logger    *slog.Logger

	// state holds the last submitted open flag per product. Only touched by
	// tick, which runs on a single goroutine.
	state map[string]bool
}

// NewDailyLimitScheduler creates a scheduler that evaluates windows in loc.
func NewDailyLimitScheduler(catalog *domain.Catalog, submitter Submitter, interval time.Duration, loc *time.Location, logger *slog.Logger) *DailyLimitScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &DailyLimitScheduler{
		catalog:   catalog,
		submitter: submitter,
		interval:  interval,
		loc:       loc,
		logger:    logger,
		state:     make(map[string]bool),
	}
}

// Start evaluates the windows once immediately, then launches a background
// goroutine that ticks at the configured interval. It stops when ctx is
// cancelled.
func (s *DailyLimitScheduler) Start(ctx context.Context) {
	s.tick(ctx, time.Now())
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				s.tick(ctx, t)
			}
		}
	}()
}

// tick submits an open or close for every daily-limit product whose
// desired state changed. Synthetic products follow their legs and are
// skipped.
func (s *DailyLimitScheduler) tick(ctx context.Context, now time.Time) {
	for _, p := range s.catalog.Products() {
		if p.DailyLimit == nil || p.Synthetic() {
			continue
		}
		open := s.shouldOpen(p.DailyLimit, now)
		if last, ok := s.state[p.ID]; ok && last == open {
			continue
		}

		err := s.submitter.Submit(ctx, engine.DailyLimitOperation{ProductID: p.ID, Open: open, At: now})
		if err != nil {
			// Leave state untouched so the next tick retries.
			s.logger.Warn("daily limit submit failed",
				slog.String("product_id", p.ID),
				slog.Bool("open", open),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.state[p.ID] = open
		s.logger.Info("daily limit transition",
			slog.String("product_id", p.ID),
			slog.Bool("open", open),
		)
	}
}

// shouldOpen reports whether trading is allowed at now. A daily limit with
// no windows only carries a price band, so the product is always open.
func (s *DailyLimitScheduler) shouldOpen(dl *domain.DailyLimit, now time.Time) bool {
	if len(dl.Windows) == 0 {
		return true
	}
	offset := sinceMidnight(now.In(s.loc))
	for _, w := range dl.Windows {
		if w.Contains(offset) {
			return true
		}
	}
	return false
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, sec := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(t.Nanosecond())
}
