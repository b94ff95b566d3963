package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/efreitasn/matchcore/internal/engine"
)

// PruneCursor is the name the sweep saves its progress under.
const PruneCursor = "prune"

// Progress persists how far a sweep has got. *journal.Journal implements it.
type Progress interface {
	SaveCursor(name string, at time.Time) error
}

// PruneSweep periodically cancels never-matched orders that have rested
// longer than the retention period. Each sweep covers (lastEnd, now-retention],
// so consecutive sweeps never overlap.
type PruneSweep struct {
	submitter Submitter
	interval  time.Duration
	retention time.Duration
	users     []string
	progress  Progress
	logger    *slog.Logger

	lastEnd time.Time
}

// NewPruneSweep creates a sweep starting at start. Users restricts pruning
// to the given owners (typically market makers); empty means everyone.
// Progress may be nil, in which case nothing survives a restart.
func NewPruneSweep(submitter Submitter, interval, retention time.Duration, users []string, start time.Time, progress Progress, logger *slog.Logger) *PruneSweep {
	return &PruneSweep{
		submitter: submitter,
		interval:  interval,
		retention: retention,
		users:     users,
		progress:  progress,
		logger:    logger,
		lastEnd:   start,
	}
}

// Start launches a background goroutine that sweeps at the configured
// interval. It stops when ctx is cancelled.
func (p *PruneSweep) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				p.tick(ctx, t)
			}
		}
	}()
}

// tick submits one PruneRequest if the retention horizon moved past the
// previous sweep. The window only advances when the submit succeeds.
func (p *PruneSweep) tick(ctx context.Context, now time.Time) {
	end := now.Add(-p.retention)
	if !end.After(p.lastEnd) {
		return
	}

	req := engine.PruneRequest{
		Start: p.lastEnd,
		End:   end,
		Users: p.users,
		At:    now,
	}
	if err := p.submitter.Submit(ctx, req); err != nil {
		p.logger.Warn("prune submit failed",
			slog.Time("start", req.Start),
			slog.Time("end", req.End),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.Debug("prune submitted",
		slog.Time("start", req.Start),
		slog.Time("end", req.End),
		slog.Int("users", len(req.Users)),
	)
	p.lastEnd = end

	// The saved position is the start of this window, not its end: the
	// request may still be queued if the process stops now, and sweeping
	// a window twice cancels nothing twice.
	if p.progress != nil {
		if err := p.progress.SaveCursor(PruneCursor, req.Start); err != nil {
			p.logger.Warn("prune progress not saved",
				slog.Time("start", req.Start),
				slog.String("error", err.Error()),
			)
		}
	}
}

// LastEnd returns the upper bound of the last submitted sweep.
func (p *PruneSweep) LastEnd() time.Time {
	return p.lastEnd
}
