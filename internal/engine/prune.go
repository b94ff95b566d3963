package engine

import (
	"github.com/efreitasn/matchcore/internal/domain"
)

// prune cancels resting orders that never traded and arrived inside the
// request window. The window excludes Start and includes End.
func (b *OrderBook) prune(req PruneRequest) []Log {
	var users map[string]bool
	if len(req.Users) > 0 {
		users = make(map[string]bool, len(req.Users))
		for _, u := range req.Users {
			users[u] = true
		}
	}

	stale := func(o *domain.Order) bool {
		if o.Matched() {
			return false
		}
		if !o.CreatedAt.After(req.Start) || o.CreatedAt.After(req.End) {
			return false
		}
		return users == nil || users[o.UserID]
	}

	var ids []string
	for _, tree := range []*bookTree{b.bids, b.asks} {
		tree.Ascend(func(e bookEntry) bool {
			if stale(e.order) {
				ids = append(ids, e.order.ID)
			}
			return true
		})
	}

	shard := &PruneShard{
		Start:      req.Start,
		End:        req.End,
		ShardCount: req.ShardCount,
		ShardIndex: req.ShardIndex,
	}
	logs := make([]Log, 0, len(ids))
	for _, id := range ids {
		for _, l := range b.cancel(id, domain.CancelReasonPruned, req.At) {
			l.Prune = shard
			logs = append(logs, l)
		}
	}
	return logs
}
