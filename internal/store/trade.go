package store

import (
	"sync"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

// TradeStore is a thread-safe in-memory store for trades, keyed by
// product. Trades are append-only and chronological.
type TradeStore struct {
	mu     sync.RWMutex
	trades map[string][]*domain.Trade // product_id → trades (chronological)
	seen   map[string]bool
	limit  int
}

// NewTradeStore creates an empty TradeStore that keeps at most limit
// trades per product. A limit of zero keeps everything.
func NewTradeStore(limit int) *TradeStore {
	return &TradeStore{
		trades: make(map[string][]*domain.Trade),
		seen:   make(map[string]bool),
		limit:  limit,
	}
}

// Append adds a trade to its product's list. A trade id seen before is
// ignored.
func (s *TradeStore) Append(t *domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[t.ID] {
		return
	}
	s.seen[t.ID] = true

	list := append(s.trades[t.ProductID], t)
	if s.limit > 0 && len(list) > s.limit {
		for _, old := range list[:len(list)-s.limit] {
			delete(s.seen, old.ID)
		}
		list = append([]*domain.Trade(nil), list[len(list)-s.limit:]...)
	}
	s.trades[t.ProductID] = list
}

// Handle records the trade carried by a taker-side match log.
func (s *TradeStore) Handle(l engine.Log) {
	if l.Type != engine.LogOrderMatched || !l.Taker || l.Trade == nil {
		return
	}
	t := *l.Trade
	s.Append(&t)
}

// GetByProduct returns all trades for a product in chronological order.
// Returns an empty slice if no trades exist for the product.
func (s *TradeStore) GetByProduct(productID string) []*domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trades := s.trades[productID]
	if trades == nil {
		return []*domain.Trade{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Trade, len(trades))
	copy(result, trades)
	return result
}
