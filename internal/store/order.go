package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

// OrderStore is a thread-safe in-memory view of orders, with a primary
// index by order id and a secondary index by user id. It is fed from the
// log stream and answers status queries without touching the engine.
type OrderStore struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	userOrders map[string][]*domain.Order // user_id → orders (arrival order)
	lastSeq    uint64
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:     make(map[string]*domain.Order),
		userOrders: make(map[string][]*domain.Order),
	}
}

// Create records an accepted order before it reaches the engine. The
// store keeps its own copy. An existing id is left untouched.
func (s *OrderStore) Create(o domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(&o)
}

func (s *OrderStore) insert(o *domain.Order) {
	if _, ok := s.orders[o.ID]; ok {
		return
	}
	s.orders[o.ID] = o
	s.userOrders[o.UserID] = append(s.userOrders[o.UserID], o)
}

// Delete removes an order that never reached the engine.
func (s *OrderStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return
	}
	delete(s.orders, id)
	list := s.userOrders[o.UserID]
	for i, cur := range list {
		if cur.ID == id {
			s.userOrders[o.UserID] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the order. It returns domain.ErrOrderNotFound if
// the order does not exist.
func (s *OrderStore) Get(id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *o, nil
}

// ListByUser returns a user's orders newest first. If status is non-nil,
// only orders in that status are included. Pagination is 1-based. Returns
// the page and the total count of matching orders.
func (s *OrderStore) ListByUser(userID string, status *domain.OrderStatus, page, limit int) ([]domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.userOrders[userID]

	filtered := make([]domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if status != nil && all[i].Status != *status {
			continue
		}
		filtered = append(filtered, *all[i])
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return filtered[start:end], total
}

// MarkCancelling flags a live order as having a cancel in flight and
// returns its current state. Terminal orders are returned unchanged.
func (s *OrderStore) MarkCancelling(id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !o.Status.Terminal() {
		o.Status = domain.OrderStatusCancelling
	}
	return *o, nil
}

// Live returns every order that still rests or waits in a book, in arrival
// order. Used to re-import books after a restart.
func (s *OrderStore) Live() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Order
	for _, o := range s.orders {
		if o.Status == domain.OrderStatusOpen || o.Status == domain.OrderStatusPending {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// LastSeq returns the sequence of the last log applied.
func (s *OrderStore) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// Handle applies a log. Logs at or below the last applied sequence are
// ignored, so replaying a journal over a live store is harmless.
func (s *OrderStore) Handle(l engine.Log) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l.Seq != 0 {
		if l.Seq <= s.lastSeq {
			return
		}
		s.lastSeq = l.Seq
	}
	// Leg orders are internal to an instant exchange; the synthetic order
	// carries the user-facing result.
	if l.Order == nil || l.Order.IsLeg() {
		return
	}

	cur, ok := s.orders[l.Order.ID]
	if !ok {
		snap := *l.Order
		s.insert(&snap)
		return
	}
	if cur.Status.Terminal() {
		return
	}

	status := cur.Status
	switch {
	case l.Order.Status.Terminal():
		status = l.Order.Status
	case cur.Status == domain.OrderStatusCancelling:
		// Keep the cancel flag until the engine confirms.
	case l.Type == engine.LogOrderStatusChanged:
		status = l.Order.Status
	}

	*cur = *l.Order
	cur.Status = status
}
