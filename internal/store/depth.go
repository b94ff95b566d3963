package store

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

// PriceLevel is the resting liquidity at one price.
type PriceLevel struct {
	Price       decimal.Decimal
	TotalAmount decimal.Decimal
	OrderCount  int
}

type restingOrder struct {
	side      domain.OrderSide
	price     decimal.Decimal
	remaining decimal.Decimal
}

// DepthStore mirrors the resting side of every book from the log stream.
// It never reads engine state, so queries do not contend with matching.
type DepthStore struct {
	mu       sync.RWMutex
	products map[string]map[string]*restingOrder // product_id → order_id → order
}

// NewDepthStore creates an empty DepthStore.
func NewDepthStore() *DepthStore {
	return &DepthStore{products: make(map[string]map[string]*restingOrder)}
}

// Handle applies a log.
func (s *DepthStore) Handle(l engine.Log) {
	if l.Order == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	book := s.products[l.ProductID]
	switch l.Type {
	case engine.LogOrderStatusChanged:
		if l.Status != domain.OrderStatusOpen {
			if book != nil {
				delete(book, l.Order.ID)
			}
			return
		}
		if book == nil {
			book = make(map[string]*restingOrder)
			s.products[l.ProductID] = book
		}
		book[l.Order.ID] = &restingOrder{
			side:      l.Order.Side,
			price:     l.Order.Price,
			remaining: l.Order.Remaining(),
		}

	case engine.LogOrderMatched:
		if l.Taker || book == nil {
			return
		}
		if o, ok := book[l.Order.ID]; ok {
			o.remaining = l.Order.Remaining()
		}
	}
}

// Levels returns up to depth aggregated levels per side, best first.
func (s *DepthStore) Levels(productID string, depth int) (bids, asks []PriceLevel) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPrice := map[domain.OrderSide]map[string]*PriceLevel{
		domain.OrderSideBuy:  {},
		domain.OrderSideSell: {},
	}
	for _, o := range s.products[productID] {
		if !o.remaining.IsPositive() {
			continue
		}
		key := o.price.String()
		lvl, ok := byPrice[o.side][key]
		if !ok {
			lvl = &PriceLevel{Price: o.price}
			byPrice[o.side][key] = lvl
		}
		lvl.TotalAmount = lvl.TotalAmount.Add(o.remaining)
		lvl.OrderCount++
	}

	bids = flatten(byPrice[domain.OrderSideBuy], depth, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
	asks = flatten(byPrice[domain.OrderSideSell], depth, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
	return bids, asks
}

func flatten(levels map[string]*PriceLevel, depth int, better func(a, b decimal.Decimal) bool) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		out = append(out, *lvl)
	}
	sort.Slice(out, func(i, j int) bool { return better(out[i].Price, out[j].Price) })
	if depth > 0 && len(out) > depth {
		out = out[:depth]
	}
	return out
}
