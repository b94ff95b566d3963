package engine

import (
	"sort"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
)

// BandPolicy decides what happens to a limit order whose remainder would
// rest outside the daily price band.
type BandPolicy string

const (
	// BandHold parks the order as pending until the next open.
	BandHold BandPolicy = "hold"
	// BandReject cancels the order.
	BandReject BandPolicy = "reject"
)

type bookTree = btree.BTreeG[bookEntry]

// bookEntry is a single order resting on the book.
type bookEntry struct {
	price decimal.Decimal
	seq   uint64
	order *domain.Order
}

// bidLess orders bids by price descending, then arrival ascending, so
// Min() returns the best bid.
func bidLess(a, b bookEntry) bool {
	if c := a.price.Cmp(b.price); c != 0 {
		return c > 0
	}
	return a.seq < b.seq
}

// askLess orders asks by price ascending, then arrival ascending.
func askLess(a, b bookEntry) bool {
	if c := a.price.Cmp(b.price); c != 0 {
		return c < 0
	}
	return a.seq < b.seq
}

// OrderBook holds the resting limit orders of one product and its trading
// state. It is not safe for concurrent use; the dispatcher goroutine is its
// only writer.
type OrderBook struct {
	productID   string
	amountScale int32
	policy      BandPolicy

	bids    *bookTree
	asks    *bookTree
	index   map[string]bookEntry
	pending map[string]*domain.Order

	open       bool
	dailyLimit bool
	rate       *domain.DailyLimitRate
	reference  decimal.Decimal
	lastPrice  decimal.Decimal
	hasTraded  bool
	tradeSeq   uint64
}

// NewOrderBook creates the book for a product. Products with a daily limit
// start closed and wait for an open operation; all others start open.
func NewOrderBook(product *domain.Product, policy BandPolicy) *OrderBook {
	const degree = 32
	if policy == "" {
		policy = BandHold
	}
	b := &OrderBook{
		productID:   product.ID,
		amountScale: product.AmountPrecision,
		policy:      policy,
		bids:        btree.NewG[bookEntry](degree, bidLess),
		asks:        btree.NewG[bookEntry](degree, askLess),
		index:       make(map[string]bookEntry),
		pending:     make(map[string]*domain.Order),
		open:        product.DailyLimit == nil,
		dailyLimit:  product.DailyLimit != nil,
	}
	if product.DailyLimit != nil && product.DailyLimit.Rate != nil {
		b.rate = product.DailyLimit.Rate
		b.reference = b.rate.InitialPrice
	}
	return b
}

// SeedTradeSeq continues trade numbering after seq. Lower values are
// ignored.
func (b *OrderBook) SeedTradeSeq(seq uint64) {
	if seq > b.tradeSeq {
		b.tradeSeq = seq
	}
}

// TradeSeq returns the sequence of the last trade executed on the book.
func (b *OrderBook) TradeSeq() uint64 {
	return b.tradeSeq
}

// ProductID returns the product the book belongs to.
func (b *OrderBook) ProductID() string {
	return b.productID
}

// IsOpen reports whether the book currently matches orders.
func (b *OrderBook) IsOpen() bool {
	return b.open
}

// Reference returns the price the band is measured from.
func (b *OrderBook) Reference() decimal.Decimal {
	return b.reference
}

// LastPrice returns the price of the most recent trade, if any.
func (b *OrderBook) LastPrice() (decimal.Decimal, bool) {
	return b.lastPrice, b.hasTraded
}

func (b *OrderBook) tree(side domain.OrderSide) *bookTree {
	if side == domain.OrderSideBuy {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) insert(o *domain.Order) {
	e := bookEntry{price: o.Price, seq: o.Seq, order: o}
	b.tree(o.Side).ReplaceOrInsert(e)
	b.index[o.ID] = e
}

func (b *OrderBook) remove(orderID string) (*domain.Order, bool) {
	e, ok := b.index[orderID]
	if !ok {
		return nil, false
	}
	delete(b.index, orderID)
	b.tree(e.order.Side).Delete(e)
	return e.order, true
}

func (b *OrderBook) best(side domain.OrderSide) (*domain.Order, bool) {
	e, ok := b.tree(side).Min()
	if !ok {
		return nil, false
	}
	return e.order, true
}

// Best returns a copy of the highest-priority order on a side.
func (b *OrderBook) Best(side domain.OrderSide) (domain.Order, bool) {
	o, ok := b.best(side)
	if !ok {
		return domain.Order{}, false
	}
	return *o, true
}

// Len returns the number of resting orders on a side.
func (b *OrderBook) Len(side domain.OrderSide) int {
	return b.tree(side).Len()
}

// PendingLen returns the number of orders held until the next open.
func (b *OrderBook) PendingLen() int {
	return len(b.pending)
}

// Contains reports whether the order rests on the book or is pending.
func (b *OrderBook) Contains(orderID string) bool {
	if _, ok := b.index[orderID]; ok {
		return true
	}
	_, ok := b.pending[orderID]
	return ok
}

// Orders returns copies of the resting orders on a side in priority order.
func (b *OrderBook) Orders(side domain.OrderSide) []domain.Order {
	out := make([]domain.Order, 0, b.tree(side).Len())
	b.tree(side).Ascend(func(e bookEntry) bool {
		out = append(out, *e.order)
		return true
	})
	return out
}

// Pending returns copies of the pending orders in arrival order.
func (b *OrderBook) Pending() []domain.Order {
	held := b.pendingByArrival()
	out := make([]domain.Order, len(held))
	for i, o := range held {
		out[i] = *o
	}
	return out
}

func (b *OrderBook) pendingByArrival() []*domain.Order {
	held := make([]*domain.Order, 0, len(b.pending))
	for _, o := range b.pending {
		held = append(held, o)
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Seq < held[j].Seq })
	return held
}

func (b *OrderBook) hold(o *domain.Order, at time.Time) Log {
	o.Status = domain.OrderStatusPending
	b.pending[o.ID] = o
	return statusLog(b.productID, o, "", at)
}

// band compares price with the daily band: 1 above it, -1 below it, 0
// inside it or when no band applies. The upper rate applies above the
// reference and the lower rate at or below it.
func (b *OrderBook) band(price decimal.Decimal) int {
	if !b.dailyLimit || b.rate == nil || !b.reference.IsPositive() {
		return 0
	}
	delta := price.Sub(b.reference)
	rate, ans := b.rate.UpperLimitRate, 1
	if !delta.IsPositive() {
		rate, ans = b.rate.LowerLimitRate, -1
	}
	if delta.Abs().GreaterThan(domain.Mul(b.reference, rate)) {
		return ans
	}
	return 0
}

// outsideBand reports whether a resting order would sit on the wrong side
// of the band: a bid above it or an ask below it.
func (b *OrderBook) outsideBand(side domain.OrderSide, price decimal.Decimal) bool {
	cmp := b.band(price)
	return (side == domain.OrderSideBuy && cmp > 0) || (side == domain.OrderSideSell && cmp < 0)
}

// openBook enables matching and refreshes the band reference. Makers now
// outside the band are parked, then orders held before the open are
// replayed in arrival order.
func (b *OrderBook) openBook(at time.Time) []Log {
	if b.open {
		return nil
	}
	b.open = true
	if b.hasTraded {
		b.reference = b.lastPrice
	} else if b.rate != nil {
		b.reference = b.rate.InitialPrice
	}

	held := b.pendingByArrival()
	for _, o := range held {
		delete(b.pending, o.ID)
	}

	var logs []Log
	for _, side := range []domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell} {
		for {
			o, ok := b.best(side)
			if !ok || !b.outsideBand(side, o.Price) {
				break
			}
			b.remove(o.ID)
			logs = append(logs, b.hold(o, at))
		}
	}

	for _, o := range held {
		logs = append(logs, b.place(o, at)...)
	}
	return append(logs, bookStatusLog(b.productID, true, at))
}

func (b *OrderBook) closeBook(at time.Time) []Log {
	if !b.open {
		return nil
	}
	b.open = false
	return []Log{bookStatusLog(b.productID, false, at)}
}

// cancel removes an order from the book or the pending queue. Unknown ids
// produce no logs.
func (b *OrderBook) cancel(orderID string, reason domain.CancelReason, at time.Time) []Log {
	o, ok := b.remove(orderID)
	if !ok {
		if o, ok = b.pending[orderID]; !ok {
			return nil
		}
		delete(b.pending, orderID)
	}
	o.Status = domain.OrderStatusCancelled
	return []Log{statusLog(b.productID, o, reason, at)}
}

// cancelAll drains bids, then asks, then pending orders.
func (b *OrderBook) cancelAll(at time.Time) []Log {
	var logs []Log
	for _, side := range []domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell} {
		for {
			o, ok := b.best(side)
			if !ok {
				break
			}
			logs = append(logs, b.cancel(o.ID, domain.CancelReasonAdmin, at)...)
		}
	}
	for _, o := range b.pendingByArrival() {
		logs = append(logs, b.cancel(o.ID, domain.CancelReasonAdmin, at)...)
	}
	return logs
}
