package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
)

// InstantEngine executes market orders on a synthetic product by trading
// through its two leg books. It keeps no book of its own; the leg books are
// lent to it by the dispatcher for the duration of each call.
type InstantEngine struct {
	product     *domain.Product
	initialized map[string]bool
	pending     []*domain.Order
}

// NewInstantEngine creates the engine for a synthetic product.
func NewInstantEngine(product *domain.Product) *InstantEngine {
	return &InstantEngine{
		product:     product,
		initialized: make(map[string]bool, 2),
	}
}

// Product returns the synthetic product the engine serves.
func (e *InstantEngine) Product() *domain.Product {
	return e.product
}

// PendingLen returns the number of orders waiting for both legs.
func (e *InstantEngine) PendingLen() int {
	return len(e.pending)
}

// Legs returns the ids of the base and quote leg products.
func (e *InstantEngine) Legs() (string, string) {
	return e.product.Instant.BaseProductID, e.product.Instant.QuoteProductID
}

// Apply processes one message against the borrowed leg books.
func (e *InstantEngine) Apply(msg Message, base, quote *OrderBook) ([]Log, error) {
	baseID, quoteID := e.Legs()
	if base == nil || quote == nil || base.ProductID() != baseID || quote.ProductID() != quoteID {
		return nil, fmt.Errorf("instant %s: leg books do not match %s and %s", e.product.ID, baseID, quoteID)
	}

	switch m := msg.(type) {
	case Place:
		if m.Order == nil {
			return nil, fmt.Errorf("instant %s: place without order", e.product.ID)
		}
		if m.Order.ProductID != e.product.ID {
			return nil, fmt.Errorf("instant %s: order %s for %s: %w", e.product.ID, m.Order.ID, m.Order.ProductID, ErrWrongProduct)
		}
		if m.Order.Type != domain.OrderTypeMarket {
			return nil, fmt.Errorf("instant %s: order %s is %s, only market orders are accepted", e.product.ID, m.Order.ID, m.Order.Type)
		}
		return e.place(m.Order, base, quote, m.Order.CreatedAt), nil

	case Cancel:
		reason := m.Reason
		if reason == "" {
			reason = domain.CancelReasonCustomer
		}
		return e.cancel(m.OrderID, reason, m.At), nil

	case DailyLimitOperation:
		// A leg changed state; held orders may be able to run now.
		return e.retry(base, quote, m.At), nil

	case Signal:
		switch m.Type {
		case SignalOrderBookInitialized:
			if e.bothInitialized() || (m.ProductID != baseID && m.ProductID != quoteID) {
				return nil, nil
			}
			e.initialized[m.ProductID] = true
			return e.retry(base, quote, m.At), nil
		case SignalCancelAllOrders:
			var logs []Log
			for len(e.pending) > 0 {
				logs = append(logs, e.cancel(e.pending[0].ID, domain.CancelReasonAdmin, m.At)...)
			}
			return logs, nil
		case SignalOrderImported:
			return nil, nil
		default:
			return nil, fmt.Errorf("instant %s: unknown signal %q", e.product.ID, m.Type)
		}

	case PruneRequest:
		return nil, nil

	default:
		return nil, fmt.Errorf("instant %s: unsupported message %T", e.product.ID, msg)
	}
}

func (e *InstantEngine) bothInitialized() bool {
	baseID, quoteID := e.Legs()
	return e.initialized[baseID] && e.initialized[quoteID]
}

func (e *InstantEngine) ready(base, quote *OrderBook) bool {
	return e.bothInitialized() && base.IsOpen() && quote.IsOpen()
}

func (e *InstantEngine) hold(o *domain.Order, at time.Time) Log {
	o.Status = domain.OrderStatusPending
	e.pending = append(e.pending, o)
	return statusLog(e.product.ID, o, "", at)
}

func (e *InstantEngine) cancel(orderID string, reason domain.CancelReason, at time.Time) []Log {
	for i, o := range e.pending {
		if o.ID != orderID {
			continue
		}
		e.pending = append(e.pending[:i], e.pending[i+1:]...)
		o.Status = domain.OrderStatusCancelled
		return []Log{statusLog(e.product.ID, o, reason, at)}
	}
	return nil
}

// retry replays held orders in arrival order once both legs can trade.
func (e *InstantEngine) retry(base, quote *OrderBook, at time.Time) []Log {
	if !e.ready(base, quote) || len(e.pending) == 0 {
		return nil
	}
	held := e.pending
	e.pending = nil

	var logs []Log
	for _, o := range held {
		logs = append(logs, e.place(o, base, quote, at)...)
	}
	return logs
}

// place trades the order's currency into the medium currency on the first
// leg, then the medium proceeds into the target currency on the second leg.
// The first leg is the book holding the currency the taker gives up. Leg
// trades are real and are not rolled back if the second leg falls short.
func (e *InstantEngine) place(o *domain.Order, base, quote *OrderBook, at time.Time) []Log {
	if !e.ready(base, quote) {
		return []Log{e.hold(o, at)}
	}

	inst := e.product.Instant
	first, second := quote, base
	firstSell, secondSell := inst.QuoteIsBaseSide, !inst.BaseIsBaseSide
	if o.Side == domain.OrderSideSell {
		first, second = base, quote
		firstSell, secondSell = inst.BaseIsBaseSide, !inst.QuoteIsBaseSide
	}

	fill := &InstantFill{
		FirstProductID:  first.ProductID(),
		SecondProductID: second.ProductID(),
	}

	leg1 := legOrder(o, 1, first.ProductID(), firstSell, o.Amount)
	logs := first.Take(leg1, at)
	fill.TradeIDs = appendTakerTrades(fill.TradeIDs, logs)

	spent, medium := legTotals(leg1)
	fill.MediumAmount = medium
	if !leg1.Matched() {
		o.Status = domain.OrderStatusCancelled
		return append(logs, e.finalLog(o, fill, domain.CancelReasonMarketOrderUnmatched, at))
	}

	var received decimal.Decimal
	leg2 := legOrder(o, 2, second.ProductID(), secondSell, medium)
	if medium.IsPositive() {
		legLogs := second.Take(leg2, at)
		fill.TradeIDs = appendTakerTrades(fill.TradeIDs, legLogs)
		logs = append(logs, legLogs...)
		_, received = legTotals(leg2)
	}

	if o.Side == domain.OrderSideBuy {
		o.FilledFunds = spent
		o.FilledAmount = received
	} else {
		o.FilledAmount = spent
		o.FilledFunds = received
	}

	if leg1.Done() && medium.IsPositive() && leg2.Done() {
		o.Status = domain.OrderStatusFilled
		return append(logs, e.finalLog(o, fill, "", at))
	}
	o.Status = domain.OrderStatusCancelled
	return append(logs, e.finalLog(o, fill, domain.CancelReasonMarketOrderPartialFilled, at))
}

func (e *InstantEngine) finalLog(o *domain.Order, fill *InstantFill, reason domain.CancelReason, at time.Time) Log {
	l := statusLog(e.product.ID, o, reason, at)
	l.Fill = fill
	return l
}

// legOrder builds the market order sent to one leg book on behalf of the
// synthetic order. A buy leg carries funds; a sell leg carries an amount.
func legOrder(o *domain.Order, n int, productID string, sell bool, amount decimal.Decimal) *domain.Order {
	side := domain.OrderSideBuy
	if sell {
		side = domain.OrderSideSell
	}
	return &domain.Order{
		ID:             fmt.Sprintf("%s/leg%d", o.ID, n),
		ParentID:       o.ID,
		ProductID:      productID,
		UserID:         o.UserID,
		Side:           side,
		Type:           domain.OrderTypeMarket,
		Amount:         amount,
		BaseAccountID:  o.BaseAccountID,
		QuoteAccountID: o.QuoteAccountID,
		FeeAccountID:   o.FeeAccountID,
		FeeRateTaker:   o.FeeRateTaker,
		FeeRateMaker:   o.FeeRateMaker,
		Seq:            o.Seq,
		Status:         domain.OrderStatusNew,
		CreatedAt:      o.CreatedAt,
	}
}

// legTotals returns what a leg order gave up and what it received.
func legTotals(leg *domain.Order) (spent, received decimal.Decimal) {
	if leg.Side == domain.OrderSideSell {
		return leg.FilledAmount, leg.FilledFunds
	}
	return leg.FilledFunds, leg.FilledAmount
}

func appendTakerTrades(ids []string, logs []Log) []string {
	for _, l := range logs {
		if l.Type == LogOrderMatched && l.Taker {
			ids = append(ids, l.Trade.ID)
		}
	}
	return ids
}
