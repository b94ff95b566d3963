package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderSide indicates whether an order buys or sells the base currency.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the side an order of this side matches against.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusOpen       OrderStatus = "open"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusFilled     OrderStatus = "filled"
	OrderStatusCancelling OrderStatus = "cancelling"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// CancelReason explains why an order ended up cancelled.
type CancelReason string

const (
	CancelReasonCustomer                 CancelReason = "customer"
	CancelReasonAdmin                    CancelReason = "admin"
	CancelReasonMarketOrderPartialFilled CancelReason = "market_order_partial_filled"
	CancelReasonMarketOrderUnmatched     CancelReason = "market_order_unmatched"
	CancelReasonPriceOutOfBand           CancelReason = "price_out_of_band"
	CancelReasonPruned                   CancelReason = "pruned"
)

// Order is the matching-side view of a placed order. For a market buy,
// Amount is denominated in the quote currency (funds to spend); for every
// other order it is the base amount.
type Order struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	UserID         string          `json:"user_id"`
	Side           OrderSide       `json:"side"`
	Type           OrderType       `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Amount         decimal.Decimal `json:"amount"`
	FilledAmount   decimal.Decimal `json:"filled_amount"`
	FilledFunds    decimal.Decimal `json:"filled_funds"`
	BaseAccountID  string          `json:"base_account_id"`
	QuoteAccountID string          `json:"quote_account_id"`
	FeeAccountID   string          `json:"fee_account_id"`
	FeeRateTaker   decimal.Decimal `json:"fee_rate_taker"`
	FeeRateMaker   decimal.Decimal `json:"fee_rate_maker"`
	Seq            uint64          `json:"seq"`
	Status         OrderStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`

	// ParentID is set on the market orders an instant exchange sends to
	// its leg books; it names the synthetic order they execute for.
	ParentID string `json:"parent_id,omitempty"`

	// Completed is set when a market buy can no longer buy a whole unit
	// at the current maker price. It only lives inside one match loop.
	Completed bool `json:"-"`
}

// IsLeg reports whether the order executes one leg of a synthetic order.
func (o *Order) IsLeg() bool {
	return o.ParentID != ""
}

// IsMarketBuy reports whether Amount holds funds rather than a base amount.
func (o *Order) IsMarketBuy() bool {
	return o.Type == OrderTypeMarket && o.Side == OrderSideBuy
}

// Remaining returns the unfilled part of Amount, in Amount's own unit.
func (o *Order) Remaining() decimal.Decimal {
	if o.IsMarketBuy() {
		return o.Amount.Sub(o.FilledFunds)
	}
	return o.Amount.Sub(o.FilledAmount)
}

// FullyFilled reports whether the whole Amount has been executed.
func (o *Order) FullyFilled() bool {
	return !o.Remaining().IsPositive()
}

// Done reports whether the order cannot take any more liquidity.
func (o *Order) Done() bool {
	return o.Completed || o.FullyFilled()
}

// Matched reports whether the order has ever traded.
func (o *Order) Matched() bool {
	return o.FilledAmount.IsPositive() || o.FilledFunds.IsPositive()
}

// AveragePrice returns filled funds over filled amount, truncated to
// DefaultScale. Returns false when nothing has been filled.
func (o *Order) AveragePrice() (decimal.Decimal, bool) {
	if !o.FilledAmount.IsPositive() {
		return decimal.Zero, false
	}
	return Div(o.FilledFunds, o.FilledAmount, DefaultScale), true
}
