package engine

import (
	"time"

	"github.com/efreitasn/matchcore/internal/domain"
)

// Message is the closed set of inputs an engine accepts. Only the types in
// this file implement it.
type Message interface {
	message()
}

// Place submits a new order. The engine takes ownership of Order.
type Place struct {
	Order *domain.Order
}

// Cancel removes an order from its book or pending queue.
type Cancel struct {
	OrderID   string
	ProductID string
	Reason    domain.CancelReason
	At        time.Time
}

// DailyLimitOperation opens or closes trading on one product.
type DailyLimitOperation struct {
	ProductID string
	Open      bool
	At        time.Time
}

// SignalType enumerates control signals.
type SignalType string

const (
	SignalOrderImported        SignalType = "order_imported"
	SignalCancelAllOrders      SignalType = "cancel_all_orders"
	SignalOrderBookInitialized SignalType = "order_book_initialized"
)

// Signal is a control message. ProductID is only set for
// SignalOrderBookInitialized.
type Signal struct {
	Type      SignalType
	ProductID string
	At        time.Time
}

// PruneRequest cancels never-matched resting orders that arrived in
// (Start, End]. Users optionally restricts the sweep to some owners.
// ShardCount and ShardIndex are filled in per product by the dispatcher.
type PruneRequest struct {
	Start      time.Time
	End        time.Time
	Users      []string
	ShardCount int
	ShardIndex int
	At         time.Time
}

func (Place) message()               {}
func (Cancel) message()              {}
func (DailyLimitOperation) message() {}
func (Signal) message()              {}
func (PruneRequest) message()        {}
