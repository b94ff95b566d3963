package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
)

// LogType discriminates the Log union.
type LogType string

const (
	LogOrderMatched           LogType = "order_matched"
	LogOrderStatusChanged     LogType = "order_status_changed"
	LogOrderBookStatusChanged LogType = "order_book_status_changed"
	LogOrderBookInitialized   LogType = "order_book_initialized"
)

// Log is an immutable record of a change inside the core. Order holds a
// snapshot taken when the log was produced; it never aliases book state.
// Seq is assigned by the dispatcher in emission order.
type Log struct {
	Seq       uint64        `json:"seq"`
	Type      LogType       `json:"type"`
	ProductID string        `json:"product_id"`
	Timestamp time.Time     `json:"timestamp"`
	Order     *domain.Order `json:"order,omitempty"`

	// OrderMatched
	Trade *domain.Trade   `json:"trade,omitempty"`
	Taker bool            `json:"taker,omitempty"`
	Fee   decimal.Decimal `json:"fee"`

	// OrderStatusChanged
	Status domain.OrderStatus  `json:"status,omitempty"`
	Reason domain.CancelReason `json:"reason,omitempty"`
	Prune  *PruneShard         `json:"prune,omitempty"`
	Fill   *InstantFill        `json:"fill,omitempty"`

	// OrderBookStatusChanged
	Open bool `json:"open,omitempty"`
}

// PruneShard identifies the sweep that cancelled an order.
type PruneShard struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ShardCount int       `json:"shard_count"`
	ShardIndex int       `json:"shard_index"`
}

// InstantFill summarises how a synthetic order executed across its legs.
type InstantFill struct {
	FirstProductID  string          `json:"first_product_id"`
	SecondProductID string          `json:"second_product_id"`
	MediumAmount    decimal.Decimal `json:"medium_amount"`
	TradeIDs        []string        `json:"trade_ids"`
}

// Key identifies the change a log records, for idempotent consumers.
func (l Log) Key() string {
	switch l.Type {
	case LogOrderMatched:
		if l.Taker {
			return l.Trade.ID + "/taker"
		}
		return l.Trade.ID + "/maker"
	case LogOrderStatusChanged:
		return l.Order.ID + "/" + string(l.Status)
	default:
		return l.ProductID + "/" + string(l.Type)
	}
}

func snapshot(o *domain.Order) *domain.Order {
	c := *o
	return &c
}

func matchedLog(productID string, o *domain.Order, trade *domain.Trade, taker bool, fee decimal.Decimal) Log {
	return Log{
		Type:      LogOrderMatched,
		ProductID: productID,
		Timestamp: trade.ExecutedAt,
		Order:     snapshot(o),
		Trade:     trade,
		Taker:     taker,
		Fee:       fee,
	}
}

func statusLog(productID string, o *domain.Order, reason domain.CancelReason, at time.Time) Log {
	return Log{
		Type:      LogOrderStatusChanged,
		ProductID: productID,
		Timestamp: at,
		Order:     snapshot(o),
		Status:    o.Status,
		Reason:    reason,
	}
}

func bookStatusLog(productID string, open bool, at time.Time) Log {
	return Log{
		Type:      LogOrderBookStatusChanged,
		ProductID: productID,
		Timestamp: at,
		Open:      open,
	}
}

func bookInitializedLog(productID string, at time.Time) Log {
	return Log{
		Type:      LogOrderBookInitialized,
		ProductID: productID,
		Timestamp: at,
	}
}
