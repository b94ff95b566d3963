package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a single execution between a taker and a resting maker.
// Price is always the maker's price and Side is the taker's side.
type Trade struct {
	ID           string          `json:"id"`
	ProductID    string          `json:"product_id"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	Side         OrderSide       `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Funds        decimal.Decimal `json:"funds"`
	TakerFee     decimal.Decimal `json:"taker_fee"`
	MakerFee     decimal.Decimal `json:"maker_fee"`
	Seq          uint64          `json:"seq"`
	ExecutedAt   time.Time       `json:"executed_at"`
}
