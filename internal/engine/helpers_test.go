package engine

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testProduct(id string) *domain.Product {
	parts := strings.SplitN(id, "-", 2)
	return &domain.Product{
		ID:              id,
		BaseCurrencyID:  parts[0],
		QuoteCurrencyID: parts[1],
		PricePrecision:  8,
		AmountPrecision: 8,
		FundsPrecision:  8,
	}
}

// bandProduct returns a product with a daily limit of +/-10% around 100.
func bandProduct(id string) *domain.Product {
	p := testProduct(id)
	p.DailyLimit = &domain.DailyLimit{
		Rate: &domain.DailyLimitRate{
			UpperLimitRate: dec("0.1"),
			LowerLimitRate: dec("0.1"),
			InitialPrice:   dec("100"),
		},
	}
	return p
}

// newLimit creates a limit order arriving at t0 + seq seconds.
func newLimit(productID, id string, seq uint64, side domain.OrderSide, price, amount string) *domain.Order {
	return &domain.Order{
		ID:           id,
		ProductID:    productID,
		UserID:       "user-" + id,
		Side:         side,
		Type:         domain.OrderTypeLimit,
		Price:        dec(price),
		Amount:       dec(amount),
		FeeRateTaker: dec("0.002"),
		FeeRateMaker: dec("0.001"),
		Seq:          seq,
		Status:       domain.OrderStatusNew,
		CreatedAt:    t0.Add(time.Duration(seq) * time.Second),
	}
}

// newMarket creates a market order. For a buy, amount is funds.
func newMarket(productID, id string, seq uint64, side domain.OrderSide, amount string) *domain.Order {
	o := newLimit(productID, id, seq, side, "0", amount)
	o.Type = domain.OrderTypeMarket
	o.Price = decimal.Zero
	return o
}

func mustApply(t testing.TB, e *Engine, msg Message) []Log {
	t.Helper()
	logs, err := e.Apply(msg)
	if err != nil {
		t.Fatalf("Apply(%T) error: %v", msg, err)
	}
	return logs
}

func ofType(logs []Log, typ LogType) []Log {
	var out []Log
	for _, l := range logs {
		if l.Type == typ {
			out = append(out, l)
		}
	}
	return out
}

// finalStatus returns the last status change logged for an order.
func finalStatus(t testing.TB, logs []Log, orderID string) Log {
	t.Helper()
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		if l.Type == LogOrderStatusChanged && l.Order.ID == orderID {
			return l
		}
	}
	t.Fatalf("no status log for order %s", orderID)
	return Log{}
}

func takerTrades(logs []Log) []*domain.Trade {
	var out []*domain.Trade
	for _, l := range ofType(logs, LogOrderMatched) {
		if l.Taker {
			out = append(out, l.Trade)
		}
	}
	return out
}

// render flattens a log into a comparable string.
func render(l Log) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%v|%s|%s", l.Type, l.ProductID, l.Timestamp.Format(time.RFC3339Nano), l.Taker, l.Status, l.Reason)
	if l.Order != nil {
		fmt.Fprintf(&b, "|o:%s:%s:%s:%s", l.Order.ID, l.Order.FilledAmount, l.Order.FilledFunds, l.Order.Status)
	}
	if l.Trade != nil {
		fmt.Fprintf(&b, "|t:%s:%s:%s:%s:%s", l.Trade.ID, l.Trade.Price, l.Trade.Amount, l.Trade.TakerFee, l.Trade.MakerFee)
	}
	fmt.Fprintf(&b, "|fee:%s", l.Fee)
	return b.String()
}
