package store

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

func restingLog(id string, side domain.OrderSide, price, amount int64, status domain.OrderStatus) engine.Log {
	return engine.Log{
		Type:      engine.LogOrderStatusChanged,
		ProductID: "BTC-USDT",
		Status:    status,
		Order: &domain.Order{
			ID:     id,
			Side:   side,
			Type:   domain.OrderTypeLimit,
			Price:  decimal.NewFromInt(price),
			Amount: decimal.NewFromInt(amount),
			Status: status,
		},
	}
}

func TestDepthStore_AggregatesLevels(t *testing.T) {
	s := NewDepthStore()
	s.Handle(restingLog("b1", domain.OrderSideBuy, 99, 1, domain.OrderStatusOpen))
	s.Handle(restingLog("b2", domain.OrderSideBuy, 100, 2, domain.OrderStatusOpen))
	s.Handle(restingLog("b3", domain.OrderSideBuy, 100, 3, domain.OrderStatusOpen))
	s.Handle(restingLog("a1", domain.OrderSideSell, 102, 1, domain.OrderStatusOpen))
	s.Handle(restingLog("a2", domain.OrderSideSell, 101, 4, domain.OrderStatusOpen))

	bids, asks := s.Levels("BTC-USDT", 10)
	if len(bids) != 2 || !bids[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("bids = %+v", bids)
	}
	if !bids[0].TotalAmount.Equal(decimal.NewFromInt(5)) || bids[0].OrderCount != 2 {
		t.Errorf("best bid level = %+v", bids[0])
	}
	if len(asks) != 2 || !asks[0].Price.Equal(decimal.NewFromInt(101)) {
		t.Fatalf("asks = %+v", asks)
	}

	bids, _ = s.Levels("BTC-USDT", 1)
	if len(bids) != 1 {
		t.Errorf("depth 1 returned %d levels", len(bids))
	}
}

func TestDepthStore_MakerFillsAndRemoval(t *testing.T) {
	s := NewDepthStore()
	s.Handle(restingLog("a1", domain.OrderSideSell, 101, 4, domain.OrderStatusOpen))

	filled := restingLog("a1", domain.OrderSideSell, 101, 4, domain.OrderStatusOpen)
	filled.Type = engine.LogOrderMatched
	filled.Order.FilledAmount = decimal.NewFromInt(3)
	s.Handle(filled)

	_, asks := s.Levels("BTC-USDT", 10)
	if len(asks) != 1 || !asks[0].TotalAmount.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("asks after fill = %+v", asks)
	}

	s.Handle(restingLog("a1", domain.OrderSideSell, 101, 4, domain.OrderStatusCancelled))
	if _, asks := s.Levels("BTC-USDT", 10); len(asks) != 0 {
		t.Errorf("asks after cancel = %+v", asks)
	}
}

func TestDepthStore_PendingLeavesTheBook(t *testing.T) {
	s := NewDepthStore()
	s.Handle(restingLog("b1", domain.OrderSideBuy, 100, 1, domain.OrderStatusOpen))
	s.Handle(restingLog("b1", domain.OrderSideBuy, 100, 1, domain.OrderStatusPending))

	if bids, _ := s.Levels("BTC-USDT", 10); len(bids) != 0 {
		t.Errorf("parked order still counted: %+v", bids)
	}
}
