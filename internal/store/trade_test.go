package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

func newTestTrade(id, productID string, executedAt time.Time) *domain.Trade {
	return &domain.Trade{
		ID:           id,
		ProductID:    productID,
		TakerOrderID: "taker",
		MakerOrderID: "maker",
		Price:        decimal.NewFromInt(100),
		Amount:       decimal.NewFromInt(1),
		ExecutedAt:   executedAt,
	}
}

func TestTradeStore_Append_and_GetByProduct(t *testing.T) {
	s := NewTradeStore(0)
	now := time.Now()

	s.Append(newTestTrade("trade-1", "BTC-USDT", now))
	s.Append(newTestTrade("trade-2", "BTC-USDT", now.Add(time.Second)))

	trades := s.GetByProduct("BTC-USDT")
	if len(trades) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(trades))
	}
	if trades[0].ID != "trade-1" || trades[1].ID != "trade-2" {
		t.Fatalf("unexpected order %s, %s", trades[0].ID, trades[1].ID)
	}
}

func TestTradeStore_GetByProduct_Empty(t *testing.T) {
	s := NewTradeStore(0)

	trades := s.GetByProduct("ETH-USDT")
	if trades == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(trades) != 0 {
		t.Fatalf("expected 0 trades, got %d", len(trades))
	}
}

func TestTradeStore_GetByProduct_ReturnsCopy(t *testing.T) {
	s := NewTradeStore(0)
	s.Append(newTestTrade("trade-1", "BTC-USDT", time.Now()))

	trades := s.GetByProduct("BTC-USDT")
	trades[0] = nil

	if s.GetByProduct("BTC-USDT")[0] == nil {
		t.Fatal("GetByProduct should return a copy; internal state was mutated")
	}
}

func TestTradeStore_HandleKeepsTakerSideOnce(t *testing.T) {
	s := NewTradeStore(0)
	tr := newTestTrade("trade-1", "BTC-USDT", time.Now())

	s.Handle(engine.Log{Type: engine.LogOrderMatched, Trade: tr, Taker: true})
	s.Handle(engine.Log{Type: engine.LogOrderMatched, Trade: tr, Taker: false})
	s.Handle(engine.Log{Type: engine.LogOrderMatched, Trade: tr, Taker: true})
	s.Handle(engine.Log{Type: engine.LogOrderStatusChanged})

	if got := len(s.GetByProduct("BTC-USDT")); got != 1 {
		t.Fatalf("expected 1 trade, got %d", got)
	}
}

func TestTradeStore_Limit(t *testing.T) {
	s := NewTradeStore(3)
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.Append(newTestTrade(fmt.Sprintf("t%d", i), "BTC-USDT", now.Add(time.Duration(i)*time.Second)))
	}

	trades := s.GetByProduct("BTC-USDT")
	if len(trades) != 3 || trades[0].ID != "t2" || trades[2].ID != "t4" {
		t.Fatalf("expected the 3 newest trades, got %d starting at %s", len(trades), trades[0].ID)
	}
}

func TestTradeStore_ConcurrentAccess(t *testing.T) {
	s := NewTradeStore(0)
	var wg sync.WaitGroup
	now := time.Now()

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Append(newTestTrade(fmt.Sprintf("trade-%d", i), "BTC-USDT", now.Add(time.Duration(i)*time.Millisecond)))
		}(i)
		go func() {
			defer wg.Done()
			s.GetByProduct("BTC-USDT")
		}()
	}
	wg.Wait()

	if got := len(s.GetByProduct("BTC-USDT")); got != 100 {
		t.Fatalf("expected 100 trades, got %d", got)
	}
}
