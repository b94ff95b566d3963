package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
	"github.com/efreitasn/matchcore/internal/health"
	"github.com/efreitasn/matchcore/internal/store"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSubmitter struct {
	mu   sync.Mutex
	msgs []engine.Message
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, msg engine.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeSubmitter) last() engine.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return nil
	}
	return f.msgs[len(f.msgs)-1]
}

func testCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	c := domain.NewCatalog()
	for _, cur := range []domain.Currency{
		{ID: "BTC", DecimalDigits: 8},
		{ID: "ETH", DecimalDigits: 8},
		{ID: "USDT", DecimalDigits: 6},
	} {
		if err := c.AddCurrency(cur); err != nil {
			t.Fatal(err)
		}
	}
	products := []domain.Product{
		{
			ID:              "BTC-USDT",
			BaseCurrencyID:  "BTC",
			QuoteCurrencyID: "USDT",
			PricePrecision:  2,
			AmountPrecision: 6,
			FundsPrecision:  2,
			MinOrderAmount:  decimal.RequireFromString("0.0001"),
			MaxOrderAmount:  decimal.RequireFromString("100"),
			MinOrderFunds:   decimal.RequireFromString("1"),
		},
		{
			ID:              "ETH-USDT",
			BaseCurrencyID:  "ETH",
			QuoteCurrencyID: "USDT",
			PricePrecision:  2,
			AmountPrecision: 6,
			FundsPrecision:  2,
		},
		{
			ID:              "BTC-ETH",
			BaseCurrencyID:  "BTC",
			QuoteCurrencyID: "ETH",
			PricePrecision:  6,
			AmountPrecision: 6,
			FundsPrecision:  6,
			Instant: &domain.InstantExchange{
				BaseProductID:   "BTC-USDT",
				BaseIsBaseSide:  true,
				QuoteProductID:  "ETH-USDT",
				QuoteIsBaseSide: true,
			},
		},
	}
	for _, p := range products {
		if err := c.AddProduct(p); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

// testOrderEnv bundles all dependencies needed for service tests.
type testOrderEnv struct {
	catalog   *domain.Catalog
	orders    *store.OrderStore
	submitter *fakeSubmitter
	monitor   *health.Monitor
	svc       *OrderService
	admin     *AdminService
}

func newTestOrderEnv(t *testing.T) *testOrderEnv {
	t.Helper()
	c := testCatalog(t)
	os := store.NewOrderStore()
	sub := &fakeSubmitter{}
	mon := health.NewMonitor(slog.New(slog.NewTextHandler(io.Discard, nil)))

	svc := NewOrderService(c, os, sub)
	svc.now = func() time.Time { return fixedNow }
	ids := 0
	svc.newID = func() string {
		ids++
		return "order-" + string(rune('0'+ids))
	}

	admin := NewAdminService(c, sub, mon)
	admin.now = func() time.Time { return fixedNow }

	return &testOrderEnv{
		catalog:   c,
		orders:    os,
		submitter: sub,
		monitor:   mon,
		svc:       svc,
		admin:     admin,
	}
}

func validLimit() PlaceOrderRequest {
	return PlaceOrderRequest{
		ProductID:      "BTC-USDT",
		UserID:         "alice",
		Side:           domain.OrderSideBuy,
		Type:           domain.OrderTypeLimit,
		Price:          "30000.50",
		Amount:         "0.5",
		BaseAccountID:  "alice-btc",
		QuoteAccountID: "alice-usdt",
		FeeAccountID:   "fees",
		FeeRateTaker:   "0.002",
		FeeRateMaker:   "0.001",
	}
}
