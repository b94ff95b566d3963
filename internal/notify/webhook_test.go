package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

type received struct {
	event      string
	key        string
	deliveryID string
	body       map[string]any
}

type receiver struct {
	mu     sync.Mutex
	got    []received
	status int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	raw, _ := io.ReadAll(req.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	r.mu.Lock()
	r.got = append(r.got, received{
		event:      req.Header.Get(HeaderEventType),
		key:        req.Header.Get(HeaderIdempotencyKey),
		deliveryID: req.Header.Get(HeaderDeliveryID),
		body:       body,
	})
	status := r.status
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (r *receiver) all() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]received(nil), r.got...)
}

var ts = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testOrder(status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:        "o1",
		ProductID: "BTC-USDT",
		UserID:    "alice",
		Side:      domain.OrderSideBuy,
		Type:      domain.OrderTypeLimit,
		Price:     decimal.RequireFromString("30000"),
		Amount:    decimal.RequireFromString("1"),
		Status:    status,
	}
}

func testLogs() []engine.Log {
	trade := &domain.Trade{
		ID:           "t1",
		ProductID:    "BTC-USDT",
		TakerOrderID: "o1",
		MakerOrderID: "o0",
		Side:         domain.OrderSideBuy,
		Price:        decimal.RequireFromString("30000"),
		Amount:       decimal.RequireFromString("1"),
		Funds:        decimal.RequireFromString("30000"),
		ExecutedAt:   ts,
	}
	return []engine.Log{
		{Seq: 1, Type: engine.LogOrderStatusChanged, ProductID: "BTC-USDT", Timestamp: ts, Order: testOrder(domain.OrderStatusOpen), Status: domain.OrderStatusOpen},
		{Seq: 2, Type: engine.LogOrderMatched, ProductID: "BTC-USDT", Timestamp: ts, Order: testOrder(domain.OrderStatusOpen), Trade: trade, Taker: true},
		{Seq: 3, Type: engine.LogOrderMatched, ProductID: "BTC-USDT", Timestamp: ts, Order: testOrder(domain.OrderStatusOpen), Trade: trade},
		{Seq: 4, Type: engine.LogOrderStatusChanged, ProductID: "BTC-USDT", Timestamp: ts, Order: testOrder(domain.OrderStatusFilled), Status: domain.OrderStatusFilled},
		{Seq: 5, Type: engine.LogOrderBookStatusChanged, ProductID: "BTC-USDT", Timestamp: ts, Open: false},
		{Seq: 6, Type: engine.LogOrderBookInitialized, ProductID: "BTC-USDT", Timestamp: ts},
	}
}

func TestWebhook_DeliversEvents(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	w := New(srv.URL, time.Second)
	if err := w.HandleBatch(context.Background(), testLogs()); err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}

	got := rcv.all()
	want := []string{EventTradeExecuted, EventOrderFilled, EventBookClosed}
	if len(got) != len(want) {
		t.Fatalf("expected %d deliveries, got %d", len(want), len(got))
	}
	for i, ev := range want {
		if got[i].event != ev {
			t.Errorf("delivery %d: event = %q, want %q", i, got[i].event, ev)
		}
		if got[i].body["event"] != ev {
			t.Errorf("delivery %d: body event = %v", i, got[i].body["event"])
		}
		if got[i].deliveryID == "" {
			t.Errorf("delivery %d: missing delivery id", i)
		}
	}

	if got[0].key != "t1/taker" {
		t.Errorf("trade key = %q", got[0].key)
	}
	if got[1].key != "o1/filled" {
		t.Errorf("order key = %q", got[1].key)
	}
	data := got[0].body["data"].(map[string]any)
	if data["trade_id"] != "t1" || data["price"] != "30000" {
		t.Errorf("trade data = %v", data)
	}
	if got[0].body["seq"] != float64(2) {
		t.Errorf("seq = %v", got[0].body["seq"])
	}
}

func TestWebhook_CancelledCarriesReason(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	l := engine.Log{
		Seq: 9, Type: engine.LogOrderStatusChanged, ProductID: "BTC-USDT", Timestamp: ts,
		Order:  testOrder(domain.OrderStatusCancelled),
		Status: domain.OrderStatusCancelled,
		Reason: domain.CancelReasonPruned,
	}
	if err := New(srv.URL, time.Second).HandleBatch(context.Background(), []engine.Log{l}); err != nil {
		t.Fatal(err)
	}

	got := rcv.all()
	if len(got) != 1 || got[0].event != EventOrderCancelled {
		t.Fatalf("deliveries = %+v", got)
	}
	data := got[0].body["data"].(map[string]any)
	if data["reason"] != "pruned" {
		t.Errorf("reason = %v", data["reason"])
	}
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	rcv := &receiver{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	err := New(srv.URL, time.Second).HandleBatch(context.Background(), testLogs())
	if err == nil {
		t.Fatal("expected error on 500")
	}
	if n := len(rcv.all()); n != 1 {
		t.Errorf("delivery should stop at the first failure, got %d attempts", n)
	}
}

func TestWebhook_UnreachableIsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	if err := New(url, 100*time.Millisecond).HandleBatch(context.Background(), testLogs()); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}

func TestWebhook_NothingToDeliver(t *testing.T) {
	rcv := &receiver{}
	srv := httptest.NewServer(rcv)
	defer srv.Close()

	logs := testLogs()
	quiet := []engine.Log{logs[0], logs[2], logs[5]}
	if err := New(srv.URL, time.Second).HandleBatch(context.Background(), quiet); err != nil {
		t.Fatal(err)
	}
	if n := len(rcv.all()); n != 0 {
		t.Errorf("expected no deliveries, got %d", n)
	}
}
