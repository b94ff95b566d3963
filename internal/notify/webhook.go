package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
)

// Event types delivered to the webhook endpoint.
const (
	EventTradeExecuted  = "trade.executed"
	EventOrderFilled    = "order.filled"
	EventOrderCancelled = "order.cancelled"
	EventOrderPending   = "order.pending"
	EventBookOpened     = "book.opened"
	EventBookClosed     = "book.closed"
)

// Delivery headers.
const (
	HeaderDeliveryID     = "X-Delivery-Id"
	HeaderEventType      = "X-Event-Type"
	HeaderIdempotencyKey = "X-Idempotency-Key"
)

// Webhook posts settlement and order events to a single endpoint. It is a
// worker.BatchHandler: a failed delivery fails the batch so the worker
// retries it, and receivers dedupe on the idempotency key.
type Webhook struct {
	url    string
	client *http.Client
}

// New creates a Webhook that posts to url with the given per-request timeout.
func New(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// payload is the JSON body of every delivery.
type payload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Seq       uint64 `json:"seq"`
	Data      any    `json:"data"`
}

type tradeExecutedData struct {
	TradeID      string          `json:"trade_id"`
	ProductID    string          `json:"product_id"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Funds        decimal.Decimal `json:"funds"`
	TakerFee     decimal.Decimal `json:"taker_fee"`
	MakerFee     decimal.Decimal `json:"maker_fee"`
	OrderStatus  string          `json:"order_status"`
}

type orderEventData struct {
	OrderID      string          `json:"order_id"`
	ProductID    string          `json:"product_id"`
	UserID       string          `json:"user_id"`
	Side         string          `json:"side"`
	Type         string          `json:"type"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	FilledAmount decimal.Decimal `json:"filled_amount"`
	FilledFunds  decimal.Decimal `json:"filled_funds"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason,omitempty"`
}

type bookEventData struct {
	ProductID string `json:"product_id"`
}

// HandleBatch delivers every notifiable log in order and stops at the first
// failure.
func (w *Webhook) HandleBatch(ctx context.Context, logs []engine.Log) error {
	for _, l := range logs {
		event, data, ok := toEvent(l)
		if !ok {
			continue
		}
		p := payload{
			Event:     event,
			Timestamp: l.Timestamp.UTC().Format(time.RFC3339Nano),
			Seq:       l.Seq,
			Data:      data,
		}
		if err := w.deliver(ctx, event, l.Key(), p); err != nil {
			return fmt.Errorf("notify %s seq %d: %w", event, l.Seq, err)
		}
	}
	return nil
}

// toEvent maps a log to its webhook event. Maker-side matches, open status
// changes and book initialisation are not delivered.
func toEvent(l engine.Log) (string, any, bool) {
	switch l.Type {
	case engine.LogOrderMatched:
		if !l.Taker || l.Trade == nil {
			return "", nil, false
		}
		t := l.Trade
		status := ""
		if l.Order != nil {
			status = string(l.Order.Status)
		}
		return EventTradeExecuted, tradeExecutedData{
			TradeID:      t.ID,
			ProductID:    t.ProductID,
			TakerOrderID: t.TakerOrderID,
			MakerOrderID: t.MakerOrderID,
			Side:         string(t.Side),
			Price:        t.Price,
			Amount:       t.Amount,
			Funds:        t.Funds,
			TakerFee:     t.TakerFee,
			MakerFee:     t.MakerFee,
			OrderStatus:  status,
		}, true
	case engine.LogOrderStatusChanged:
		var event string
		switch l.Status {
		case domain.OrderStatusFilled:
			event = EventOrderFilled
		case domain.OrderStatusCancelled:
			event = EventOrderCancelled
		case domain.OrderStatusPending:
			event = EventOrderPending
		default:
			return "", nil, false
		}
		return event, orderData(l), true
	case engine.LogOrderBookStatusChanged:
		if l.Open {
			return EventBookOpened, bookEventData{ProductID: l.ProductID}, true
		}
		return EventBookClosed, bookEventData{ProductID: l.ProductID}, true
	}
	return "", nil, false
}

func orderData(l engine.Log) orderEventData {
	o := l.Order
	return orderEventData{
		OrderID:      o.ID,
		ProductID:    o.ProductID,
		UserID:       o.UserID,
		Side:         string(o.Side),
		Type:         string(o.Type),
		Price:        o.Price,
		Amount:       o.Amount,
		FilledAmount: o.FilledAmount,
		FilledFunds:  o.FilledFunds,
		Status:       string(l.Status),
		Reason:       string(l.Reason),
	}
}

// deliver sends one payload via HTTP POST with the delivery headers. Any
// transport error or non-2xx response is returned.
func (w *Webhook) deliver(ctx context.Context, event, key string, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderDeliveryID, uuid.New().String())
	req.Header.Set(HeaderEventType, event)
	req.Header.Set(HeaderIdempotencyKey, key)

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
