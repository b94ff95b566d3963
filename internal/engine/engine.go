package engine

import (
	"errors"
	"fmt"

	"github.com/efreitasn/matchcore/internal/domain"
)

// ErrWrongProduct is returned when a message is routed to an engine that
// does not own its product.
var ErrWrongProduct = errors.New("message routed to wrong product")

// Engine applies messages to the order book of one real product.
type Engine struct {
	product *domain.Product
	book    *OrderBook
}

// NewEngine creates the engine and its book for a non-synthetic product.
func NewEngine(product *domain.Product, policy BandPolicy) *Engine {
	return &Engine{
		product: product,
		book:    NewOrderBook(product, policy),
	}
}

// Product returns the product the engine serves.
func (e *Engine) Product() *domain.Product {
	return e.product
}

// Book returns the engine's order book. Callers other than the dispatcher
// goroutine must not use it.
func (e *Engine) Book() *OrderBook {
	return e.book
}

// Apply processes one message and returns the logs it produced, in order.
// An error means the message could not be applied and engine state must be
// treated as suspect.
func (e *Engine) Apply(msg Message) ([]Log, error) {
	switch m := msg.(type) {
	case Place:
		if m.Order == nil {
			return nil, fmt.Errorf("engine %s: place without order", e.product.ID)
		}
		if m.Order.ProductID != e.product.ID {
			return nil, fmt.Errorf("engine %s: order %s for %s: %w", e.product.ID, m.Order.ID, m.Order.ProductID, ErrWrongProduct)
		}
		return e.book.place(m.Order, m.Order.CreatedAt), nil

	case Cancel:
		if m.ProductID != e.product.ID {
			return nil, fmt.Errorf("engine %s: cancel %s for %s: %w", e.product.ID, m.OrderID, m.ProductID, ErrWrongProduct)
		}
		reason := m.Reason
		if reason == "" {
			reason = domain.CancelReasonCustomer
		}
		return e.book.cancel(m.OrderID, reason, m.At), nil

	case DailyLimitOperation:
		if m.ProductID != e.product.ID {
			return nil, fmt.Errorf("engine %s: daily limit for %s: %w", e.product.ID, m.ProductID, ErrWrongProduct)
		}
		if m.Open {
			return e.book.openBook(m.At), nil
		}
		return e.book.closeBook(m.At), nil

	case Signal:
		switch m.Type {
		case SignalOrderImported:
			return []Log{bookInitializedLog(e.product.ID, m.At)}, nil
		case SignalCancelAllOrders:
			return e.book.cancelAll(m.At), nil
		case SignalOrderBookInitialized:
			return nil, nil
		default:
			return nil, fmt.Errorf("engine %s: unknown signal %q", e.product.ID, m.Type)
		}

	case PruneRequest:
		return e.book.prune(m), nil

	default:
		return nil, fmt.Errorf("engine %s: unsupported message %T", e.product.ID, msg)
	}
}
