package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/engine"
	"github.com/efreitasn/matchcore/internal/store"
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusNew:        true,
	domain.OrderStatusOpen:       true,
	domain.OrderStatusPending:    true,
	domain.OrderStatusFilled:     true,
	domain.OrderStatusCancelling: true,
	domain.OrderStatusCancelled:  true,
}

// Submitter accepts messages for the matching core.
type Submitter interface {
	Submit(ctx context.Context, msg engine.Message) error
}

// PlaceOrderRequest represents the input for order placement. Decimal
// fields are strings so that precision can be checked exactly.
type PlaceOrderRequest struct {
	ProductID      string
	UserID         string
	Side           domain.OrderSide
	Type           domain.OrderType
	Price          string // required for limit, must be empty for market
	Amount         string // base amount; funds to spend for a market buy
	BaseAccountID  string
	QuoteAccountID string
	FeeAccountID   string
	FeeRateTaker   string
	FeeRateMaker   string
}

// OrderService validates orders and hands them to the matching core.
type OrderService struct {
	catalog   *domain.Catalog
	orders    *store.OrderStore
	submitter Submitter
	now       func() time.Time
	newID     func() string
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(catalog *domain.Catalog, orders *store.OrderStore, submitter Submitter) *OrderService {
	return &OrderService{
		catalog:   catalog,
		orders:    orders,
		submitter: submitter,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Place validates the request and enqueues the order. A nil error means the
// order was accepted, not that it matched; its fate arrives through logs.
func (s *OrderService) Place(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	o, err := s.build(req)
	if err != nil {
		return domain.Order{}, err
	}

	s.orders.Create(*o)
	msg := *o
	if err := s.submitter.Submit(ctx, engine.Place{Order: &msg}); err != nil {
		s.orders.Delete(o.ID)
		return domain.Order{}, err
	}
	return *o, nil
}

func (s *OrderService) build(req PlaceOrderRequest) (*domain.Order, error) {
	p, err := s.catalog.Product(req.ProductID)
	if err != nil {
		return nil, err
	}

	if req.Type != domain.OrderTypeLimit && req.Type != domain.OrderTypeMarket {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market", req.Type),
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if p.Synthetic() && req.Type != domain.OrderTypeMarket {
		return nil, fmt.Errorf("%w: %s accepts market orders only", domain.ErrProductSynthetic, p.ID)
	}
	if req.UserID == "" {
		return nil, &domain.ValidationError{Message: "user_id is required"}
	}
	if req.BaseAccountID == "" || req.QuoteAccountID == "" || req.FeeAccountID == "" {
		return nil, &domain.ValidationError{Message: "base_account_id, quote_account_id and fee_account_id are required"}
	}

	taker, err := parseFeeRate("fee_rate_taker", req.FeeRateTaker)
	if err != nil {
		return nil, err
	}
	maker, err := parseFeeRate("fee_rate_maker", req.FeeRateMaker)
	if err != nil {
		return nil, err
	}

	o := &domain.Order{
		ID:             s.newID(),
		ProductID:      p.ID,
		UserID:         req.UserID,
		Side:           req.Side,
		Type:           req.Type,
		BaseAccountID:  req.BaseAccountID,
		QuoteAccountID: req.QuoteAccountID,
		FeeAccountID:   req.FeeAccountID,
		FeeRateTaker:   taker,
		FeeRateMaker:   maker,
		Status:         domain.OrderStatusNew,
		CreatedAt:      s.now(),
	}

	if req.Type == domain.OrderTypeLimit {
		err = s.limitTerms(p, req, o)
	} else {
		err = s.marketTerms(p, req, o)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) limitTerms(p *domain.Product, req PlaceOrderRequest, o *domain.Order) error {
	if req.Price == "" {
		return &domain.ValidationError{Message: "price is required for limit orders"}
	}
	price, err := positive("price", req.Price, p.PricePrecision)
	if err != nil {
		return err
	}
	amount, err := positive("amount", req.Amount, p.AmountPrecision)
	if err != nil {
		return err
	}
	if err := within("amount", amount, p.MinOrderAmount, p.MaxOrderAmount); err != nil {
		return err
	}
	if err := within("funds", domain.Mul(price, amount), p.MinOrderFunds, p.MaxOrderFunds); err != nil {
		return err
	}
	o.Price, o.Amount = price, amount
	return nil
}

func (s *OrderService) marketTerms(p *domain.Product, req PlaceOrderRequest, o *domain.Order) error {
	if req.Price != "" {
		return &domain.ValidationError{Message: "market orders must not include price"}
	}
	if req.Side == domain.OrderSideBuy {
		funds, err := positive("amount", req.Amount, p.FundsPrecision)
		if err != nil {
			return err
		}
		if err := within("funds", funds, p.MinOrderFunds, p.MaxOrderFunds); err != nil {
			return err
		}
		o.Amount = funds
		return nil
	}
	amount, err := positive("amount", req.Amount, p.AmountPrecision)
	if err != nil {
		return err
	}
	if err := within("amount", amount, p.MinOrderAmount, p.MaxOrderAmount); err != nil {
		return err
	}
	o.Amount = amount
	return nil
}

func positive(field, raw string, digits int32) (decimal.Decimal, error) {
	d, err := domain.ParseDecimal(raw, digits)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Message: field + ": " + err.Error()}
	}
	if !d.IsPositive() {
		return decimal.Zero, &domain.ValidationError{Message: field + " must be greater than 0"}
	}
	return d, nil
}

// within checks optional bounds; a zero bound is not enforced.
func within(field string, v, lo, hi decimal.Decimal) error {
	if !lo.IsZero() && v.LessThan(lo) {
		return &domain.ValidationError{Message: fmt.Sprintf("%s must be at least %s", field, lo)}
	}
	if !hi.IsZero() && v.GreaterThan(hi) {
		return &domain.ValidationError{Message: fmt.Sprintf("%s must be at most %s", field, hi)}
	}
	return nil
}

func parseFeeRate(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := domain.ParseDecimal(raw, domain.DefaultScale)
	if err != nil {
		return decimal.Zero, &domain.ValidationError{Message: field + ": " + err.Error()}
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, &domain.ValidationError{Message: field + " must be in [0, 1)"}
	}
	return d, nil
}

// Get retrieves an order by ID.
func (s *OrderService) Get(orderID string) (domain.Order, error) {
	return s.orders.Get(orderID)
}

// Cancel requests cancellation of a live order. Cancelling an order that
// already reached a terminal state succeeds without doing anything.
func (s *OrderService) Cancel(ctx context.Context, orderID string) (domain.Order, error) {
	o, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if o.Status.Terminal() {
		return o, nil
	}

	err = s.submitter.Submit(ctx, engine.Cancel{
		OrderID:   o.ID,
		ProductID: o.ProductID,
		Reason:    domain.CancelReasonCustomer,
		At:        s.now(),
	})
	if err != nil {
		return domain.Order{}, err
	}
	return s.orders.MarkCancelling(orderID)
}

// ListOrders returns a paginated list of a user's orders with optional
// status filtering.
func (s *OrderService) ListOrders(userID string, status *domain.OrderStatus, page, limit int) ([]domain.Order, int, error) {
	if userID == "" {
		return nil, 0, &domain.ValidationError{Message: "user_id is required"}
	}

	// Validate status if provided.
	if status != nil {
		if !ValidOrderStatuses[*status] {
			return nil, 0, &domain.ValidationError{
				Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: new, open, pending, filled, cancelling, cancelled", *status),
			}
		}
	}

	// Validate pagination.
	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	orders, total := s.orders.ListByUser(userID, status, page, limit)
	return orders, total, nil
}
