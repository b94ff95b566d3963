package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/service"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// placeOrderRequest is the JSON request body for POST /orders. Decimal
// values are strings so that no precision is lost in transit.
type placeOrderRequest struct {
	ProductID      string `json:"product_id"`
	UserID         string `json:"user_id"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Price          string `json:"price"`
	Amount         string `json:"amount"`
	BaseAccountID  string `json:"base_account_id"`
	QuoteAccountID string `json:"quote_account_id"`
	FeeAccountID   string `json:"fee_account_id"`
	FeeRateTaker   string `json:"fee_rate_taker"`
	FeeRateMaker   string `json:"fee_rate_maker"`
}

// orderResponse is the JSON view of an order. Price is omitted for market
// orders; average_price is null until something fills.
type orderResponse struct {
	OrderID      string           `json:"order_id"`
	ProductID    string           `json:"product_id"`
	UserID       string           `json:"user_id"`
	Side         string           `json:"side"`
	Type         string           `json:"type"`
	Price        *decimal.Decimal `json:"price,omitempty"`
	Amount       decimal.Decimal  `json:"amount"`
	FilledAmount decimal.Decimal  `json:"filled_amount"`
	FilledFunds  decimal.Decimal  `json:"filled_funds"`
	Remaining    decimal.Decimal  `json:"remaining"`
	AveragePrice *decimal.Decimal `json:"average_price"`
	Status       string           `json:"status"`
	CreatedAt    string           `json:"created_at"`
}

// orderListResponse is the paginated response for a user's orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// PlaceOrder handles POST /orders. The order is accepted for matching, so
// the response carries its state at submission time.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.Place(r.Context(), service.PlaceOrderRequest{
		ProductID:      req.ProductID,
		UserID:         req.UserID,
		Side:           domain.OrderSide(req.Side),
		Type:           domain.OrderType(req.Type),
		Price:          req.Price,
		Amount:         req.Amount,
		BaseAccountID:  req.BaseAccountID,
		QuoteAccountID: req.QuoteAccountID,
		FeeAccountID:   req.FeeAccountID,
		FeeRateTaker:   req.FeeRateTaker,
		FeeRateMaker:   req.FeeRateMaker,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.Get(orderID)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.Cancel(r.Context(), orderID)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// ListUserOrders handles GET /users/{user_id}/orders.
func (h *OrderHandler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var statusFilter *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.OrderStatus(s)
		statusFilter = &status
	}

	page, ok := queryInt(w, r, "page", 1)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}

	orders, total, err := h.orderSvc.ListOrders(userID, statusFilter, page, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildOrderResponse(o domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:      o.ID,
		ProductID:    o.ProductID,
		UserID:       o.UserID,
		Side:         string(o.Side),
		Type:         string(o.Type),
		Amount:       o.Amount,
		FilledAmount: o.FilledAmount,
		FilledFunds:  o.FilledFunds,
		Remaining:    o.Remaining(),
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt.UTC().Format(timeFormat),
	}
	if o.Type == domain.OrderTypeLimit {
		p := o.Price
		resp.Price = &p
	}
	if avg, ok := o.AveragePrice(); ok {
		resp.AveragePrice = &avg
	}
	return resp
}

// queryInt parses an optional integer query parameter and writes a 400 on
// failure.
func queryInt(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", name+" must be a valid integer")
		return 0, false
	}
	return v, true
}

// mapError maps domain errors to HTTP responses.
func mapError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrProductNotFound):
		WriteError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, domain.ErrProductSynthetic):
		WriteError(w, http.StatusConflict, "product_is_synthetic", err.Error())
	case errors.Is(err, domain.ErrServicePaused):
		WriteError(w, http.StatusServiceUnavailable, "service_paused", err.Error())
	case errors.Is(err, domain.ErrEngineHalted):
		WriteError(w, http.StatusServiceUnavailable, "engine_halted", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		WriteError(w, http.StatusServiceUnavailable, "queue_timeout", "The matching queue did not accept the request in time")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
