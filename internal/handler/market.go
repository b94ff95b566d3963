package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/service"
	"github.com/efreitasn/matchcore/internal/store"
)

// MarketHandler handles HTTP requests for product and market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

type productResponse struct {
	ProductID       string          `json:"product_id"`
	Name            string          `json:"name,omitempty"`
	BaseCurrency    string          `json:"base_currency"`
	QuoteCurrency   string          `json:"quote_currency"`
	PricePrecision  int32           `json:"price_precision"`
	AmountPrecision int32           `json:"amount_precision"`
	FundsPrecision  int32           `json:"funds_precision"`
	MinOrderAmount  decimal.Decimal `json:"min_order_amount"`
	MaxOrderAmount  decimal.Decimal `json:"max_order_amount"`
	MinOrderFunds   decimal.Decimal `json:"min_order_funds"`
	MaxOrderFunds   decimal.Decimal `json:"max_order_funds"`
	Instant         bool            `json:"instant_exchange"`
	DailyLimit      bool            `json:"daily_limit"`
}

// priceResponse is the JSON response for GET /products/{product_id}/price.
type priceResponse struct {
	ProductID    string           `json:"product_id"`
	CurrentPrice *decimal.Decimal `json:"current_price"`
	Window       string           `json:"window"`
	TradesInWin  int              `json:"trades_in_window"`
	LastTradeAt  *string          `json:"last_trade_at"`
}

// bookLevelResponse is a single price level in the book response.
type bookLevelResponse struct {
	Price       decimal.Decimal `json:"price"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderCount  int             `json:"order_count"`
}

// bookResponse is the JSON response for GET /products/{product_id}/book.
type bookResponse struct {
	ProductID  string              `json:"product_id"`
	Bids       []bookLevelResponse `json:"bids"`
	Asks       []bookLevelResponse `json:"asks"`
	Spread     *decimal.Decimal    `json:"spread"`
	SnapshotAt string              `json:"snapshot_at"`
}

type tradeResponse struct {
	TradeID      string          `json:"trade_id"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOrderID string          `json:"maker_order_id"`
	Side         string          `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	Funds        decimal.Decimal `json:"funds"`
	ExecutedAt   string          `json:"executed_at"`
}

// ListProducts handles GET /products.
func (h *MarketHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products := h.marketSvc.Products()
	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = productResponse{
			ProductID:       p.ID,
			Name:            p.Name,
			BaseCurrency:    p.BaseCurrencyID,
			QuoteCurrency:   p.QuoteCurrencyID,
			PricePrecision:  p.PricePrecision,
			AmountPrecision: p.AmountPrecision,
			FundsPrecision:  p.FundsPrecision,
			MinOrderAmount:  p.MinOrderAmount,
			MaxOrderAmount:  p.MaxOrderAmount,
			MinOrderFunds:   p.MinOrderFunds,
			MaxOrderFunds:   p.MaxOrderFunds,
			Instant:         p.Synthetic(),
			DailyLimit:      p.DailyLimit != nil,
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// GetPrice handles GET /products/{product_id}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	price, err := h.marketSvc.GetPrice(productID)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := priceResponse{
		ProductID:    price.ProductID,
		CurrentPrice: price.CurrentPrice,
		Window:       price.Window,
		TradesInWin:  price.TradesInWindow,
	}
	if price.LastTradeAt != nil {
		s := price.LastTradeAt.UTC().Format(timeFormat)
		resp.LastTradeAt = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// GetBook handles GET /products/{product_id}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	depth, ok := queryInt(w, r, "depth", 10)
	if !ok {
		return
	}

	book, err := h.marketSvc.GetBook(productID, depth)
	if err != nil {
		mapError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		ProductID:  book.ProductID,
		Bids:       buildLevels(book.Bids),
		Asks:       buildLevels(book.Asks),
		Spread:     book.Spread,
		SnapshotAt: book.SnapshotAt.UTC().Format(timeFormat),
	})
}

// GetTrades handles GET /products/{product_id}/trades.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	limit, ok := queryInt(w, r, "limit", 50)
	if !ok {
		return
	}

	trades, err := h.marketSvc.GetTrades(productID, limit)
	if err != nil {
		mapError(w, err)
		return
	}

	resp := make([]tradeResponse, len(trades))
	for i, t := range trades {
		resp[i] = tradeResponse{
			TradeID:      t.ID,
			TakerOrderID: t.TakerOrderID,
			MakerOrderID: t.MakerOrderID,
			Side:         string(t.Side),
			Price:        t.Price,
			Amount:       t.Amount,
			Funds:        t.Funds,
			ExecutedAt:   t.ExecutedAt.UTC().Format(timeFormat),
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func buildLevels(levels []store.PriceLevel) []bookLevelResponse {
	out := make([]bookLevelResponse, len(levels))
	for i, l := range levels {
		out[i] = bookLevelResponse{
			Price:       l.Price,
			TotalAmount: l.TotalAmount,
			OrderCount:  l.OrderCount,
		}
	}
	return out
}
