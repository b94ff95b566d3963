package service

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/matchcore/internal/domain"
	"github.com/efreitasn/matchcore/internal/store"
)

// PriceResponse represents the response for GET /products/{id}/price.
type PriceResponse struct {
	ProductID      string
	CurrentPrice   *decimal.Decimal // nil when no trades ever
	Window         string           // e.g. "5m"
	TradesInWindow int
	LastTradeAt    *time.Time // nil when no trades ever
}

// BookResponse represents the response for GET /products/{id}/book.
type BookResponse struct {
	ProductID  string
	Bids       []store.PriceLevel
	Asks       []store.PriceLevel
	Spread     *decimal.Decimal // nil if either side empty
	SnapshotAt time.Time
}

// MarketService answers price, depth and trade queries from the log-fed
// stores.
type MarketService struct {
	catalog    *domain.Catalog
	trades     *store.TradeStore
	depth      *store.DepthStore
	vwapWindow time.Duration
	now        func() time.Time
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(catalog *domain.Catalog, trades *store.TradeStore, depth *store.DepthStore, vwapWindow time.Duration) *MarketService {
	return &MarketService{
		catalog:    catalog,
		trades:     trades,
		depth:      depth,
		vwapWindow: vwapWindow,
		now:        time.Now,
	}
}

// Products lists every product in registration order.
func (s *MarketService) Products() []*domain.Product {
	return s.catalog.Products()
}

func (s *MarketService) book(productID string) (*domain.Product, error) {
	p, err := s.catalog.Product(productID)
	if err != nil {
		return nil, err
	}
	if p.Synthetic() {
		return nil, fmt.Errorf("%w: %s has no book", domain.ErrProductSynthetic, p.ID)
	}
	return p, nil
}

// GetPrice returns the VWAP over the configured window. Falls back to the
// last trade's price if no trades exist in the window. Returns a null
// price if no trades have ever occurred.
func (s *MarketService) GetPrice(productID string) (*PriceResponse, error) {
	p, err := s.book(productID)
	if err != nil {
		return nil, err
	}

	trades := s.trades.GetByProduct(p.ID)
	resp := &PriceResponse{
		ProductID: p.ID,
		Window:    formatDuration(s.vwapWindow),
	}
	if len(trades) == 0 {
		return resp, nil
	}

	last := trades[len(trades)-1]
	resp.LastTradeAt = &last.ExecutedAt

	// Walk back from the tail until trades fall outside the window.
	windowStart := s.now().Add(-s.vwapWindow)
	var funds, amount decimal.Decimal
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if t.ExecutedAt.Before(windowStart) {
			break
		}
		funds = funds.Add(t.Funds)
		amount = amount.Add(t.Amount)
		resp.TradesInWindow++
	}

	price := last.Price
	if amount.IsPositive() {
		price = domain.Div(funds, amount, p.PricePrecision)
	}
	resp.CurrentPrice = &price
	return resp, nil
}

// GetBook returns the top depth price levels of a product's book.
func (s *MarketService) GetBook(productID string, depth int) (*BookResponse, error) {
	p, err := s.book(productID)
	if err != nil {
		return nil, err
	}
	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{Message: "depth must be between 1 and 50"}
	}

	bids, asks := s.depth.Levels(p.ID, depth)
	resp := &BookResponse{
		ProductID:  p.ID,
		Bids:       bids,
		Asks:       asks,
		SnapshotAt: s.now(),
	}
	if len(bids) > 0 && len(asks) > 0 {
		spread := asks[0].Price.Sub(bids[0].Price)
		resp.Spread = &spread
	}
	return resp, nil
}

// GetTrades returns up to limit of the most recent trades, newest first.
func (s *MarketService) GetTrades(productID string, limit int) ([]*domain.Trade, error) {
	p, err := s.book(productID)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 100 {
		return nil, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	trades := s.trades.GetByProduct(p.ID)
	out := make([]*domain.Trade, 0, limit)
	for i := len(trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, trades[i])
	}
	return out, nil
}

// formatDuration converts a time.Duration to a human-readable string
// like "5m" for the window field.
func formatDuration(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	minutes := int(d.Minutes())
	if d == time.Duration(minutes)*time.Minute && minutes > 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return d.String()
}
