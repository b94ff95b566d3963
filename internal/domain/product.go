package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a tradable asset.
type Currency struct {
	ID            string
	Name          string
	DecimalDigits int32
}

// InstantExchange describes a synthetic product routed through two real
// products. The flags record whether the synthetic base (or quote)
// currency is the base currency of the corresponding leg.
type InstantExchange struct {
	BaseProductID   string
	BaseIsBaseSide  bool
	QuoteProductID  string
	QuoteIsBaseSide bool
}

// DailyLimitRate is the price band applied while a daily limit is active.
// Rates are fractions, so 0.1 allows a 10% move from the reference price.
type DailyLimitRate struct {
	UpperLimitRate decimal.Decimal
	LowerLimitRate decimal.Decimal
	InitialPrice   decimal.Decimal
}

// TimeWindow is a trading window within a day, as offsets from midnight.
// End may be smaller than Start for windows that cross midnight.
type TimeWindow struct {
	Start time.Duration
	End   time.Duration
}

// Contains reports whether the offset from midnight falls in the window.
func (w TimeWindow) Contains(offset time.Duration) bool {
	if w.Start <= w.End {
		return offset >= w.Start && offset < w.End
	}
	return offset >= w.Start || offset < w.End
}

// DailyLimit restricts trading to windows and, optionally, a price band.
type DailyLimit struct {
	Windows []TimeWindow
	Rate    *DailyLimitRate
}

// Product is a tradable pair. Instant is set for synthetic products.
type Product struct {
	ID              string
	Name            string
	BaseCurrencyID  string
	QuoteCurrencyID string
	PricePrecision  int32
	AmountPrecision int32
	FundsPrecision  int32
	MinOrderAmount  decimal.Decimal
	MaxOrderAmount  decimal.Decimal
	MinOrderFunds   decimal.Decimal
	MaxOrderFunds   decimal.Decimal
	Instant         *InstantExchange
	DailyLimit      *DailyLimit
}

// Synthetic reports whether the product has no order book of its own.
func (p *Product) Synthetic() bool {
	return p.Instant != nil
}

// Catalog holds the reference data the core reads. It is populated once at
// startup and is safe for concurrent reads afterwards.
type Catalog struct {
	mu         sync.RWMutex
	currencies map[string]Currency
	products   map[string]*Product
	order      []string
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		currencies: make(map[string]Currency),
		products:   make(map[string]*Product),
	}
}

// AddCurrency registers a currency.
func (c *Catalog) AddCurrency(cur Currency) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.currencies[cur.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCurrency, cur.ID)
	}
	c.currencies[cur.ID] = cur
	return nil
}

// AddProduct registers a product after checking its currencies and, for a
// synthetic product, that both legs exist and share a medium currency.
func (c *Catalog) AddProduct(p Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.products[p.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ID)
	}
	for _, id := range []string{p.BaseCurrencyID, p.QuoteCurrencyID} {
		if _, ok := c.currencies[id]; !ok {
			return fmt.Errorf("product %s: %w: %s", p.ID, ErrCurrencyNotFound, id)
		}
	}
	if p.Instant != nil {
		if err := c.checkLegs(&p); err != nil {
			return err
		}
	}

	c.products[p.ID] = &p
	c.order = append(c.order, p.ID)
	return nil
}

func (c *Catalog) checkLegs(p *Product) error {
	base, ok := c.products[p.Instant.BaseProductID]
	if !ok || base.Synthetic() {
		return fmt.Errorf("product %s: base leg %s: %w", p.ID, p.Instant.BaseProductID, ErrProductNotFound)
	}
	quote, ok := c.products[p.Instant.QuoteProductID]
	if !ok || quote.Synthetic() {
		return fmt.Errorf("product %s: quote leg %s: %w", p.ID, p.Instant.QuoteProductID, ErrProductNotFound)
	}

	baseShared, baseMedium := base.BaseCurrencyID, base.QuoteCurrencyID
	if !p.Instant.BaseIsBaseSide {
		baseShared, baseMedium = base.QuoteCurrencyID, base.BaseCurrencyID
	}
	quoteShared, quoteMedium := quote.BaseCurrencyID, quote.QuoteCurrencyID
	if !p.Instant.QuoteIsBaseSide {
		quoteShared, quoteMedium = quote.QuoteCurrencyID, quote.BaseCurrencyID
	}
	if baseShared != p.BaseCurrencyID {
		return fmt.Errorf("product %s: base leg %s does not trade %s", p.ID, base.ID, p.BaseCurrencyID)
	}
	if quoteShared != p.QuoteCurrencyID {
		return fmt.Errorf("product %s: quote leg %s does not trade %s", p.ID, quote.ID, p.QuoteCurrencyID)
	}
	if baseMedium != quoteMedium {
		return fmt.Errorf("product %s: legs have different medium currencies %s and %s", p.ID, baseMedium, quoteMedium)
	}
	return nil
}

// Product returns the product with the given id.
func (c *Catalog) Product(id string) (*Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// Currency returns the currency with the given id.
func (c *Catalog) Currency(id string) (Currency, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cur, ok := c.currencies[id]
	if !ok {
		return Currency{}, ErrCurrencyNotFound
	}
	return cur, nil
}

// Products returns every product in registration order.
func (c *Catalog) Products() []*Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out
}

// Currencies returns every currency sorted by id.
func (c *Catalog) Currencies() []Currency {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Currency, 0, len(c.currencies))
	for _, cur := range c.currencies {
		out = append(out, cur)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
