package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/efreitasn/matchcore/internal/domain"
)

// CatalogFile is the YAML layout of the reference data file.
type CatalogFile struct {
	Currencies []CurrencyConfig `yaml:"currencies"`
	Products   []ProductConfig  `yaml:"products"`
}

type CurrencyConfig struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	DecimalDigits int32  `yaml:"decimal_digits"`
}

type ProductConfig struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Base            string            `yaml:"base"`
	Quote           string            `yaml:"quote"`
	PricePrecision  int32             `yaml:"price_precision"`
	AmountPrecision int32             `yaml:"amount_precision"`
	FundsPrecision  int32             `yaml:"funds_precision"`
	MinOrderAmount  string            `yaml:"min_order_amount"`
	MaxOrderAmount  string            `yaml:"max_order_amount"`
	MinOrderFunds   string            `yaml:"min_order_funds"`
	MaxOrderFunds   string            `yaml:"max_order_funds"`
	Instant         *InstantConfig    `yaml:"instant"`
	DailyLimit      *DailyLimitConfig `yaml:"daily_limit"`
}

type InstantConfig struct {
	BaseProduct     string `yaml:"base_product"`
	BaseIsBaseSide  bool   `yaml:"base_is_base_side"`
	QuoteProduct    string `yaml:"quote_product"`
	QuoteIsBaseSide bool   `yaml:"quote_is_base_side"`
}

type DailyLimitConfig struct {
	Windows []WindowConfig `yaml:"windows"`
	Rate    *RateConfig    `yaml:"rate"`
}

// WindowConfig holds wall-clock times formatted HH:MM or HH:MM:SS.
type WindowConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

type RateConfig struct {
	Upper        string `yaml:"upper"`
	Lower        string `yaml:"lower"`
	InitialPrice string `yaml:"initial_price"`
}

// LoadCatalog reads and validates the catalog file at path.
func LoadCatalog(path string) (*domain.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog builds a catalog from YAML. Synthetic products are added
// after every plain product so their legs can be listed in any order.
func ParseCatalog(data []byte) (*domain.Catalog, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	c := domain.NewCatalog()
	for _, cc := range file.Currencies {
		if cc.ID == "" {
			return nil, fmt.Errorf("currency without id")
		}
		if err := c.AddCurrency(domain.Currency{ID: cc.ID, Name: cc.Name, DecimalDigits: cc.DecimalDigits}); err != nil {
			return nil, err
		}
	}

	var synthetic []domain.Product
	for _, pc := range file.Products {
		p, err := pc.toProduct()
		if err != nil {
			return nil, err
		}
		if p.Synthetic() {
			synthetic = append(synthetic, p)
			continue
		}
		if err := c.AddProduct(p); err != nil {
			return nil, err
		}
	}
	for _, p := range synthetic {
		if err := c.AddProduct(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (pc ProductConfig) toProduct() (domain.Product, error) {
	if pc.ID == "" {
		return domain.Product{}, fmt.Errorf("product without id")
	}
	fail := func(format string, args ...any) (domain.Product, error) {
		return domain.Product{}, fmt.Errorf("product %s: "+format, append([]any{pc.ID}, args...)...)
	}
	if pc.PricePrecision < 0 || pc.AmountPrecision < 0 || pc.FundsPrecision < 0 {
		return fail("precision must not be negative")
	}

	p := domain.Product{
		ID:              pc.ID,
		Name:            pc.Name,
		BaseCurrencyID:  pc.Base,
		QuoteCurrencyID: pc.Quote,
		PricePrecision:  pc.PricePrecision,
		AmountPrecision: pc.AmountPrecision,
		FundsPrecision:  pc.FundsPrecision,
	}
	bounds := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"min_order_amount", pc.MinOrderAmount, &p.MinOrderAmount},
		{"max_order_amount", pc.MaxOrderAmount, &p.MaxOrderAmount},
		{"min_order_funds", pc.MinOrderFunds, &p.MinOrderFunds},
		{"max_order_funds", pc.MaxOrderFunds, &p.MaxOrderFunds},
	}
	for _, b := range bounds {
		d, err := parseDecimal(b.raw)
		if err != nil || d.IsNegative() {
			return fail("invalid %s %q", b.name, b.raw)
		}
		*b.dst = d
	}

	if pc.Instant != nil {
		p.Instant = &domain.InstantExchange{
			BaseProductID:   pc.Instant.BaseProduct,
			BaseIsBaseSide:  pc.Instant.BaseIsBaseSide,
			QuoteProductID:  pc.Instant.QuoteProduct,
			QuoteIsBaseSide: pc.Instant.QuoteIsBaseSide,
		}
	}

	if pc.DailyLimit != nil {
		dl := &domain.DailyLimit{}
		for _, wc := range pc.DailyLimit.Windows {
			start, err := parseClock(wc.Start)
			if err != nil {
				return fail("window start: %v", err)
			}
			end, err := parseClock(wc.End)
			if err != nil {
				return fail("window end: %v", err)
			}
			if start == end {
				return fail("empty window %s-%s", wc.Start, wc.End)
			}
			dl.Windows = append(dl.Windows, domain.TimeWindow{Start: start, End: end})
		}
		if rc := pc.DailyLimit.Rate; rc != nil {
			rate, err := rc.toRate()
			if err != nil {
				return fail("%v", err)
			}
			dl.Rate = rate
		}
		p.DailyLimit = dl
	}
	return p, nil
}

func (rc RateConfig) toRate() (*domain.DailyLimitRate, error) {
	one := decimal.NewFromInt(1)
	upper, err := parseDecimal(rc.Upper)
	if err != nil || upper.IsNegative() || upper.GreaterThan(one) {
		return nil, fmt.Errorf("upper rate %q must be in [0,1]", rc.Upper)
	}
	lower, err := parseDecimal(rc.Lower)
	if err != nil || lower.IsNegative() || lower.GreaterThan(one) {
		return nil, fmt.Errorf("lower rate %q must be in [0,1]", rc.Lower)
	}
	initial, err := parseDecimal(rc.InitialPrice)
	if err != nil || initial.IsNegative() {
		return nil, fmt.Errorf("invalid initial price %q", rc.InitialPrice)
	}
	return &domain.DailyLimitRate{UpperLimitRate: upper, LowerLimitRate: lower, InitialPrice: initial}, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseClock turns HH:MM or HH:MM:SS into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	layout := "15:04"
	if strings.Count(s, ":") == 2 {
		layout = "15:04:05"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM[:SS]", s)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}
