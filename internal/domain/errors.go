package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrProductNotFound   = errors.New("product_not_found")
	ErrCurrencyNotFound  = errors.New("currency_not_found")
	ErrProductSynthetic  = errors.New("product_is_synthetic")
	ErrServicePaused     = errors.New("service_paused")
	ErrEngineHalted      = errors.New("engine_halted")
	ErrDuplicateProduct  = errors.New("duplicate_product")
	ErrDuplicateCurrency = errors.New("duplicate_currency")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
