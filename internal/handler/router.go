package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/efreitasn/matchcore/internal/service"
)

// HeaderRequestID carries the request id echoed on every response.
const HeaderRequestID = "X-Request-Id"

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(
	orderSvc *service.OrderService,
	marketSvc *service.MarketService,
	adminSvc *service.AdminService,
	logger *slog.Logger,
) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	orderH := NewOrderHandler(orderSvc)
	marketH := NewMarketHandler(marketSvc)
	adminH := NewAdminHandler(adminSvc)

	r.Get("/healthz", adminH.Healthz)

	// Order routes.
	r.Post("/orders", orderH.PlaceOrder)
	r.Get("/orders/{order_id}", orderH.GetOrder)
	r.Delete("/orders/{order_id}", orderH.CancelOrder)
	r.Get("/users/{user_id}/orders", orderH.ListUserOrders)

	// Market data routes.
	r.Get("/products", marketH.ListProducts)
	r.Get("/products/{product_id}/price", marketH.GetPrice)
	r.Get("/products/{product_id}/book", marketH.GetBook)
	r.Get("/products/{product_id}/trades", marketH.GetTrades)

	// Operator routes.
	r.Route("/admin", func(r chi.Router) {
		r.Post("/products/{product_id}/daily-limit", adminH.SetDailyLimit)
		r.Post("/cancel-all", adminH.CancelAll)
		r.Post("/prune", adminH.Prune)
		r.Post("/pause", adminH.Pause)
		r.Post("/resume", adminH.Resume)
		r.Get("/status", adminH.Healthz)
	})

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog. A request id is taken from the
// incoming header or generated.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(HeaderRequestID)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, reqID)

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests that carry a body. If the Content-Type header doesn't start
// with "application/json", it returns 400 Bad Request before the handler runs.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && (ct == "" || !strings.HasPrefix(ct, "application/json")) {
				WriteError(w, http.StatusBadRequest, "invalid_request",
					"Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
