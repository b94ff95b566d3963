package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func jsonRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestWriteJSON_DecimalsAsStrings(t *testing.T) {
	w := httptest.NewRecorder()
	price := decimal.RequireFromString("30000.10")
	WriteJSON(w, http.StatusAccepted, struct {
		Price   *decimal.Decimal `json:"price,omitempty"`
		Average *decimal.Decimal `json:"average_price"`
		Amount  decimal.Decimal  `json:"amount"`
	}{Price: &price, Amount: decimal.RequireFromString("0.5")})

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if raw["price"] != "30000.1" {
		t.Errorf("price = %v, want \"30000.1\"", raw["price"])
	}
	if raw["amount"] != "0.5" {
		t.Errorf("amount = %v, want \"0.5\"", raw["amount"])
	}
	if v, ok := raw["average_price"]; !ok || v != nil {
		t.Errorf("average_price = %v (present %v), want null", v, ok)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusNotFound, "order_not_found", "Order not found")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "order_not_found" || resp.Message != "Order not found" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestParseJSON(t *testing.T) {
	type target struct {
		ProductID string `json:"product_id"`
		Amount    string `json:"amount"`
	}

	t.Run("accepts charset suffix", func(t *testing.T) {
		var v target
		r := jsonRequest(`{"product_id":"BTC-USDT","amount":"1.5"}`, "application/json; charset=utf-8")
		if err := ParseJSON(r, &v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.ProductID != "BTC-USDT" || v.Amount != "1.5" {
			t.Errorf("decoded %+v", v)
		}
	})

	tests := []struct {
		name        string
		body        string
		contentType string
	}{
		{"missing content type", `{"product_id":"BTC-USDT"}`, ""},
		{"wrong content type", `{"product_id":"BTC-USDT"}`, "text/plain"},
		{"malformed", `{product_id}`, "application/json"},
		{"unknown field", `{"product_id":"BTC-USDT","leverage":"10"}`, "application/json"},
		{"empty body", ``, "application/json"},
		{"trailing object", `{"product_id":"BTC-USDT"}{"amount":"1"}`, "application/json"},
		{"oversized", `{"product_id":"` + strings.Repeat("x", maxBodyBytes) + `"}`, "application/json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v target
			err := ParseJSON(jsonRequest(tt.body, tt.contentType), &v)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "Content-Type") {
				t.Errorf("error = %q, should mention Content-Type", err.Error())
			}
		})
	}
}
