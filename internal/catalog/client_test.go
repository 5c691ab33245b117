package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pos-checkout/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, srv.URL+"/ledger", 5*time.Second)
}

func TestLookupBySKUNormalizesProduct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/sku/RICE-5", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"product_id": 7, "sku": "RICE-5", "name": "Rice", "selling_price": "62.50",
			"stock_quantity": 2000, "product_type": "Weight", "quantity_per_unit": 500,
			"base_unit": "grams", "low_stock_level": 3
		}`))
	})

	p, err := client.LookupBySKU(context.Background(), "RICE-5")
	require.NoError(t, err)

	assert.Equal(t, int64(7), p.ID)
	assert.Equal(t, models.ProductTypeWeight, p.ProductType)
	assert.Equal(t, "g", p.BaseUnit)
	assert.Equal(t, 2000.0, p.QuantityInStock)
	assert.True(t, p.SellingPrice.Equal(decimal.RequireFromString("62.5")))
}

func TestLookupBySKUNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.LookupBySKU(context.Background(), "NOPE")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestNormalizeInfersTypeFromUnit(t *testing.T) {
	p, err := normalize(productDTO{ID: 3, SKU: "OIL", BaseUnit: "L", QuantityPerUnit: 1})
	require.NoError(t, err)
	assert.Equal(t, models.ProductTypeVolume, p.ProductType)
	assert.Equal(t, "l", p.BaseUnit)

	p, err = normalize(productDTO{ID: 4, SKU: "PEN", QuantityPerUnit: -2})
	require.NoError(t, err)
	assert.Equal(t, models.ProductTypeCount, p.ProductType)
	assert.Equal(t, 1.0, p.QuantityPerUnit)

	_, err = normalize(productDTO{SKU: "BAD", ProductType: "weight", BaseUnit: "ml"})
	assert.ErrorIs(t, err, ErrMalformedProduct)

	_, err = normalize(productDTO{SKU: "ODD", ProductType: "gaseous"})
	assert.ErrorIs(t, err, ErrMalformedProduct)
}

func TestSettleRejectionBecomesSettlementError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ledger/transactions", r.URL.Path)
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"stock changed","details":"SKU X has 1 left"}`))
	})

	_, err := client.Settle(context.Background(), &models.SettlementRequest{PaymentType: models.PaymentTypeCash})

	var settleErr *SettlementError
	require.True(t, errors.As(err, &settleErr))
	assert.Equal(t, http.StatusConflict, settleErr.StatusCode)
	assert.Equal(t, "stock changed: SKU X has 1 left", settleErr.Message)
}

func TestSettleSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.SettlementRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Items, 1)
		require.NotNil(t, req.DiscountPercentage)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"transaction_number":"TXN-0001","transaction_id":55,"total":"90.00"}`))
	})

	pct := decimal.NewFromInt(10)
	tx, err := client.Settle(context.Background(), &models.SettlementRequest{
		Items:              []models.SettlementItem{{ProductID: 1, Quantity: 2}},
		PaymentType:        models.PaymentTypeCash,
		MoneyReceived:      decimal.NewFromInt(100),
		DiscountPercentage: &pct,
	})
	require.NoError(t, err)
	assert.Equal(t, "TXN-0001", tx.TransactionNumber)
	assert.Equal(t, int64(55), tx.TransactionID)
}

func TestBulkCreate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payloads []models.CreateProductPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payloads))
		require.Len(t, payloads, 2)
		_, _ = w.Write([]byte(`{"success":[{"sku":"A"}],"errors":[{"index":1,"error":"duplicate sku"}]}`))
	})

	res, err := client.BulkCreate(context.Background(), []models.CreateProductPayload{{SKU: "A"}, {SKU: "B"}})
	require.NoError(t, err)
	assert.Len(t, res.Success, 1)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Index)
}
