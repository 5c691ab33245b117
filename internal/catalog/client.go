package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pos-checkout/internal/models"
	"pos-checkout/internal/util"

	"go.uber.org/zap"
)

// SettlementError is a ledger-side rejection of a settlement (stock changed,
// validation failure). It is surfaced once and never retried.
type SettlementError struct {
	StatusCode int
	Message    string
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement rejected (%d): %s", e.StatusCode, e.Message)
}

// BulkCreateError is the catalog's outcome for one rejected payload
type BulkCreateError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BulkCreateResult is the catalog's per-row outcome of a batch create
type BulkCreateResult struct {
	Success []json.RawMessage `json:"success"`
	Errors  []BulkCreateError `json:"errors"`
}

// Client talks to the catalog and ledger services
type Client struct {
	catalogURL string
	ledgerURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a catalog/ledger client
func NewClient(catalogURL, ledgerURL string, timeout time.Duration) *Client {
	return &Client{
		catalogURL: strings.TrimRight(catalogURL, "/"),
		ledgerURL:  strings.TrimRight(ledgerURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// LookupBySKU fetches and normalizes a single product
func (c *Client) LookupBySKU(ctx context.Context, sku string) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.LookupBySKU")
	defer span.End()

	var dto productDTO
	status, body, err := c.do(ctx, http.MethodGet, c.catalogURL+"/products/sku/"+url.PathEscape(sku), nil, "lookup")
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("sku %s: %w", sku, models.ErrNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog lookup failed (%d): %s", status, errorMessage(body))
	}
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}

	product, err := normalize(dto)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts fetches a full catalog snapshot. Malformed products are
// skipped and logged so one bad row does not hide the whole inventory.
func (c *Client) ListProducts(ctx context.Context) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.ListProducts")
	defer span.End()

	status, body, err := c.do(ctx, http.MethodGet, c.catalogURL+"/products", nil, "list")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog list failed (%d): %s", status, errorMessage(body))
	}

	var dtos []productDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	products := make([]models.Product, 0, len(dtos))
	for _, dto := range dtos {
		p, err := normalize(dto)
		if err != nil {
			c.logger.Warn("Skipping malformed catalog product", zap.String("sku", dto.SKU), zap.Error(err))
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

// BulkCreate submits normalized payloads as one batch
func (c *Client) BulkCreate(ctx context.Context, payloads []models.CreateProductPayload) (*BulkCreateResult, error) {
	ctx, span := util.StartSpan(ctx, "CatalogClient.BulkCreate")
	defer span.End()

	status, body, err := c.do(ctx, http.MethodPost, c.catalogURL+"/products/bulk", payloads, "bulk_create")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusMultiStatus {
		return nil, fmt.Errorf("catalog bulk create failed (%d): %s", status, errorMessage(body))
	}

	var result BulkCreateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode bulk create result: %w", err)
	}
	return &result, nil
}

// Settle submits a finalized cart to the ledger
func (c *Client) Settle(ctx context.Context, req *models.SettlementRequest) (*models.Transaction, error) {
	ctx, span := util.StartSpan(ctx, "LedgerClient.Settle")
	defer span.End()

	status, body, err := c.do(ctx, http.MethodPost, c.ledgerURL+"/transactions", req, "settle")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, &SettlementError{StatusCode: status, Message: errorMessage(body)}
	}

	var tx models.Transaction
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	if tx.TransactionNumber == "" {
		return nil, &SettlementError{StatusCode: status, Message: "ledger returned no transaction number"}
	}
	return &tx, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}, op string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.UpstreamRequestDuration.WithLabelValues("catalog", op, "error").Observe(time.Since(start).Seconds())
		return 0, nil, fmt.Errorf("failed to reach %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	util.UpstreamRequestDuration.WithLabelValues("catalog", op, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// errorMessage extracts a readable message from an error body
func errorMessage(body []byte) string {
	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Error != "" && envelope.Details != "":
			return envelope.Error + ": " + envelope.Details
		case envelope.Error != "":
			return envelope.Error
		case envelope.Message != "":
			return envelope.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	return msg
}
