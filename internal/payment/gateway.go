package payment

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

	"pos-checkout/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InitiateRequest is sent to the provider before redirecting the customer
type InitiateRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	ReferenceNumber string          `json:"reference_number"`
	CancelURL       string          `json:"cancel_url"`
	SuccessURL      string          `json:"success_url"`
}

// InitiateResponse carries the hosted checkout page
type InitiateResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
}

// Gateway is a redirect-based payment provider
type Gateway interface {
	// Initiate registers the payment and returns the page to send the customer to.
	Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error)
}

type redirectGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewRedirectGateway creates a gateway for a hosted-checkout provider
func NewRedirectGateway(baseURL, apiKey string, timeout time.Duration) Gateway {
	return &redirectGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

func (g *redirectGateway) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResponse, error) {
	ctx, span := util.StartSpan(ctx, "PaymentGateway.Initiate")
	defer span.End()

	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be greater than 0")
	}
	if req.ReferenceNumber == "" {
		return nil, fmt.Errorf("reference_number is required")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/checkout", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		util.UpstreamRequestDuration.WithLabelValues("payment", "initiate", "error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to reach payment provider: %w", err)
	}
	defer resp.Body.Close()
	util.UpstreamRequestDuration.WithLabelValues("payment", "initiate", strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("payment provider error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out InitiateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse payment response: %w", err)
	}
	if out.CheckoutURL == "" {
		return nil, fmt.Errorf("payment provider returned empty checkout URL")
	}

	g.logger.Info("Payment initiated",
		zap.String("reference", req.ReferenceNumber),
		zap.String("amount", req.Amount.StringFixed(2)))
	return &out, nil
}

// ReturnStatus is the status flag carried on the provider's return URL
type ReturnStatus string

// Return statuses
const (
	ReturnSuccess ReturnStatus = "success"
	ReturnCancel  ReturnStatus = "cancel"
)

var returnStatusSynonyms = map[string]ReturnStatus{
	"success":    ReturnSuccess,
	"succeeded":  ReturnSuccess,
	"paid":       ReturnSuccess,
	"authorised": ReturnSuccess,
	"authorized": ReturnSuccess,
	"cancel":     ReturnCancel,
	"cancelled":  ReturnCancel,
	"canceled":   ReturnCancel,
	"declined":   ReturnCancel,
	"failed":     ReturnCancel,
}

// ParseReturnStatus normalizes a provider status flag
func ParseReturnStatus(s string) (ReturnStatus, bool) {
	st, ok := returnStatusSynonyms[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

// ReturnURLs builds the success and cancel URLs for a pending reference
func ReturnURLs(publicURL, reference string) (successURL, cancelURL string) {
	base := strings.TrimRight(publicURL, "/") + "/api/v1/payments/return"
	ref := url.QueryEscape(reference)
	return base + "?status=success&ref=" + ref, base + "?status=cancel&ref=" + ref
}
