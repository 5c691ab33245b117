package service

import (
	"context"
	"sync"
	"time"

	"pos-checkout/internal/catalog"
	"pos-checkout/internal/models"
	"pos-checkout/internal/payment"

	"github.com/shopspring/decimal"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]models.Product
	payloads []models.CreateProductPayload
	bulk     *catalog.BulkCreateResult
	err      error
}

func newFakeCatalog(products ...models.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[string]models.Product)}
	for _, p := range products {
		c.products[p.SKU] = p
	}
	return c
}

func (c *fakeCatalog) LookupBySKU(ctx context.Context, sku string) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[sku]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (c *fakeCatalog) ListProducts(ctx context.Context) ([]models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	out := make([]models.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	return out, nil
}

func (c *fakeCatalog) BulkCreate(ctx context.Context, payloads []models.CreateProductPayload) (*catalog.BulkCreateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.payloads = append(c.payloads, payloads...)
	if c.bulk != nil {
		return c.bulk, nil
	}
	return &catalog.BulkCreateResult{}, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	requests []*models.SettlementRequest
	err      error
	delay    time.Duration
}

func (l *fakeLedger) Settle(ctx context.Context, req *models.SettlementRequest) (*models.Transaction, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.requests = append(l.requests, req)
	if l.err != nil {
		return nil, l.err
	}

	total := decimal.Zero
	if req.PaymentType != models.PaymentTypeCash {
		total = req.MoneyReceived
	}
	return &models.Transaction{
		TransactionNumber: "TXN-0001",
		TransactionID:     int64(len(l.requests)),
		Total:             total,
	}, nil
}

func (l *fakeLedger) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

func (l *fakeLedger) fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

type fakeGateway struct {
	requests []*payment.InitiateRequest
	err      error
	onCall   func(req *payment.InitiateRequest)
}

func (g *fakeGateway) Initiate(ctx context.Context, req *payment.InitiateRequest) (*payment.InitiateResponse, error) {
	g.requests = append(g.requests, req)
	if g.onCall != nil {
		g.onCall(req)
	}
	if g.err != nil {
		return nil, g.err
	}
	return &payment.InitiateResponse{CheckoutURL: "https://pay.example/c/" + req.ReferenceNumber}, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	settled   []*models.TransactionSettledEvent
	cancelled []*models.PaymentCancelledEvent
	imported  []*models.InventoryImportedEvent
	lowStock  []*models.LowStockDetectedEvent
}

func (p *fakePublisher) PublishTransactionSettled(ctx context.Context, e *models.TransactionSettledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settled = append(p.settled, e)
	return nil
}

func (p *fakePublisher) PublishPaymentRedirected(ctx context.Context, e *models.PaymentRedirectedEvent) error {
	return nil
}

func (p *fakePublisher) PublishPaymentCancelled(ctx context.Context, e *models.PaymentCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *fakePublisher) PublishInventoryImported(ctx context.Context, e *models.InventoryImportedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.imported = append(p.imported, e)
	return nil
}

func (p *fakePublisher) PublishLowStockDetected(ctx context.Context, e *models.LowStockDetectedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lowStock = append(p.lowStock, e)
	return nil
}

var (
	pen = models.Product{
		ID: 1, SKU: "PEN", Name: "Pen", ProductType: models.ProductTypeCount, BaseUnit: "piece",
		QuantityPerUnit: 1, QuantityInStock: 100, CostPrice: decimal.NewFromInt(100),
		SellingPrice: decimal.NewFromInt(150), LowStockLevel: 5,
	}
	rice = models.Product{
		ID: 2, SKU: "RICE", Name: "Rice", ProductType: models.ProductTypeWeight, BaseUnit: "g",
		QuantityPerUnit: 500, QuantityInStock: 2000, CostPrice: decimal.NewFromInt(40),
		SellingPrice: decimal.NewFromInt(50), LowStockLevel: 10,
	}
)
