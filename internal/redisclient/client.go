package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-checkout/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_settlement.lua
var claimSettlementScript string

// Client stores pending redirect settlements in Redis
type Client struct {
	rdb         *redis.Client
	ttl         time.Duration
	claimScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return newClient(rdb, ttl), nil
}

func newClient(rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{
		rdb:         rdb,
		ttl:         ttl,
		claimScript: redis.NewScript(claimSettlementScript),
	}
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func pendingKey(reference string) string {
	return fmt.Sprintf("pending:%s", reference)
}

func guardKey(reference string) string {
	return fmt.Sprintf("pending:%s:guard", reference)
}

// SavePending stores a new pending settlement. A reference can only be saved once.
func (c *Client) SavePending(ctx context.Context, p *models.PendingSettlement) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pending settlement: %w", err)
	}

	ok, err := c.rdb.SetNX(ctx, pendingKey(p.Reference), data, c.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save pending settlement: %w", err)
	}
	if !ok {
		return fmt.Errorf("pending settlement %s: %w", p.Reference, models.ErrAlreadyExists)
	}
	return nil
}

// LoadPending retrieves a pending settlement by reference
func (c *Client) LoadPending(ctx context.Context, reference string) (*models.PendingSettlement, error) {
	data, err := c.rdb.Get(ctx, pendingKey(reference)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending settlement: %w", err)
	}

	var p models.PendingSettlement
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending settlement: %w", err)
	}
	return &p, nil
}

// ClaimGuard atomically claims the finalize guard for a reference.
// Returns false if another finalize already holds it.
func (c *Client) ClaimGuard(ctx context.Context, reference string) (bool, error) {
	keys := []string{pendingKey(reference), guardKey(reference)}

	result, err := c.claimScript.Run(ctx, c.rdb, keys, c.ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("claim settlement script failed: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, models.ErrNotFound
	}
}

// DeletePending removes the pending settlement and its guard
func (c *Client) DeletePending(ctx context.Context, reference string) error {
	if err := c.rdb.Del(ctx, pendingKey(reference), guardKey(reference)).Err(); err != nil {
		return fmt.Errorf("failed to delete pending settlement: %w", err)
	}
	return nil
}
