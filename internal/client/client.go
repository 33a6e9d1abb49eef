// Package client implements the multi-relay coordinators: subscription
// fan-out with dedup/EOSE aggregation and publish with OK correlation.
package client

import (
	"go.uber.org/zap"

	"github.com/zeroxbob/pinstr/internal/relay"
)

// Client fans queries and publishes out over a shared connection pool.
// Safe for concurrent use.
type Client struct {
	pool *relay.Pool
	log  *zap.Logger
}

// New constructs a Client over its connection pool.
func New(pool *relay.Pool, log *zap.Logger) *Client {
	return &Client{pool: pool, log: log}
}
