// Package redis provides Redis persistence for workflows, one JSON value per workflow.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/certflow/pkg/persistence"
	redis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "certflow"

// Persistence implements the persistence layer on Redis.
type Persistence struct {
	client       redis.UniversalClient
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
}

// NewPersistence connects to the Redis server addressed by a redis:// URL.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.InfoContext(ctx, "Connected to Redis", "addr", options.Addr, "db", options.DB)

	return NewPersistenceFromClient(client, logger), nil
}

// NewPersistenceFromClient wraps an existing client.
func NewPersistenceFromClient(client redis.UniversalClient, logger *slog.Logger) *Persistence {
	return &Persistence{
		client:       client,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(client, logger, defaultKeyPrefix),
	}
}

// Close closes the client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

// HealthCheck pings the server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// WorkflowRepository returns the workflow repository.
func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}
