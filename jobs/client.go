package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Client enqueues background tasks. It implements pos.TaskEnqueuer.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an enqueueing client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueSalePostProcess queues the post-finalization work for a sale.
func (c *Client) EnqueueSalePostProcess(ctx context.Context, saleID int64) error {
	task, err := NewSalePostProcessTask(saleID)
	if err != nil {
		return fmt.Errorf("jobs: build task: %w", err)
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("jobs: enqueue: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.client.Close()
}
