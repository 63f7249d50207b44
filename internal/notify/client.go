// Package notify provides the webhook client that informs the achievement
// service about freshly awarded medals. Delivery is a best-effort side
// channel: failures are counted, parked on a Redis retry queue, and never
// allowed to veto the aggregate mutation already computed by the pipeline.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhythmloop/score-stats/internal/config"
	"github.com/rhythmloop/score-stats/internal/metrics"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

// Notification is the payload sent for one medal grant.
type Notification struct {
	UserID    uint  `json:"user_id"`
	MedalID   uint  `json:"medal_id"`
	BeatmapID *uint `json:"beatmap_id,omitempty"`
}

// Client delivers medal notifications to the achievement service.
type Client struct {
	webhookURL string
	enabled    bool
	retryKey   string
	redis      *redis.Client
	log        *logger.Logger
}

// NewClient creates a new notification client. The redis client may be nil,
// in which case undeliverable notifications are dropped after logging.
func NewClient(cfg *config.NotifierConfig, rdb *redis.Client, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		enabled:    cfg.Enabled,
		retryKey:   cfg.RetryQueueKey,
		redis:      rdb,
		log:        log,
	}
}

// Notify sends a single medal notification. On delivery failure the payload
// is parked on the retry queue and the error is returned for logging only.
func (c *Client) Notify(ctx context.Context, n Notification) error {
	if !c.enabled {
		c.log.Debug().Msg("Notifier is disabled, skipping medal notification")
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := c.post(ctx, payload); err != nil {
		metrics.RecordNotificationFailure()
		c.park(ctx, payload)
		return err
	}

	c.log.Debug().
		Uint("user_id", n.UserID).
		Uint("medal_id", n.MedalID).
		Msg("Sent medal notification")

	return nil
}

// RetryPending drains the retry queue, re-sending parked notifications in
// arrival order. Draining stops at the first payload that fails again, which
// is pushed back to the head of the queue. Returns the number delivered.
func (c *Client) RetryPending(ctx context.Context) (int, error) {
	if !c.enabled || c.redis == nil {
		return 0, nil
	}

	delivered := 0
	for {
		payload, err := c.redis.RPop(ctx, c.retryKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return delivered, nil
		}
		if err != nil {
			return delivered, fmt.Errorf("failed to pop retry queue: %w", err)
		}

		if err := c.post(ctx, payload); err != nil {
			// Put it back for the next drain pass.
			if pushErr := c.redis.RPush(ctx, c.retryKey, payload).Err(); pushErr != nil {
				c.log.Error().Err(pushErr).Msg("Failed to requeue notification")
			}
			return delivered, err
		}
		delivered++
	}
}

func (c *Client) post(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("achievement service returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) park(ctx context.Context, payload []byte) {
	if c.redis == nil {
		c.log.Warn().Msg("No retry queue configured, dropping failed notification")
		return
	}

	if err := c.redis.LPush(ctx, c.retryKey, payload).Err(); err != nil {
		c.log.Error().Err(err).Msg("Failed to park notification on retry queue")
	}
}
