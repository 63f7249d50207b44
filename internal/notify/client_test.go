package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmloop/score-stats/internal/config"
	"github.com/rhythmloop/score-stats/pkg/logger"
)

const testRetryKey = "medals:notify:retry"

func newTestClient(t *testing.T, webhookURL string, enabled bool) (*Client, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.NotifierConfig{
		WebhookURL:    webhookURL,
		Enabled:       enabled,
		RetryQueueKey: testRetryKey,
	}
	return NewClient(cfg, rdb, logger.Nop()), rdb
}

func TestNotify_DeliversPayload(t *testing.T) {
	var received Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, rdb := newTestClient(t, server.URL, true)

	beatmapID := uint(42)
	err := client.Notify(context.Background(), Notification{UserID: 5, MedalID: 3, BeatmapID: &beatmapID})
	require.NoError(t, err)

	assert.Equal(t, uint(5), received.UserID)
	assert.Equal(t, uint(3), received.MedalID)
	require.NotNil(t, received.BeatmapID)
	assert.Equal(t, uint(42), *received.BeatmapID)

	// Nothing parked on success.
	length, err := rdb.LLen(context.Background(), testRetryKey).Result()
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestNotify_DisabledClientIsANoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("disabled client must not call the webhook")
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL, false)

	err := client.Notify(context.Background(), Notification{UserID: 1, MedalID: 1})
	require.NoError(t, err)
}

func TestNotify_FailureParksPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, rdb := newTestClient(t, server.URL, true)

	err := client.Notify(context.Background(), Notification{UserID: 5, MedalID: 3})
	require.Error(t, err)

	payloads, err := rdb.LRange(context.Background(), testRetryKey, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	var parked Notification
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &parked))
	assert.Equal(t, uint(5), parked.UserID)
	assert.Equal(t, uint(3), parked.MedalID)
}

func TestRetryPending_DrainsQueueInOrder(t *testing.T) {
	var deliveries []Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var n Notification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&n))
		deliveries = append(deliveries, n)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, rdb := newTestClient(t, server.URL, true)

	// Park two payloads the way Notify does, oldest at the tail.
	for _, n := range []Notification{{UserID: 1, MedalID: 1}, {UserID: 2, MedalID: 2}} {
		payload, err := json.Marshal(n)
		require.NoError(t, err)
		require.NoError(t, rdb.LPush(context.Background(), testRetryKey, payload).Err())
	}

	delivered, err := client.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	require.Len(t, deliveries, 2)
	assert.Equal(t, uint(1), deliveries[0].UserID)
	assert.Equal(t, uint(2), deliveries[1].UserID)

	length, err := rdb.LLen(context.Background(), testRetryKey).Result()
	require.NoError(t, err)
	assert.Zero(t, length)
}

func TestRetryPending_StopsAtFirstFailureAndRequeues(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, rdb := newTestClient(t, server.URL, true)

	for _, n := range []Notification{{UserID: 1, MedalID: 1}, {UserID: 2, MedalID: 2}} {
		payload, err := json.Marshal(n)
		require.NoError(t, err)
		require.NoError(t, rdb.LPush(context.Background(), testRetryKey, payload).Err())
	}

	delivered, err := client.RetryPending(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, delivered)

	// The failed payload went back on the queue.
	length, err := rdb.LLen(context.Background(), testRetryKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}
