// internal/service/webhook/dedup.go
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper answers whether a webhook delivery has been seen before. Gateways
// redeliver events; processing must happen at most once per event id.
// Forget releases an id whose processing failed: gateway redelivery is the
// only retry path, so a consumed id must not outlive a failed attempt.
type Deduper interface {
	FirstDelivery(ctx context.Context, gateway, eventID string) bool
	Forget(ctx context.Context, gateway, eventID string)
}

const dedupTTL = 24 * time.Hour

// RedisDeduper marks event ids with SET NX so concurrent deliveries race on
// a single key. Redis being down fails open: the terminal-state guards in
// the reconciler still keep replays harmless.
type RedisDeduper struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisDeduper(client *redis.Client, logger *zap.Logger) *RedisDeduper {
	return &RedisDeduper{client: client, logger: logger}
}

func dedupKey(gateway, eventID string) string {
	return fmt.Sprintf("webhook:event:%s:%s", gateway, eventID)
}

func (d *RedisDeduper) FirstDelivery(ctx context.Context, gateway, eventID string) bool {
	if d.client == nil || eventID == "" {
		return true
	}

	key := dedupKey(gateway, eventID)
	ok, err := d.client.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		d.logger.Warn("webhook dedup check failed, processing anyway",
			zap.String("key", key), zap.Error(err))
		return true
	}
	if !ok {
		d.logger.Info("duplicate webhook delivery skipped",
			zap.String("gateway", gateway), zap.String("event_id", eventID))
	}
	return ok
}

func (d *RedisDeduper) Forget(ctx context.Context, gateway, eventID string) {
	if d.client == nil || eventID == "" {
		return
	}

	key := dedupKey(gateway, eventID)
	if err := d.client.Del(ctx, key).Err(); err != nil {
		d.logger.Warn("failed to release webhook dedup key",
			zap.String("key", key), zap.Error(err))
	}
}
