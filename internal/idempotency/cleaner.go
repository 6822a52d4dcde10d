package idempotency

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 100

// Cleaner periodically sweeps deduplication keys that lost their expiry,
// which can happen when a Set succeeds during a Redis failover that drops
// the TTL. Keys with a sane TTL are left for Redis to expire on its own.
type Cleaner struct {
	client   *redis.Client
	log      *slog.Logger
	interval time.Duration
}

func NewCleaner(client *redis.Client, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		client:   client,
		log:      log,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) {
	var (
		cursor  uint64
		removed int
		err     error
	)

	for {
		var keys []string
		keys, cursor, err = c.client.Scan(ctx, cursor, "dedup:*", scanBatchSize).Result()
		if err != nil {
			c.log.Error("dedup sweep scan failed", slog.Any("error", err))
			return
		}

		for _, key := range keys {
			ttl, err := c.client.TTL(ctx, key).Result()
			if err != nil {
				c.log.Warn("failed to read key ttl", slog.String("key", key), slog.Any("error", err))
				continue
			}

			// -1 means the key has no expiry set.
			if ttl < 0 || ttl > 25*time.Hour {
				if err := c.client.Del(ctx, key).Err(); err != nil {
					c.log.Warn("failed to delete stranded dedup key", slog.String("key", key), slog.Any("error", err))
					continue
				}
				removed++
			}
		}

		if cursor == 0 {
			break
		}
	}

	if removed > 0 {
		c.log.Info("dedup sweep removed stranded keys", slog.Int("removed", removed))
	}
}
