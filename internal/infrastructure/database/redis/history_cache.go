package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/referta/referta/internal/domain/report"
	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
)

// HistoryCache caches full per-patient report histories as JSON blobs.  It
// is invalidated whenever a new report is persisted for the patient, so a
// short TTL is enough to bound staleness from out-of-band writes.
type HistoryCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger logging.Logger
}

// NewHistoryCache constructs a HistoryCache.
func NewHistoryCache(rdb *redis.Client, prefix string, ttl time.Duration, log logging.Logger) *HistoryCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if prefix == "" {
		prefix = "referta:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HistoryCache{rdb: rdb, prefix: prefix, ttl: ttl, logger: log.Named("history_cache")}
}

// Get returns the cached history and whether it was present.  Read and
// decode failures count as misses.
func (c *HistoryCache) Get(ctx context.Context, fiscalCode string) ([]*report.StoredReport, bool) {
	payload, err := c.rdb.Get(ctx, c.key(fiscalCode)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("history cache read failed", logging.Err(err))
		}
		return nil, false
	}

	var history []*report.StoredReport
	if err := json.Unmarshal(payload, &history); err != nil {
		c.logger.Warn("history cache decode failed", logging.Err(err))
		return nil, false
	}
	return history, true
}

// Set stores the history under the patient key.
func (c *HistoryCache) Set(ctx context.Context, fiscalCode string, reports []*report.StoredReport) error {
	payload, err := json.Marshal(reports)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(fiscalCode), payload, c.ttl).Err()
}

// Invalidate drops the cached history for one patient.
func (c *HistoryCache) Invalidate(ctx context.Context, fiscalCode string) error {
	return c.rdb.Del(ctx, c.key(fiscalCode)).Err()
}

func (c *HistoryCache) key(fiscalCode string) string {
	return c.prefix + "history:" + fiscalCode
}
