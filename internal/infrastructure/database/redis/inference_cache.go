package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/referta/referta/internal/infrastructure/monitoring/logging"
	"github.com/referta/referta/internal/intelligence/inference"
)

// CachedInferenceClient decorates an inference.Client with a Redis cache
// keyed by the prompt hash.  Identical prompts, typically re-submissions of
// the same document, skip the model entirely; concurrent identical prompts
// collapse into one in-flight generation via singleflight.
type CachedInferenceClient struct {
	next   inference.Client
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	group  singleflight.Group
	logger logging.Logger
}

// NewCachedInferenceClient wraps next.  prefix namespaces the cache keys and
// ttl bounds how long a generation stays valid.
func NewCachedInferenceClient(next inference.Client, rdb *redis.Client, prefix string, ttl time.Duration, log logging.Logger) *CachedInferenceClient {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if prefix == "" {
		prefix = "referta:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachedInferenceClient{
		next:   next,
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
		logger: log.Named("inference_cache"),
	}
}

// Generate serves the cached response when present, otherwise delegates and
// caches the result.  Cache failures degrade to a plain model call.
func (c *CachedInferenceClient) Generate(ctx context.Context, prompt string) (string, error) {
	key := c.key(prompt)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		c.logger.Debug("inference cache hit", logging.String("key", key))
		return cached, nil
	}
	if err != redis.Nil {
		c.logger.Warn("inference cache read failed", logging.Err(err))
	}

	out, err, _ := c.group.Do(key, func() (any, error) {
		response, genErr := c.next.Generate(ctx, prompt)
		if genErr != nil {
			return "", genErr
		}
		if setErr := c.rdb.Set(ctx, key, response, c.ttl).Err(); setErr != nil {
			c.logger.Warn("inference cache write failed", logging.Err(setErr))
		}
		return response, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Health delegates to the wrapped client.
func (c *CachedInferenceClient) Health(ctx context.Context) error {
	return c.next.Health(ctx)
}

func (c *CachedInferenceClient) key(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return c.prefix + "inference:" + hex.EncodeToString(sum[:])
}
