package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Nav1203/plan-parser/internal/cache"
)

// CachedOracle wraps an Oracle with a response cache keyed by the exact
// classification request, so re-ingesting an identical sheet layout does
// not repeat the oracle call. Cache failures are soft: a broken cache
// degrades to a direct oracle call.
type CachedOracle struct {
	oracle Oracle
	cache  cache.Client
	ttl    time.Duration
	scope  string
}

// NewCachedOracle creates a caching decorator around oracle. The scope
// (typically the model name) separates entries produced by different
// oracle configurations.
func NewCachedOracle(oracle Oracle, c cache.Client, ttl time.Duration, scope string) *CachedOracle {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedOracle{
		oracle: oracle,
		cache:  c,
		ttl:    ttl,
		scope:  scope,
	}
}

// ClassifyColumns serves the mapping from cache when the request
// fingerprint matches a previous call, otherwise delegates to the wrapped
// oracle and stores the validated result.
func (c *CachedOracle) ClassifyColumns(ctx context.Context, samples []ColumnSample) (*Mapping, error) {
	key, keyErr := c.requestKey(samples)
	if keyErr == nil {
		if data, err := c.cache.Get(ctx, key); err == nil {
			var m Mapping
			if err := json.Unmarshal(data, &m); err == nil {
				return &m, nil
			}
		}
	}

	mapping, err := c.oracle.ClassifyColumns(ctx, samples)
	if err != nil {
		return nil, err
	}

	if keyErr == nil {
		if data, err := json.Marshal(mapping); err == nil {
			_ = c.cache.Set(ctx, key, data, c.ttl)
		}
	}

	return mapping, nil
}

// requestKey fingerprints the classification request.
func (c *CachedOracle) requestKey(samples []ColumnSample) (string, error) {
	payload, err := json.Marshal(samples)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return "classify:" + c.scope + ":" + hex.EncodeToString(sum[:]), nil
}

var _ Oracle = (*CachedOracle)(nil)
