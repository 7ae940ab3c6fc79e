package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nav1203/plan-parser/internal/cache"
)

// brokenCache fails every operation.
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("cache unavailable")
}

func (brokenCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("cache unavailable")
}

func (brokenCache) Delete(ctx context.Context, key string) error { return errors.New("cache unavailable") }
func (brokenCache) Close() error                                 { return nil }

func identifierMapping() *Mapping {
	return &Mapping{Columns: []ColumnMapping{
		{ColumnName: "Order No.", Role: RoleIdentifier, Field: "order_number", Confidence: 0.95},
		{ColumnName: "Cutting Date", Role: RoleStageDate, Stage: "cutting", DateType: DatePlanned, Confidence: 0.9},
	}}
}

func TestCachedOracle_ServesRepeatsFromCache(t *testing.T) {
	mock := &MockOracle{Mapping: identifierMapping()}
	cached := NewCachedOracle(mock, cache.NewMemoryClient(100), time.Hour, "openai/gpt-4.1")
	ctx := context.Background()

	first, err := cached.ClassifyColumns(ctx, planSamples())
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls)

	second, err := cached.ClassifyColumns(ctx, planSamples())
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls, "identical request should be served from cache")
	assert.Equal(t, first, second)
}

func TestCachedOracle_DifferentSamplesMiss(t *testing.T) {
	mock := &MockOracle{}
	cached := NewCachedOracle(mock, cache.NewMemoryClient(100), time.Hour, "openai/gpt-4.1")
	ctx := context.Background()

	_, err := cached.ClassifyColumns(ctx, []ColumnSample{{ColumnName: "A", SampleValues: []string{"1"}}})
	require.NoError(t, err)
	_, err = cached.ClassifyColumns(ctx, []ColumnSample{{ColumnName: "B", SampleValues: []string{"2"}}})
	require.NoError(t, err)

	assert.Equal(t, 2, mock.Calls)
}

func TestCachedOracle_ScopeSeparatesModels(t *testing.T) {
	shared := cache.NewMemoryClient(100)
	ctx := context.Background()

	mockA := &MockOracle{}
	cachedA := NewCachedOracle(mockA, shared, time.Hour, "model-a")
	_, err := cachedA.ClassifyColumns(ctx, planSamples())
	require.NoError(t, err)

	mockB := &MockOracle{}
	cachedB := NewCachedOracle(mockB, shared, time.Hour, "model-b")
	_, err = cachedB.ClassifyColumns(ctx, planSamples())
	require.NoError(t, err)

	assert.Equal(t, 1, mockA.Calls)
	assert.Equal(t, 1, mockB.Calls, "a different scope must not share entries")
}

func TestCachedOracle_ErrorsAreNotCached(t *testing.T) {
	mock := &MockOracle{Err: errors.New("oracle down")}
	cached := NewCachedOracle(mock, cache.NewMemoryClient(100), time.Hour, "m")
	ctx := context.Background()

	_, err := cached.ClassifyColumns(ctx, planSamples())
	require.Error(t, err)

	mock.Err = nil
	mapping, err := cached.ClassifyColumns(ctx, planSamples())
	require.NoError(t, err)
	assert.Len(t, mapping.Columns, 2)
	assert.Equal(t, 2, mock.Calls)
}

func TestCachedOracle_BrokenCacheDegradesToDirect(t *testing.T) {
	mock := &MockOracle{}
	cached := NewCachedOracle(mock, brokenCache{}, time.Hour, "m")
	ctx := context.Background()

	_, err := cached.ClassifyColumns(ctx, planSamples())
	require.NoError(t, err)
	_, err = cached.ClassifyColumns(ctx, planSamples())
	require.NoError(t, err)

	assert.Equal(t, 2, mock.Calls, "a dead cache falls through to the oracle")
}
