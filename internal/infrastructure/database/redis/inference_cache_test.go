package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"

	"github.com/referta/referta/pkg/errors"
)

type fakeInferenceClient struct {
	response string
	err      error
	calls    int
}

func (f *fakeInferenceClient) Generate(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeInferenceClient) Health(_ context.Context) error { return nil }

func TestCachedInferenceClient_HitSkipsModel(t *testing.T) {
	db, mock := redismock.NewClientMock()
	next := &fakeInferenceClient{response: "fresh"}
	cache := NewCachedInferenceClient(next, db, "test:", time.Hour, nil)

	mock.ExpectGet(cache.key("prompt")).SetVal("cached")

	got, err := cache.Generate(context.Background(), "prompt")
	assert.NoError(t, err)
	assert.Equal(t, "cached", got)
	assert.Equal(t, 0, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedInferenceClient_MissDelegatesAndFills(t *testing.T) {
	db, mock := redismock.NewClientMock()
	next := &fakeInferenceClient{response: `{"status": "invariata"}`}
	cache := NewCachedInferenceClient(next, db, "test:", time.Hour, nil)

	key := cache.key("prompt")
	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, `{"status": "invariata"}`, time.Hour).SetVal("OK")

	got, err := cache.Generate(context.Background(), "prompt")
	assert.NoError(t, err)
	assert.Equal(t, `{"status": "invariata"}`, got)
	assert.Equal(t, 1, next.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedInferenceClient_ModelErrorIsNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	next := &fakeInferenceClient{err: errors.New(errors.ErrCodeAIUnavailable, "backend spento")}
	cache := NewCachedInferenceClient(next, db, "test:", time.Hour, nil)

	mock.ExpectGet(cache.key("prompt")).RedisNil()

	_, err := cache.Generate(context.Background(), "prompt")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAIUnavailable))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedInferenceClient_DistinctPromptsDistinctKeys(t *testing.T) {
	cache := NewCachedInferenceClient(&fakeInferenceClient{}, nil, "test:", time.Hour, nil)
	assert.NotEqual(t, cache.key("uno"), cache.key("due"))
}
