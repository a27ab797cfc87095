package database

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *MockOutboxRepository) Stats(ctx context.Context) (OutboxStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(OutboxStats), args.Error(1)
}

func extractedEvent(externalID string) *OutboxEvent {
	return &OutboxEvent{
		ID:            uuid.New(),
		AggregateType: "product",
		AggregateID:   externalID,
		EventType:     "PRODUCT_EXTRACTED",
		Payload:       json.RawMessage(`{"external_id":"` + externalID + `","title":"Electric Kettle"}`),
		TargetStream:  DefaultTargetStream,
		CreatedAt:     time.Now(),
	}
}

func newTestRelay(redis RedisClient, outbox OutboxRepo) *Relay {
	return NewRelay(outbox, redis, slog.Default(), RelayConfig{BatchSize: 10, PollInterval: 50 * time.Millisecond})
}

func TestRelay_ProcessEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes and marks every event", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		events := []*OutboxEvent{extractedEvent("1005001"), extractedEvent("B000000001")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		for _, event := range events {
			event := event
			mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
				return args.Stream == DefaultTargetStream &&
					args.Values.(map[string]any)["event_type"] == "PRODUCT_EXTRACTED" &&
					args.Values.(map[string]any)["aggregate_id"] == event.AggregateID
			})).Return(nil)
			mockOutbox.On("MarkProcessed", ctx, event.ID).Return(nil)
		}

		published, err := relay.processEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, published)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("redis failure marks the event failed", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		event := extractedEvent("1005001")
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis connection failed"))
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.MatchedBy(func(err error) bool {
			return err.Error() == "failed to publish to redis: redis connection failed"
		})).Return(nil)

		published, err := relay.processEvents(ctx)
		assert.NoError(t, err)
		assert.Zero(t, published)

		mockOutbox.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("empty batch does not touch redis", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{}, nil)

		published, err := relay.processEvents(ctx)
		require.NoError(t, err)
		assert.Zero(t, published)

		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
	})

	t.Run("repository error is returned", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		mockOutbox.On("GetPending", ctx, 10).Return(nil, errors.New("connection reset"))

		_, err := relay.processEvents(ctx)
		assert.ErrorContains(t, err, "failed to get pending events")
	})

	t.Run("one failing event does not stop the batch", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		events := []*OutboxEvent{extractedEvent("1005001"), extractedEvent("1005002")}
		mockOutbox.On("GetPending", ctx, 10).Return(events, nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]any)["aggregate_id"] == "1005001"
		})).Return(errors.New("redis error"))
		mockOutbox.On("MarkFailed", ctx, events[0].ID, mock.Anything).Return(nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			return args.Values.(map[string]any)["aggregate_id"] == "1005002"
		})).Return(nil)
		mockOutbox.On("MarkProcessed", ctx, events[1].ID).Return(nil)

		published, err := relay.processEvents(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, published)

		mockRedis.AssertExpectations(t)
		mockOutbox.AssertExpectations(t)
	})

	t.Run("invalid payload is marked failed without publishing", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		event := extractedEvent("1005001")
		event.Payload = json.RawMessage(`{broken`)
		mockOutbox.On("GetPending", ctx, 10).Return([]*OutboxEvent{event}, nil)
		mockOutbox.On("MarkFailed", ctx, event.ID, mock.Anything).Return(nil)

		published, err := relay.processEvents(ctx)
		require.NoError(t, err)
		assert.Zero(t, published)

		mockRedis.AssertNotCalled(t, "XAdd", mock.Anything, mock.Anything)
		mockOutbox.AssertExpectations(t)
	})
}

func TestRelay_StreamEntryFormat(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	mockOutbox := new(MockOutboxRepository)

	relay := NewRelay(mockOutbox, mockRedis, slog.Default(), RelayConfig{StreamMaxLen: 10000})
	event := extractedEvent("1005001")

	var captured *redis.XAddArgs
	mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
		captured = args
		return true
	})).Return(nil)

	require.NoError(t, relay.publish(ctx, event))
	require.NotNil(t, captured)

	assert.Equal(t, int64(10000), captured.MaxLen)
	assert.True(t, captured.Approx)
	assert.Equal(t, event.ID.String(), captured.Values.(map[string]any)["original_id"])

	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(captured.Values.(map[string]any)["data"].(string)), &data))

	assert.Equal(t, event.ID.String(), data["id"])
	assert.Equal(t, "PRODUCT_EXTRACTED", data["type"])
	assert.Equal(t, "product", data["aggregate_type"])
	assert.Equal(t, "1005001", data["aggregate_id"])
	assert.Equal(t, map[string]any{"external_id": "1005001", "title": "Electric Kettle"}, data["payload"])

	metadata, ok := data["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "product-extractor", metadata["source"])
	assert.Equal(t, DefaultTargetStream, metadata["target_stream"])
}

func TestRelay_Stats(t *testing.T) {
	ctx := context.Background()
	mockOutbox := new(MockOutboxRepository)
	mockOutbox.On("Stats", ctx).Return(OutboxStats{Pending: 3, DeadLetter: 1}, nil)

	relay := newTestRelay(new(MockRedisClient), mockOutbox)

	stats, err := relay.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutboxStats{Pending: 3, DeadLetter: 1}, stats)
}

func TestRelay_Start(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockOutbox := new(MockOutboxRepository)
		relay := newTestRelay(mockRedis, mockOutbox)

		mockOutbox.On("GetPending", mock.Anything, 10).Return([]*OutboxEvent{}, nil).Maybe()

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error)
		go func() {
			done <- relay.Start(ctx)
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(time.Second):
			t.Fatal("relay did not stop on context cancellation")
		}
	})
}
