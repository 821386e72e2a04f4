package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/inventory/internal/config"
	"github.com/smallbiznis/inventory/internal/host/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) AddHost(ctx context.Context, rec domain.HostRecord) (domain.AddHostResult, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(domain.AddHostResult), args.Error(1)
}

func (m *mockService) List(ctx context.Context, req domain.ListHostsRequest) (domain.ListHostsResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.ListHostsResponse), args.Error(1)
}

func (m *mockService) GetByIDs(ctx context.Context, req domain.GetHostsRequest) (domain.ListHostsResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.ListHostsResponse), args.Error(1)
}

func newTestConsumer(svc domain.Service) *Consumer {
	return NewConsumer(ConsumerParams{
		Handler: NewHandler(HandlerParams{Service: svc, Log: zap.NewNop()}),
		Config:  config.Config{Queue: config.QueueConfig{IngressStream: "in", ConsumerGroup: "g"}},
		Ingest:  config.NewStaticIngestConfigHolder(config.DefaultIngestConfig()),
		Log:     zap.NewNop(),
	})
}

func message(payload string) redis.XMessage {
	return redis.XMessage{ID: "1-0", Values: map[string]interface{}{fieldPayload: payload}}
}

const validPayload = `{"operation":"add_host","platform_metadata":{"request_id":"r-1"},"data":{"account":"000501","fqdn":"web01.example.com"}}`

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(validPayload))
	require.NoError(t, err)
	assert.Equal(t, OperationAddHost, env.Operation)
	assert.Equal(t, "r-1", env.PlatformMetadata["request_id"])

	cases := map[string]error{
		`not json`:                              ErrInvalidEnvelope,
		`{"operation":"delete_host","data":{}}`: ErrUnknownOperation,
		`{"operation":"add_host"}`:              ErrInvalidEnvelope,
		`{"operation":"add_host","data":null}`:  ErrInvalidEnvelope,
		`{"operation":"add_host","data":[1,2]}`: ErrInvalidEnvelope,
		`{"operation":"add_host","data":"x"}`:   ErrInvalidEnvelope,
	}
	for raw, want := range cases {
		_, err := ParseEnvelope([]byte(raw))
		assert.ErrorIs(t, err, want, raw)
	}
}

func TestHandlerPassesRecordAndMetadata(t *testing.T) {
	svc := &mockService{}
	svc.On("AddHost", mock.Anything, mock.MatchedBy(func(rec domain.HostRecord) bool {
		return rec.Account == "000501" &&
			rec.FQDN == "web01.example.com" &&
			rec.PlatformMetadata["request_id"] == "r-1"
	})).Return(domain.AddHostResult{Host: domain.Host{ID: uuid.New()}, Action: domain.ActionCreate}, nil)

	env, err := ParseEnvelope([]byte(validPayload))
	require.NoError(t, err)

	action, err := NewHandler(HandlerParams{Service: svc, Log: zap.NewNop()}).Handle(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreate, action)
	svc.AssertExpectations(t)
}

func TestConsumerOutcomes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		svcErr  error
		want    outcome
		called  bool
	}{
		{name: "applied", payload: validPayload, want: outcomeAck, called: true},
		{name: "missing_payload", payload: "", want: outcomeDeadLetter},
		{name: "bad_envelope", payload: `{"operation":"nope","data":{}}`, want: outcomeDeadLetter},
		{name: "bad_record_type", payload: `{"operation":"add_host","data":{"account":12}}`, want: outcomeDeadLetter},
		{name: "validation_error", payload: validPayload, svcErr: domain.ErrNoCanonicalFacts, want: outcomeDeadLetter, called: true},
		{name: "field_error", payload: validPayload, svcErr: &domain.FieldError{Field: "insights_id", Reason: "uuid"}, want: outcomeDeadLetter, called: true},
		{name: "conflict_is_retried", payload: validPayload, svcErr: domain.ErrConflict, want: outcomeRetry, called: true},
		{name: "transport_error_is_retried", payload: validPayload, svcErr: errors.New("connection reset"), want: outcomeRetry, called: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{}
			svc.On("AddHost", mock.Anything, mock.Anything).
				Return(domain.AddHostResult{Host: domain.Host{ID: uuid.New()}, Action: domain.ActionCreate}, tc.svcErr)

			got, err := newTestConsumer(svc).apply(context.Background(), message(tc.payload))
			assert.Equal(t, tc.want, got)
			if tc.want == outcomeAck {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			if tc.called {
				svc.AssertNumberOfCalls(t, "AddHost", 1)
			} else {
				svc.AssertNotCalled(t, "AddHost", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestRunWithoutRedisFails(t *testing.T) {
	err := newTestConsumer(&mockService{}).Run(context.Background())
	assert.ErrorIs(t, err, ErrQueueDisabled)
}

func TestStringValue(t *testing.T) {
	values := map[string]interface{}{"a": "x", "b": []byte("y"), "c": 3}
	assert.Equal(t, "x", stringValue(values, "a"))
	assert.Equal(t, "y", stringValue(values, "b"))
	assert.Equal(t, "", stringValue(values, "c"))
	assert.Equal(t, "", stringValue(values, "missing"))
}
