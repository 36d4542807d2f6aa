package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

type fakeSender struct {
	routingKey string
	messageID  string
	body       []byte
	err        error
}

func (f *fakeSender) Publish(_ context.Context, routingKey, messageID string, body []byte) error {
	f.routingKey = routingKey
	f.messageID = messageID
	f.body = body
	return f.err
}

func TestPublisher_RoutesByEventType(t *testing.T) {
	t.Parallel()

	fs := &fakeSender{}
	p := &Publisher{conn: fs, log: zap.NewNop()}
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	err := p.Publish(context.Background(), domain.Event{
		ID:         "evt-1",
		Type:       domain.EventRequestAccepted,
		RideID:     42,
		Actor:      "12345678Z",
		Target:     "87654321X",
		OccurredAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, "ride.request.accepted", fs.routingKey)
	assert.Equal(t, "evt-1", fs.messageID)

	var got map[string]any
	require.NoError(t, json.Unmarshal(fs.body, &got))
	assert.Equal(t, float64(42), got["rideId"])
	assert.Equal(t, "87654321X", got["target"])
	assert.NotContains(t, got, "score")
}

func TestPublisher_WrapsSendError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	p := &Publisher{conn: &fakeSender{err: boom}, log: zap.NewNop()}
	err := p.Publish(context.Background(), domain.Event{ID: "e", Type: domain.EventRideCreated})
	assert.ErrorIs(t, err, boom)
}
