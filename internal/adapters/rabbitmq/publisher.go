package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// sender is the part of Connection the publisher needs.
type sender interface {
	Publish(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Publisher implements events.Publisher on a topic exchange. The event type is the routing key.
type Publisher struct {
	conn sender
	log  *zap.Logger
}

func NewPublisher(conn *Connection, log *zap.Logger) *Publisher {
	return &Publisher{conn: conn, log: log}
}

type message struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	RideID     int64     `json:"rideId"`
	Actor      string    `json:"actor"`
	Target     string    `json:"target,omitempty"`
	Score      int       `json:"score,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func encode(e domain.Event) ([]byte, error) {
	return json.Marshal(message{
		ID:         e.ID,
		Type:       string(e.Type),
		RideID:     int64(e.RideID),
		Actor:      string(e.Actor),
		Target:     string(e.Target),
		Score:      e.Score,
		OccurredAt: e.OccurredAt.UTC(),
	})
}

func (p *Publisher) Publish(ctx context.Context, e domain.Event) error {
	body, err := encode(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(ctx, string(e.Type), e.ID, body); err != nil {
		return fmt.Errorf("publish to rabbitmq: %w", err)
	}
	p.log.Debug("event published",
		zap.String("event_id", e.ID),
		zap.String("routing_key", string(e.Type)),
	)
	return nil
}
