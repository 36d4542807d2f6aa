package events

import (
	"context"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Publisher delivers booking events to interested parties (notifications, analytics).
// Publishing happens after the transition is persisted; failures are reported but never undo it.
type Publisher interface {
	Publish(ctx context.Context, e domain.Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }
