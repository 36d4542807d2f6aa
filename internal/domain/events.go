package domain

import "time"

// EventType names a booking event. Values double as AMQP routing keys.
type EventType string

const (
	EventRideCreated     EventType = "ride.created"
	EventSeatRequested   EventType = "ride.request.created"
	EventRequestAccepted EventType = "ride.request.accepted"
	EventRequestDenied   EventType = "ride.request.denied"
	EventRequestConsumed EventType = "ride.request.consumed"
	EventUserRated       EventType = "user.rated"
)

// Event is emitted after a booking transition has been persisted.
// Target is the user the transition happened to; it is empty for ride creation.
type Event struct {
	ID         string
	Type       EventType
	RideID     RideID
	Actor      UserKey
	Target     UserKey
	Score      int
	OccurredAt time.Time
}
