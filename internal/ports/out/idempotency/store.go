package idempotency

import (
	"context"
	"time"

	"github.com/Overland-East-Bay/carpool-api/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint scopes a key: the same key may be reused by another user or on another route.
// Route is represented as HTTP method + path template (e.g. "POST /rides").
type Fingerprint struct {
	Key    Key
	User   domain.UserKey
	Method string
	Route  string
}

// Record is the stored response we can replay for a duplicate request.
// BodyHash lets the caller tell a retry from a reused key with a different payload.
type Record struct {
	BodyHash    string
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records for replaying safe responses on retries.
// Records older than the store's retention are reported as missing.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
}
