package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - Events are never updated or deleted; the only mutation is the reviewed
//   marker on suspicious entries.
// - Details never contain raw request input. Callers record field names and
//   reason codes, not the offending values.
// - Identical events always serialize identically (details are a flat string
//   map; JSON encoding orders keys), so persisted representations are
//   deterministic and assertable in tests.
type Event struct {
	ID string `json:"id" db:"id"`

	// Actor is the authenticated username, or "anonymous" before login.
	Actor string `json:"actor" db:"actor"`

	Category Category `json:"category" db:"category"`

	// Details is a small structured payload (operation, resource, reason).
	Details map[string]string `json:"details,omitempty" db:"payload"`

	// Suspicious marks entries that warrant admin review (failed logins,
	// injection-shaped input, repeated denials).
	Suspicious bool `json:"suspicious" db:"suspicious"`

	// Reviewed is set once an admin has seen a suspicious entry.
	Reviewed bool `json:"reviewed" db:"reviewed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Category string

const (
	CategoryValidationFailure Category = "validation_failure"
	CategoryAccessDenied      Category = "access_denied"
	CategoryAuthzGranted      Category = "authorization_granted"
	CategoryQueryExecuted     Category = "query_executed"
	CategoryAuth              Category = "auth"
	CategoryError             Category = "error"
)

// AnonymousActor is recorded when no principal has been resolved yet.
const AnonymousActor = "anonymous"
