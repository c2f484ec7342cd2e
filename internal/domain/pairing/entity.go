package pairing

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusPending, StatusAccepted, StatusRejected, StatusCancelled, StatusCompleted:
		return s, true
	}
	return "", false
}

// IsActive reports whether a request in this status blocks a new request
// between the same pair.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCancelled || s == StatusCompleted
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusAccepted || to == StatusRejected || to == StatusCancelled
	case StatusAccepted:
		return to == StatusCompleted
	}
	return false
}

// Request represents the pairing_requests table.
//
// ActivePairKey holds the canonical pair key while the request is active and
// NULL otherwise. The unique index on it is what makes "one active request per
// unordered pair" hold under concurrent inserts.
type Request struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RequesterID   string    `gorm:"size:255;not null;index" json:"requester_id"`
	ResponderID   string    `gorm:"size:255;not null;index;check:chk_pairing_requests_distinct,requester_id <> responder_id" json:"responder_id"`
	Status        Status    `gorm:"size:16;not null;default:pending;index" json:"status"`
	ActivePairKey *string   `gorm:"size:520;uniqueIndex:ux_pairing_requests_active_pair" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Request) TableName() string {
	return "pairing_requests"
}

// PairKey canonicalizes an unordered pair of user ids. The first id is
// length-prefixed since ids are opaque and may contain the separator.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + ":" + a + "|" + b
}

func (r Request) Involves(userID string) bool {
	return r.RequesterID == userID || r.ResponderID == userID
}
