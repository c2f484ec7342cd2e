package identity

import (
	"strings"
	"time"
)

// Role is the closed set of participant roles. It is parsed once at the
// identity boundary and never re-derived from raw strings downstream.
type Role string

const (
	RoleRequester Role = "requester"
	RoleResponder Role = "responder"
)

// ParseRole maps a stored role to a Role. The identity provider's legacy
// names ("patient", "doctor") are accepted as aliases.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleRequester), "patient":
		return RoleRequester, true
	case string(RoleResponder), "doctor":
		return RoleResponder, true
	default:
		return "", false
	}
}

func (r Role) Complement() Role {
	if r == RoleRequester {
		return RoleResponder
	}
	return RoleRequester
}

// User mirrors the identity provider's user record locally.
type User struct {
	ID        string  `gorm:"primaryKey;size:255"`
	Role      string  `gorm:"size:32;not null"`
	FirstName string  `gorm:"size:255"`
	LastName  string  `gorm:"size:255"`
	PushToken *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (User) TableName() string {
	return "users"
}

// Identity is the resolved view of a user handed to the rest of the system.
type Identity struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	PushToken   string `json:"-"`
}

func (i Identity) HasPushToken() bool {
	return i.PushToken != ""
}

func FromUser(u User) (Identity, bool) {
	role, ok := ParseRole(u.Role)
	if !ok {
		return Identity{}, false
	}
	id := Identity{
		UserID:      u.ID,
		Role:        role,
		DisplayName: strings.TrimSpace(u.FirstName + " " + u.LastName),
	}
	if u.PushToken != nil {
		id.PushToken = strings.TrimSpace(*u.PushToken)
	}
	return id, true
}
