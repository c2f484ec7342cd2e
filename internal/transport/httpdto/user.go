package httpdto

// UpdatePushTokenRequest is used for PUT /v1/users/me/push-token. An empty
// token clears the registration.
type UpdatePushTokenRequest struct {
	Token string `json:"token"`
}

// PresenceResponse is returned by GET /v1/users/:id/presence
type PresenceResponse struct {
	UserID   string `json:"user_id"`
	IsOnline bool   `json:"is_online"`
	LastSeen string `json:"last_seen,omitempty"`
}
