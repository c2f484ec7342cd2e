package httpdto

// ListNotificationsQuery holds query parameters for GET /v1/notifications
type ListNotificationsQuery struct {
	UnreadOnly bool `form:"unread_only"`
	Limit      int  `form:"limit"`
}
