package httpdto

// SendRequestRequest is used for POST /v1/requests
type SendRequestRequest struct {
	ResponderID string `json:"responder_id" binding:"required"`
}

// RespondRequest is used for POST /v1/requests/:id/respond
type RespondRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// CancelRequestResponse is returned by DELETE /v1/requests
type CancelRequestResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ListReceivedQuery holds query parameters for GET /v1/requests/received
type ListReceivedQuery struct {
	Status string `form:"status"`
}
