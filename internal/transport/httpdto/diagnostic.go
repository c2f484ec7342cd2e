package httpdto

// StartDiagnosticRequest is used for POST /v1/diagnostics
type StartDiagnosticRequest struct {
	ImagePath string `json:"image_path" binding:"required"`
}

// AppendTurnRequest is used for POST /v1/diagnostics/:id/turns
type AppendTurnRequest struct {
	InboundText    string `json:"inbound_text" binding:"required"`
	OutboundText   string `json:"outbound_text" binding:"required"`
	Classification string `json:"classification,omitempty"`
	IsFinal        bool   `json:"is_final"`
}

// AskRequest is used for POST /v1/diagnostics/:id/ask
type AskRequest struct {
	Message string `json:"message" binding:"required"`
	Age     int    `json:"age"`
}

// CompleteDiagnosticRequest is used for POST /v1/diagnostics/:id/complete
type CompleteDiagnosticRequest struct {
	ReportPath string `json:"report_path" binding:"required"`
	QRCodePath string `json:"qr_code_path,omitempty"`
}

// AssignResponderRequest is used for POST /v1/diagnostics/:id/assign
type AssignResponderRequest struct {
	ResponderID string `json:"responder_id" binding:"required"`
}
