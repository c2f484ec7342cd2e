package httpdto

// HistoryQuery holds query parameters for GET /v1/conversations/:id/messages
type HistoryQuery struct {
	Limit     int   `form:"limit"`
	BeforeSeq int64 `form:"before_seq"`
}
