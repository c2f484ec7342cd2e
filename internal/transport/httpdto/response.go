package httpdto

// Response is the envelope of every JSON reply. Data is always present so an
// empty list encodes as [] rather than vanishing.
type Response[T any] struct {
	Success bool      `json:"success"`
	Data    T         `json:"data"`
	Meta    *PageMeta `json:"meta,omitempty"`
	Error   string    `json:"error,omitempty"`
	Code    string    `json:"code,omitempty"`
}

// PageMeta tells a client how to fetch the next older page of a
// conversation's history.
type PageMeta struct {
	HasMore       bool   `json:"has_more"`
	NextBeforeSeq *int64 `json:"next_before_seq,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewPageResponse[T any](data T, meta PageMeta) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
		Meta:    &meta,
	}
}

func NewErrorResponse(err string, code string) Response[any] {
	return Response[any]{
		Success: false,
		Error:   err,
		Code:    code,
	}
}
