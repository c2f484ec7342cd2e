package httpdto

// PresignUploadRequest is used for POST /v1/uploads/presign
type PresignUploadRequest struct {
	Purpose     string `json:"purpose" binding:"required"`
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	FileSize    int64  `json:"file_size"`
}

// ReadURLQuery holds query parameters for GET /v1/uploads/url
type ReadURLQuery struct {
	Key string `form:"key" binding:"required"`
}
