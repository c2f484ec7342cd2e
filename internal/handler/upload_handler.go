package handler

import (
	"net/http"

	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	service *services.UploadService
}

func NewUploadHandler(service *services.UploadService) *UploadHandler {
	return &UploadHandler{service: service}
}

func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "purpose, file_name and content_type are required")
		return
	}
	res, err := h.service.Presign(c.Request.Context(), services.PresignInput{
		UploaderID:  userID,
		Purpose:     services.UploadPurpose(req.Purpose),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func (h *UploadHandler) ReadURL(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	var q httpdto.ReadURLQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "key is required")
		return
	}
	res, err := h.service.ReadURL(c.Request.Context(), q.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}
