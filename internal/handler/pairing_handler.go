package handler

import (
	"net/http"

	"medbridge/internal/domain/pairing"
	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type PairingHandler struct {
	service *services.PairingService
}

func NewPairingHandler(service *services.PairingService) *PairingHandler {
	return &PairingHandler{service: service}
}

func (h *PairingHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.SendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "responder_id is required")
		return
	}

	res, err := h.service.SendRequest(c.Request.Context(), userID, req.ResponderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(res))
}

func (h *PairingHandler) Respond(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "accept is required")
		return
	}

	res, err := h.service.AcceptOrReject(c.Request.Context(), requestID, userID, *req.Accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func (h *PairingHandler) Cancel(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	responderID := c.Query("responder_id")
	if responderID == "" {
		badRequest(c, "responder_id is required")
		return
	}

	cancelled, err := h.service.CancelRequest(c.Request.Context(), userID, responderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CancelRequestResponse{Cancelled: cancelled}))
}

func (h *PairingHandler) Received(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q httpdto.ListReceivedQuery
	_ = c.ShouldBindQuery(&q)

	var filter *pairing.Status
	if q.Status != "" {
		status, ok := pairing.ParseStatus(q.Status)
		if !ok {
			badRequest(c, "unknown status "+q.Status)
			return
		}
		filter = &status
	}

	items, err := h.service.ListReceived(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

func (h *PairingHandler) Sent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.service.ListSent(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

func (h *PairingHandler) Accepted(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.service.ListAccepted(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

func (h *PairingHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	requestID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.service.GetRequest(c.Request.Context(), requestID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(detail))
}
