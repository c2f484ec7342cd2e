package handler

import (
	"net/http"

	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// History serves GET /v1/conversations/:id/messages. Sending happens over
// the websocket.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	conversationID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var q httpdto.HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid limit or before_seq")
		return
	}

	items, err := h.service.GetHistory(c.Request.Context(), conversationID, userID, q.Limit, q.BeforeSeq)
	if err != nil {
		respondError(c, err)
		return
	}
	// Seqs are contiguous from 1, so anything above 1 has older history.
	var meta httpdto.PageMeta
	if len(items) > 0 && items[0].Seq > 1 {
		next := items[0].Seq
		meta = httpdto.PageMeta{HasMore: true, NextBeforeSeq: &next}
	}
	c.JSON(http.StatusOK, httpdto.NewPageResponse(items, meta))
}
