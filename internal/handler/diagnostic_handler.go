package handler

import (
	"net/http"

	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/gin-gonic/gin"
)

type DiagnosticHandler struct {
	service *services.DiagnosticService
}

func NewDiagnosticHandler(service *services.DiagnosticService) *DiagnosticHandler {
	return &DiagnosticHandler{service: service}
}

func (h *DiagnosticHandler) Start(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.StartDiagnosticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "please upload a photo")
		return
	}
	item, err := h.service.Start(c.Request.Context(), userID, req.ImagePath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(item))
}

func (h *DiagnosticHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.service.ListForSubject(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(items))
}

// Get returns the diagnosis together with its turns.
func (h *DiagnosticHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	item, err := h.service.Get(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	turns, err := h.service.Turns(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversation": item, "turns": turns}))
}

func (h *DiagnosticHandler) AppendTurn(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.AppendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "inbound_text and outbound_text are required")
		return
	}
	if _, err := h.service.Get(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}

	res, err := h.service.AppendTurn(c.Request.Context(), id, services.AppendTurnInput{
		InboundText:    req.InboundText,
		OutboundText:   req.OutboundText,
		Classification: req.Classification,
		IsFinal:        req.IsFinal,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(res))
}

func (h *DiagnosticHandler) Ask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required")
		return
	}
	res, err := h.service.Ask(c.Request.Context(), id, userID, req.Message, req.Age)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}

func (h *DiagnosticHandler) Complete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.CompleteDiagnosticRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "report_path is required")
		return
	}
	if _, err := h.service.Get(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	item, err := h.service.Complete(c.Request.Context(), id, req.ReportPath, req.QRCodePath)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(item))
}

// Assign hands the diagnosis to a responder. Only its subject may do so.
func (h *DiagnosticHandler) Assign(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req httpdto.AssignResponderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "responder_id is required")
		return
	}
	item, err := h.service.Get(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if item.SubjectID != userID {
		respondError(c, medbridge_errors.Forbidden("only the subject can assign a responder"))
		return
	}
	if err := h.service.AssignResponder(c.Request.Context(), id, req.ResponderID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"id": id, "assigned_responder_id": req.ResponderID}))
}
