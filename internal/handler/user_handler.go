package handler

import (
	"context"
	"net/http"
	"time"

	"medbridge/internal/redis"
	"medbridge/internal/services"
	"medbridge/internal/transport/httpdto"
	medbridge_errors "medbridge/pkg/errors"

	"github.com/gin-gonic/gin"
)

// PresenceReader looks up a user's last known presence.
type PresenceReader interface {
	Get(ctx context.Context, userID string) (redis.PresenceStatus, error)
}

type UserHandler struct {
	identities *services.IdentityService
	presence   PresenceReader
}

func NewUserHandler(identities *services.IdentityService, presence PresenceReader) *UserHandler {
	return &UserHandler{identities: identities, presence: presence}
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	who, err := h.identities.Resolve(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(who))
}

func (h *UserHandler) UpdatePushToken(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.UpdatePushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if err := h.identities.UpdatePushToken(c.Request.Context(), userID, req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"registered": req.Token != ""}))
}

func (h *UserHandler) Presence(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	if h.presence == nil {
		respondError(c, medbridge_errors.Dependency("presence is not available", nil))
		return
	}
	targetID := c.Param("id")
	if _, err := h.identities.Resolve(c.Request.Context(), targetID); err != nil {
		respondError(c, err)
		return
	}

	status, err := h.presence.Get(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, medbridge_errors.Dependency("presence lookup failed", err))
		return
	}
	res := httpdto.PresenceResponse{UserID: targetID, IsOnline: status.IsOnline}
	if !status.LastSeen.IsZero() {
		res.LastSeen = status.LastSeen.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(res))
}
