package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @Summary Record a presence heartbeat
// @Description Marks the caller as active; clients send this periodically
// @Tags Presence
// @Security BearerAuth
// @Produce json
// @Success 200 {object} messageResponseType "Acknowledged"
// @Router /presence/heartbeat [post]
func (h *Handler) heartbeat(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	role, err := getUserRole(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	if err := h.services.Presence.UpdateHeartbeat(c.Request.Context(), userID, role); err != nil {
		h.logger.Error("failed to record heartbeat", zap.Int64("user_id", userID), zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	messageResponse(c, http.StatusOK, "ok")
}

// @Summary List user presence
// @Description Returns the derived Online/Idle/Offline status of every user
// @Tags Presence
// @Security BearerAuth
// @Produce json
// @Success 200 {object} successResponseBody "Presence list"
// @Router /presence/users [get]
func (h *Handler) getUserPresence(c *gin.Context) {
	list, err := h.services.Presence.GetUserPresenceList(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load presence list", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	successResponse(c, http.StatusOK, list)
}
