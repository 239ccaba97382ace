package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"livechat/internal/domain"
)

// @Summary Get chat settings
// @Description Returns the current chat limits
// @Tags Settings
// @Security BearerAuth
// @Produce json
// @Success 200 {object} successResponseBody "Settings"
// @Router /settings/chat [get]
func (h *Handler) getChatSettings(c *gin.Context) {
	settings, err := h.services.Settings.Get(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load chat settings", zap.Error(err))
		internalServerErrorResponse(c)
		return
	}

	successResponse(c, http.StatusOK, settings)
}

// @Summary Update chat settings
// @Description Updates the maximum user message length and/or session duration
// @Tags Settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body domain.UpdateChatSettingsDTO true "Fields to update"
// @Success 200 {object} successResponseBody "Updated settings"
// @Failure 400 {object} errorResponseBody "Validation error"
// @Router /settings/chat [put]
func (h *Handler) updateChatSettings(c *gin.Context) {
	adminID, err := getUserID(c)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, err.Error())
		return
	}

	var input domain.UpdateChatSettingsDTO
	if err := c.ShouldBindJSON(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		badRequestResponse(c, "invalid request body")
		return
	}

	if input.MaxUserMessageLength == nil && input.MaxSessionDurationMinutes == nil {
		badRequestResponse(c, "nothing to update")
		return
	}

	var settings *domain.ChatSettings

	if input.MaxUserMessageLength != nil {
		settings, err = h.services.Settings.UpdateMaxUserMessageLength(c.Request.Context(), *input.MaxUserMessageLength, adminID)
		if err != nil {
			h.handleSettingsError(c, err)
			return
		}
	}

	if input.MaxSessionDurationMinutes != nil {
		settings, err = h.services.Settings.UpdateMaxSessionDurationMinutes(c.Request.Context(), *input.MaxSessionDurationMinutes, adminID)
		if err != nil {
			h.handleSettingsError(c, err)
			return
		}
	}

	successResponse(c, http.StatusOK, settings)
}

func (h *Handler) handleSettingsError(c *gin.Context, err error) {
	if domain.IsValidationError(err) {
		badRequestResponse(c, err.Error())
		return
	}
	h.logger.Error("failed to update chat settings", zap.Error(err))
	internalServerErrorResponse(c)
}
