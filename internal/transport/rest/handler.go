package rest

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"livechat/config"
	"livechat/internal/service"
	"livechat/internal/storage"
	"livechat/internal/transport/websocket"
)

type Handler struct {
	services *service.Services
	logger   *zap.Logger
	config   *config.Config
	hub      *websocket.ChatHub
	storage  storage.FileStorage
}

func NewHandler(services *service.Services, logger *zap.Logger, config *config.Config, hub *websocket.ChatHub, storage storage.FileStorage) *Handler {
	return &Handler{
		services: services,
		logger:   logger,
		config:   config,
		hub:      hub,
		storage:  storage,
	}
}

func (h *Handler) InitRoutes(router *gin.Engine) {
	router.Use(h.loggerMiddleware())
	router.Use(h.errorMiddleware())
	router.Use(h.corsMiddleware())

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)
			auth.POST("/refresh", h.refreshTokens)
			auth.POST("/logout", h.logout)
		}

		chat := api.Group("/chat")
		chat.Use(h.authMiddleware())
		{
			chat.POST("/messages", h.sendMessage)
			chat.GET("/my-session", h.getMySession)
			chat.GET("/sessions/:key/history", h.getHistory)
			chat.POST("/sessions/:key/seen", h.markMessagesSeen)
			chat.GET("/sessions/:key", h.getSessionInfo)
			chat.POST("/upload", h.uploadAttachment)

			admin := chat.Group("/")
			admin.Use(h.adminMiddleware())
			{
				admin.GET("/sessions", h.getAdminSessions)
				admin.POST("/sessions/open/:userId", h.openSession)
			}
		}

		settings := api.Group("/settings")
		settings.Use(h.authMiddleware())
		{
			settings.GET("/chat", h.getChatSettings)

			admin := settings.Group("/")
			admin.Use(h.adminMiddleware())
			{
				admin.PUT("/chat", h.updateChatSettings)
			}
		}

		presence := api.Group("/presence")
		presence.Use(h.authMiddleware())
		{
			presence.POST("/heartbeat", h.heartbeat)
			presence.GET("/users", h.adminMiddleware(), h.getUserPresence)
		}
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Auth happens inside the handler via the token query parameter.
	router.GET("/ws/chat", h.hub.HandleWebSocket)
}
