package app

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yungbote/guildmind-backend/internal/http/handlers"
	"github.com/yungbote/guildmind-backend/internal/http/middleware"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type Handlers struct {
	Health *handlers.HealthHandler
	Admin  *handlers.AdminHandler
	Query  *handlers.QueryHandler
}

func wireHandlers(log *logger.Logger, serviceset Services) Handlers {
	return Handlers{
		Health: handlers.NewHealthHandler(),
		Admin:  handlers.NewAdminHandler(log, serviceset.Admin),
		Query:  handlers.NewQueryHandler(log, serviceset.Queries),
	}
}

func wireRouter(log *logger.Logger, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(middleware.AttachRequestContext())
	router.Use(middleware.RequestLog(log))

	router.GET("/healthz", h.Health.Healthz)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/guilds/:guild_id/search", h.Query.Search)
		v1.GET("/guilds/:guild_id/channels/:channel_id/messages", h.Query.ListRecent)

		v1.GET("/guilds/:guild_id/sync-health", h.Admin.SyncHealth)
		v1.POST("/guilds/:guild_id/channels/:channel_id/indexed", h.Admin.SetChannelIndexed)
		v1.POST("/guilds/:guild_id/active", h.Admin.SetGuildActive)
		v1.GET("/admin/dead-letters", h.Admin.ListDeadLetters)
	}

	return router
}
