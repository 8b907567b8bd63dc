package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/guildmind-backend/internal/http/response"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/services"
)

// AdminHandler exposes the trusted control surface: indexing toggles,
// guild activation, sync health and dead-letter inspection. The caller
// is assumed authorized; this process does no auth of its own.
type AdminHandler struct {
	log   *logger.Logger
	admin services.AdminService
}

func NewAdminHandler(log *logger.Logger, admin services.AdminService) *AdminHandler {
	return &AdminHandler{
		log:   log.With("handler", "AdminHandler"),
		admin: admin,
	}
}

type setIndexedRequest struct {
	Indexed *bool `json:"indexed" binding:"required"`
}

func (h *AdminHandler) SetChannelIndexed(c *gin.Context) {
	guildID, err := pathInt64(c, "guild_id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_guild_id", err)
		return
	}
	channelID, err := pathInt64(c, "channel_id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_channel_id", err)
		return
	}
	var req setIndexedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.admin.SetChannelIndexed(c.Request.Context(), guildID, channelID, *req.Indexed); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "set_indexed_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"guild_id": guildID, "channel_id": channelID, "indexed": *req.Indexed})
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h *AdminHandler) SetGuildActive(c *gin.Context) {
	guildID, err := pathInt64(c, "guild_id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_guild_id", err)
		return
	}
	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.admin.SetGuildActive(c.Request.Context(), guildID, *req.Active); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "set_active_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"guild_id": guildID, "active": *req.Active})
}

func (h *AdminHandler) SyncHealth(c *gin.Context) {
	guildID, err := pathInt64(c, "guild_id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_guild_id", err)
		return
	}
	health, err := h.admin.GuildSyncHealth(c.Request.Context(), guildID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "sync_health_failed", err)
		return
	}
	response.RespondOK(c, health)
}

func (h *AdminHandler) ListDeadLetters(c *gin.Context) {
	guildID, _ := strconv.ParseInt(c.Query("guild_id"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	rows, err := h.admin.ListDeadLetters(c.Request.Context(), guildID, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "dead_letters_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"dead_letters": rows})
}

func pathInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}
