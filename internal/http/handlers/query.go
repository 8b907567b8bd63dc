package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/guildmind-backend/internal/http/response"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/services"
)

// QueryHandler is the read-only surface for the agent layer. Internal
// failure detail never leaves the process; callers see an opaque
// unavailable signal.
type QueryHandler struct {
	log     *logger.Logger
	queries services.QueryService
}

func NewQueryHandler(log *logger.Logger, queries services.QueryService) *QueryHandler {
	return &QueryHandler{
		log:     log.With("handler", "QueryHandler"),
		queries: queries,
	}
}

// channel_id travels as a string: snowflakes overflow the integers
// some JSON clients can represent faithfully.
type searchRequest struct {
	Text      string  `json:"text" binding:"required"`
	ChannelID string  `json:"channel_id,omitempty"`
	K         int     `json:"k"`
	MinScore  float64 `json:"min_score"`
}

func (h *QueryHandler) Search(c *gin.Context) {
	guildID, err := pathInt64(c, "guild_id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_guild_id", err)
		return
	}
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	var channelID *int64
	if req.ChannelID != "" {
		v, perr := strconv.ParseInt(req.ChannelID, 10, 64)
		if perr != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_channel_id", perr)
			return
		}
		channelID = &v
	}

	results, err := h.queries.SearchSemantic(c.Request.Context(), guildID, req.Text, channelID, req.K, req.MinScore)
	if err != nil {
		h.respondOpaque(c, "search", err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

func (h *QueryHandler) ListRecent(c *gin.Context) {
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

	var since, until time.Time
	if raw := c.Query("since"); raw != "" {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			since = t
		}
	}
	if raw := c.Query("until"); raw != "" {
		if t, perr := time.Parse(time.RFC3339, raw); perr == nil {
			until = t
		}
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	msgs, err := h.queries.ListRecent(c.Request.Context(), guildID, channelID, since, until, limit)
	if err != nil {
		h.respondOpaque(c, "list_recent", err)
		return
	}
	response.RespondOK(c, gin.H{"messages": msgs})
}

// respondOpaque logs the real failure and returns a featureless 503.
// Tenant violations are additionally surfaced at error level; they are
// alerts, not user errors.
func (h *QueryHandler) respondOpaque(c *gin.Context, op string, err error) {
	if errkind.Is(err, errkind.TenantViolation) {
		h.log.Error("Tenant violation on query path", "op", op, "error", err)
	} else {
		h.log.Warn("Query failed", "op", op, "error", err)
	}
	response.RespondError(c, http.StatusServiceUnavailable, "unavailable", nil)
}
