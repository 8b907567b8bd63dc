package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

// SearchResult is one semantic hit returned to the agent layer. Only
// payload metadata and preview text leave the store, never message rows
// from other tenants.
type SearchResult struct {
	ID        string     `json:"id"`
	Score     float64    `json:"score"`
	Kind      string     `json:"kind"`
	ChannelID int64      `json:"channel_id,omitempty"`
	SourceIDs []int64    `json:"source_ids"`
	Preview   string     `json:"preview"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// QueryService is the read-only surface consumed by the LLM/analytics
// agents. Both operations are mandatory-guild and never mutate.
type QueryService interface {
	SearchSemantic(ctx context.Context, guildID int64, text string, channelID *int64, k int, minScore float64) ([]SearchResult, error)
	ListRecent(ctx context.Context, guildID, channelID int64, since, until time.Time, limit int) ([]*types.Message, error)
}

type queryService struct {
	log      *logger.Logger
	messages repos.MessageRepo
	store    vector.Store
	embedder Embedder
}

func NewQueryService(log *logger.Logger, messages repos.MessageRepo, store vector.Store, embedder Embedder) QueryService {
	return &queryService{
		log:      log.With("service", "QueryService"),
		messages: messages,
		store:    store,
		embedder: embedder,
	}
}

func (s *queryService) SearchSemantic(ctx context.Context, guildID int64, text string, channelID *int64, k int, minScore float64) ([]SearchResult, error) {
	if guildID == 0 {
		return nil, errkind.New(errkind.TenantViolation, "search requires a guild_id")
	}
	if text == "" {
		return nil, fmt.Errorf("query text required")
	}
	if k <= 0 {
		k = 10
	}

	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	matches, err := s.store.Search(ctx, vecs[0], vector.Filter{
		GuildID:   guildID,
		ChannelID: channelID,
	}, k, minScore)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, SearchResult{
			ID:        m.ID,
			Score:     m.Score,
			Kind:      m.Payload.Kind,
			ChannelID: m.Payload.ChannelID,
			SourceIDs: m.Payload.SourceIDs,
			Preview:   m.Payload.Preview,
			StartTime: m.Payload.StartTime,
			EndTime:   m.Payload.EndTime,
		})
	}
	return out, nil
}

func (s *queryService) ListRecent(ctx context.Context, guildID, channelID int64, since, until time.Time, limit int) ([]*types.Message, error) {
	if guildID == 0 {
		return nil, errkind.New(errkind.TenantViolation, "list_recent requires a guild_id")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.messages.ListRecent(dbctx.Context{Ctx: ctx}, guildID, channelID, since, until, limit)
}
