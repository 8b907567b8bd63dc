package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/sessionizer"
)

// SessionizeHandler reads the message window around a trigger point,
// splits it into conversation blocks and persists any block not already
// covered by an identical session. Superseded sessions are replaced and
// their vectors dropped. Replays converge: an existing identical range
// is skipped, so no duplicate sessions or vectors appear.
type SessionizeHandler struct {
	Deps
}

func (h *SessionizeHandler) Type() string { return types.JobTypeSessionize }

func (h *SessionizeHandler) Run(jc *runtime.Context) error {
	guildID, ok := jc.PayloadInt64("guild_id")
	if !ok {
		return errkind.New(errkind.Permanent, "sessionize payload missing guild_id")
	}
	channelID, ok := jc.PayloadInt64("channel_id")
	if !ok {
		return errkind.New(errkind.Permanent, "sessionize payload missing channel_id")
	}
	around, ok := jc.PayloadInt64("around")
	if !ok {
		return errkind.New(errkind.Permanent, "sessionize payload missing around")
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	channel, err := h.Repos.Channels.GetByID(dbc, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return errkind.New(errkind.NotFound, "channel %d not found", channelID)
	}
	if !channel.IsIndexed || channel.IsDeleted {
		// Indexing turned off between enqueue and execute; nothing to do.
		return nil
	}

	w := h.Cfg.SessionWindow
	msgs, err := h.Repos.Messages.ListWindow(dbc, channelID, around, w, w/2)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	szMsgs, err := h.toSessionizerMessages(dbc, msgs)
	if err != nil {
		return err
	}

	groups := sessionizer.Split(szMsgs, h.Cfg.Session)
	if channel.SemanticRefine {
		groups, err = h.refine(jc.Ctx, groups)
		if err != nil {
			return err
		}
	}
	groups = sessionizer.FilterSmall(groups, h.Cfg.Session.MinMessages)

	for _, g := range groups {
		if err := h.persistGroup(jc, dbc, guildID, channelID, g); err != nil {
			return err
		}
	}
	return nil
}

func (h *SessionizeHandler) persistGroup(jc *runtime.Context, dbc dbctx.Context, guildID, channelID int64, g []sessionizer.Message) error {
	startID := g[0].ID
	endID := g[len(g)-1].ID

	existing, err := h.Repos.Sessions.FindByRange(dbc, channelID, startID, endID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	// A block with shifted boundaries supersedes whatever it overlaps:
	// old rows go away and their vectors are dropped before the new row
	// lands.
	overlapping, err := h.Repos.Sessions.ListOverlapping(dbc, channelID, startID, endID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		var staleKeys []string
		var staleIDs []uuid.UUID
		for _, old := range overlapping {
			staleIDs = append(staleIDs, old.ID)
			if old.VectorKey != nil {
				staleKeys = append(staleKeys, *old.VectorKey)
			}
		}
		if len(staleKeys) > 0 {
			vsCtx, cancel := context.WithTimeout(jc.Ctx, vsTimeout)
			err := h.Store.Delete(vsCtx, staleKeys)
			cancel()
			if err != nil {
				return err
			}
		}
		if err := h.Repos.Sessions.Delete(dbc, staleIDs); err != nil {
			return err
		}
	}

	session := &types.MessageSession{
		ID:             uuid.New(),
		GuildID:        guildID,
		ChannelID:      channelID,
		StartMessageID: startID,
		EndMessageID:   endID,
		MessageCount:   len(g),
		StartTime:      g[0].Timestamp,
		EndTime:        g[len(g)-1].Timestamp,
	}
	if _, err := h.Repos.Sessions.Create(dbc, []*types.MessageSession{session}); err != nil {
		return err
	}
	return h.Enqueue.EmbedSession(jc.Ctx, guildID, session.ID.String())
}

func (h *SessionizeHandler) refine(ctx context.Context, groups [][]sessionizer.Message) ([][]sessionizer.Message, error) {
	// Only large blocks embed per-message; everything else passes
	// through without touching the embedder.
	vectors := map[int64][]float32{}
	for _, g := range groups {
		if len(g) <= h.Cfg.Refine.ThresholdMessages {
			continue
		}
		texts := make([]string, len(g))
		for i, m := range g {
			texts[i] = m.Content
		}
		embCtx, cancel := context.WithTimeout(ctx, 4*embedTimeout)
		vecs, err := h.Embedder.Embed(embCtx, texts)
		cancel()
		if err != nil {
			return nil, err
		}
		for i, m := range g {
			vectors[m.ID] = vecs[i]
		}
	}
	return sessionizer.Refine(groups, vectors, h.Cfg.Refine), nil
}

// toSessionizerMessages joins author display names onto the raw rows.
func (h *SessionizeHandler) toSessionizerMessages(dbc dbctx.Context, msgs []*types.Message) ([]sessionizer.Message, error) {
	return toSessionizerMessages(dbc, h.Repos.Users, msgs)
}

func toSessionizerMessages(dbc dbctx.Context, users repos.UserRepo, msgs []*types.Message) ([]sessionizer.Message, error) {
	authorIDs := make([]int64, 0, len(msgs))
	seen := map[int64]bool{}
	for _, m := range msgs {
		if !seen[m.AuthorID] {
			seen[m.AuthorID] = true
			authorIDs = append(authorIDs, m.AuthorID)
		}
	}
	rows, err := users.GetByIDs(dbc, authorIDs)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(rows))
	for _, u := range rows {
		names[u.ID] = u.DisplayName
	}

	out := make([]sessionizer.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, sessionizer.Message{
			ID:         m.ID,
			ChannelID:  m.ChannelID,
			AuthorID:   m.AuthorID,
			AuthorName: names[m.AuthorID],
			Content:    m.Content,
			ReplyToID:  m.ReplyToID,
			Timestamp:  m.Timestamp,
		})
	}
	return out, nil
}
