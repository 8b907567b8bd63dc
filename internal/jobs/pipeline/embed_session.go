package pipeline

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
	"github.com/yungbote/guildmind-backend/internal/sessionizer"
)

// EmbedSessionHandler turns one session into a vector point. The VS
// write happens before the RS confirm; a crash in between leaves an
// orphan point the reconciler detects via the null vector_key and
// re-runs this job, which upserts the same id, so the index never
// doubles up.
type EmbedSessionHandler struct {
	Deps
}

func (h *EmbedSessionHandler) Type() string { return types.JobTypeEmbedSession }

func (h *EmbedSessionHandler) Run(jc *runtime.Context) error {
	sessionID, ok := jc.PayloadUUID("session_id")
	if !ok {
		return errkind.New(errkind.Permanent, "embed_session payload missing session_id")
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	session, err := h.Repos.Sessions.GetByID(dbc, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return errkind.New(errkind.NotFound, "session %s not found", sessionID)
	}

	channel, err := h.Repos.Channels.GetByID(dbc, session.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil || !channel.IsIndexed || channel.IsDeleted {
		// A channel that opted out while this job waited must not gain
		// a vector.
		return nil
	}

	msgs, err := h.Repos.Messages.ListRange(dbc, session.ChannelID, session.StartMessageID, session.EndMessageID)
	if err != nil {
		return err
	}
	if len(msgs) < h.Cfg.Session.MinMessages {
		// Deletions hollowed the session out; drop it and any vector it
		// still holds.
		return h.dropSession(jc.Ctx, dbc, session)
	}

	szMsgs, err := toSessionizerMessages(dbc, h.Repos.Users, msgs)
	if err != nil {
		return err
	}
	text := sessionizer.Enrich(channel.Name, szMsgs)

	embCtx, cancel := context.WithTimeout(jc.Ctx, embedTimeout)
	vecs, err := h.Embedder.Embed(embCtx, []string{text})
	cancel()
	if err != nil {
		return err
	}

	msgIDs := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		msgIDs = append(msgIDs, m.ID)
	}
	key := session.ID.String()

	point := vector.Point{
		ID:     key,
		Vector: vecs[0],
		Payload: vector.Payload{
			GuildID:   session.GuildID,
			ChannelID: session.ChannelID,
			Kind:      vector.KindSession,
			SourceIDs: msgIDs,
			Preview:   vector.TruncatePreview(text),
			Embedder:  h.Embedder.Identity(),
			StartTime: &session.StartTime,
			EndTime:   &session.EndTime,
		},
	}
	vsCtx, cancel := context.WithTimeout(jc.Ctx, vsTimeout)
	err = h.Store.Upsert(vsCtx, []vector.Point{point})
	cancel()
	if err != nil {
		return err
	}

	marked, err := h.Repos.Sessions.MarkIndexed(dbc, session.ID, key)
	if err != nil {
		return err
	}
	if !marked {
		// CAS miss: the session was superseded or deleted after the VS
		// write. The point must not outlive the row.
		vsCtx, cancel := context.WithTimeout(jc.Ctx, vsTimeout)
		delErr := h.Store.Delete(vsCtx, []string{key})
		cancel()
		if delErr != nil {
			return delErr
		}
		return nil
	}

	return h.Repos.Messages.SetVectorKey(dbc, msgIDs, key)
}

func (h *EmbedSessionHandler) dropSession(ctx context.Context, dbc dbctx.Context, session *types.MessageSession) error {
	if session.VectorKey != nil {
		vsCtx, cancel := context.WithTimeout(ctx, vsTimeout)
		err := h.Store.Delete(vsCtx, []string{*session.VectorKey})
		cancel()
		if err != nil {
			return err
		}
	}
	return h.Repos.Sessions.Delete(dbc, []uuid.UUID{session.ID})
}
