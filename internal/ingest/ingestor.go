package ingest

import (
	"context"
	"strings"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/gateway"
	"github.com/yungbote/guildmind-backend/internal/observability"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/services"
)

/*
Ingestor translates gateway events into relational writes and queue
entries. It is stateless and idempotent: replaying any event produces
the same rows and at most coalesced duplicate jobs.

Ordering rule: the RS write always commits before the JB enqueue. A
crash between the two loses only the job, and the reconciler finds the
work by scanning RS. The reverse order would mint vectors for records
that never landed.

The ingestor never calls the vector store and never downloads
attachment bytes; both belong to the worker.
*/
type Ingestor struct {
	log     *logger.Logger
	repos   repos.All
	enqueue services.Enqueuer
	metrics *observability.Metrics
}

func NewIngestor(log *logger.Logger, r repos.All, enqueue services.Enqueuer, metrics *observability.Metrics) *Ingestor {
	return &Ingestor{
		log:     log.With("component", "Ingestor"),
		repos:   r,
		enqueue: enqueue,
		metrics: metrics,
	}
}

// Handle processes one gateway event. Errors are logged, not returned:
// the gateway stream must keep flowing, and everything Handle does is
// recoverable by the reconciler.
func (g *Ingestor) Handle(ctx context.Context, ev gateway.Event) {
	var err error
	switch ev.Type {
	case gateway.EventMessageCreate:
		err = g.onMessageCreate(ctx, ev)
	case gateway.EventMessageUpdate:
		err = g.onMessageUpdate(ctx, ev)
	case gateway.EventMessageDelete:
		err = g.onMessageDelete(ctx, ev)
	case gateway.EventMessageDeleteBulk:
		err = g.onMessageDeleteBulk(ctx, ev)
	case gateway.EventChannelDelete:
		err = g.onChannelDelete(ctx, ev)
	case gateway.EventGuildDelete:
		err = g.onGuildDelete(ctx, ev)
	default:
		g.log.Debug("Ignoring unknown gateway event", "type", string(ev.Type), "event_id", ev.EventID)
		return
	}
	if err != nil {
		g.log.Error("Gateway event failed",
			"type", string(ev.Type),
			"event_id", ev.EventID,
			"guild_id", ev.GuildID,
			"error", err,
		)
		return
	}
	g.metrics.IngestEvent(ctx, string(ev.Type))
}

func (g *Ingestor) onMessageCreate(ctx context.Context, ev gateway.Event) error {
	if ev.Message == nil {
		return nil
	}
	dbc := dbctx.Context{Ctx: ctx}
	m := ev.Message

	if _, err := g.repos.Guilds.Upsert(dbc, ev.GuildID, ev.GuildName); err != nil {
		return err
	}
	channel, err := g.repos.Channels.Upsert(dbc, ev.ChannelID, ev.GuildID, ev.ChannelName)
	if err != nil {
		return err
	}
	if _, err := g.repos.Users.Upsert(dbc, m.AuthorID, m.AuthorName, m.AuthorIsBot); err != nil {
		return err
	}

	row := &types.Message{
		ID:        m.ID,
		GuildID:   ev.GuildID,
		ChannelID: ev.ChannelID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		ReplyToID: m.ReplyToID,
		Timestamp: m.Timestamp,
	}
	if _, err := g.repos.Messages.Upsert(dbc, row); err != nil {
		return err
	}

	for _, f := range m.Attachments {
		if err := g.onAttachment(ctx, ev, m.ID, f, channel.IsIndexed); err != nil {
			return err
		}
	}

	if !channel.IsIndexed || channel.IsDeleted {
		return nil
	}
	return g.enqueue.Sessionize(ctx, ev.GuildID, ev.ChannelID, m.ID)
}

func (g *Ingestor) onAttachment(ctx context.Context, ev gateway.Event, messageID int64, f gateway.FileMeta, indexed bool) error {
	dbc := dbctx.Context{Ctx: ctx}
	row := &types.Attachment{
		ID:               f.ID,
		MessageID:        messageID,
		GuildID:          ev.GuildID,
		ChannelID:        ev.ChannelID,
		SourceURL:        f.SourceURL,
		FileName:         f.FileName,
		MimeType:         f.MimeType,
		SizeBytes:        f.SizeBytes,
		SourceType:       classifySourceType(f),
		ProcessingStatus: types.ProcessingPending,
	}
	if _, err := g.repos.Attachments.Create(dbc, row); err != nil {
		return err
	}
	// Only indexed channels feed the vector store; the row itself is
	// recorded either way.
	if !indexed {
		return nil
	}
	return g.enqueue.IngestAttachment(ctx, ev.GuildID, f.ID)
}

func (g *Ingestor) onMessageUpdate(ctx context.Context, ev gateway.Event) error {
	if ev.Message == nil {
		return nil
	}
	m := ev.Message
	if m.AuthorIsBot {
		// Bot edits (embeds resolving, status updates) churn constantly
		// and carry no conversational signal.
		return nil
	}
	dbc := dbctx.Context{Ctx: ctx}

	row := &types.Message{
		ID:        m.ID,
		GuildID:   ev.GuildID,
		ChannelID: ev.ChannelID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		ReplyToID: m.ReplyToID,
		Timestamp: m.Timestamp,
	}
	res, err := g.repos.Messages.Upsert(dbc, row)
	if err != nil {
		return err
	}
	if !res.ContentChanged {
		return nil
	}
	return g.enqueue.ReindexSessionFor(ctx, ev.GuildID, m.ID, ev.ChannelID)
}

func (g *Ingestor) onMessageDelete(ctx context.Context, ev gateway.Event) error {
	ids := ev.MessageIDs
	if len(ids) == 0 && ev.Message != nil {
		ids = []int64{ev.Message.ID}
	}
	if len(ids) == 0 {
		return nil
	}
	return g.softDeleteAndPurge(ctx, ev.GuildID, ev.ChannelID, ids)
}

func (g *Ingestor) onMessageDeleteBulk(ctx context.Context, ev gateway.Event) error {
	if len(ev.MessageIDs) == 0 {
		return nil
	}
	return g.softDeleteAndPurge(ctx, ev.GuildID, ev.ChannelID, ev.MessageIDs)
}

func (g *Ingestor) softDeleteAndPurge(ctx context.Context, guildID, channelID int64, ids []int64) error {
	dbc := dbctx.Context{Ctx: ctx}
	targets, err := g.repos.Messages.SoftDelete(dbc, guildID, ids)
	if err != nil {
		return err
	}
	if _, err := g.repos.Attachments.SoftDeleteByMessageIDs(dbc, guildID, ids); err != nil {
		return err
	}

	// Purge whenever any deleted message held a vector key or sits
	// inside a session; a keyless message may still appear in a session
	// vector's source_ids.
	needPurge := false
	for _, t := range targets {
		if t.VectorKey != nil {
			needPurge = true
			break
		}
	}
	if !needPurge {
		for _, id := range ids {
			s, err := g.repos.Sessions.FindContaining(dbc, channelID, id)
			if err != nil {
				return err
			}
			if s != nil {
				needPurge = true
				break
			}
		}
	}
	if !needPurge {
		return nil
	}
	return g.enqueue.PurgeMessageVectors(ctx, guildID, ids)
}

func (g *Ingestor) onChannelDelete(ctx context.Context, ev gateway.Event) error {
	dbc := dbctx.Context{Ctx: ctx}
	if err := g.repos.Channels.SoftDelete(dbc, ev.GuildID, ev.ChannelID); err != nil {
		return err
	}
	if _, err := g.repos.Messages.BulkSoftDeleteChannel(dbc, ev.GuildID, ev.ChannelID); err != nil {
		return err
	}
	return g.enqueue.PurgeChannelVectors(ctx, ev.GuildID, ev.ChannelID)
}

func (g *Ingestor) onGuildDelete(ctx context.Context, ev gateway.Event) error {
	// The guild row survives; deactivation hands cleanup to the
	// reconciler's orphan sweep.
	return g.repos.Guilds.SetActive(dbctx.Context{Ctx: ctx}, ev.GuildID, false)
}

func classifySourceType(f gateway.FileMeta) string {
	name := strings.ToLower(f.FileName)
	mime := strings.ToLower(f.MimeType)
	switch {
	case strings.HasSuffix(name, ".md") || strings.HasSuffix(name, ".markdown"):
		return types.SourceTypeMarkdown
	case strings.HasSuffix(name, ".pdf") || mime == "application/pdf":
		return types.SourceTypePDF
	case strings.HasPrefix(mime, "image/"):
		return types.SourceTypeImage
	default:
		return types.SourceTypeText
	}
}
