package reconciler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	"github.com/yungbote/guildmind-backend/internal/observability"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
	"github.com/yungbote/guildmind-backend/internal/services"
)

/*
Reconciler closes the gap between the relational store and the vector
index. The queue gets things right in seconds; the reconciler bounds
every failure mode to one cycle:

  - unindexed: rows that should have a vector but do not -> re-enqueue
  - stale: updated_at > indexed_at -> re-embed
  - pending purge: soft-deleted rows still holding vector keys -> purge
  - orphans: vectors whose guild went inactive, sessions hollowed out by
    deletions, chunks of deleted attachments -> dropped directly

It also owns embedder migrations: when the running identity differs from
the recorded manifest, every indexed session is marked stale and is
re-embedded under the new identity. Document chunk vectors are left as
they are; completed attachments are not re-ingested.
*/
type Config struct {
	Interval time.Duration
	// BatchLimit caps each population per guild per cycle.
	BatchLimit int
	// GuildParallelism bounds concurrent per-guild scans.
	GuildParallelism int
}

func DefaultConfig() Config {
	return Config{
		Interval:         15 * time.Minute,
		BatchLimit:       200,
		GuildParallelism: 4,
	}
}

type Reconciler struct {
	log      *logger.Logger
	repos    repos.All
	store    vector.Store
	embedder services.Embedder
	enqueue  services.Enqueuer
	metrics  *observability.Metrics
	cfg      Config
}

func New(log *logger.Logger, r repos.All, store vector.Store, embedder services.Embedder, enqueue services.Enqueuer, metrics *observability.Metrics, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultConfig().BatchLimit
	}
	if cfg.GuildParallelism <= 0 {
		cfg.GuildParallelism = DefaultConfig().GuildParallelism
	}
	return &Reconciler{
		log:      log.With("component", "Reconciler"),
		repos:    r,
		store:    store,
		embedder: embedder,
		enqueue:  enqueue,
		metrics:  metrics,
		cfg:      cfg,
	}
}

// Run executes one cycle immediately, then one per interval until the
// context ends.
func (rc *Reconciler) Run(ctx context.Context) {
	rc.RunOnce(ctx)
	ticker := time.NewTicker(rc.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			rc.log.Info("Reconciler stopped")
			return
		case <-ticker.C:
			rc.RunOnce(ctx)
		}
	}
}

func (rc *Reconciler) RunOnce(ctx context.Context) {
	start := time.Now()
	if err := rc.checkManifest(ctx); err != nil {
		rc.log.Error("Manifest check failed", "error", err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	guilds, err := rc.repos.Guilds.ListActive(dbc)
	if err != nil {
		rc.log.Error("Listing active guilds failed", "error", err)
		return
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(rc.cfg.GuildParallelism)
	for _, g := range guilds {
		guildID := g.ID
		eg.Go(func() error {
			rc.reconcileGuild(egCtx, guildID)
			return nil
		})
	}
	_ = eg.Wait()

	rc.sweepInactiveGuilds(ctx)
	rc.recordQueueDepth(ctx)

	rc.log.Info("Reconcile cycle done",
		"guilds", len(guilds),
		"elapsed", time.Since(start).String(),
	)
}

// checkManifest pins the embedder identity. First boot records it; a
// mismatch afterwards marks every indexed session stale for
// re-embedding. Document chunks are not touched.
func (rc *Reconciler) checkManifest(ctx context.Context) error {
	dbc := dbctx.Context{Ctx: ctx}
	identity := rc.embedder.Identity()
	m, err := rc.repos.Manifest.Get(dbc)
	if err != nil {
		return err
	}
	if m == nil {
		return rc.repos.Manifest.Save(dbc, identity, rc.embedder.Dim())
	}
	if m.Identity == identity {
		return nil
	}

	rc.log.Warn("Embedder identity changed; re-embedding all sessions",
		"previous", m.Identity,
		"current", identity,
	)
	if err := rc.repos.Sessions.TouchAllIndexed(dbc); err != nil {
		return err
	}
	return rc.repos.Manifest.Save(dbc, identity, rc.embedder.Dim())
}

func (rc *Reconciler) reconcileGuild(ctx context.Context, guildID int64) {
	dbc := dbctx.Context{Ctx: ctx}
	limit := rc.cfg.BatchLimit

	// 1. Unindexed sessions -> embed.
	if sessions, err := rc.repos.Sessions.ListUnindexed(dbc, guildID, limit); err != nil {
		rc.log.Warn("List unindexed sessions failed", "guild_id", guildID, "error", err)
	} else {
		for _, s := range sessions {
			if err := rc.enqueue.EmbedSession(ctx, guildID, s.ID.String()); err != nil {
				rc.log.Warn("Enqueue embed failed", "guild_id", guildID, "error", err)
			}
		}
	}

	// 2. Unindexed messages (no covering session yet) -> sessionize.
	if msgs, err := rc.repos.Messages.ListUnindexed(dbc, guildID, limit); err != nil {
		rc.log.Warn("List unindexed messages failed", "guild_id", guildID, "error", err)
	} else {
		for _, m := range msgs {
			if err := rc.enqueue.Sessionize(ctx, guildID, m.ChannelID, m.ID); err != nil {
				rc.log.Warn("Enqueue sessionize failed", "guild_id", guildID, "error", err)
			}
		}
	}

	// 3. Stale sessions -> re-embed.
	if sessions, err := rc.repos.Sessions.ListStale(dbc, guildID, limit); err != nil {
		rc.log.Warn("List stale sessions failed", "guild_id", guildID, "error", err)
	} else {
		for _, s := range sessions {
			if err := rc.enqueue.EmbedSession(ctx, guildID, s.ID.String()); err != nil {
				rc.log.Warn("Enqueue re-embed failed", "guild_id", guildID, "error", err)
			}
		}
	}

	// 4. Soft-deleted messages still holding vectors -> purge.
	if targets, err := rc.repos.Messages.ListPendingDelete(dbc, guildID, limit); err != nil {
		rc.log.Warn("List pending-delete messages failed", "guild_id", guildID, "error", err)
	} else if len(targets) > 0 {
		ids := make([]int64, 0, len(targets))
		for _, t := range targets {
			ids = append(ids, t.MessageID)
		}
		if err := rc.enqueue.PurgeMessageVectors(ctx, guildID, ids); err != nil {
			rc.log.Warn("Enqueue purge failed", "guild_id", guildID, "error", err)
		}
	}

	// 5. Channels that opted out but still hold vectors -> purge.
	if channels, err := rc.repos.Messages.ListUnindexedChannelsHoldingVectors(dbc, guildID); err != nil {
		rc.log.Warn("List opted-out channels failed", "guild_id", guildID, "error", err)
	} else {
		for _, channelID := range channels {
			if err := rc.enqueue.PurgeChannelVectors(ctx, guildID, channelID); err != nil {
				rc.log.Warn("Enqueue channel purge failed", "guild_id", guildID, "error", err)
			}
		}
	}

	// 6. Sessions whose messages are all gone: orphaned vectors dropped
	// directly.
	rc.dropOrphanSessions(ctx, dbc, guildID, limit)

	// 7. Chunks of deleted attachments: same.
	rc.dropOrphanChunks(ctx, dbc, guildID, limit)

	// 8. Unindexed chunks -> re-ingest their attachment.
	if chunks, err := rc.repos.Chunks.ListUnindexed(dbc, guildID, limit); err != nil {
		rc.log.Warn("List unindexed chunks failed", "guild_id", guildID, "error", err)
	} else {
		seen := map[int64]bool{}
		for _, c := range chunks {
			if seen[c.AttachmentID] {
				continue
			}
			seen[c.AttachmentID] = true
			if err := rc.enqueue.IngestAttachment(ctx, guildID, c.AttachmentID); err != nil {
				rc.log.Warn("Enqueue re-ingest failed", "guild_id", guildID, "error", err)
			}
		}
	}

	rc.reportSyncHealth(ctx, dbc, guildID)
}

func (rc *Reconciler) dropOrphanSessions(ctx context.Context, dbc dbctx.Context, guildID int64, limit int) {
	sessions, err := rc.repos.Sessions.ListPendingDelete(dbc, guildID, limit)
	if err != nil {
		rc.log.Warn("List orphan sessions failed", "guild_id", guildID, "error", err)
		return
	}
	for _, s := range sessions {
		if s.VectorKey != nil {
			if err := rc.store.Delete(ctx, []string{*s.VectorKey}); err != nil {
				rc.log.Warn("Orphan session vector delete failed", "guild_id", guildID, "error", err)
				continue
			}
			if _, err := rc.repos.Sessions.ClearVectorKey(dbc, s.ID, *s.VectorKey); err != nil {
				rc.log.Warn("Orphan session key clear failed", "guild_id", guildID, "error", err)
				continue
			}
		}
	}
}

func (rc *Reconciler) dropOrphanChunks(ctx context.Context, dbc dbctx.Context, guildID int64, limit int) {
	chunks, err := rc.repos.Chunks.ListPendingDelete(dbc, guildID, limit)
	if err != nil {
		rc.log.Warn("List orphan chunks failed", "guild_id", guildID, "error", err)
		return
	}
	if len(chunks) == 0 {
		return
	}
	var keys []string
	attachmentIDs := map[int64]bool{}
	for _, c := range chunks {
		if c.VectorKey != nil {
			keys = append(keys, *c.VectorKey)
		}
		attachmentIDs[c.AttachmentID] = true
	}
	if len(keys) > 0 {
		if err := rc.store.Delete(ctx, keys); err != nil {
			rc.log.Warn("Orphan chunk vector delete failed", "guild_id", guildID, "error", err)
			return
		}
	}
	ids := make([]int64, 0, len(attachmentIDs))
	for id := range attachmentIDs {
		ids = append(ids, id)
	}
	if err := rc.repos.Chunks.DeleteByAttachmentIDs(dbc, ids); err != nil {
		rc.log.Warn("Orphan chunk row delete failed", "guild_id", guildID, "error", err)
	}
}

// sweepInactiveGuilds removes every point belonging to a deactivated
// tenant.
func (rc *Reconciler) sweepInactiveGuilds(ctx context.Context) {
	dbc := dbctx.Context{Ctx: ctx}
	guilds, err := rc.repos.Guilds.ListInactive(dbc)
	if err != nil {
		rc.log.Warn("List inactive guilds failed", "error", err)
		return
	}
	for _, g := range guilds {
		if err := rc.store.DeleteWhere(ctx, vector.Filter{GuildID: g.ID}); err != nil {
			rc.log.Warn("Inactive guild sweep failed", "guild_id", g.ID, "error", err)
		}
	}
}

func (rc *Reconciler) reportSyncHealth(ctx context.Context, dbc dbctx.Context, guildID int64) {
	synced, unindexed, stale, err := rc.repos.Sessions.CountIndexedState(dbc, guildID)
	if err != nil {
		rc.log.Warn("Sync health count failed", "guild_id", guildID, "error", err)
		return
	}
	total := synced + unindexed + stale
	ratio := 1.0
	if total > 0 {
		ratio = float64(synced) / float64(total)
	}
	rc.metrics.RecordSyncHealth(ctx, guildID, ratio)
	if ratio <= 0.95 {
		rc.log.Warn("Guild sync health degraded",
			"guild_id", guildID,
			"synced", synced,
			"unindexed", unindexed,
			"stale", stale,
		)
	}
}

func (rc *Reconciler) recordQueueDepth(ctx context.Context) {
	depths, err := rc.repos.Jobs.CountQueuedByPriority(dbctx.Context{Ctx: ctx})
	if err != nil {
		rc.log.Warn("Queue depth count failed", "error", err)
		return
	}
	for priority, depth := range depths {
		rc.metrics.RecordQueueDepth(ctx, priority, depth)
	}
}
