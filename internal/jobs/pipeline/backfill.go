package pipeline

import (
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
)

// BackfillChannelHandler walks a channel's history in ascending pages,
// scheduling one sessionize per page plus its own continuation. Low
// priority throughout: any delete or live-traffic work preempts it, and
// back-pressure sheds it first.
type BackfillChannelHandler struct {
	Deps
}

func (h *BackfillChannelHandler) Type() string { return types.JobTypeBackfillChannel }

func (h *BackfillChannelHandler) Run(jc *runtime.Context) error {
	guildID, ok := jc.PayloadInt64("guild_id")
	if !ok {
		return errkind.New(errkind.Permanent, "backfill payload missing guild_id")
	}
	channelID, ok := jc.PayloadInt64("channel_id")
	if !ok {
		return errkind.New(errkind.Permanent, "backfill payload missing channel_id")
	}
	after, _ := jc.PayloadInt64("after")

	dbc := dbctx.Context{Ctx: jc.Ctx}
	channel, err := h.Repos.Channels.GetByID(dbc, channelID)
	if err != nil {
		return err
	}
	if channel == nil {
		return errkind.New(errkind.NotFound, "channel %d not found", channelID)
	}
	if !channel.IsIndexed || channel.IsDeleted {
		// Toggled back off mid-backfill; the walk just stops.
		return nil
	}

	page, err := h.Repos.Messages.ListChannelPage(dbc, guildID, channelID, after, h.Cfg.BackfillPage)
	if err != nil {
		return err
	}
	if len(page) == 0 {
		h.Log.Info("Channel backfill complete",
			"guild_id", guildID,
			"channel_id", channelID,
		)
		return nil
	}

	// Anchor sessionization at the end of the page; the window read
	// covers the page body.
	last := page[len(page)-1].ID
	if err := h.Enqueue.SessionizePage(jc.Ctx, guildID, channelID, last); err != nil {
		return err
	}
	return h.Enqueue.BackfillChannel(jc.Ctx, guildID, channelID, last)
}
