package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/guildmind-backend/internal/chunking"
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

const blockedExtensionReason = "blocked_extension"

// IngestAttachmentHandler fetches an attachment's bytes, extracts text,
// chunks it and indexes every chunk. Permanent failures (blocked
// extension, oversize, corrupt file) mark the attachment failed and
// dead-letter the job; transient failures retry.
//
// Replays converge: previously written chunks and vectors are dropped
// before re-ingestion, so the chunk set always mirrors a single run.
type IngestAttachmentHandler struct {
	Deps
}

func (h *IngestAttachmentHandler) Type() string { return types.JobTypeIngestAttachment }

func (h *IngestAttachmentHandler) Run(jc *runtime.Context) error {
	attachmentID, ok := jc.PayloadInt64("attachment_id")
	if !ok {
		return errkind.New(errkind.Permanent, "ingest_attachment payload missing attachment_id")
	}

	dbc := dbctx.Context{Ctx: jc.Ctx}
	a, err := h.Repos.Attachments.GetByID(dbc, attachmentID)
	if err != nil {
		return err
	}
	if a == nil {
		return errkind.New(errkind.NotFound, "attachment %d not found", attachmentID)
	}
	if a.IsDeleted || a.ProcessingStatus == types.ProcessingCompleted {
		return nil
	}

	channel, err := h.Repos.Channels.GetByID(dbc, a.ChannelID)
	if err != nil {
		return err
	}
	if channel == nil || !channel.IsIndexed || channel.IsDeleted {
		// Opted-out channels never gain document vectors; the row stays
		// pending, and turning indexing back on does not re-enqueue it.
		return nil
	}

	if ext := strings.ToLower(filepath.Ext(a.FileName)); h.isBlockedExtension(ext) {
		// Rejected before any byte is fetched.
		if err := h.Repos.Attachments.SetFailed(dbc, a.ID, blockedExtensionReason); err != nil {
			return err
		}
		h.Log.Warn("Attachment rejected",
			"attachment_id", a.ID,
			"reason", blockedExtensionReason,
		)
		return errkind.New(errkind.Permanent, "%s: %s", blockedExtensionReason, ext)
	}

	if _, err := h.Repos.Attachments.SetProcessing(dbc, a.ID); err != nil {
		return err
	}

	text, description, ingestErr := h.extract(jc.Ctx, a)
	if ingestErr != nil {
		if errkind.Is(ingestErr, errkind.Permanent) || errkind.Is(ingestErr, errkind.NotFound) {
			reason := failureReason(ingestErr)
			if err := h.Repos.Attachments.SetFailed(dbc, a.ID, reason); err != nil {
				return err
			}
			if errkind.Is(ingestErr, errkind.NotFound) {
				return nil
			}
		}
		return ingestErr
	}

	pieces := chunking.Split(text, chunking.Params{
		MaxTokens: h.Cfg.ChunkMaxTokens,
		MinTokens: h.Cfg.ChunkMinTokens,
	})
	if len(pieces) == 0 {
		if err := h.Repos.Attachments.SetFailed(dbc, a.ID, "empty_document"); err != nil {
			return err
		}
		return nil
	}

	if err := h.dropPreviousChunks(jc.Ctx, dbc, a.ID); err != nil {
		return err
	}

	keys, err := h.indexChunks(jc, dbc, a, pieces)
	if err != nil {
		return err
	}

	rawKeys, err := json.Marshal(keys)
	if err != nil {
		return errkind.Wrap(errkind.Permanent, err)
	}
	if description != "" {
		if err := h.Repos.Attachments.UpdateFields(dbc, a.ID, map[string]interface{}{"description": description}); err != nil {
			return err
		}
	}
	return h.Repos.Attachments.SetCompleted(dbc, a.ID, text, rawKeys)
}

// extract produces the attachment's full text by source type. The
// returned description is non-empty only for images.
func (h *IngestAttachmentHandler) extract(ctx context.Context, a *types.Attachment) (text string, description string, err error) {
	switch a.SourceType {
	case types.SourceTypeText, types.SourceTypeMarkdown:
		if a.SizeBytes > h.Cfg.MaxTextBytes {
			return "", "", errkind.New(errkind.Permanent, "oversize: %d > %d", a.SizeBytes, h.Cfg.MaxTextBytes)
		}
		data, err := h.Fetcher.Fetch(ctx, a.SourceURL, h.Cfg.MaxTextBytes)
		if err != nil {
			return "", "", err
		}
		if chunking.LooksLikeHTML(data) {
			return chunking.StripHTML(string(data)), "", nil
		}
		return string(data), "", nil

	case types.SourceTypePDF:
		if a.SizeBytes > h.Cfg.MaxPDFBytes {
			return "", "", errkind.New(errkind.Permanent, "oversize: %d > %d", a.SizeBytes, h.Cfg.MaxPDFBytes)
		}
		data, err := h.Fetcher.Fetch(ctx, a.SourceURL, h.Cfg.MaxPDFBytes)
		if err != nil {
			return "", "", err
		}
		pages, err := chunking.ExtractPDFPages(data)
		if err != nil {
			return "", "", errkind.Wrap(errkind.Permanent, fmt.Errorf("corrupt pdf: %w", err))
		}
		var b strings.Builder
		for i, page := range pages {
			if strings.TrimSpace(page) == "" {
				continue
			}
			fmt.Fprintf(&b, "# Page %d\n\n%s\n\n", i+1, page)
		}
		return strings.TrimSpace(b.String()), "", nil

	case types.SourceTypeImage:
		if a.SizeBytes > h.Cfg.MaxImageBytes {
			return "", "", errkind.New(errkind.Permanent, "oversize: %d > %d", a.SizeBytes, h.Cfg.MaxImageBytes)
		}
		desc, err := h.Captioner.DescribeImage(ctx, a.SourceURL)
		if err != nil {
			return "", "", err
		}
		return desc, desc, nil

	default:
		return "", "", errkind.New(errkind.Permanent, "unsupported source_type %q", a.SourceType)
	}
}

func (h *IngestAttachmentHandler) dropPreviousChunks(ctx context.Context, dbc dbctx.Context, attachmentID int64) error {
	prev, err := h.Repos.Chunks.ListByAttachmentIDs(dbc, []int64{attachmentID})
	if err != nil {
		return err
	}
	if len(prev) == 0 {
		return nil
	}
	var keys []string
	for _, c := range prev {
		if c.VectorKey != nil {
			keys = append(keys, *c.VectorKey)
		}
	}
	if len(keys) > 0 {
		vsCtx, cancel := context.WithTimeout(ctx, vsTimeout)
		err := h.Store.Delete(vsCtx, keys)
		cancel()
		if err != nil {
			return err
		}
	}
	return h.Repos.Chunks.DeleteByAttachmentIDs(dbc, []int64{attachmentID})
}

func (h *IngestAttachmentHandler) indexChunks(jc *runtime.Context, dbc dbctx.Context, a *types.Attachment, pieces []chunking.Chunk) ([]string, error) {
	rows := make([]*types.DocumentChunk, 0, len(pieces))
	texts := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		rows = append(rows, &types.DocumentChunk{
			ID:           uuid.New(),
			AttachmentID: a.ID,
			GuildID:      a.GuildID,
			ChannelID:    a.ChannelID,
			ChunkIndex:   piece.Index,
			ChunkText:    piece.Text,
			Heading:      piece.Heading,
		})
		texts = append(texts, chunking.EmbedText(piece))
	}
	if _, err := h.Repos.Chunks.Create(dbc, rows); err != nil {
		return nil, err
	}

	embCtx, cancel := context.WithTimeout(jc.Ctx, 4*embedTimeout)
	vecs, err := h.Embedder.Embed(embCtx, texts)
	cancel()
	if err != nil {
		return nil, err
	}

	points := make([]vector.Point, 0, len(rows))
	keys := make([]string, 0, len(rows))
	for i, row := range rows {
		key := row.ID.String()
		keys = append(keys, key)
		points = append(points, vector.Point{
			ID:     key,
			Vector: vecs[i],
			Payload: vector.Payload{
				GuildID:   a.GuildID,
				ChannelID: a.ChannelID,
				Kind:      vector.KindDocChunk,
				SourceIDs: []int64{a.ID},
				Preview:   vector.TruncatePreview(texts[i]),
				Embedder:  h.Embedder.Identity(),
			},
		})
	}

	vsCtx, cancel := context.WithTimeout(jc.Ctx, vsTimeout)
	err = h.Store.Upsert(vsCtx, points)
	cancel()
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if _, err := h.Repos.Chunks.MarkIndexed(dbc, row.ID, row.ID.String()); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (h *IngestAttachmentHandler) isBlockedExtension(ext string) bool {
	for _, blocked := range h.Cfg.BlockedExtensions {
		if ext == blocked {
			return true
		}
	}
	return false
}

func failureReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "oversize"):
		return "oversize"
	case strings.Contains(msg, "corrupt"):
		return "corrupt_file"
	case strings.Contains(msg, "unsupported source_type"):
		return "unsupported_type"
	case errkind.Is(err, errkind.NotFound):
		return "source_gone"
	default:
		return "permanent_failure"
	}
}
