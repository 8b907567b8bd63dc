package docs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type DocumentChunkRepo interface {
	Create(dbc dbctx.Context, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentChunk, error)
	ListByAttachmentIDs(dbc dbctx.Context, attachmentIDs []int64) ([]*types.DocumentChunk, error)
	MarkIndexed(dbc dbctx.Context, id uuid.UUID, vectorKey string) (bool, error)
	ClearVectorKey(dbc dbctx.Context, id uuid.UUID, expectedKey string) (bool, error)
	ClearChannelVectorKeys(dbc dbctx.Context, guildID, channelID int64) error
	DeleteByAttachmentIDs(dbc dbctx.Context, attachmentIDs []int64) error
	ListUnindexed(dbc dbctx.Context, guildID int64, limit int) ([]*types.DocumentChunk, error)
	ListPendingDelete(dbc dbctx.Context, guildID int64, limit int) ([]*types.DocumentChunk, error)
}

type documentChunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentChunkRepo(db *gorm.DB, baseLog *logger.Logger) DocumentChunkRepo {
	return &documentChunkRepo{db: db, log: baseLog.With("repo", "DocumentChunkRepo")}
}

func (r *documentChunkRepo) Create(dbc dbctx.Context, chunks []*types.DocumentChunk) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(chunks) == 0 {
		return []*types.DocumentChunk{}, nil
	}

	// Keep batches small because ChunkText is large
	const batchSize = 100

	if err := transaction.WithContext(dbc.Ctx).CreateInBatches(chunks, batchSize).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *documentChunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DocumentChunk
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentChunkRepo) ListByAttachmentIDs(dbc dbctx.Context, attachmentIDs []int64) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DocumentChunk
	if len(attachmentIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("attachment_id IN ?", attachmentIDs).
		Order("attachment_id, chunk_index ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentChunkRepo) MarkIndexed(dbc dbctx.Context, id uuid.UUID, vectorKey string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.DocumentChunk{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"vector_key": vectorKey,
			"indexed_at": now,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *documentChunkRepo) ClearVectorKey(dbc dbctx.Context, id uuid.UUID, expectedKey string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.DocumentChunk{}).
		Where("id = ? AND vector_key = ?", id, expectedKey).
		Updates(map[string]interface{}{
			"vector_key": nil,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *documentChunkRepo) ClearChannelVectorKeys(dbc dbctx.Context, guildID, channelID int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.DocumentChunk{}).
		Where("guild_id = ? AND channel_id = ? AND vector_key IS NOT NULL", guildID, channelID).
		Updates(map[string]interface{}{
			"vector_key": nil,
			"indexed_at": nil,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *documentChunkRepo) DeleteByAttachmentIDs(dbc dbctx.Context, attachmentIDs []int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(attachmentIDs) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("attachment_id IN ?", attachmentIDs).
		Delete(&types.DocumentChunk{}).Error
}

func (r *documentChunkRepo) ListUnindexed(dbc dbctx.Context, guildID int64, limit int) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DocumentChunk
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN attachment ON attachment.id = document_chunk.attachment_id").
		Joins("JOIN channel ON channel.id = document_chunk.channel_id").
		Where("document_chunk.guild_id = ? AND document_chunk.vector_key IS NULL", guildID).
		Where("attachment.is_deleted = ?", false).
		Where("channel.is_indexed = ? AND channel.is_deleted = ?", true, false).
		Order("document_chunk.created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingDelete surfaces chunks whose parent attachment is gone but
// whose vector key survives.
func (r *documentChunkRepo) ListPendingDelete(dbc dbctx.Context, guildID int64, limit int) ([]*types.DocumentChunk, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.DocumentChunk
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN attachment ON attachment.id = document_chunk.attachment_id").
		Where("document_chunk.guild_id = ? AND document_chunk.vector_key IS NOT NULL", guildID).
		Where("attachment.is_deleted = ?", true).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
