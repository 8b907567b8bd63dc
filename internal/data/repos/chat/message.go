package chat

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

// UpsertResult reports the message's prior state so the ingestor can
// decide whether an edit actually changed anything.
type UpsertResult struct {
	Created        bool
	ContentChanged bool
	PrevContent    string
	PrevVectorKey  *string
	PrevUpdatedAt  time.Time
	PrevIsDeleted  bool
}

// PurgeTarget pairs a soft-deleted message with the vector key it held.
type PurgeTarget struct {
	MessageID int64
	VectorKey *string
}

type MessageRepo interface {
	Upsert(dbc dbctx.Context, m *types.Message) (*UpsertResult, error)
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Message, error)
	SoftDelete(dbc dbctx.Context, guildID int64, ids []int64) ([]PurgeTarget, error)
	BulkSoftDeleteChannel(dbc dbctx.Context, guildID, channelID int64) ([]PurgeTarget, error)
	SetVectorKey(dbc dbctx.Context, ids []int64, key string) error
	ClearVectorKey(dbc dbctx.Context, id int64, expectedKey string) (bool, error)
	ClearChannelVectorKeys(dbc dbctx.Context, guildID, channelID int64) error
	ListWindow(dbc dbctx.Context, channelID, aroundID int64, before, after int) ([]*types.Message, error)
	ListChannelPage(dbc dbctx.Context, guildID, channelID, afterID int64, limit int) ([]*types.Message, error)
	ListRange(dbc dbctx.Context, channelID, startID, endID int64) ([]*types.Message, error)
	ListRecent(dbc dbctx.Context, guildID, channelID int64, since, until time.Time, limit int) ([]*types.Message, error)
	ListPendingDelete(dbc dbctx.Context, guildID int64, limit int) ([]PurgeTarget, error)
	ListUnindexed(dbc dbctx.Context, guildID int64, limit int) ([]*types.Message, error)
	CountIndexedState(dbc dbctx.Context, guildID int64) (synced int64, unsynced int64, err error)
	ListUnindexedChannelsHoldingVectors(dbc dbctx.Context, guildID int64) ([]int64, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

// Upsert inserts or updates a message inside one transaction, holding a
// row lock on the id so replays and concurrent edits serialize per
// message. The previous content/vector_key/updated_at come back to the
// caller; a replay with unchanged content reports ContentChanged=false.
func (r *messageRepo) Upsert(dbc dbctx.Context, m *types.Message) (*UpsertResult, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := &UpsertResult{}
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var prev types.Message
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", m.ID).
			First(&prev).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			out.Created = true
			out.ContentChanged = true
			return txx.Create(m).Error
		}
		if qErr != nil {
			return qErr
		}

		out.PrevContent = prev.Content
		out.PrevVectorKey = prev.VectorKey
		out.PrevUpdatedAt = prev.UpdatedAt
		out.PrevIsDeleted = prev.IsDeleted
		out.ContentChanged = prev.Content != m.Content

		// Deleted rows never resurrect; the tombstone wins over replays.
		if prev.IsDeleted {
			out.ContentChanged = false
			return nil
		}
		if !out.ContentChanged {
			return nil
		}
		return txx.Model(&types.Message{}).
			Where("id = ?", m.ID).
			Updates(map[string]interface{}{
				"content":    m.Content,
				"updated_at": time.Now().UTC(),
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Message
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

func (r *messageRepo) SoftDelete(dbc dbctx.Context, guildID int64, ids []int64) ([]PurgeTarget, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return []PurgeTarget{}, nil
	}
	var targets []PurgeTarget
	now := time.Now().UTC()
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var rows []*types.Message
		if err := txx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("guild_id = ? AND id IN ? AND is_deleted = ?", guildID, ids, false).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		rowIDs := make([]int64, 0, len(rows))
		for _, row := range rows {
			rowIDs = append(rowIDs, row.ID)
			if row.VectorKey != nil {
				targets = append(targets, PurgeTarget{MessageID: row.ID, VectorKey: row.VectorKey})
			} else {
				targets = append(targets, PurgeTarget{MessageID: row.ID})
			}
		}
		return txx.Model(&types.Message{}).
			Where("id IN ?", rowIDs).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"deleted_at": now,
				"content":    types.DeletedContent,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

func (r *messageRepo) BulkSoftDeleteChannel(dbc dbctx.Context, guildID, channelID int64) ([]PurgeTarget, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var targets []PurgeTarget
	now := time.Now().UTC()
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var rows []*types.Message
		if err := txx.Select("id", "vector_key").
			Where("guild_id = ? AND channel_id = ? AND is_deleted = ?", guildID, channelID, false).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			targets = append(targets, PurgeTarget{MessageID: row.ID, VectorKey: row.VectorKey})
		}
		return txx.Model(&types.Message{}).
			Where("guild_id = ? AND channel_id = ? AND is_deleted = ?", guildID, channelID, false).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"deleted_at": now,
				"content":    types.DeletedContent,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return targets, nil
}

// SetVectorKey stamps the covering session's vector key onto messages.
// Deleted rows are skipped: a message deleted mid-embed must stay in the
// pending-purge population.
func (r *messageRepo) SetVectorKey(dbc dbctx.Context, ids []int64, key string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("id IN ? AND is_deleted = ?", ids, false).
		Updates(map[string]interface{}{
			"vector_key": key,
			"indexed_at": now,
			"updated_at": now,
		}).Error
}

// ClearVectorKey is a compare-and-swap: the key is nulled only while it
// still holds the expected value. A false return means someone re-indexed
// in between; the caller re-reads and decides.
func (r *messageRepo) ClearVectorKey(dbc dbctx.Context, id int64, expectedKey string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
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

func (r *messageRepo) ClearChannelVectorKeys(dbc dbctx.Context, guildID, channelID int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Where("guild_id = ? AND channel_id = ? AND vector_key IS NOT NULL", guildID, channelID).
		Updates(map[string]interface{}{
			"vector_key": nil,
			"indexed_at": nil,
			"updated_at": time.Now().UTC(),
		}).Error
}

// ListWindow loads up to `before` messages at or below aroundID plus up
// to `after` above it, ascending, excluding soft-deleted rows. This is
// the sessionizer's read surface.
func (r *messageRepo) ListWindow(dbc dbctx.Context, channelID, aroundID int64, before, after int) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var older []*types.Message
	if err := transaction.WithContext(dbc.Ctx).
		Where("channel_id = ? AND id <= ? AND is_deleted = ?", channelID, aroundID, false).
		Order("id DESC").
		Limit(before).
		Find(&older).Error; err != nil {
		return nil, err
	}
	var newer []*types.Message
	if after > 0 {
		if err := transaction.WithContext(dbc.Ctx).
			Where("channel_id = ? AND id > ? AND is_deleted = ?", channelID, aroundID, false).
			Order("id ASC").
			Limit(after).
			Find(&newer).Error; err != nil {
			return nil, err
		}
	}
	out := make([]*types.Message, 0, len(older)+len(newer))
	for i := len(older) - 1; i >= 0; i-- {
		out = append(out, older[i])
	}
	out = append(out, newer...)
	return out, nil
}

func (r *messageRepo) ListChannelPage(dbc dbctx.Context, guildID, channelID, afterID int64, limit int) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Message
	if err := transaction.WithContext(dbc.Ctx).
		Where("guild_id = ? AND channel_id = ? AND id > ? AND is_deleted = ?", guildID, channelID, afterID, false).
		Order("id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) ListRange(dbc dbctx.Context, channelID, startID, endID int64) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Message
	if err := transaction.WithContext(dbc.Ctx).
		Where("channel_id = ? AND id >= ? AND id <= ? AND is_deleted = ?", channelID, startID, endID, false).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListRecent serves the read-only list_recent query. Soft-deleted rows
// are excluded entirely; their content must never leave the store.
func (r *messageRepo) ListRecent(dbc dbctx.Context, guildID, channelID int64, since, until time.Time, limit int) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Message
	q := transaction.WithContext(dbc.Ctx).
		Where("guild_id = ? AND channel_id = ? AND is_deleted = ?", guildID, channelID, false)
	if !since.IsZero() {
		q = q.Where("timestamp >= ?", since)
	}
	if !until.IsZero() {
		q = q.Where("timestamp <= ?", until)
	}
	if err := q.Order("timestamp DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) ListPendingDelete(dbc dbctx.Context, guildID int64, limit int) ([]PurgeTarget, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []*types.Message
	if err := transaction.WithContext(dbc.Ctx).
		Select("id", "vector_key").
		Where("guild_id = ? AND is_deleted = ? AND vector_key IS NOT NULL", guildID, true).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]PurgeTarget, 0, len(rows))
	for _, row := range rows {
		out = append(out, PurgeTarget{MessageID: row.ID, VectorKey: row.VectorKey})
	}
	return out, nil
}

// ListUnindexed returns live messages in indexed channels that no session
// vector covers yet. The reconciler turns these into sessionize work.
func (r *messageRepo) ListUnindexed(dbc dbctx.Context, guildID int64, limit int) ([]*types.Message, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Message
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN channel ON channel.id = message.channel_id").
		Where("message.guild_id = ? AND message.is_deleted = ? AND message.vector_key IS NULL AND message.indexed_at IS NULL", guildID, false).
		Where("channel.is_indexed = ? AND channel.is_deleted = ?", true, false).
		Order("message.id ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListUnindexedChannelsHoldingVectors finds channels that opted out of
// indexing but still have messages claiming vector keys. Each one is a
// purge the system owes.
func (r *messageRepo) ListUnindexedChannelsHoldingVectors(dbc dbctx.Context, guildID int64) ([]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Distinct("message.channel_id").
		Joins("JOIN channel ON channel.id = message.channel_id").
		Where("message.guild_id = ? AND message.vector_key IS NOT NULL", guildID).
		Where("channel.is_indexed = ?", false).
		Pluck("message.channel_id", &out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) CountIndexedState(dbc dbctx.Context, guildID int64) (int64, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var synced int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Joins("JOIN channel ON channel.id = message.channel_id").
		Where("message.guild_id = ? AND message.is_deleted = ? AND channel.is_indexed = ? AND channel.is_deleted = ?", guildID, false, true, false).
		Where("message.vector_key IS NOT NULL").
		Count(&synced).Error; err != nil {
		return 0, 0, err
	}
	var unsynced int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Message{}).
		Joins("JOIN channel ON channel.id = message.channel_id").
		Where("message.guild_id = ? AND message.is_deleted = ? AND channel.is_indexed = ? AND channel.is_deleted = ?", guildID, false, true, false).
		Where("message.vector_key IS NULL").
		Count(&unsynced).Error; err != nil {
		return 0, 0, err
	}
	return synced, unsynced, nil
}
