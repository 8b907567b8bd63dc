package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type SessionRepo interface {
	Create(dbc dbctx.Context, sessions []*types.MessageSession) ([]*types.MessageSession, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MessageSession, error)
	FindContaining(dbc dbctx.Context, channelID, messageID int64) (*types.MessageSession, error)
	FindByRange(dbc dbctx.Context, channelID, startID, endID int64) (*types.MessageSession, error)
	ListOverlapping(dbc dbctx.Context, channelID, startID, endID int64) ([]*types.MessageSession, error)
	ListIntersectingMessages(dbc dbctx.Context, guildID int64, messageIDs []int64) ([]*types.MessageSession, error)
	ListByChannel(dbc dbctx.Context, guildID, channelID int64) ([]*types.MessageSession, error)
	MarkIndexed(dbc dbctx.Context, id uuid.UUID, vectorKey string) (bool, error)
	ClearVectorKey(dbc dbctx.Context, id uuid.UUID, expectedKey string) (bool, error)
	ClearChannelVectorKeys(dbc dbctx.Context, guildID, channelID int64) error
	BumpUpdated(dbc dbctx.Context, id uuid.UUID) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, ids []uuid.UUID) error
	ListUnindexed(dbc dbctx.Context, guildID int64, limit int) ([]*types.MessageSession, error)
	ListStale(dbc dbctx.Context, guildID int64, limit int) ([]*types.MessageSession, error)
	ListPendingDelete(dbc dbctx.Context, guildID int64, limit int) ([]*types.MessageSession, error)
	CountIndexedState(dbc dbctx.Context, guildID int64) (synced int64, unindexed int64, stale int64, err error)
	TouchAllIndexed(dbc dbctx.Context) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, sessions []*types.MessageSession) ([]*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sessions) == 0 {
		return []*types.MessageSession{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.MessageSession
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

// FindContaining resolves the session whose message-id range covers a
// message. Ranges never overlap within a channel, so at most one row
// matches.
func (r *sessionRepo) FindContaining(dbc dbctx.Context, channelID, messageID int64) (*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.MessageSession
	err := transaction.WithContext(dbc.Ctx).
		Where("channel_id = ? AND start_message_id <= ? AND end_message_id >= ?", channelID, messageID, messageID).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

func (r *sessionRepo) FindByRange(dbc dbctx.Context, channelID, startID, endID int64) (*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var s types.MessageSession
	err := transaction.WithContext(dbc.Ctx).
		Where("channel_id = ? AND start_message_id = ? AND end_message_id = ?", channelID, startID, endID).
		Limit(1).
		Find(&s).Error
	if err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, nil
	}
	return &s, nil
}

func (r *sessionRepo) ListOverlapping(dbc dbctx.Context, channelID, startID, endID int64) ([]*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MessageSession
	if err := transaction.WithContext(dbc.Ctx).
		Where("channel_id = ? AND start_message_id <= ? AND end_message_id >= ?", channelID, endID, startID).
		Order("start_message_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListIntersectingMessages resolves the sessions whose ranges cover any
// of the given messages. The channel join matters: message ids are
// global snowflakes, so a bare id-range test would match sessions in
// unrelated channels.
func (r *sessionRepo) ListIntersectingMessages(dbc dbctx.Context, guildID int64, messageIDs []int64) ([]*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MessageSession
	if len(messageIDs) == 0 {
		return out, nil
	}
	err := transaction.WithContext(dbc.Ctx).
		Where("guild_id = ?", guildID).
		Where(`EXISTS (
			SELECT 1 FROM message
			WHERE message.id IN ?
			  AND message.channel_id = message_session.channel_id
			  AND message.id >= message_session.start_message_id
			  AND message.id <= message_session.end_message_id
		)`, messageIDs).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) ListByChannel(dbc dbctx.Context, guildID, channelID int64) ([]*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MessageSession
	if err := transaction.WithContext(dbc.Ctx).
		Where("guild_id = ? AND channel_id = ?", guildID, channelID).
		Order("start_message_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkIndexed stamps the vector key and indexed_at. The guard clause is
// the CAS: a session superseded (deleted) between embed and confirm
// updates zero rows, and the caller treats that as a conflict.
func (r *sessionRepo) MarkIndexed(dbc dbctx.Context, id uuid.UUID, vectorKey string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.MessageSession{}).
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

func (r *sessionRepo) ClearVectorKey(dbc dbctx.Context, id uuid.UUID, expectedKey string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.MessageSession{}).
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

func (r *sessionRepo) ClearChannelVectorKeys(dbc dbctx.Context, guildID, channelID int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.MessageSession{}).
		Where("guild_id = ? AND channel_id = ? AND vector_key IS NOT NULL", guildID, channelID).
		Updates(map[string]interface{}{
			"vector_key": nil,
			"indexed_at": nil,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *sessionRepo) BumpUpdated(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.MessageSession{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *sessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.MessageSession{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *sessionRepo) Delete(dbc dbctx.Context, ids []uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&types.MessageSession{}).Error
}

func (r *sessionRepo) ListUnindexed(dbc dbctx.Context, guildID int64, limit int) ([]*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MessageSession
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN channel ON channel.id = message_session.channel_id").
		Where("message_session.guild_id = ? AND message_session.vector_key IS NULL AND message_session.indexed_at IS NULL", guildID).
		Where("channel.is_indexed = ? AND channel.is_deleted = ?", true, false).
		Order("message_session.created_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) ListStale(dbc dbctx.Context, guildID int64, limit int) ([]*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MessageSession
	if err := transaction.WithContext(dbc.Ctx).
		Joins("JOIN channel ON channel.id = message_session.channel_id").
		Where("message_session.guild_id = ? AND message_session.indexed_at IS NOT NULL AND message_session.updated_at > message_session.indexed_at", guildID).
		Where("channel.is_indexed = ? AND channel.is_deleted = ?", true, false).
		Order("message_session.updated_at ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListPendingDelete finds sessions whose covered messages are all gone
// but whose vector still exists.
func (r *sessionRepo) ListPendingDelete(dbc dbctx.Context, guildID int64, limit int) ([]*types.MessageSession, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.MessageSession
	if err := transaction.WithContext(dbc.Ctx).
		Where("guild_id = ? AND vector_key IS NOT NULL", guildID).
		Where(`NOT EXISTS (
			SELECT 1 FROM message
			WHERE message.channel_id = message_session.channel_id
			  AND message.id >= message_session.start_message_id
			  AND message.id <= message_session.end_message_id
			  AND message.is_deleted = false
		)`).
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// TouchAllIndexed marks every indexed session stale. Used when the
// embedder identity changes and the whole index must be rebuilt.
func (r *sessionRepo) TouchAllIndexed(dbc dbctx.Context) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.MessageSession{}).
		Where("indexed_at IS NOT NULL").
		Update("updated_at", time.Now().UTC()).Error
}

func (r *sessionRepo) CountIndexedState(dbc dbctx.Context, guildID int64) (int64, int64, int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	base := func() *gorm.DB {
		return transaction.WithContext(dbc.Ctx).
			Model(&types.MessageSession{}).
			Joins("JOIN channel ON channel.id = message_session.channel_id").
			Where("message_session.guild_id = ? AND channel.is_indexed = ? AND channel.is_deleted = ?", guildID, true, false)
	}
	var synced int64
	if err := base().
		Where("message_session.vector_key IS NOT NULL AND message_session.updated_at <= message_session.indexed_at").
		Count(&synced).Error; err != nil {
		return 0, 0, 0, err
	}
	var unindexed int64
	if err := base().
		Where("message_session.vector_key IS NULL").
		Count(&unindexed).Error; err != nil {
		return 0, 0, 0, err
	}
	var stale int64
	if err := base().
		Where("message_session.indexed_at IS NOT NULL AND message_session.updated_at > message_session.indexed_at").
		Count(&stale).Error; err != nil {
		return 0, 0, 0, err
	}
	return synced, unindexed, stale, nil
}
