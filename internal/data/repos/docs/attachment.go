package docs

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type AttachmentRepo interface {
	Create(dbc dbctx.Context, a *types.Attachment) (*types.Attachment, error)
	GetByID(dbc dbctx.Context, id int64) (*types.Attachment, error)
	ListByMessageIDs(dbc dbctx.Context, messageIDs []int64) ([]*types.Attachment, error)
	UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error
	SetProcessing(dbc dbctx.Context, id int64) (bool, error)
	SetCompleted(dbc dbctx.Context, id int64, extractedText string, vectorKeys []byte) error
	SetFailed(dbc dbctx.Context, id int64, reason string) error
	SoftDeleteByMessageIDs(dbc dbctx.Context, guildID int64, messageIDs []int64) ([]int64, error)
}

type attachmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttachmentRepo(db *gorm.DB, baseLog *logger.Logger) AttachmentRepo {
	return &attachmentRepo{db: db, log: baseLog.With("repo", "AttachmentRepo")}
}

func (r *attachmentRepo) Create(dbc dbctx.Context, a *types.Attachment) (*types.Attachment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	// Replays of the same platform event are a no-op.
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(a).Error
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *attachmentRepo) GetByID(dbc dbctx.Context, id int64) (*types.Attachment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var a types.Attachment
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&a).Error
	if err != nil {
		return nil, err
	}
	if a.ID == 0 {
		return nil, nil
	}
	return &a, nil
}

func (r *attachmentRepo) ListByMessageIDs(dbc dbctx.Context, messageIDs []int64) ([]*types.Attachment, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Attachment
	if len(messageIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("message_id IN ?", messageIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attachmentRepo) UpdateFields(dbc dbctx.Context, id int64, updates map[string]interface{}) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == 0 {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SetProcessing transitions pending → processing. The guard makes the
// ingest job idempotent: a replay against a completed row updates nothing
// and the handler short-circuits.
func (r *attachmentRepo) SetProcessing(dbc dbctx.Context, id int64) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("id = ? AND processing_status IN ?", id, []string{types.ProcessingPending, types.ProcessingProcessing}).
		Updates(map[string]interface{}{
			"processing_status": types.ProcessingProcessing,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *attachmentRepo) SetCompleted(dbc dbctx.Context, id int64, extractedText string, vectorKeys []byte) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]interface{}{
		"processing_status": types.ProcessingCompleted,
		"processing_error":  "",
		"extracted_text":    extractedText,
		"updated_at":        time.Now().UTC(),
	}
	if len(vectorKeys) > 0 {
		updates["vector_keys"] = vectorKeys
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *attachmentRepo) SetFailed(dbc dbctx.Context, id int64, reason string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Attachment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_status": types.ProcessingFailed,
			"processing_error":  reason,
			"updated_at":        time.Now().UTC(),
		}).Error
}

func (r *attachmentRepo) SoftDeleteByMessageIDs(dbc dbctx.Context, guildID int64, messageIDs []int64) ([]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var affected []int64
	now := time.Now().UTC()
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var rows []*types.Attachment
		if err := txx.Select("id").
			Where("guild_id = ? AND message_id IN ? AND is_deleted = ?", guildID, messageIDs, false).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			affected = append(affected, row.ID)
		}
		return txx.Model(&types.Attachment{}).
			Where("id IN ?", affected).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"deleted_at": now,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return affected, nil
}
