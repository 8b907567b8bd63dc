package guilds

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type ChannelRepo interface {
	Upsert(dbc dbctx.Context, id, guildID int64, name string) (*types.Channel, error)
	GetByID(dbc dbctx.Context, id int64) (*types.Channel, error)
	ListIndexed(dbc dbctx.Context, guildID int64) ([]*types.Channel, error)
	SetIndexed(dbc dbctx.Context, guildID, id int64, indexed bool) (changed bool, err error)
	SoftDelete(dbc dbctx.Context, guildID, id int64) error
}

type channelRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChannelRepo(db *gorm.DB, baseLog *logger.Logger) ChannelRepo {
	return &channelRepo{db: db, log: baseLog.With("repo", "ChannelRepo")}
}

func (r *channelRepo) Upsert(dbc dbctx.Context, id, guildID int64, name string) (*types.Channel, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	c := &types.Channel{ID: id, GuildID: guildID, Name: name}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"name": name, "updated_at": time.Now().UTC()}),
		}).
		Create(c).Error
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *channelRepo) GetByID(dbc dbctx.Context, id int64) (*types.Channel, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var c types.Channel
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *channelRepo) ListIndexed(dbc dbctx.Context, guildID int64) ([]*types.Channel, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Channel
	if err := transaction.WithContext(dbc.Ctx).
		Where("guild_id = ? AND is_indexed = ? AND is_deleted = ?", guildID, true, false).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SetIndexed flips the admin flag and reports whether the stored value
// actually changed, so callers enqueue purge/backfill work exactly once.
func (r *channelRepo) SetIndexed(dbc dbctx.Context, guildID, id int64, indexed bool) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Channel{}).
		Where("id = ? AND guild_id = ? AND is_indexed <> ?", id, guildID, indexed).
		Updates(map[string]interface{}{
			"is_indexed": indexed,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *channelRepo) SoftDelete(dbc dbctx.Context, guildID, id int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Channel{}).
		Where("id = ? AND guild_id = ?", id, guildID).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"is_indexed": false,
			"updated_at": time.Now().UTC(),
		}).Error
}
