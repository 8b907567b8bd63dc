package guilds

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type GuildRepo interface {
	Upsert(dbc dbctx.Context, id int64, name string) (*types.Guild, error)
	GetByID(dbc dbctx.Context, id int64) (*types.Guild, error)
	ListActive(dbc dbctx.Context) ([]*types.Guild, error)
	ListInactive(dbc dbctx.Context) ([]*types.Guild, error)
	SetActive(dbc dbctx.Context, id int64, active bool) error
}

type guildRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGuildRepo(db *gorm.DB, baseLog *logger.Logger) GuildRepo {
	return &guildRepo{db: db, log: baseLog.With("repo", "GuildRepo")}
}

func (r *guildRepo) Upsert(dbc dbctx.Context, id int64, name string) (*types.Guild, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	g := &types.Guild{ID: id, Name: name, IsActive: true}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"name": name, "updated_at": time.Now().UTC()}),
		}).
		Create(g).Error
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *guildRepo) GetByID(dbc dbctx.Context, id int64) (*types.Guild, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var g types.Guild
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&g).Error
	if err != nil {
		return nil, err
	}
	if g.ID == 0 {
		return nil, nil
	}
	return &g, nil
}

func (r *guildRepo) ListActive(dbc dbctx.Context) ([]*types.Guild, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Guild
	if err := transaction.WithContext(dbc.Ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *guildRepo) ListInactive(dbc dbctx.Context) ([]*types.Guild, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Guild
	if err := transaction.WithContext(dbc.Ctx).
		Where("is_active = ?", false).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *guildRepo) SetActive(dbc dbctx.Context, id int64, active bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.Guild{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  active,
			"updated_at": time.Now().UTC(),
		}).Error
}
