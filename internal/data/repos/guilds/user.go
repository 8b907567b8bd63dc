package guilds

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type UserRepo interface {
	Upsert(dbc dbctx.Context, id int64, displayName string, isBot bool) (*types.User, error)
	GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.User, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) Upsert(dbc dbctx.Context, id int64, displayName string, isBot bool) (*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	u := &types.User{ID: id, DisplayName: displayName, IsBot: isBot}
	err := transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"display_name": displayName,
				"is_bot":       isBot,
				"updated_at":   time.Now().UTC(),
			}),
		}).
		Create(u).Error
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *userRepo) GetByIDs(dbc dbctx.Context, ids []int64) ([]*types.User, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.User
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
