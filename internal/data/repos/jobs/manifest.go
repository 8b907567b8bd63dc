package jobs

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/guildmind-backend/internal/domain"
	"github.com/yungbote/guildmind-backend/internal/pkg/dbctx"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type ManifestRepo interface {
	Get(dbc dbctx.Context) (*types.EmbedderManifest, error)
	Save(dbc dbctx.Context, identity string, vectorDim int) error
}

type manifestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewManifestRepo(db *gorm.DB, baseLog *logger.Logger) ManifestRepo {
	return &manifestRepo{db: db, log: baseLog.With("repo", "ManifestRepo")}
}

func (r *manifestRepo) Get(dbc dbctx.Context) (*types.EmbedderManifest, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var m types.EmbedderManifest
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", 1).
		Limit(1).
		Find(&m).Error
	if err != nil {
		return nil, err
	}
	if m.Identity == "" {
		return nil, nil
	}
	return &m, nil
}

func (r *manifestRepo) Save(dbc dbctx.Context, identity string, vectorDim int) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	m := &types.EmbedderManifest{ID: 1, Identity: identity, VectorDim: vectorDim}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"identity":   identity,
				"vector_dim": vectorDim,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(m).Error
}
