package jobs

import (
	"time"
)

// EmbedderManifest records the embedder identity the index was built
// with. There is at most one row. A mismatch between the stored identity
// and the running process is a migration event: the reconciler marks
// every indexed session stale and re-embeds it. Document chunks are not
// re-embedded.
type EmbedderManifest struct {
	ID        int    `gorm:"column:id;primaryKey" json:"id"`
	Identity  string `gorm:"column:identity;not null" json:"identity"`
	VectorDim int    `gorm:"column:vector_dim;not null" json:"vector_dim"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (EmbedderManifest) TableName() string { return "embedder_manifest" }
