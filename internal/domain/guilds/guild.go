package guilds

import (
	"time"
)

// Guild is a tenant. Rows are created on the first event seen for a guild
// and are never hard-deleted; deactivation flips IsActive and lets the
// reconciler purge derived vectors.
type Guild struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	Name     string `gorm:"column:name;not null;default:''" json:"name"`
	IsActive bool   `gorm:"column:is_active;not null;default:true;index" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Guild) TableName() string { return "guild" }
