package guilds

import (
	"time"
)

// User is a global cache of platform users, upserted on first appearance.
// It intentionally carries no guild_id: display names are not tenant data.
type User struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	DisplayName string `gorm:"column:display_name;not null;default:''" json:"display_name"`
	IsBot       bool   `gorm:"column:is_bot;not null;default:false" json:"is_bot"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string { return "platform_user" }
