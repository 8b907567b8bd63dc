package guilds

import (
	"time"
)

// Channel is the unit of admin opt-in to indexing. IsIndexed=false is a
// hard invariant: no message in the channel may hold a vector key.
type Channel struct {
	ID      int64  `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	GuildID int64  `gorm:"column:guild_id;not null;index" json:"guild_id"`
	Name    string `gorm:"column:name;not null;default:''" json:"name"`

	IsIndexed bool `gorm:"column:is_indexed;not null;default:false;index" json:"is_indexed"`
	IsDeleted bool `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted"`

	// SemanticRefine enables the optional semantic split pass for long
	// conversations in this channel.
	SemanticRefine bool `gorm:"column:semantic_refine;not null;default:false" json:"semantic_refine"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Channel) TableName() string { return "channel" }
