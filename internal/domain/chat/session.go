package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageSession is a conversation block produced by the sessionizer: the
// unit of embedding for chat. Sessions reference contained message ids by
// range, never copies of content.
type MessageSession struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GuildID   int64     `gorm:"column:guild_id;not null;index" json:"guild_id"`
	ChannelID int64     `gorm:"column:channel_id;not null;index" json:"channel_id"`

	StartMessageID int64 `gorm:"column:start_message_id;not null;index" json:"start_message_id"`
	EndMessageID   int64 `gorm:"column:end_message_id;not null;index" json:"end_message_id"`
	MessageCount   int   `gorm:"column:message_count;not null;default:0" json:"message_count"`

	StartTime time.Time `gorm:"column:start_time;not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"column:end_time;not null" json:"end_time"`

	Summary string `gorm:"column:summary;type:text;not null;default:''" json:"summary,omitempty"`

	VectorKey *string    `gorm:"column:vector_key;index" json:"vector_key,omitempty"`
	IndexedAt *time.Time `gorm:"column:indexed_at" json:"indexed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (MessageSession) TableName() string { return "message_session" }
