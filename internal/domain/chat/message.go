package chat

import (
	"time"
)

// DeletedContent replaces the content of a soft-deleted message. The row
// survives (aggregate counts stay correct) but the text is gone for good.
const DeletedContent = "[deleted]"

// Message is the relational record of a platform message. Edits mutate
// Content and bump UpdatedAt; deletion soft-deletes and schedules a
// vector purge. VectorKey points at the session vector covering this
// message, when one exists.
type Message struct {
	ID        int64 `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	GuildID   int64 `gorm:"column:guild_id;not null;index" json:"guild_id"`
	ChannelID int64 `gorm:"column:channel_id;not null;index;index:idx_message_channel_ts,priority:1" json:"channel_id"`
	AuthorID  int64 `gorm:"column:author_id;not null;index" json:"author_id"`

	Content   string `gorm:"column:content;type:text;not null;default:''" json:"content"`
	ReplyToID *int64 `gorm:"column:reply_to_id" json:"reply_to_id,omitempty"`

	Timestamp time.Time `gorm:"column:timestamp;not null;index:idx_message_channel_ts,priority:2" json:"timestamp"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	VectorKey *string    `gorm:"column:vector_key;index" json:"vector_key,omitempty"`
	IndexedAt *time.Time `gorm:"column:indexed_at" json:"indexed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now();index" json:"updated_at"`
}

func (Message) TableName() string { return "message" }
