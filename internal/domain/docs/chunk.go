package docs

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is a bounded textual slice of an attachment: the unit of
// embedding for files. Heading carries the section heading that gives a
// chunk its context. ParentChunkID is an optional link to another chunk;
// the attachment pipeline leaves it null.
type DocumentChunk struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	AttachmentID int64     `gorm:"column:attachment_id;not null;index" json:"attachment_id"`
	GuildID      int64     `gorm:"column:guild_id;not null;index" json:"guild_id"`
	ChannelID    int64     `gorm:"column:channel_id;not null;index" json:"channel_id"`

	ChunkIndex int    `gorm:"column:chunk_index;not null" json:"chunk_index"`
	ChunkText  string `gorm:"column:chunk_text;type:text;not null" json:"chunk_text"`
	Heading    string `gorm:"column:heading;not null;default:''" json:"heading,omitempty"`

	ParentChunkID *uuid.UUID `gorm:"type:uuid;column:parent_chunk_id" json:"parent_chunk_id,omitempty"`

	VectorKey *string    `gorm:"column:vector_key;index" json:"vector_key,omitempty"`
	IndexedAt *time.Time `gorm:"column:indexed_at" json:"indexed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (DocumentChunk) TableName() string { return "document_chunk" }
