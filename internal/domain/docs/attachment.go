package docs

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SourceTypeImage    = "image"
	SourceTypePDF      = "pdf"
	SourceTypeText     = "text"
	SourceTypeMarkdown = "markdown"
)

const (
	ProcessingPending    = "pending"
	ProcessingProcessing = "processing"
	ProcessingCompleted  = "completed"
	ProcessingFailed     = "failed"
)

// Attachment is a file referenced by a message. The ingestor records the
// row; the worker fetches bytes, extracts text and splits it into
// document chunks asynchronously.
type Attachment struct {
	ID        int64 `gorm:"column:id;primaryKey;autoIncrement:false" json:"id"`
	MessageID int64 `gorm:"column:message_id;not null;index" json:"message_id"`
	GuildID   int64 `gorm:"column:guild_id;not null;index" json:"guild_id"`
	ChannelID int64 `gorm:"column:channel_id;not null;index" json:"channel_id"`

	SourceURL  string `gorm:"column:source_url;not null" json:"source_url"`
	FileName   string `gorm:"column:file_name;not null;default:''" json:"file_name"`
	MimeType   string `gorm:"column:mime_type;not null;default:''" json:"mime_type"`
	SizeBytes  int64  `gorm:"column:size_bytes;not null;default:0" json:"size_bytes"`
	SourceType string `gorm:"column:source_type;not null;index" json:"source_type"`

	ProcessingStatus string `gorm:"column:processing_status;not null;default:'pending';index" json:"processing_status"`
	ProcessingError  string `gorm:"column:processing_error;not null;default:''" json:"processing_error,omitempty"`

	ExtractedText string `gorm:"column:extracted_text;type:text;not null;default:''" json:"extracted_text,omitempty"`
	Description   string `gorm:"column:description;type:text;not null;default:''" json:"description,omitempty"`

	// VectorKeys mirrors the chunk vector keys for fast purge lookups.
	VectorKeys datatypes.JSON `gorm:"type:jsonb;column:vector_keys;not null;default:'[]'" json:"vector_keys"`

	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false;index" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Attachment) TableName() string { return "attachment" }
