package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Priority classes. The claim query always drains high before default
// before low.
const (
	PriorityHigh    = "high"
	PriorityDefault = "default"
	PriorityLow     = "low"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusDead      = "dead"
)

// Job types executed by the indexing worker.
const (
	TypeSessionize          = "sessionize"
	TypeEmbedSession        = "embed_session"
	TypeReindexSessionFor   = "reindex_session_for"
	TypePurgeMessageVectors = "purge_message_vectors"
	TypePurgeChannelVectors = "purge_channel_vectors"
	TypeBackfillChannel     = "backfill_channel"
	TypeIngestAttachment    = "ingest_attachment"
)

// Job is a durable queue row. Delivery is at-least-once: a claim sets a
// lease (LeaseExpiresAt) and bumps Attempts; a lease that expires without
// ack or nack is an implicit nack. NotBefore carries both enqueue delays
// and retry backoff.
type Job struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	GuildID int64     `gorm:"column:guild_id;not null;index" json:"guild_id"`

	JobType  string `gorm:"column:job_type;not null;index" json:"job_type"`
	Priority string `gorm:"column:priority;not null;default:'default';index" json:"priority"`

	// DedupKey coalesces repeat enqueues within a sliding window into a
	// single pending job. Empty means no coalescing.
	DedupKey string `gorm:"column:dedup_key;not null;default:'';index" json:"dedup_key,omitempty"`

	Status   string `gorm:"column:status;not null;default:'queued';index" json:"status"`
	Attempts int    `gorm:"column:attempts;not null;default:0" json:"attempts"`

	NotBefore      time.Time  `gorm:"column:not_before;not null;default:now();index" json:"not_before"`
	LeaseExpiresAt *time.Time `gorm:"column:lease_expires_at;index" json:"lease_expires_at,omitempty"`
	WorkerID       string     `gorm:"column:worker_id;not null;default:''" json:"worker_id,omitempty"`

	LastError   string     `gorm:"column:last_error;not null;default:''" json:"last_error,omitempty"`
	LastErrorAt *time.Time `gorm:"column:last_error_at" json:"last_error_at,omitempty"`

	Payload datatypes.JSON `gorm:"type:jsonb;column:payload;not null;default:'{}'" json:"payload"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Job) TableName() string { return "job" }
