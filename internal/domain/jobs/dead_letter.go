package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobDeadLetter preserves permanently failed jobs for admin inspection.
// One bucket per job type; rows are append-only.
type JobDeadLetter struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	JobID   uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	GuildID int64     `gorm:"column:guild_id;not null;index" json:"guild_id"`

	JobType  string `gorm:"column:job_type;not null;index" json:"job_type"`
	Attempts int    `gorm:"column:attempts;not null" json:"attempts"`

	// Reason is the error-kind that routed the job here (permanent, or
	// transient after the attempt cap).
	Reason string `gorm:"column:reason;not null" json:"reason"`
	Error  string `gorm:"column:error;type:text;not null;default:''" json:"error,omitempty"`

	Payload datatypes.JSON `gorm:"type:jsonb;column:payload;not null;default:'{}'" json:"payload"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (JobDeadLetter) TableName() string { return "job_dead_letter" }
