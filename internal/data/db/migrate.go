package db

import (
	types "github.com/yungbote/guildmind-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Tenancy
		// =========================
		&types.Guild{},
		&types.Channel{},
		&types.User{},

		// =========================
		// Chat archive
		// =========================
		&types.Message{},
		&types.MessageSession{},

		// =========================
		// Attachments + document chunks
		// =========================
		&types.Attachment{},
		&types.DocumentChunk{},

		// =========================
		// Job queue
		// =========================
		&types.Job{},
		&types.JobDeadLetter{},
		&types.EmbedderManifest{},
	)
}
