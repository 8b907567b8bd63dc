package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/guildmind-backend/internal/data/repos/chat"
	"github.com/yungbote/guildmind-backend/internal/data/repos/docs"
	"github.com/yungbote/guildmind-backend/internal/data/repos/guilds"
	"github.com/yungbote/guildmind-backend/internal/data/repos/jobs"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
)

type GuildRepo = guilds.GuildRepo
type ChannelRepo = guilds.ChannelRepo
type UserRepo = guilds.UserRepo

type MessageRepo = chat.MessageRepo
type SessionRepo = chat.SessionRepo
type MessageUpsertResult = chat.UpsertResult
type PurgeTarget = chat.PurgeTarget

type AttachmentRepo = docs.AttachmentRepo
type DocumentChunkRepo = docs.DocumentChunkRepo

type JobRepo = jobs.JobRepo
type ManifestRepo = jobs.ManifestRepo

// All bundles every repo behind one constructor so wiring stays in one
// place.
type All struct {
	Guilds      GuildRepo
	Channels    ChannelRepo
	Users       UserRepo
	Messages    MessageRepo
	Sessions    SessionRepo
	Attachments AttachmentRepo
	Chunks      DocumentChunkRepo
	Jobs        JobRepo
	Manifest    ManifestRepo
}

func New(db *gorm.DB, baseLog *logger.Logger) All {
	return All{
		Guilds:      guilds.NewGuildRepo(db, baseLog),
		Channels:    guilds.NewChannelRepo(db, baseLog),
		Users:       guilds.NewUserRepo(db, baseLog),
		Messages:    chat.NewMessageRepo(db, baseLog),
		Sessions:    chat.NewSessionRepo(db, baseLog),
		Attachments: docs.NewAttachmentRepo(db, baseLog),
		Chunks:      docs.NewDocumentChunkRepo(db, baseLog),
		Jobs:        jobs.NewJobRepo(db, baseLog),
		Manifest:    jobs.NewManifestRepo(db, baseLog),
	}
}
