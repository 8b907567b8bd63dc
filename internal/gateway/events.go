package gateway

import (
	"time"
)

// EventType enumerates the platform events the ingestor understands.
type EventType string

const (
	EventMessageCreate     EventType = "message_create"
	EventMessageUpdate     EventType = "message_update"
	EventMessageDelete     EventType = "message_delete"
	EventMessageDeleteBulk EventType = "message_delete_bulk"
	EventChannelDelete     EventType = "channel_delete"
	EventGuildDelete       EventType = "guild_delete"
)

// MessagePayload carries the message fields the archive needs. The
// upstream adapter strips everything else before publishing.
type MessagePayload struct {
	ID          int64      `json:"id"`
	AuthorID    int64      `json:"author_id"`
	AuthorName  string     `json:"author_name,omitempty"`
	AuthorIsBot bool       `json:"author_is_bot,omitempty"`
	Content     string     `json:"content"`
	ReplyToID   *int64     `json:"reply_to_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Attachments []FileMeta `json:"attachments,omitempty"`
}

// FileMeta is attachment metadata from the platform. Bytes are fetched
// later by the worker, never by the ingestor.
type FileMeta struct {
	ID        int64  `json:"id"`
	FileName  string `json:"file_name"`
	SourceURL string `json:"source_url"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
}

// Event is one gateway record. Delivery is at-least-once; EventID makes
// replays detectable and the ingestor is idempotent regardless.
type Event struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	GuildID   int64     `json:"guild_id"`
	GuildName string    `json:"guild_name,omitempty"`
	ChannelID int64     `json:"channel_id,omitempty"`
	ChannelName string  `json:"channel_name,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Message *MessagePayload `json:"message,omitempty"`

	// MessageIDs is set on bulk deletes.
	MessageIDs []int64 `json:"message_ids,omitempty"`
}
