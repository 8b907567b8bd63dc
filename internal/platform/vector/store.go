package vector

import (
	"context"
	"time"

	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
)

const (
	KindSession  = "session"
	KindDocChunk = "doc_chunk"
)

// MaxPreviewBytes bounds the payload preview. Vector payloads carry
// metadata and a short excerpt, never full documents or uploaded bytes.
const MaxPreviewBytes = 1024

// Payload is the tenant-scoped metadata stored with every point.
type Payload struct {
	GuildID   int64      `json:"guild_id"`
	ChannelID int64      `json:"channel_id,omitempty"`
	Kind      string     `json:"kind"`
	SourceIDs []int64    `json:"source_ids"`
	Preview   string     `json:"preview"`
	Embedder  string     `json:"embedder,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

type Match struct {
	ID      string
	Score   float64
	Payload Payload
}

// Filter scopes reads and bulk deletes. GuildID is mandatory on every
// operation; adapters reject a zero guild before anything leaves the
// process.
type Filter struct {
	GuildID   int64
	ChannelID *int64
	Kind      string
}

// Store is the vector index seen by the rest of the system. Writes block
// until durable. All implementations enforce the tenant guard.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []Point) error
	Delete(ctx context.Context, ids []string) error
	DeleteWhere(ctx context.Context, f Filter) error
	Search(ctx context.Context, vec []float32, f Filter, topK int, scoreMin float64) ([]Match, error)
}

// ValidatePayload fails closed on any point that would land without a
// tenant or with an oversized preview.
func ValidatePayload(p Payload) error {
	if p.GuildID == 0 {
		return errkind.New(errkind.TenantViolation, "vector payload missing guild_id")
	}
	if p.Kind == "" {
		return errkind.New(errkind.Permanent, "vector payload missing kind")
	}
	if len(p.Preview) > MaxPreviewBytes {
		return errkind.New(errkind.Permanent, "vector payload preview exceeds %d bytes", MaxPreviewBytes)
	}
	return nil
}

// ValidateFilter fails closed on any read or bulk delete that is not
// guild-scoped.
func ValidateFilter(f Filter) error {
	if f.GuildID == 0 {
		return errkind.New(errkind.TenantViolation, "vector filter missing guild_id")
	}
	return nil
}

// TruncatePreview clips text to the payload preview budget on a rune
// boundary.
func TruncatePreview(text string) string {
	if len(text) <= MaxPreviewBytes {
		return text
	}
	cut := text[:MaxPreviewBytes]
	for len(cut) > 0 {
		r := cut[len(cut)-1]
		if r < 0x80 || r >= 0xC0 {
			if r >= 0xC0 {
				cut = cut[:len(cut)-1]
			}
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
