package pipeline

import (
	"time"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	"github.com/yungbote/guildmind-backend/internal/jobs/runtime"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
	"github.com/yungbote/guildmind-backend/internal/services"
	"github.com/yungbote/guildmind-backend/internal/sessionizer"
)

// Config carries the pipeline tunables. Everything has a default; the
// app layer overrides from env.
type Config struct {
	// SessionWindow is how many messages around the trigger point the
	// sessionizer reads.
	SessionWindow int
	// BackfillPage is the page size for channel backfills.
	BackfillPage int

	Session sessionizer.Params
	Refine  sessionizer.RefineParams

	// Attachment byte caps by source type.
	MaxTextBytes  int64
	MaxPDFBytes   int64
	MaxImageBytes int64

	BlockedExtensions []string

	ChunkMaxTokens int
	ChunkMinTokens int
}

func DefaultConfig() Config {
	return Config{
		SessionWindow:     200,
		BackfillPage:      500,
		Session:           sessionizer.DefaultParams(),
		Refine:            sessionizer.DefaultRefineParams(),
		MaxTextBytes:      2 << 20,
		MaxPDFBytes:       20 << 20,
		MaxImageBytes:     10 << 20,
		BlockedExtensions: []string{".exe", ".bat", ".sh", ".ps1", ".cmd"},
		ChunkMaxTokens:    480,
		ChunkMinTokens:    32,
	}
}

// Deps is the shared dependency bundle for all pipeline handlers.
type Deps struct {
	Log       *logger.Logger
	Repos     repos.All
	Store     vector.Store
	Embedder  services.Embedder
	Enqueue   services.Enqueuer
	Fetcher   services.Fetcher
	Captioner services.Captioner
	Cfg       Config
}

// RegisterAll wires every pipeline handler into the registry. Called
// once at worker startup; a duplicate registration is a wiring bug and
// fails loudly.
func RegisterAll(reg *runtime.Registry, deps Deps) error {
	handlers := []runtime.Handler{
		&SessionizeHandler{deps},
		&EmbedSessionHandler{deps},
		&ReindexSessionForHandler{deps},
		&PurgeMessageVectorsHandler{deps},
		&PurgeChannelVectorsHandler{deps},
		&BackfillChannelHandler{deps},
		&IngestAttachmentHandler{deps},
	}
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// vsTimeout bounds every vector store call from a job.
const vsTimeout = 10 * time.Second

// embedTimeout bounds every embedder call from a job.
const embedTimeout = 10 * time.Second
