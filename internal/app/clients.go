package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/guildmind-backend/internal/gateway/bus"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/openai"
	"github.com/yungbote/guildmind-backend/internal/platform/qdrant"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

type Clients struct {
	// Redis gateway event bus (required on the ingestor role)
	GatewayBus bus.Bus

	// OpenAI (embeddings + vision)
	Openai openai.Client

	// Qdrant
	VectorStore vector.Store
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var out Clients

	// ---------------- Redis (optional on API; required on ingestor) ----------------
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		b, err := bus.NewRedisBus(log)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis gateway bus: %w", err)
		}
		out.GatewayBus = b
	}

	// ---------------- OpenAI ----------------
	oa, err := openai.NewClient(log)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	out.Openai = oa

	// ---------------- Qdrant ----------------
	qcfg := qdrant.Config{
		URL:        strings.TrimSpace(os.Getenv("QDRANT_URL")),
		Collection: strings.TrimSpace(os.Getenv("QDRANT_COLLECTION")),
		VectorDim:  cfg.VectorDim,
	}
	if qcfg.Collection == "" {
		qcfg.Collection = "guildmind"
	}
	store, err := qdrant.NewVectorStore(log, qcfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init qdrant vector store: %w", err)
	}
	// Collection existence and dimension are verified before anything
	// embeds; a mismatch here is fatal by design.
	if err := store.EnsureCollection(context.Background()); err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("ensure qdrant collection: %w", err)
	}
	out.VectorStore = store

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.GatewayBus != nil {
		_ = c.GatewayBus.Close()
	}
}
