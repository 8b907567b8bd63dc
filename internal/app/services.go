package app

import (
	"fmt"

	"github.com/yungbote/guildmind-backend/internal/data/repos"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/services"
)

type Services struct {
	Embedder  services.Embedder
	Enqueuer  services.Enqueuer
	Fetcher   services.Fetcher
	Captioner services.Captioner
	Queries   services.QueryService
	Admin     services.AdminService
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet repos.All) (Services, error) {
	embedder, err := services.NewOpenAIEmbedder(log, clients.Openai, cfg.VectorDim)
	if err != nil {
		return Services{}, fmt.Errorf("init embedder: %w", err)
	}
	captioner, err := services.NewCaptioner(log, clients.Openai)
	if err != nil {
		return Services{}, fmt.Errorf("init captioner: %w", err)
	}

	enqueuer := services.NewEnqueuer(log, reposet.Jobs, services.EnqueuerConfig{
		DedupWindow:    cfg.DedupWindow,
		BackpressureHi: cfg.QueueBackpressure,
	})

	return Services{
		Embedder:  embedder,
		Enqueuer:  enqueuer,
		Fetcher:   services.NewHTTPFetcher(log),
		Captioner: captioner,
		Queries:   services.NewQueryService(log, reposet.Messages, clients.VectorStore, embedder),
		Admin:     services.NewAdminService(log, reposet.Guilds, reposet.Channels, reposet.Sessions, reposet.Jobs, enqueuer),
	}, nil
}
