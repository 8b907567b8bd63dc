package services

import (
	"context"
	"fmt"
	"math"

	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/openai"
)

// Embedder maps text to fixed-dimension unit-norm vectors. The dimension
// is pinned at construction; any response with a different length is a
// permanent error, never silently truncated.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	// Identity names the embedder (model plus dimension). A change of
	// identity is a migration event: the reconciler re-embeds every
	// indexed session (document chunks keep their existing vectors).
	Identity() string
}

type openaiEmbedder struct {
	log    *logger.Logger
	client openai.Client
	dim    int
}

func NewOpenAIEmbedder(log *logger.Logger, client openai.Client, dim int) (Embedder, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if client == nil {
		return nil, fmt.Errorf("openai client required")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector dim must be positive, got %d", dim)
	}
	return &openaiEmbedder{
		log:    log.With("service", "Embedder"),
		client: client,
		dim:    dim,
	}, nil
}

func (e *openaiEmbedder) Dim() int { return e.dim }

func (e *openaiEmbedder) Identity() string {
	return fmt.Sprintf("%s:%d", e.client.EmbedModel(), e.dim)
}

func (e *openaiEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := e.client.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, errkind.New(errkind.Transient,
			"embedder returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dim {
			return nil, errkind.New(errkind.Permanent,
				"embedder dimension mismatch at input %d: expected=%d got=%d", i, e.dim, len(v))
		}
		normalize(v)
	}
	return vectors, nil
}

// normalize scales v to unit norm in place. Cosine distance assumes it.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
