package services

import (
	"context"
	"math"
	"testing"

	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/openai"
)

type fakeOpenAI struct {
	vectors [][]float32
	err     error
}

func (f *fakeOpenAI) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func (f *fakeOpenAI) GenerateTextWithImages(ctx context.Context, system, user string, images []openai.ImageInput) (string, error) {
	return "", nil
}

func (f *fakeOpenAI) EmbedModel() string { return "fake-embed" }

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestEmbedderNormalizesToUnitNorm(t *testing.T) {
	fake := &fakeOpenAI{vectors: [][]float32{{3, 4}}}
	e, err := NewOpenAIEmbedder(testLogger(t), fake, 2)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	out, err := e.Embed(context.Background(), []string{"hi"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var norm float64
	for _, x := range out[0] {
		norm += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-5 {
		t.Fatalf("vector not unit norm: %f", math.Sqrt(norm))
	}
}

func TestEmbedderRejectsDimensionMismatch(t *testing.T) {
	fake := &fakeOpenAI{vectors: [][]float32{{1, 2, 3}}}
	e, err := NewOpenAIEmbedder(testLogger(t), fake, 2)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	_, err = e.Embed(context.Background(), []string{"hi"})
	if !errkind.Is(err, errkind.Permanent) {
		t.Fatalf("dimension mismatch must be permanent, got %v", err)
	}
}

func TestEmbedderIdentity(t *testing.T) {
	e, err := NewOpenAIEmbedder(testLogger(t), &fakeOpenAI{}, 1536)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	if e.Identity() != "fake-embed:1536" {
		t.Fatalf("identity: %q", e.Identity())
	}
	if e.Dim() != 1536 {
		t.Fatalf("dim: %d", e.Dim())
	}
}

func TestEmbedderRejectsZeroDim(t *testing.T) {
	if _, err := NewOpenAIEmbedder(testLogger(t), &fakeOpenAI{}, 0); err == nil {
		t.Fatalf("zero dim must fail construction")
	}
}
