package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
	"github.com/yungbote/guildmind-backend/internal/pkg/logger"
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestStore(t *testing.T, url string, dim int) vector.Store {
	t.Helper()
	s, err := NewVectorStore(testLogger(t), Config{URL: url, Collection: "guildmind", VectorDim: dim})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	s := newTestStore(t, "http://localhost:6333", 4)
	err := s.Upsert(context.Background(), []vector.Point{{
		ID:      uuid.NewString(),
		Vector:  []float32{1, 2},
		Payload: vector.Payload{GuildID: 10, Kind: vector.KindSession},
	}})
	if !errkind.Is(err, errkind.Permanent) {
		t.Fatalf("dimension mismatch must be permanent, got %v", err)
	}
}

func TestUpsertRejectsMissingGuild(t *testing.T) {
	s := newTestStore(t, "http://localhost:6333", 2)
	err := s.Upsert(context.Background(), []vector.Point{{
		ID:      uuid.NewString(),
		Vector:  []float32{1, 2},
		Payload: vector.Payload{Kind: vector.KindSession},
	}})
	if !errkind.Is(err, errkind.TenantViolation) {
		t.Fatalf("missing guild must fail closed, got %v", err)
	}
}

func TestSearchRejectsUnscopedFilter(t *testing.T) {
	s := newTestStore(t, "http://localhost:6333", 2)
	_, err := s.Search(context.Background(), []float32{1, 0}, vector.Filter{}, 5, 0)
	if !errkind.Is(err, errkind.TenantViolation) {
		t.Fatalf("unscoped search must fail closed, got %v", err)
	}
}

func TestDeleteWhereRejectsUnscopedFilter(t *testing.T) {
	s := newTestStore(t, "http://localhost:6333", 2)
	err := s.DeleteWhere(context.Background(), vector.Filter{})
	if !errkind.Is(err, errkind.TenantViolation) {
		t.Fatalf("unscoped delete must fail closed, got %v", err)
	}
}

func TestDeleteEmptyIsNoop(t *testing.T) {
	// No server behind the URL: any outbound call would fail, so a nil
	// return proves nothing left the process.
	s := newTestStore(t, "http://localhost:1", 2)
	if err := s.Delete(context.Background(), nil); err != nil {
		t.Fatalf("empty delete: %v", err)
	}
	if err := s.Upsert(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
}

func TestSearchDropsCrossTenantPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := []map[string]any{
			{
				"id":      uuid.NewString(),
				"score":   0.9,
				"payload": map[string]any{"guild_id": 10, "kind": "session", "preview": "mine"},
			},
			{
				"id":      uuid.NewString(),
				"score":   0.8,
				"payload": map[string]any{"guild_id": 20, "kind": "session", "preview": "leak"},
			},
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL, 2)
	matches, err := s.Search(context.Background(), []float32{1, 0}, vector.Filter{GuildID: 10}, 5, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("cross-tenant point must be dropped, got %d matches", len(matches))
	}
	if matches[0].Payload.GuildID != 10 || matches[0].Payload.Preview != "mine" {
		t.Fatalf("wrong survivor: %#v", matches[0])
	}
}

func TestSearchRejectsQueryDimMismatch(t *testing.T) {
	s := newTestStore(t, "http://localhost:6333", 4)
	_, err := s.Search(context.Background(), []float32{1, 0}, vector.Filter{GuildID: 10}, 5, 0)
	if !errkind.Is(err, errkind.Permanent) {
		t.Fatalf("query dim mismatch must be permanent, got %v", err)
	}
}
