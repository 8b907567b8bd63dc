package qdrant

import (
	"testing"

	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

func TestTranslateFilterAlwaysCarriesGuild(t *testing.T) {
	f := vector.Filter{GuildID: 42}
	out := translateFilter(f)
	must, ok := out["must"].([]map[string]any)
	if !ok || len(must) != 1 {
		t.Fatalf("expected one must clause, got %#v", out)
	}
	if must[0]["key"] != "guild_id" {
		t.Fatalf("first clause should be guild_id, got %#v", must[0])
	}
}

func TestTranslateFilterOptionalClauses(t *testing.T) {
	ch := int64(100)
	f := vector.Filter{GuildID: 42, ChannelID: &ch, Kind: vector.KindSession}
	out := translateFilter(f)
	must := out["must"].([]map[string]any)
	if len(must) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(must))
	}
	keys := map[string]bool{}
	for _, clause := range must {
		keys[clause["key"].(string)] = true
	}
	for _, want := range []string{"guild_id", "channel_id", "kind"} {
		if !keys[want] {
			t.Errorf("missing clause %q", want)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p := vector.Payload{
		GuildID:   10,
		ChannelID: 100,
		Kind:      vector.KindSession,
		SourceIDs: []int64{1, 2, 3},
		Preview:   "Conversation in #general",
		Embedder:  "text-embedding-3-small:1536",
	}
	m := payloadToMap(p)
	// qdrant returns JSON numbers as float64
	m["guild_id"] = float64(10)
	m["channel_id"] = float64(100)
	m["source_ids"] = []any{float64(1), float64(2), float64(3)}

	back := payloadFromMap(m)
	if back.GuildID != p.GuildID || back.ChannelID != p.ChannelID || back.Kind != p.Kind {
		t.Fatalf("scalar fields did not survive: %#v", back)
	}
	if len(back.SourceIDs) != 3 || back.SourceIDs[0] != 1 || back.SourceIDs[2] != 3 {
		t.Fatalf("source ids did not survive: %#v", back.SourceIDs)
	}
	if back.Preview != p.Preview || back.Embedder != p.Embedder {
		t.Fatalf("text fields did not survive: %#v", back)
	}
}
