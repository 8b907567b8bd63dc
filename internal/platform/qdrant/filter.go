package qdrant

import (
	"github.com/yungbote/guildmind-backend/internal/platform/vector"
)

// translateFilter builds the qdrant filter clause from a validated
// tenant filter. guild_id is always present in must; the caller has
// already run vector.ValidateFilter.
func translateFilter(f vector.Filter) map[string]any {
	must := []map[string]any{
		{"key": "guild_id", "match": map[string]any{"value": f.GuildID}},
	}
	if f.ChannelID != nil {
		must = append(must, map[string]any{
			"key":   "channel_id",
			"match": map[string]any{"value": *f.ChannelID},
		})
	}
	if f.Kind != "" {
		must = append(must, map[string]any{
			"key":   "kind",
			"match": map[string]any{"value": f.Kind},
		})
	}
	return map[string]any{"must": must}
}

func payloadToMap(p vector.Payload) map[string]any {
	out := map[string]any{
		"guild_id":   p.GuildID,
		"kind":       p.Kind,
		"source_ids": p.SourceIDs,
		"preview":    p.Preview,
	}
	if p.ChannelID != 0 {
		out["channel_id"] = p.ChannelID
	}
	if p.Embedder != "" {
		out["embedder"] = p.Embedder
	}
	if p.StartTime != nil {
		out["start_time"] = p.StartTime.UTC().Format(timeLayout)
	}
	if p.EndTime != nil {
		out["end_time"] = p.EndTime.UTC().Format(timeLayout)
	}
	return out
}
