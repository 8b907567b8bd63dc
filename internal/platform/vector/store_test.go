package vector

import (
	"strings"
	"testing"

	"github.com/yungbote/guildmind-backend/internal/pkg/errkind"
)

func TestValidatePayloadRejectsMissingGuild(t *testing.T) {
	err := ValidatePayload(Payload{Kind: KindSession, Preview: "x"})
	if !errkind.Is(err, errkind.TenantViolation) {
		t.Fatalf("expected tenant violation, got %v", err)
	}
}

func TestValidatePayloadRejectsOversizePreview(t *testing.T) {
	err := ValidatePayload(Payload{
		GuildID: 1,
		Kind:    KindSession,
		Preview: strings.Repeat("a", MaxPreviewBytes+1),
	})
	if !errkind.Is(err, errkind.Permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestValidatePayloadAccepts(t *testing.T) {
	err := ValidatePayload(Payload{GuildID: 1, Kind: KindDocChunk, Preview: "ok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFilterRejectsMissingGuild(t *testing.T) {
	if err := ValidateFilter(Filter{}); !errkind.Is(err, errkind.TenantViolation) {
		t.Fatalf("expected tenant violation, got %v", err)
	}
	if err := ValidateFilter(Filter{GuildID: 7}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTruncatePreviewBoundary(t *testing.T) {
	if got := TruncatePreview("short"); got != "short" {
		t.Fatalf("short strings untouched, got %q", got)
	}

	long := strings.Repeat("a", MaxPreviewBytes+100)
	got := TruncatePreview(long)
	if len(got) != MaxPreviewBytes {
		t.Fatalf("ascii truncation: got len=%d", len(got))
	}

	// Multibyte rune straddling the boundary must be dropped whole.
	multi := strings.Repeat("a", MaxPreviewBytes-1) + "é"
	got = TruncatePreview(multi)
	if len(got) > MaxPreviewBytes {
		t.Fatalf("truncated preview exceeds budget: len=%d", len(got))
	}
	for _, r := range got {
		if r == 0xFFFD {
			t.Fatalf("truncation produced invalid utf8")
		}
	}
}
