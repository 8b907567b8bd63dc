package sessionizer

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(id int64, channel int64, offset time.Duration, content string) Message {
	return Message{
		ID:         id,
		ChannelID:  channel,
		AuthorID:   1,
		AuthorName: "ada",
		Content:    content,
		Timestamp:  t0.Add(offset),
	}
}

func reply(id int64, channel int64, offset time.Duration, content string, to int64) Message {
	m := msg(id, channel, offset, content)
	m.ReplyToID = &to
	return m
}

func ids(groups [][]Message) [][]int64 {
	out := make([][]int64, 0, len(groups))
	for _, g := range groups {
		row := make([]int64, 0, len(g))
		for _, m := range g {
			row = append(row, m.ID)
		}
		out = append(out, row)
	}
	return out
}

func TestSplitTemporalGap(t *testing.T) {
	msgs := []Message{
		msg(1, 100, 0, "hello"),
		msg(2, 100, time.Minute, "hi there"),
		msg(3, 100, 20*time.Minute, "new topic"),
		msg(4, 100, 21*time.Minute, "indeed"),
	}
	got := ids(Split(msgs, DefaultParams()))
	want := [][]int64{{1, 2}, {3, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSplitReplyBridgesGap(t *testing.T) {
	msgs := []Message{
		msg(1, 100, 0, "does anyone know about qdrant?"),
		msg(2, 100, time.Minute, "a bit, why"),
		reply(3, 100, 40*time.Minute, "late answer: use payload indexes", 1),
	}
	got := ids(Split(msgs, DefaultParams()))
	want := [][]int64{{1, 2, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("reply should extend session across gap: got %v", got)
	}
}

func TestSplitChannelBoundary(t *testing.T) {
	msgs := []Message{
		msg(1, 100, 0, "a"),
		msg(2, 200, time.Second, "b"),
	}
	got := ids(Split(msgs, DefaultParams()))
	want := [][]int64{{1}, {2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestSplitTokenBudget(t *testing.T) {
	long := strings.Repeat("lorem ipsum dolor sit amet ", 20)
	msgs := []Message{
		msg(1, 100, 0, long),
		msg(2, 100, time.Second, long),
		msg(3, 100, 2*time.Second, long),
	}
	p := DefaultParams()
	p.MaxTokens = EstimateTokens(long) + 20
	groups := Split(msgs, p)
	if len(groups) < 2 {
		t.Fatalf("token budget should force a split, got %d groups", len(groups))
	}
}

func TestSplitPure(t *testing.T) {
	msgs := make([]Message, 0, 50)
	for i := 0; i < 50; i++ {
		gap := time.Duration(i) * time.Minute
		if i%7 == 0 {
			gap += 30 * time.Minute
		}
		msgs = append(msgs, msg(int64(i+1), 100, gap, fmt.Sprintf("message %d", i)))
	}
	first := ids(Split(msgs, DefaultParams()))
	for run := 0; run < 5; run++ {
		again := ids(Split(msgs, DefaultParams()))
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", run, first, again)
		}
	}
}

func TestFilterSmall(t *testing.T) {
	groups := [][]Message{
		{msg(1, 100, 0, "alone")},
		{msg(2, 100, 0, "a"), msg(3, 100, time.Second, "b")},
	}
	got := FilterSmall(groups, 2)
	if len(got) != 1 || got[0][0].ID != 2 {
		t.Fatalf("got %v", ids(got))
	}
}

func TestEnrichFormat(t *testing.T) {
	msgs := []Message{
		msg(1, 100, 0, "the red fox"),
		msg(2, 100, time.Minute, "nice"),
	}
	text := Enrich("general", msgs)
	if !strings.HasPrefix(text, "Conversation in #general:\n") {
		t.Fatalf("missing header: %q", text)
	}
	if !strings.Contains(text, "[ada @ 2025-06-01 12:00]: the red fox") {
		t.Fatalf("missing first line: %q", text)
	}
	if !strings.Contains(text, "[ada @ 2025-06-01 12:01]: nice") {
		t.Fatalf("missing second line: %q", text)
	}
	if strings.HasSuffix(text, "\n") {
		t.Fatalf("trailing newline: %q", text)
	}
}

func TestEnrichFallbackAuthor(t *testing.T) {
	m := msg(1, 100, 0, "hi")
	m.AuthorName = ""
	m.AuthorID = 42
	text := Enrich("general", []Message{m})
	if !strings.Contains(text, "[user-42 @") {
		t.Fatalf("expected fallback author, got %q", text)
	}
}
