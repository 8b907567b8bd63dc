package chunking

import (
	"reflect"
	"strings"
	"testing"

	"github.com/yungbote/guildmind-backend/internal/sessionizer"
)

func TestSplitSingleSmallDocument(t *testing.T) {
	chunks := Split("just a short note", DefaultParams())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 || chunks[0].Heading != "" {
		t.Fatalf("unexpected chunk: %#v", chunks[0])
	}
}

func TestSplitHeadingsCarryContext(t *testing.T) {
	doc := strings.Join([]string{
		"# Setup",
		"",
		strings.Repeat("Install the dependencies and configure the environment. ", 40),
		"",
		"# Usage",
		"",
		strings.Repeat("Run the binary with the required flags. ", 40),
	}, "\n")

	p := Params{MaxTokens: 200, MinTokens: 16}
	chunks := Split(doc, p)
	if len(chunks) < 4 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	headings := map[string]bool{}
	for _, c := range chunks {
		headings[c.Heading] = true
		if got := sessionizer.EstimateTokens(c.Text); got > p.MaxTokens {
			t.Errorf("chunk %d over budget: %d tokens", c.Index, got)
		}
	}
	if !headings["Setup"] || !headings["Usage"] {
		t.Fatalf("headings lost: %v", headings)
	}
}

func TestSplitIndexesSequential(t *testing.T) {
	doc := strings.Repeat("A paragraph with some words in it.\n\n", 100)
	chunks := Split(doc, Params{MaxTokens: 100, MinTokens: 16})
	for i, c := range chunks {
		if c.Index != i {
			t.Fatalf("index %d holds chunk.Index=%d", i, c.Index)
		}
	}
}

func TestSplitLongSentenceHardCut(t *testing.T) {
	// One giant "sentence" with no terminator must still be bounded.
	doc := strings.Repeat("word ", 2000)
	p := Params{MaxTokens: 100, MinTokens: 16}
	chunks := Split(doc, p)
	if len(chunks) < 2 {
		t.Fatalf("hard cut should produce several chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if sessionizer.EstimateTokens(c.Text) > p.MaxTokens {
			t.Fatalf("chunk over budget after hard cut")
		}
	}
}

func TestSplitMergesTinyTail(t *testing.T) {
	doc := strings.Repeat("A sentence that repeats to fill space. ", 30) + "\n\nok."
	chunks := Split(doc, Params{MaxTokens: 400, MinTokens: 32})
	for _, c := range chunks {
		if sessionizer.EstimateTokens(c.Text) < 32 && len(chunks) > 1 {
			t.Fatalf("tiny fragment survived: %q", c.Text)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	doc := strings.Join([]string{
		"# One",
		strings.Repeat("alpha beta gamma. ", 60),
		"## Sub",
		strings.Repeat("delta epsilon. ", 80),
	}, "\n\n")
	first := Split(doc, Params{MaxTokens: 120, MinTokens: 16})
	again := Split(doc, Params{MaxTokens: 120, MinTokens: 16})
	if !reflect.DeepEqual(first, again) {
		t.Fatalf("chunking is not deterministic")
	}
}

func TestHeadingText(t *testing.T) {
	cases := []struct {
		line string
		want string
		ok   bool
	}{
		{"# Title", "Title", true},
		{"### Deep", "Deep", true},
		{"####### too deep", "", false},
		{"#nospace", "", false},
		{"plain", "", false},
	}
	for _, c := range cases {
		got, ok := headingText(c.line)
		if ok != c.ok || got != c.want {
			t.Errorf("headingText(%q) = (%q, %v), want (%q, %v)", c.line, got, ok, c.want, c.ok)
		}
	}
}

func TestEmbedText(t *testing.T) {
	c := Chunk{Text: "body", Heading: "Setup"}
	if got := EmbedText(c); got != "Setup\n\nbody" {
		t.Fatalf("got %q", got)
	}
	c.Heading = ""
	if got := EmbedText(c); got != "body" {
		t.Fatalf("got %q", got)
	}
}

func TestStripHTML(t *testing.T) {
	got := StripHTML("<html><body><p>hello&nbsp;world &amp; more</p></body></html>")
	if got != "hello world & more" {
		t.Fatalf("got %q", got)
	}
}
