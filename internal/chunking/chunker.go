package chunking

import (
	"strings"

	"github.com/yungbote/guildmind-backend/internal/sessionizer"
)

// Chunk is one bounded slice of a document. Heading carries the nearest
// parent heading so a chunk embeds with its structural context.
type Chunk struct {
	Index   int
	Text    string
	Heading string
}

type Params struct {
	// MaxTokens bounds each chunk.
	MaxTokens int
	// MinTokens is the floor below which a fragment merges into its
	// neighbor instead of standing alone.
	MinTokens int
}

func DefaultParams() Params {
	return Params{
		MaxTokens: 480,
		MinTokens: 32,
	}
}

// Split performs recursive structural chunking: top-level headings
// first, paragraphs second, sentences last, until every chunk fits the
// token budget.
func Split(text string, p Params) []Chunk {
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultParams().MaxTokens
	}
	if p.MinTokens <= 0 {
		p.MinTokens = DefaultParams().MinTokens
	}

	sections := splitHeadings(text)
	var pieces []Chunk
	for _, sec := range sections {
		for _, body := range splitToBudget(sec.body, p.MaxTokens) {
			pieces = append(pieces, Chunk{Text: body, Heading: sec.heading})
		}
	}
	pieces = mergeSmall(pieces, p)

	for i := range pieces {
		pieces[i].Index = i
	}
	return pieces
}

type section struct {
	heading string
	body    string
}

// splitHeadings cuts markdown at top-level heading lines. Plain text
// falls through as a single unnamed section.
func splitHeadings(text string) []section {
	lines := strings.Split(text, "\n")
	var out []section
	var cur section
	var body []string

	flush := func() {
		joined := strings.TrimSpace(strings.Join(body, "\n"))
		if joined != "" {
			cur.body = joined
			out = append(out, cur)
		}
		body = nil
	}

	for _, line := range lines {
		if heading, ok := headingText(line); ok {
			flush()
			cur = section{heading: heading}
			continue
		}
		body = append(body, line)
	}
	flush()
	if len(out) == 0 {
		return []section{{}}
	}
	return out
}

func headingText(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	i := 0
	for i < len(trimmed) && trimmed[i] == '#' {
		i++
	}
	if i == 0 || i > 6 || i >= len(trimmed) || trimmed[i] != ' ' {
		return "", false
	}
	return strings.TrimSpace(trimmed[i:]), true
}

// splitToBudget packs paragraphs into budget-sized pieces, recursing
// into sentences when a single paragraph overflows on its own.
func splitToBudget(body string, maxTokens int) []string {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil
	}
	if sessionizer.EstimateTokens(body) <= maxTokens {
		return []string{body}
	}

	paragraphs := splitParagraphs(body)
	var out []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, "\n\n"))
		}
		cur = nil
		curTokens = 0
	}

	for _, para := range paragraphs {
		cost := sessionizer.EstimateTokens(para)
		if cost > maxTokens {
			flush()
			out = append(out, splitSentences(para, maxTokens)...)
			continue
		}
		if curTokens+cost > maxTokens {
			flush()
		}
		cur = append(cur, para)
		curTokens += cost
	}
	flush()
	return out
}

func splitParagraphs(body string) []string {
	raw := strings.Split(body, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences packs sentences into budget-sized pieces. A single
// sentence past the budget is cut mid-sentence as a last resort.
func splitSentences(para string, maxTokens int) []string {
	sentences := sentenceSplit(para)
	var out []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(cur, " ")))
		}
		cur = nil
		curTokens = 0
	}

	for _, s := range sentences {
		cost := sessionizer.EstimateTokens(s)
		if cost > maxTokens {
			flush()
			out = append(out, hardCut(s, maxTokens)...)
			continue
		}
		if curTokens+cost > maxTokens {
			flush()
		}
		cur = append(cur, s)
		curTokens += cost
	}
	flush()
	return out
}

func sentenceSplit(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n') {
			s := strings.TrimSpace(b.String())
			if s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func hardCut(text string, maxTokens int) []string {
	budget := maxTokens * 4
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += budget {
		end := start + budget
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// mergeSmall folds fragments below the token floor into the previous
// chunk of the same heading.
func mergeSmall(pieces []Chunk, p Params) []Chunk {
	var out []Chunk
	for _, piece := range pieces {
		if len(out) > 0 &&
			sessionizer.EstimateTokens(piece.Text) < p.MinTokens &&
			out[len(out)-1].Heading == piece.Heading &&
			sessionizer.EstimateTokens(out[len(out)-1].Text+"\n\n"+piece.Text) <= p.MaxTokens {
			out[len(out)-1].Text = out[len(out)-1].Text + "\n\n" + piece.Text
			continue
		}
		out = append(out, piece)
	}
	return out
}

// EmbedText renders a chunk with its heading context for embedding.
func EmbedText(c Chunk) string {
	if c.Heading == "" {
		return c.Text
	}
	return c.Heading + "\n\n" + c.Text
}
