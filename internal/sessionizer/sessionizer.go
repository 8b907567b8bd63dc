package sessionizer

import (
	"time"
)

// Message is the minimal view of an archived message the sessionizer
// needs. Keeping the input a plain value type keeps Split a pure
// function: same input, same output, every invocation.
type Message struct {
	ID         int64
	ChannelID  int64
	AuthorID   int64
	AuthorName string
	Content    string
	ReplyToID  *int64
	Timestamp  time.Time
}

type Params struct {
	// Gap is the silence that ends a conversation unless a reply chains
	// across it.
	Gap time.Duration
	// MaxTokens caps the enriched session text.
	MaxTokens int
	// MinMessages is the smallest session worth embedding.
	MinMessages int
}

func DefaultParams() Params {
	return Params{
		Gap:         15 * time.Minute,
		MaxTokens:   480,
		MinMessages: 2,
	}
}

// Split groups a time-ordered message list into conversation blocks.
// A new block starts at message m when:
//   - m is the first message, or
//   - m is in a different channel than its predecessor, or
//   - the gap to the predecessor exceeds Gap and m is not a reply into
//     the current block, or
//   - adding m would push the block past the token budget.
func Split(msgs []Message, p Params) [][]Message {
	if p.Gap <= 0 {
		p.Gap = DefaultParams().Gap
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultParams().MaxTokens
	}

	var out [][]Message
	var current []Message
	currentIDs := map[int64]bool{}
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			out = append(out, current)
		}
		current = nil
		currentIDs = map[int64]bool{}
		currentTokens = 0
	}

	for i, m := range msgs {
		cost := messageTokens(m)
		switch {
		case i == 0 || len(current) == 0:
			// fall through to append
		case m.ChannelID != current[len(current)-1].ChannelID:
			flush()
		case currentTokens+cost > p.MaxTokens:
			flush()
		case m.Timestamp.Sub(current[len(current)-1].Timestamp) > p.Gap && !repliesInto(m, currentIDs):
			flush()
		}
		current = append(current, m)
		currentIDs[m.ID] = true
		currentTokens += cost
	}
	flush()
	return out
}

// FilterSmall drops blocks below the embed threshold. Single-line blocks
// carry too little context to be worth a vector.
func FilterSmall(groups [][]Message, minMessages int) [][]Message {
	if minMessages <= 0 {
		minMessages = DefaultParams().MinMessages
	}
	out := make([][]Message, 0, len(groups))
	for _, g := range groups {
		if len(g) >= minMessages {
			out = append(out, g)
		}
	}
	return out
}

func repliesInto(m Message, ids map[int64]bool) bool {
	return m.ReplyToID != nil && ids[*m.ReplyToID]
}

func messageTokens(m Message) int {
	// Header overhead: "[author @ time]: " plus the content.
	return EstimateTokens(m.AuthorName) + EstimateTokens(m.Content) + 6
}
