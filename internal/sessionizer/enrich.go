package sessionizer

import (
	"fmt"
	"strings"
)

const enrichTimeLayout = "2006-01-02 15:04"

// Enrich renders a session into the canonical text form handed to the
// embedder:
//
//	Conversation in #<channel>:
//	[<author> @ <YYYY-MM-DD HH:MM>]: <content>
//	...
//
// Only the text is enriched; the message records stay untouched.
func Enrich(channelName string, msgs []Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conversation in #%s:\n", channelName)
	for _, m := range msgs {
		author := m.AuthorName
		if author == "" {
			author = fmt.Sprintf("user-%d", m.AuthorID)
		}
		fmt.Fprintf(&b, "[%s @ %s]: %s\n", author, m.Timestamp.UTC().Format(enrichTimeLayout), m.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
