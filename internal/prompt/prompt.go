// Package prompt flattens a conversation into a single text prompt.
package prompt

import "strings"

// Message is one role-tagged entry in a conversation. Role is free-form
// text; ordering is significant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Build renders messages as "<role>: <content>" lines joined by newlines,
// preserving input order. Content passes through untouched.
func Build(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
