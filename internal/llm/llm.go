// Package llm provides the completion backend used to generate persona
// replies. The concrete client speaks the OpenAI-compatible chat-completions
// protocol against Groq; the Provider interface keeps the service layer
// testable with fakes.
package llm

import "context"

// Message is one entry of a chat-completions conversation.
type Message struct {
	Role    string `json:"role"` // "system", "user", or "assistant"
	Content string `json:"content"`
}

// Provider generates a complete reply in one call.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// StreamProvider generates replies either whole or as a chunk stream.
type StreamProvider interface {
	Provider
	StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error)
}
