// Package domain contains core domain types for the authchat front end.
package domain

// Sender identifies who authored a chat message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is a single chat entry. Messages carry no identifier beyond their
// position in the conversation.
type Message struct {
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// ChatFallbackText is shown as the assistant reply when a chat request fails.
const ChatFallbackText = "Sorry, something went wrong. Please try again."
