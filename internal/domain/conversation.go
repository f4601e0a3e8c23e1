package domain

import "fmt"

// Message roles used in fine-tuning conversations.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ExtractionSystemPrompt is the fixed system turn of every extraction conversation.
const ExtractionSystemPrompt = "You are an AI assistant that helps with information extraction tasks."

// AssistantPrefix is prepended verbatim to the assistant turn. Existing
// fine-tuning data carries it, so it is kept for compatibility.
const AssistantPrefix = "<"

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered list of chat turns. It serializes as a bare
// JSON array of messages.
type Conversation []Message

// NewExtractionConversation builds the three-turn system/user/assistant
// conversation for one filtered validation row.
func NewExtractionConversation(description, context, extractedInfo string) Conversation {
	return Conversation{
		{Role: RoleSystem, Content: ExtractionSystemPrompt},
		{Role: RoleUser, Content: fmt.Sprintf("%s\n Here is the context to extract information from: %s", description, context)},
		{Role: RoleAssistant, Content: AssistantPrefix + extractedInfo},
	}
}
