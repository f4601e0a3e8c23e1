package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExtractionConversation(t *testing.T) {
	conv := NewExtractionConversation("Extract the invoice total", "Invoice #12, total $40", `{"total": 40}`)

	require.Len(t, conv, 3)
	assert.Equal(t, Message{Role: RoleSystem, Content: ExtractionSystemPrompt}, conv[0])
	assert.Equal(t, RoleUser, conv[1].Role)
	assert.Equal(t,
		"Extract the invoice total\n Here is the context to extract information from: Invoice #12, total $40",
		conv[1].Content)
	assert.Equal(t, RoleAssistant, conv[2].Role)
	assert.Equal(t, `<{"total": 40}`, conv[2].Content)
}

func TestConversation_MarshalsAsArray(t *testing.T) {
	conv := NewExtractionConversation("d", "c", "e")
	b, err := json.Marshal(conv)
	require.NoError(t, err)

	var decoded []map[string]string
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "system", decoded[0]["role"])
	assert.Equal(t, "<e", decoded[2]["content"])
}
