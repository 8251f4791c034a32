package flow

import "github.com/BTreeMap/FlowMentor/internal/models"

// MaxHistoryEntries is how many trailing history entries are forwarded to providers.
const MaxHistoryEntries = 10

// BuildMessages assembles the provider conversation: the system prompt, the
// last MaxHistoryEntries user/assistant entries with non-empty text, and the
// current message as a trailing user turn unless history already ends with one.
func BuildMessages(systemPrompt string, history []models.HistoryEntry, userText string) []models.ChatMessage {
	messages := []models.ChatMessage{{Role: models.RoleSystem, Content: systemPrompt}}

	recent := history
	if len(recent) > MaxHistoryEntries {
		recent = recent[len(recent)-MaxHistoryEntries:]
	}
	for _, entry := range recent {
		if entry.Role != models.RoleUser && entry.Role != models.RoleAssistant {
			continue
		}
		if text := entry.Text(); text != "" {
			messages = append(messages, models.ChatMessage{Role: entry.Role, Content: text})
		}
	}

	if len(history) == 0 || history[len(history)-1].Role != models.RoleUser {
		messages = append(messages, models.ChatMessage{Role: models.RoleUser, Content: userText})
	}
	return messages
}
