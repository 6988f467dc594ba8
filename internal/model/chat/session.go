package chat

import "time"

// Transcript is a point-in-time copy of a session's conversation.
type Transcript struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Stats summarises a transcript by sender.
type Stats struct {
	SessionID         string    `json:"sessionId"`
	TotalMessages     int       `json:"totalMessages"`
	UserMessages      int       `json:"userMessages"`
	AssistantMessages int       `json:"assistantMessages"`
	SystemMessages    int       `json:"systemMessages"`
	FlaggedTurns      int       `json:"flaggedTurns"`
	LastActivity      time.Time `json:"lastActivity"`
}

// Stats counts the messages in t. Every system message is a crisis
// escalation, so FlaggedTurns equals SystemMessages.
func (t Transcript) Stats() Stats {
	stats := Stats{SessionID: t.SessionID, TotalMessages: len(t.Messages), LastActivity: t.CreatedAt}
	for _, msg := range t.Messages {
		switch msg.Sender {
		case SenderUser:
			stats.UserMessages++
		case SenderAssistant:
			stats.AssistantMessages++
		case SenderSystem:
			stats.SystemMessages++
			stats.FlaggedTurns++
		}
		stats.LastActivity = msg.CreatedAt
	}
	return stats
}
