package chat

import (
	"context"

	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
)

// Archive mirrors transcripts outside the process. Writes for one session
// arrive in transcript order.
type Archive interface {
	SaveTranscript(ctx context.Context, transcript chat.Transcript) error
	AppendMessages(ctx context.Context, sessionID string, messages ...chat.Message) error
	Close() error
}
