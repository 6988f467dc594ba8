package chat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
)

// transcript is the live, lockable state behind one session. All reads and
// writes of messages go through mu.
type transcript struct {
	mu        sync.Mutex
	id        string
	createdAt time.Time
	messages  []chat.Message
	evicted   bool

	// unix nanos of the last append, read without mu by the sweeper
	lastActive atomic.Int64
}

func newTranscript(id string, now time.Time) *transcript {
	t := &transcript{
		id:        id,
		createdAt: now,
		messages:  make([]chat.Message, 0, 16),
	}
	t.lastActive.Store(now.UnixNano())
	return t
}

// append adds one message. Caller holds mu.
func (t *transcript) append(sender chat.Sender, content string, now time.Time) chat.Message {
	createdAt := now
	if n := len(t.messages); n > 0 && createdAt.Before(t.messages[n-1].CreatedAt) {
		createdAt = t.messages[n-1].CreatedAt
	}

	msg := chat.Message{
		ID:        int64(len(t.messages)) + 1,
		Sender:    sender,
		Content:   content,
		CreatedAt: createdAt,
	}
	t.messages = append(t.messages, msg)
	t.lastActive.Store(createdAt.UnixNano())
	return msg
}

// snapshot copies the transcript. Caller holds mu.
func (t *transcript) snapshot() chat.Transcript {
	copied := make([]chat.Message, len(t.messages))
	copy(copied, t.messages)
	return chat.Transcript{
		SessionID: t.id,
		CreatedAt: t.createdAt,
		Messages:  copied,
	}
}

func (t *transcript) idleSince() time.Time {
	return time.Unix(0, t.lastActive.Load())
}
