package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/heartwise/backend/internal/analysis/emotion"
	"github.com/zhouzirui/heartwise/backend/internal/metrics"
	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
	"github.com/zhouzirui/heartwise/backend/internal/service/reply"
)

const (
	// DefaultMaxMessageLength caps one utterance, in runes.
	DefaultMaxMessageLength = 4000
	// DefaultArchiveTimeout bounds one archive write.
	DefaultArchiveTimeout = 5 * time.Second
)

// EngineConfig wires the collaborators of an Engine. Only Store is required.
type EngineConfig struct {
	Classifier       *emotion.Classifier
	Generator        *reply.Generator
	Archive          Archive
	ArchiveDriver    string
	Logger           *zerolog.Logger
	MaxMessageLength int
	// ArchiveTimeout bounds each archive write. Writes ignore the caller's
	// cancellation.
	ArchiveTimeout time.Duration
}

// PostResult is the outcome of one conversational turn.
type PostResult struct {
	Reply    string           `json:"reply"`
	Flagged  bool             `json:"flagged"`
	Category emotion.Category `json:"-"`
}

// Engine runs conversational turns against the session store.
type Engine struct {
	store         *Store
	classifier    *emotion.Classifier
	generator     *reply.Generator
	archive       Archive
	archiveDriver string
	logger        zerolog.Logger
	maxLength     int
	archiveWait   time.Duration
}

// NewEngine builds an engine over store. Missing collaborators fall back to
// the built-in rule set and a randomly picking generator.
func NewEngine(store *Store, cfg EngineConfig) *Engine {
	e := &Engine{
		store:         store,
		classifier:    cfg.Classifier,
		generator:     cfg.Generator,
		archive:       cfg.Archive,
		archiveDriver: cfg.ArchiveDriver,
		logger:        zerolog.Nop(),
		maxLength:     cfg.MaxMessageLength,
		archiveWait:   cfg.ArchiveTimeout,
	}
	if cfg.Logger != nil {
		e.logger = *cfg.Logger
	}
	if e.classifier == nil {
		e.classifier = emotion.NewClassifier(emotion.Rules())
	}
	if e.generator == nil {
		e.generator = reply.NewGenerator(nil)
	}
	if e.maxLength <= 0 {
		e.maxLength = DefaultMaxMessageLength
	}
	if e.archiveDriver == "" {
		e.archiveDriver = "custom"
	}
	if e.archiveWait <= 0 {
		e.archiveWait = DefaultArchiveTimeout
	}
	for _, category := range emotion.Categories() {
		metrics.MessagesPosted.WithLabelValues(string(category))
	}
	return e
}

// Store exposes the underlying session store.
func (e *Engine) Store() *Store {
	return e.store
}

// CreateSession provisions a session and mirrors it to the archive.
func (e *Engine) CreateSession(ctx context.Context) (chat.Transcript, error) {
	transcript, err := e.store.CreateSession(ctx)
	if err != nil {
		return chat.Transcript{}, err
	}

	if e.archive != nil {
		e.archiveWrite(ctx, "save_transcript", transcript.SessionID, func(ctx context.Context) error {
			return e.archive.SaveTranscript(ctx, transcript)
		})
	}

	e.logger.Debug().Str("session_id", transcript.SessionID).Msg("session created")
	return transcript, nil
}

// GetSession returns a copy of the session's transcript.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (chat.Transcript, error) {
	return e.store.GetSession(ctx, sessionID)
}

// Stats summarises the session's transcript.
func (e *Engine) Stats(ctx context.Context, sessionID string) (chat.Stats, error) {
	return e.store.Stats(ctx, sessionID)
}

// PostMessage records the user's utterance and the engine's answer as one
// atomic step. Crisis language is answered with reply.CrisisScript from the
// system sender and never reaches the reply generator.
func (e *Engine) PostMessage(ctx context.Context, sessionID, text string) (PostResult, error) {
	var (
		result   PostResult
		appended []chat.Message
	)

	trimmed := strings.TrimSpace(text)
	err := e.store.withTranscript(sessionID, func(t *transcript) error {
		if trimmed == "" {
			return fmt.Errorf("%w: message text is empty", ErrInvalidInput)
		}
		if n := utf8.RuneCountInString(trimmed); n > e.maxLength {
			return fmt.Errorf("%w: message is %d characters, limit is %d", ErrInvalidInput, n, e.maxLength)
		}

		category := e.classifier.Classify(trimmed)
		answer, sender, err := e.answer(category)
		if err != nil {
			return err
		}

		now := e.store.now()
		appended = []chat.Message{
			t.append(chat.SenderUser, trimmed, now),
			t.append(sender, answer, now),
		}
		result = PostResult{Reply: answer, Flagged: category == emotion.Crisis, Category: category}

		// archive inside the lock so the mirror sees turns in transcript order
		if e.archive != nil {
			e.archiveWrite(ctx, "append_messages", sessionID, func(ctx context.Context) error {
				return e.archive.AppendMessages(ctx, sessionID, appended...)
			})
		}
		return nil
	})
	if err != nil {
		metrics.MessagesRejected.WithLabelValues(rejectReason(err)).Inc()
		return PostResult{}, err
	}

	metrics.MessagesPosted.WithLabelValues(string(result.Category)).Inc()
	if result.Flagged {
		metrics.CrisisEscalations.Inc()
		e.logger.Warn().
			Str("session_id", sessionID).
			Int64("message_id", appended[0].ID).
			Msg("crisis language detected, escalation script sent")
	} else {
		e.logger.Debug().
			Str("session_id", sessionID).
			Str("category", string(result.Category)).
			Msg("reply generated")
	}

	return result, nil
}

func (e *Engine) answer(category emotion.Category) (string, chat.Sender, error) {
	if category == emotion.Crisis {
		return reply.CrisisScript, chat.SenderSystem, nil
	}

	text, err := e.generator.Reply(category)
	if err != nil {
		return "", "", fmt.Errorf("generate reply for %s: %w", category, err)
	}
	return text, chat.SenderAssistant, nil
}

func (e *Engine) archiveWrite(ctx context.Context, op, sessionID string, write func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.archiveWait)
	defer cancel()

	start := time.Now()
	err := write(ctx)
	metrics.ArchiveLatency.WithLabelValues(e.archiveDriver, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ArchiveErrors.WithLabelValues(e.archiveDriver, op).Inc()
		e.logger.Error().Err(err).
			Str("session_id", sessionID).
			Str("op", op).
			Msg("transcript archive write failed")
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
