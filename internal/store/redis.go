package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
)

const defaultTranscriptTTL = 24 * time.Hour

// RedisStore mirrors transcripts into Redis: a meta hash plus a sorted set
// of JSON messages scored by message id.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL. A non-positive ttl uses 24h.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	if ttl <= 0 {
		ttl = defaultTranscriptTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func sessionMetaKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s:meta", sessionID)
}

func sessionMessagesKey(sessionID string) string {
	return fmt.Sprintf("transcript:%s:messages", sessionID)
}

// SaveTranscript writes the session header and its messages.
func (s *RedisStore) SaveTranscript(ctx context.Context, transcript chat.Transcript) error {
	metaKey := sessionMetaKey(transcript.SessionID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, metaKey, "createdAt", transcript.CreatedAt.Format(time.RFC3339Nano))
	pipe.Expire(ctx, metaKey, s.ttl)
	if err := s.queueMessages(ctx, pipe, transcript.SessionID, transcript.Messages); err != nil {
		return err
	}
	_, err := pipe.Exec(ctx)
	return err
}

// AppendMessages adds messages and refreshes the session's TTL.
func (s *RedisStore) AppendMessages(ctx context.Context, sessionID string, messages ...chat.Message) error {
	pipe := s.client.TxPipeline()
	if err := s.queueMessages(ctx, pipe, sessionID, messages); err != nil {
		return err
	}
	pipe.Expire(ctx, sessionMetaKey(sessionID), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) queueMessages(ctx context.Context, pipe redis.Pipeliner, sessionID string, messages []chat.Message) error {
	if len(messages) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		members = append(members, redis.Z{Score: float64(msg.ID), Member: string(data)})
	}

	key := sessionMessagesKey(sessionID)
	pipe.ZAdd(ctx, key, members...)
	pipe.Expire(ctx, key, s.ttl)
	return nil
}

// LoadTranscript reads a session back ordered by message id.
func (s *RedisStore) LoadTranscript(ctx context.Context, sessionID string) (chat.Transcript, error) {
	raw, err := s.client.HGet(ctx, sessionMetaKey(sessionID), "createdAt").Result()
	if err == redis.Nil {
		return chat.Transcript{}, ErrTranscriptNotFound
	}
	if err != nil {
		return chat.Transcript{}, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return chat.Transcript{}, fmt.Errorf("parse createdAt: %w", err)
	}

	results, err := s.client.ZRange(ctx, sessionMessagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return chat.Transcript{}, err
	}

	messages := make([]chat.Message, 0, len(results))
	for _, data := range results {
		var msg chat.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			return chat.Transcript{}, fmt.Errorf("%w: decode message: %v", ErrCorruptTranscript, err)
		}
		if !msg.Sender.Valid() {
			return chat.Transcript{}, fmt.Errorf("%w: message %d has sender %q", ErrCorruptTranscript, msg.ID, msg.Sender)
		}
		messages = append(messages, msg)
	}

	return chat.Transcript{SessionID: sessionID, CreatedAt: createdAt, Messages: messages}, nil
}
