package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zhouzirui/heartwise/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/heartwise/backend/internal/service/chat"
)

const (
	DriverNone   = "none"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

var (
	ErrTranscriptNotFound = errors.New("transcript not found in archive")
	ErrCorruptTranscript  = errors.New("archived transcript is corrupt")
)

// TranscriptArchive is an archive that can also read transcripts back.
type TranscriptArchive interface {
	chatservice.Archive
	LoadTranscript(ctx context.Context, sessionID string) (chat.Transcript, error)
	Ping(ctx context.Context) error
}

// Options selects and configures an archive backend.
type Options struct {
	Driver     string
	SQLitePath string
	RedisURL   string
	RedisTTL   time.Duration
}

// Open connects the configured backend. DriverNone returns a nil archive.
func Open(ctx context.Context, opts Options) (TranscriptArchive, error) {
	switch opts.Driver {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		s, err := NewSQLiteStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite archive: %w", err)
		}
		return s, nil
	case DriverRedis:
		if opts.RedisURL == "" {
			return nil, fmt.Errorf("redis archive requires a URL")
		}
		s, err := NewRedisStore(ctx, opts.RedisURL, opts.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("open redis archive: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown archive driver %q", opts.Driver)
	}
}
