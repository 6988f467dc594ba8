package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/heartwise/backend/internal/config"
	"github.com/zhouzirui/heartwise/backend/internal/logger"
	"github.com/zhouzirui/heartwise/backend/internal/service/chat"
	"github.com/zhouzirui/heartwise/backend/internal/service/reply"
	"github.com/zhouzirui/heartwise/backend/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, using system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	text := flag.String("text", "", "single utterance to classify and answer; reads stdin lines when empty")
	strategy := flag.String("strategy", cfg.Session.ReplyStrategy, "default reply strategy: random or rotate")
	dump := flag.String("archive-dump", "", "print the archived transcript of this session id and exit")
	jsonOut := flag.Bool("json", false, "print one JSON object per turn")
	timeout := flag.Duration("timeout", 10*time.Second, "archive operation timeout")
	flag.Parse()

	probeLogger := logger.NewWithWriter(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, cfg.Log.Level)

	if *dump != "" {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()
		if err := dumpTranscript(ctx, cfg.Archive, *dump, os.Stdout); err != nil {
			probeLogger.Fatal().Err(err).Str("session_id", *dump).Msg("archive dump failed")
		}
		return
	}

	engine := chat.NewEngine(chat.NewStore(chat.StoreConfig{}), chat.EngineConfig{
		Generator:        reply.NewGenerator(reply.PickerFor(*strategy)),
		Logger:           &probeLogger,
		MaxMessageLength: cfg.Session.MaxMessageLength,
	})

	var in io.Reader = os.Stdin
	if *text != "" {
		in = strings.NewReader(*text)
	}

	if err := probe(context.Background(), engine, in, os.Stdout, *jsonOut); err != nil {
		probeLogger.Fatal().Err(err).Msg("probe failed")
	}
}

type turn struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Reply    string `json:"reply"`
	Flagged  bool   `json:"flagged"`
}

// probe runs every non-blank line of in through one session and prints the
// classification and answer for each.
func probe(ctx context.Context, engine *chat.Engine, in io.Reader, out io.Writer, asJSON bool) error {
	session, err := engine.CreateSession(ctx)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		result, err := engine.PostMessage(ctx, session.SessionID, line)
		if err != nil {
			return fmt.Errorf("post %q: %w", line, err)
		}

		t := turn{Text: line, Category: string(result.Category), Reply: result.Reply, Flagged: result.Flagged}
		if asJSON {
			if err := enc.Encode(t); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(out, "> %s\n[%s flagged=%t] %s\n", t.Text, t.Category, t.Flagged, t.Reply)
	}
	return scanner.Err()
}

func dumpTranscript(ctx context.Context, archiveCfg config.ArchiveConfig, sessionID string, out io.Writer) error {
	if !archiveCfg.Enabled() {
		return fmt.Errorf("no archive configured, set ARCHIVE_DRIVER")
	}

	archive, err := store.Open(ctx, store.Options{
		Driver:     archiveCfg.Driver,
		SQLitePath: archiveCfg.SQLitePath,
		RedisURL:   archiveCfg.RedisURL,
		RedisTTL:   archiveCfg.RedisTTL,
	})
	if err != nil {
		return err
	}
	defer archive.Close()

	transcript, err := archive.LoadTranscript(ctx, sessionID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(transcript)
}
