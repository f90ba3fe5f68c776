package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nordlys-io/sxwatch/pkg/feed"
)

const (
	defaultAddr         = "127.0.0.1:8091"
	defaultPollInterval = 60 * time.Second
)

type Config struct {
	Addr         string
	FeedURL      string
	DatasetID    string
	Lines        []string
	LinesFile    string
	PollInterval time.Duration
	JournalPath  string
	RedisAddr    string
	MaxPageSize  int
}

func LoadConfig(args []string) (Config, error) {
	// .env is optional; real env vars take precedence over it.
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultJournalPath := filepath.Join(cwd, "sxwatch.db")

	addr := envOrDefault("SXWATCH_ADDR", defaultAddr)
	feedURL := envOrDefault("SXWATCH_FEED_URL", feed.DefaultBaseURL)
	datasetID := os.Getenv("SXWATCH_DATASET")
	linesCSV := os.Getenv("SXWATCH_LINES")
	linesFile := os.Getenv("SXWATCH_LINES_FILE")
	journalPath := envOrDefault("SXWATCH_JOURNAL_PATH", defaultJournalPath)
	redisAddr := os.Getenv("SXWATCH_REDIS_ADDR")
	pollInterval := defaultPollInterval
	if v := os.Getenv("SXWATCH_POLL_INTERVAL"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SXWATCH_POLL_INTERVAL: %w", err)
		}
		if parsed <= 0 {
			return Config{}, errors.New("SXWATCH_POLL_INTERVAL must be positive")
		}
		pollInterval = parsed
	}
	maxPageSize := 0
	if v := os.Getenv("SXWATCH_MAX_PAGE_SIZE"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SXWATCH_MAX_PAGE_SIZE: %w", err)
		}
		maxPageSize = parsed
	}

	flagSet := flag.NewFlagSet("sxwatch-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagFeedURL := flagSet.String("feed-url", feedURL, "situation exchange feed URL")
	flagDataset := flagSet.String("dataset", datasetID, "codespace/dataset to poll (e.g. SKY)")
	flagLines := flagSet.String("lines", linesCSV, "comma-separated line refs to monitor")
	flagLinesFile := flagSet.String("lines-file", linesFile, "file with one line ref per line (reloaded on SIGHUP)")
	flagPollInterval := flagSet.String("poll-interval", pollInterval.String(), "normal poll interval")
	flagJournal := flagSet.String("journal", journalPath, "path to SQLite event journal")
	flagRedis := flagSet.String("redis", redisAddr, "Redis address for snapshot publishing (empty disables)")
	flagMaxPageSize := flagSet.Int("max-page-size", maxPageSize, "page size override for the feed request (0 uses the feed default)")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	pollIntervalParsed, err := time.ParseDuration(*flagPollInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid poll interval: %w", err)
	}
	if pollIntervalParsed <= 0 {
		return Config{}, errors.New("poll interval must be positive")
	}

	config := Config{
		Addr:         strings.TrimSpace(*flagAddr),
		FeedURL:      strings.TrimSpace(*flagFeedURL),
		DatasetID:    strings.TrimSpace(*flagDataset),
		LinesFile:    strings.TrimSpace(*flagLinesFile),
		PollInterval: pollIntervalParsed,
		JournalPath:  resolvePath(*flagJournal, cwd),
		RedisAddr:    strings.TrimSpace(*flagRedis),
		MaxPageSize:  *flagMaxPageSize,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.DatasetID == "" {
		return Config{}, errors.New("dataset is required (flag -dataset or SXWATCH_DATASET)")
	}
	if config.MaxPageSize < 0 {
		return Config{}, errors.New("max-page-size cannot be negative")
	}

	if config.LinesFile != "" {
		config.LinesFile = resolvePath(config.LinesFile, cwd)
		lines, err := LoadLines(config.LinesFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to load lines file: %w", err)
		}
		config.Lines = lines
	} else {
		config.Lines = splitLines(*flagLines)
	}

	if len(config.Lines) == 0 {
		return Config{}, errors.New("no lines to monitor (flag -lines, -lines-file or SXWATCH_LINES)")
	}

	return config, nil
}

// LoadLines reads a lines file: one line ref per line, blank lines and
// '#' comments ignored.
func LoadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ref := strings.TrimSpace(scanner.Text())
		if ref == "" || strings.HasPrefix(ref, "#") {
			continue
		}
		lines = append(lines, ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func splitLines(csv string) []string {
	var lines []string
	for _, part := range strings.Split(csv, ",") {
		ref := strings.TrimSpace(part)
		if ref != "" {
			lines = append(lines, ref)
		}
	}
	return lines
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}
