package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nordlys-io/sxwatch/pkg/api"
	"github.com/nordlys-io/sxwatch/pkg/feed"
	"github.com/nordlys-io/sxwatch/pkg/journal"
	"github.com/nordlys-io/sxwatch/pkg/poll"
	"github.com/nordlys-io/sxwatch/pkg/publish"
)

func main() {
	fmt.Println(`{"level":"info","msg":"system_started","component":"sxwatch-d"}`)

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf(`{"level":"fatal","msg":"invalid_config","error":"%v"}`+"\n", err)
		os.Exit(1)
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		fmt.Printf(`{"level":"fatal","msg":"failed_to_open_journal","error":"%v"}`+"\n", err)
		os.Exit(1)
	}
	fmt.Printf(`{"level":"info","msg":"journal_opened","path":"%s"}`+"\n", cfg.JournalPath)

	budget := feed.NewRateBudget(feed.DefaultMinInterval)
	fetcher := feed.NewClient(cfg.FeedURL, cfg.DatasetID, budget)
	if cfg.MaxPageSize > 0 {
		fetcher.SetMaxPageSize(cfg.MaxPageSize)
	}

	pollCfg := poll.Config{
		Lines:    cfg.Lines,
		Interval: cfg.PollInterval,
		Journal:  jnl,
		Budget:   budget,
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			fmt.Printf(`{"level":"fatal","msg":"redis_unreachable","addr":"%s","error":"%v"}`+"\n", cfg.RedisAddr, err)
			os.Exit(1)
		}
		cancel()
		pollCfg.Publisher = publish.NewRedisPublisher(rdb)
		fmt.Printf(`{"level":"info","msg":"redis_publisher_enabled","addr":"%s"}`+"\n", cfg.RedisAddr)
	}

	coord := poll.New(fetcher, pollCfg)

	srv := api.NewServer(coord, jnl, cfg.Addr)
	go func() {
		if err := srv.Start(); err != nil {
			fmt.Printf(`{"level":"fatal","msg":"api_server_failed","error":"%v"}`+"\n", err)
			os.Exit(1)
		}
	}()
	fmt.Printf(`{"level":"info","msg":"api_listening","addr":"%s"}`+"\n", cfg.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)
	go pruneLoop(ctx, jnl)
	fmt.Printf(`{"level":"info","msg":"poller_started","dataset":"%s","lines":%d,"interval":"%s"}`+"\n",
		cfg.DatasetID, len(cfg.Lines), cfg.PollInterval)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigs
		if sig == syscall.SIGHUP {
			reloadLines(cfg, coord)
			continue
		}
		fmt.Printf(`{"level":"info","msg":"shutdown_initiated","signal":"%s"}`+"\n", sig)
		break
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Printf(`{"level":"error","msg":"api_shutdown_failed","error":"%v"}`+"\n", err)
	}

	if err := jnl.Close(); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_close_journal","error":"%v"}`+"\n", err)
	} else {
		fmt.Println(`{"level":"info","msg":"journal_closed"}`)
	}

	fmt.Println(`{"level":"info","msg":"shutdown_complete"}`)
}

const (
	journalRetention     = 30 * 24 * time.Hour
	journalPruneInterval = time.Hour
)

// pruneLoop keeps the event journal from growing without bound.
func pruneLoop(ctx context.Context, jnl *journal.Journal) {
	ticker := time.NewTicker(journalPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := jnl.Prune(ctx, journalRetention)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("journal prune failed: %v", err)
				}
				continue
			}
			if removed > 0 {
				log.Printf("journal pruned %d events older than %s", removed, journalRetention)
			}
		}
	}
}

// reloadLines re-reads the lines file on SIGHUP. The new set takes
// effect on the next poll. Without a lines file the signal is a no-op.
func reloadLines(cfg Config, coord *poll.Coordinator) {
	if cfg.LinesFile == "" {
		log.Printf("SIGHUP received but no lines file configured; ignoring")
		return
	}
	lines, err := LoadLines(cfg.LinesFile)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"lines_reload_failed","path":"%s","error":"%v"}`+"\n", cfg.LinesFile, err)
		return
	}
	if len(lines) == 0 {
		fmt.Printf(`{"level":"error","msg":"lines_reload_rejected","path":"%s","error":"no lines in file"}`+"\n", cfg.LinesFile)
		return
	}
	coord.UpdateLines(lines)
	fmt.Printf(`{"level":"info","msg":"lines_reloaded","path":"%s","count":%d}`+"\n", cfg.LinesFile, len(lines))
}
