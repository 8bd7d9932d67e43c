// Command rapport-maintenance prunes low-confidence memories for the given
// users, either once or on a fixed interval.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mindloom/rapport/internal/config"
	"github.com/mindloom/rapport/internal/server"
	"github.com/mindloom/rapport/internal/storage"
)

var (
	interval = flag.Duration("interval", 0, "Run a sweep on this interval instead of exiting (e.g. 6h)")
	timeout  = flag.Duration("timeout", 30*time.Second, "Per-sweep timeout")
)

func main() {
	flag.Parse()

	users := flag.Args()
	if len(users) == 0 {
		log.Fatal("Usage: rapport-maintenance [flags] USER_ID [USER_ID...]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	store, err := server.OpenStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if *interval <= 0 {
		sweep(store, users)
		return
	}

	runService(store, users, *interval)
}

func sweep(store storage.Store, users []string) {
	for _, userID := range users {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		pruned, err := store.PruneMemories(ctx, userID, storage.PruneThreshold)
		cancel()
		if err != nil {
			log.Printf("ERROR: prune for %s failed: %v", userID, err)
			continue
		}
		log.Printf("Pruned %d memories for %s", pruned, userID)
	}
}

func runService(store storage.Store, users []string, every time.Duration) {
	log.Printf("Prune service started, sweeping %d user(s) every %v", len(users), every)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sweep(store, users)
	for {
		select {
		case <-ticker.C:
			sweep(store, users)
		case <-sigCh:
			log.Println("Prune service stopped")
			return
		}
	}
}
