// Command qngin is the health-aggregation agent: it maintains a pool of
// reconnecting WebSocket clients against configured dequeuer endpoints and
// reconciles their health notifications into the shared queues database
// (spec.md §1, §6). Grounded on main.go (root)'s flag/signal/shutdown shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dec112/prf/internal/aggregator"
	"github.com/dec112/prf/internal/config"
	"github.com/dec112/prf/internal/store/sqlite"
)

func main() {
	confPath := flag.String("c", "", "path to config.yaml")
	dbPath := flag.String("d", "", "path to sqlite database file")
	verbose := flag.Bool("v", false, "enable verbose logging")
	flag.Parse()

	log.SetPrefix("qngin: ")

	if *confPath == "" || *dbPath == "" {
		fmt.Fprintln(os.Stderr, "qngin: -c and -d are required")
		os.Exit(0)
	}

	cfg, err := config.Load(*confPath)
	if err != nil {
		log.Printf("config: %v", err)
		os.Exit(0)
	}

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Printf("database: %v", err)
		os.Exit(0)
	}
	defer db.Close()

	reg := aggregator.NewRegistry()
	var clients []*aggregator.Client
	for _, ep := range cfg.Endpoints {
		rec := reg.Add(ep.RawURL, ep.DialURL)
		clients = append(clients, aggregator.NewClient(rec, reg, db, *verbose))
	}
	if len(clients) == 0 {
		log.Printf("no websockets configured")
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *aggregator.Client) {
			defer wg.Done()
			c.Run(ctx)
		}(c)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Printf("shutting down, unsubscribing %d endpoint(s)...", len(clients))
	for _, c := range clients {
		c.Shutdown()
	}

	waitForTerminal(reg, 10*time.Second)
	cancel()
	wg.Wait()

	finalPurge(reg, db)
	log.Printf("clean shutdown")
}

// waitForTerminal polls the registry until every endpoint reaches a terminal
// state (CLOSING/CLOSED/DISCONNECTED, see State.Terminal) or the deadline
// passes, matching spec.md
// §4.1's "Termination: when every endpoint is in state <= DISCONNECTED, the
// process exits after one final purge pass."
func waitForTerminal(reg *aggregator.Registry, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if reg.AllTerminal() || time.Now().After(deadline) {
			return
		}
	}
}

// finalPurge sweeps every endpoint's dequeuer one last time. Individual
// CLOSE events already purge their own dequeuer's rows; this catches any
// endpoint whose dequeuer was learned but whose close event raced shutdown.
func finalPurge(reg *aggregator.Registry, db *sqlite.DB) {
	for _, ep := range reg.Snapshot() {
		if ep.Dequeuer == "" {
			continue
		}
		if err := aggregator.Purge(context.Background(), db, ep.Dequeuer); err != nil {
			log.Printf("final purge %s: %v", ep.Dequeuer, err)
		}
	}
}
