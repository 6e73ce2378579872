// Command rngin is the policy-routing engine: it serves HTTP requests asking
// where a SIP-like request should be routed, evaluating a YAML rule set
// whose queue predicates consult the database qngin maintains (spec.md §1,
// §6). Grounded on main.go (root)'s flag/signal/shutdown shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dec112/prf/internal/httpapi"
	"github.com/dec112/prf/internal/rules"
	"github.com/dec112/prf/internal/store/sqlite"
)

func main() {
	addr := flag.String("i", "0.0.0.0", "listen address")
	port := flag.String("p", "8080", "listen port")
	rulePath := flag.String("f", "", "path to rules.yaml")
	dbPath := flag.String("d", "", "path to sqlite database file")
	verbose := flag.Bool("v", false, "enable verbose logging")
	flag.Parse()

	log.SetPrefix("rngin: ")

	if *rulePath == "" || *dbPath == "" {
		fmt.Fprintln(os.Stderr, "rngin: -f and -d are required")
		os.Exit(0)
	}

	// Startup DB existence check (original_source/rngin/src/rngin.c calls
	// sqlite_CHECK before binding the listener): fail fast rather than
	// accept connections against a database that was never created.
	if _, err := os.Stat(*dbPath); err != nil {
		log.Printf("database %s: %v", *dbPath, err)
		os.Exit(0)
	}

	// Rule file openability check at startup (rngin.c opens and closes the
	// rule file once before serving, to fail fast on a bad path). The
	// per-request load still happens independently through the cache below.
	if _, err := os.ReadFile(*rulePath); err != nil {
		log.Printf("rule file %s: %v", *rulePath, err)
		os.Exit(0)
	}

	db, err := sqlite.OpenReadOnly(*dbPath)
	if err != nil {
		log.Printf("database: %v", err)
		os.Exit(0)
	}
	defer db.Close()

	var st rules.Store = db
	cache := rules.NewCache(*rulePath)

	srv := &http.Server{
		Addr:    *addr + ":" + *port,
		Handler: httpapi.New(cache, st, *verbose),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-sigCh
	log.Printf("shutting down...")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
