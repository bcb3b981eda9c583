// Command server runs the job-routing/sync service: the HTTP API plus
// the background outbox and polling workers, in one process.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/fieldroute/jobsync/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize app: %v", err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("app exited with error: %v", err)
	}
}
