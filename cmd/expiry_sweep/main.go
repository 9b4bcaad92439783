package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/proofstake-backend/internal/app"
)

// expiry_sweep runs a single expiry pass and exits; suited to a cron job.
func main() {
	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := a.Services.SweepWorker.SweepOnce(ctx)
	if err != nil {
		a.Log.Error("Expiry sweep failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Log.Info("Expiry sweep done",
		"owners", stats.Owners,
		"expired", stats.Expired,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
}
