package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yungbote/proofstake-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	a.Start()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.Cfg.Port
		a.Log.Info("Server listening", "addr", addr)
		errCh <- a.Run(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		a.Log.Info("Shutting down", "signal", s.String())
	case err := <-errCh:
		if err != nil {
			a.Log.Error("Server failed", "error", err)
		}
	}
}
