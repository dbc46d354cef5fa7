package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/scriba/internal/app"
)

// runServe starts background tasks and blocks until interrupted
func runServe(application *app.App) error {
	if err := application.Start(); err != nil {
		return err
	}

	logger.Info().Msg("Scriba running - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")
	return nil
}
