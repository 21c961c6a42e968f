package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"impriartex-service/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}
	srv := app.NewServer()

	// Run server in a separate goroutine so we can listen for shutdown signals
	failed := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			failed <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		log.Println("[MAIN] Shutting down server...")
	case err := <-failed:
		log.Printf("[MAIN] Server failed: %v", err)
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[MAIN] Shutdown finished with errors: %v", err)
		exitCode = 1
	} else {
		log.Println("[MAIN] Server stopped gracefully")
	}
	if exitCode != 0 {
		cancel()
		os.Exit(exitCode)
	}
}
