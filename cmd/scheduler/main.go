package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskwarden/taskwarden/internal/app"
	"github.com/taskwarden/taskwarden/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rootCtx := context.Background()
	application, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}
	defer application.Close()

	if err := application.Manager.Register(application.Scheduler); err != nil {
		log.Fatalf("register job scheduler: %v", err)
	}

	if err := application.Manager.Start(rootCtx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	application.Log.Info("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Manager.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
