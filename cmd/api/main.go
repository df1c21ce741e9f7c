package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"crash/internal/config"
	"crash/internal/server"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		log.Fatalf("[SERVER] Startup failed: %v", err)
	}
	srv.RegisterFiberRoutes()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.RunHub(ctx)
	})

	if err := srv.StartEngine(ctx); err != nil {
		log.Fatalf("[SERVER] Engine failed to start: %v", err)
	}

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Printf("[SERVER] Listening on %s", addr)
		if err := srv.Listen(addr); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[SERVER] Exited with error: %v", err)
	}
	log.Println("[SERVER] Graceful shutdown complete")
}
