package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brunux-hub/albru-engagement/api"
	"github.com/Brunux-hub/albru-engagement/config"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func initializeRouter(b *albruInstance) *gin.Engine {
	return api.NewAPI(b.engagement).Router()
}

// startServer serves the API and runs the timeout sweeper alongside
// it, shutting both down cleanly on SIGINT/SIGTERM.
func startServer(b *albruInstance, router *gin.Engine, conf config.ServerConfig) error {
	sweeper, err := b.engagement.NewSweeper()
	if err != nil {
		return err
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:    ":" + conf.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s\n", conf.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Printf("Received %s, shutting down\n", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func serverCommands(b *albruInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the engagement coordinator server",
		Run: func(cmd *cobra.Command, args []string) {
			router := initializeRouter(b)

			cfg, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			if err := startServer(b, router, cfg.Server); err != nil {
				log.Fatal(err)
			}
		},
	}

	return cmd
}
