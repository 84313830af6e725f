package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	engagement "github.com/Brunux-hub/albru-engagement"
	"github.com/Brunux-hub/albru-engagement/config"
	redis_db "github.com/Brunux-hub/albru-engagement/internal/redis-db"

	"github.com/hibiken/asynq"
)

func initializeQueues() map[string]int {
	return map[string]int{
		engagement.WEBHOOK_QUEUE: 1,
	}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", conf.Redis.Dns)}, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error connecting to redis: %v", err)
	}

	return asynq.NewServer(
		redisClient,
		asynq.Config{
			Concurrency: 1,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(engagement.WEBHOOK_QUEUE, engagement.ProcessWebhook)
}

func workerCommands(_ *albruInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start background workers",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal("Error fetching config:", err)
			}

			queues := initializeQueues()

			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
