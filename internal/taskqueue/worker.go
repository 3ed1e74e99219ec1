package taskqueue

import (
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

var (
	asynqClient *asynq.Client
	asynqSrv    *asynq.Server
)

// StartWorkers starts the Asynq worker pool. Blocks until StopWorkers.
func StartWorkers(redisAddr string, log zerolog.Logger) {
	asynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDailyReport, handleDailyReport)
	mux.HandleFunc(TypePlantAnalysis, handlePlantAnalysis)
	mux.HandleFunc(TypeExternalSync, handleExternalSync)

	asynqSrv = asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{Concurrency: 4})
	log.Info().Str("redis", redisAddr).Msg("task workers started")
	if err := asynqSrv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("task workers failed")
	}
}

// StopWorkers stops the worker pool.
func StopWorkers() {
	if asynqSrv != nil {
		asynqSrv.Stop()
		asynqSrv.Shutdown()
	}
	if asynqClient != nil {
		asynqClient.Close()
	}
}
