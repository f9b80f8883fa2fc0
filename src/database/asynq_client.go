package database

import (
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

var AsynqClient *asynq.Client

// InitAsynq creates the task client when Redis is available.
func InitAsynq() {
	if RedisClient == nil || RedisURI == "" {
		zap.L().Warn("Redis not available, asynq client not initialized")
		return
	}

	AsynqClient = asynq.NewClient(asynq.RedisClientOpt{Addr: RedisURI})
	zap.L().Info("asynq client initialized")
}
