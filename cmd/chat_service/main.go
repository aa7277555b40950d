package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/internal/chat/router"
	"realtime_chat_service/pkg/config"
	"realtime_chat_service/pkg/database"
	"realtime_chat_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

const presenceCacheTTL = 24 * time.Hour

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatService, config.EnvConfig.ChatServiceLogPath)
	cfg := config.LoadConfig[config.Chat](config.EnvConfig.ChatService, config.EnvConfig.ChatServiceYAMLPath)

	// 1. Mongo 連線 (rooms / messages / statuses / counters)
	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// 2. Redis 連線 (presence cache + Pub/Sub)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 3. PostgreSQL 連線 (users 線上投影)
	sqlParams := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.PostgreSQL.User, cfg.PostgreSQL.Password, cfg.PostgreSQL.Host, cfg.PostgreSQL.Port, cfg.PostgreSQL.Database)
	pool, err := database.NewDatabaseConnection(database.Connection{
		ConnectStr:    sqlParams,
		RetryCount:    cfg.PostgreSQL.RetryCount,
		RetryInterval: time.Duration(cfg.PostgreSQL.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to postgreSQL database after retries",
			zap.String("address", fmt.Sprintf("[%s]", sqlParams)),
			zap.Error(err),
		)
	}
	defer pool.Close()

	// 4. Kafka Writer (聊天事件流)
	kafkaWriter, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect kafka err : %v", err))
	}
	defer kafkaWriter.Close()

	// 5. 初始化 Repository
	roomRepo := repository.NewMongoChatRepository(mongo.Database)
	msgRepo := repository.NewMongoChatMessageRepository(mongo.Database)
	statusRepo := repository.NewMongoStatusRepository(mongo.Database)
	if err := statusRepo.EnsureIndexes(ctx); err != nil {
		logger.Log.Fatal(fmt.Sprintf("ensure status indexes err : %v", err))
	}
	presenceCache := repository.NewRedisPresenceRepository(redisClient, presenceCacheTTL)
	userRepo := repository.NewUserRepository(pool)
	pub := repository.NewRedisPubSub(redisClient)
	events := repository.NewKafkaEventPublisher(kafkaWriter)

	// 6. 初始化 UseCases
	registry := app.NewConnectionRegistry()
	statusUC := app.NewStatusUseCase(msgRepo, statusRepo)
	dispatcher := app.NewDeliveryDispatcher(registry, statusUC, events, pub)
	catchup := app.NewCatchupLoader(registry, msgRepo, statusRepo, statusUC, dispatcher, cfg.CatchupBatch)
	presence := app.NewPresenceNotifier(registry, roomRepo, presenceCache, userRepo, events)
	messageUC := app.NewMessageUseCase(roomRepo, msgRepo, statusUC, dispatcher)
	roomUC := app.NewRoomUseCase(roomRepo)

	// 第一條連線 → 上線通知 + 補發；最後一條斷線 → 離線通知
	registry.SetTransitionHooks(
		func(userID string, at time.Time) {
			presence.Notify(ctx, userID, true, at)
			if n, err := catchup.DeliverPending(ctx, userID); err != nil {
				logger.Log.Errorf(fmt.Sprintf("catch-up failed [user:%s], err:", userID), err)
			} else if n > 0 {
				logger.Log.Info(fmt.Sprintf("catch-up delivered %d messages [user:%s]", n, userID))
			}
		},
		func(userID string, at time.Time) {
			presence.Notify(ctx, userID, false, at)
		},
	)

	// 7. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	router.RegisterRoutes(r, app.NewChatWebsocketHandler(registry, roomUC, messageUC, presence, pub))

	port := ":" + cfg.Port
	log.Printf("Chat Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
