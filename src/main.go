package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "Backend-Volunteer-Hours/docs"
	"Backend-Volunteer-Hours/src/config"
	"Backend-Volunteer-Hours/src/controllers"
	"Backend-Volunteer-Hours/src/database"
	"Backend-Volunteer-Hours/src/jobs"
	"Backend-Volunteer-Hours/src/middleware"
	"Backend-Volunteer-Hours/src/routes"
	"Backend-Volunteer-Hours/src/services/approval"
	hourrecords "Backend-Volunteer-Hours/src/services/hour-records"
	"Backend-Volunteer-Hours/src/services/timeservice"
	"Backend-Volunteer-Hours/src/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

// @title Volunteer Hours API
// @version 1.0
// @description Volunteer check-in, check-out and hour records
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()

	logger, err := utils.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc := time.Local
	if cfg.TZName != "" && cfg.TZName != "Local" {
		if loc, err = time.LoadLocation(cfg.TZName); err != nil {
			logger.Fatal("invalid TZ_NAME", zap.String("tz", cfg.TZName), zap.Error(err))
		}
	}
	times := timeservice.New(timeservice.WithLocation(loc))

	var repo hourrecords.Repository
	switch cfg.Storage {
	case "memory":
		logger.Warn("using in-memory hour record storage")
		repo = hourrecords.NewMemoryRepository()
	default:
		if err := database.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB); err != nil {
			logger.Fatal("error connecting to the database", zap.Error(err))
		}
		defer database.DisconnectMongoDB(context.Background())
		repo = hourrecords.NewMongoRepository(database.HourRecordCollection)
	}

	svc := hourrecords.NewService(repo, times, approval.NewEngine(), logger.Named("hourrecords"))

	if cfg.EnableJobs && cfg.RedisURI != "" {
		if err := database.InitRedis(ctx, cfg.RedisURI); err != nil {
			logger.Warn("overtime sweep disabled", zap.Error(err))
		} else {
			database.InitAsynq()
			if database.AsynqClient != nil {
				defer database.AsynqClient.Close()
				if err := jobs.EnqueueSweep(database.AsynqClient, "startup"); err != nil {
					logger.Warn("failed to enqueue startup sweep", zap.Error(err))
				}
			}
			go func() {
				if err := jobs.RunWorker(ctx, cfg.RedisURI, svc); err != nil {
					logger.Error("asynq worker stopped", zap.Error(err))
				}
			}()
		}
	}

	app := fiber.New()
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
	}))

	routes.InitRoutes(app,
		controllers.NewHourRecordController(svc),
		middleware.NewOperatorLimiter(cfg.RateLimit, cfg.RateBurst))

	go func() {
		<-ctx.Done()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	logger.Info("server is running", zap.String("port", cfg.Port), zap.String("app_uri", cfg.AppURI))
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
