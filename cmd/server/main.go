package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/brandpost/configs"
	"github.com/maheshrc27/brandpost/internal/api/handlers"
	"github.com/maheshrc27/brandpost/internal/api/middleware"
	job "github.com/maheshrc27/brandpost/internal/jobs"
	"github.com/maheshrc27/brandpost/internal/logger"
	"github.com/maheshrc27/brandpost/internal/metrics"
	"github.com/maheshrc27/brandpost/internal/queue"
	"github.com/maheshrc27/brandpost/internal/repository"
	"github.com/maheshrc27/brandpost/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.LoadConfig()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	if envErr != nil {
		slog.Warn("failed to load .env file", "error", envErr)
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		fatal("failed to connect to database", err)
	}

	if err := db.Ping(); err != nil {
		fatal("database is unreachable", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("unhandled error", "path", c.Path(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(middleware.NewCORS(cfg.FrontendURL))

	clock := service.NewBusinessClock(cfg.Location())

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	connectionRepo := repository.NewConnectionRepository(db)
	attemptRepo := repository.NewPublishAttemptRepository(db)

	notifier := queue.NewNotifier(client)

	authService := service.NewAuthService(*cfg, userRepo)
	userService := service.NewUserService(userRepo, postRepo)
	connectionService := service.NewConnectionService(*cfg, connectionRepo)
	mediaService := service.NewMediaService(service.NewR2Service(*cfg))
	mailService := service.NewMailService(cfg.Email)

	adapters := []service.PlatformAdapter{
		service.NewFacebookService(*cfg, connectionService),
		service.NewLinkedInService(*cfg, connectionService),
	}
	publishService := service.NewPublishService(postRepo, attemptRepo, mediaService, adapters, notifier, m, service.PublishOptions{
		PlatformTimeout: cfg.PlatformTimeout,
		Lease:           cfg.PublishLease,
	})
	postService := service.NewPostService(postRepo, attemptRepo, mediaService, publishService, notifier, clock)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	auth := handlers.NewAuthHandler(*cfg, authService)
	app.Get("/login", auth.Login)
	app.Get("/login/callback", auth.LoginCallbackHandler)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	user := handlers.NewUserHandler(*cfg, userService)
	api.Get("/user/info", user.GetUserInfo)
	api.Delete("/user", user.DeleteUser)

	post := handlers.NewPostHandler(postService)
	api.Post("/posts/draft", post.SubmitDraft)
	api.Post("/posts/approval", post.SendForApproval)
	api.Post("/posts/schedule", post.Schedule)
	api.Post("/posts/publish", post.PublishNow)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/pending", post.ListPending)
	api.Get("/posts/:id", post.GetPost)
	api.Get("/posts/:id/attempts", post.ListAttempts)
	api.Put("/posts/:id", post.Edit)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/approve", post.Approve)
	api.Post("/posts/:id/reject", post.Reject)
	api.Post("/posts/:id/retry", post.Retry)

	platform := handlers.NewPlatformHandler(connectionService)
	api.Get("/connections", platform.ListConnections)
	api.Put("/connections/:platform", platform.SaveConnection)
	api.Delete("/connections/:platform", platform.DeleteConnection)

	// cron jobs
	var lease job.Lease
	if cfg.Scheduler.LeaseEnabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURI})
		defer redisClient.Close()
		ttl := cfg.Scheduler.TickTimeout
		if ttl <= 0 {
			ttl = cfg.Scheduler.Interval
		}
		lease = job.NewRedisLease(redisClient, job.SchedulerLeaseKey, ttl)
	}
	schedulerJob := job.NewSchedulerJob(postRepo, publishService, clock, m, job.SchedulerOptions{
		Concurrency: cfg.Scheduler.Concurrency,
		TickTimeout: cfg.Scheduler.TickTimeout,
		Lease:       lease,
	})
	refreshTokenJob := job.NewTokenRefreshJob(connectionService, 30*time.Minute)

	cronLogger := job.CronLogger(log)
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddJob(fmt.Sprintf("@every %s", cfg.Scheduler.Interval), schedulerJob); err != nil {
		fatal("invalid scheduler interval", err)
	}
	if _, err := c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens); err != nil {
		fatal("unable to schedule token refresh", err)
	}
	c.Start()

	//queue
	queueW := queue.NewQueue(userRepo, mailService, cfg.FrontendURL)

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"notifications": 1},
		Logger:      queue.NewLogger(log),
	})

	go func() {
		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeNotifyEmail, queueW.HandleNotificationTask)

		slog.Info("starting the asynq server")
		if err := server.Run(mux); err != nil {
			fatal("could not start asynq server", err)
		}
	}()

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			fatal("failed to start server", err)
		}
	}()
	slog.Info("server is running", "port", cfg.Port, "timezone", cfg.Location().String())

	gracefulShutdown(app, c, server, db)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, c *cron.Cron, server *asynq.Server, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	// wait for a running scheduler tick to finish
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		slog.Warn("cron jobs still running at shutdown")
	}

	server.Shutdown()

	if err := app.Shutdown(); err != nil {
		fatal("failed to shut down server", err)
	}

	closeDB(db)
	slog.Info("server shutdown complete")
}
