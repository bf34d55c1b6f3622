package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bookpilot/bookpilot/internal/booking"
	"github.com/bookpilot/bookpilot/internal/browser"
	"github.com/bookpilot/bookpilot/internal/concurrency"
	"github.com/bookpilot/bookpilot/internal/config"
	"github.com/bookpilot/bookpilot/internal/db"
	"github.com/bookpilot/bookpilot/internal/pool"
	"github.com/bookpilot/bookpilot/internal/registry"
	"github.com/bookpilot/bookpilot/internal/router"
	"github.com/bookpilot/bookpilot/internal/widget"
)

func main() {
	cfg := config.Load()
	log.Printf("Starting BookPilot API server on port %d", cfg.Port)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Println("Database connection established")

	runtime, err := browser.StartRuntime(browser.RuntimeOptions{
		Headless: cfg.Headless,
		Install:  cfg.InstallBrowsers,
	})
	if err != nil {
		log.Fatalf("browser runtime: %v", err)
	}
	defer func() {
		if err := runtime.Stop(); err != nil {
			log.Printf("Error stopping browser runtime: %v", err)
		}
	}()

	browserPool := pool.New(runtime, pool.Options{
		MaxSize:       cfg.PoolMaxSize,
		LaunchRetries: cfg.LaunchRetries,
	})
	defer browserPool.Close()

	reg := registry.New(browserPool, registry.Options{IdleWindow: cfg.IdleWindow})
	defer reg.CloseAll()

	janitorCtx, janitorCancel := context.WithCancel(ctx)
	defer janitorCancel()
	go func() {
		if err := reg.Start(janitorCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Registry janitor stopped with error: %v", err)
		}
	}()

	mgr := concurrency.NewManager(cfg.Capacity, cfg.QueueSize)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	taskClient := asynq.NewClient(redisOpt)
	defer taskClient.Close()

	driver := widget.New(cfg.WidgetURL, widget.DefaultSelectors(), cfg.TaskTimeout)

	svc := booking.NewService(booking.Dependencies{
		Manager:    mgr,
		Pool:       browserPool,
		Registry:   reg,
		Driver:     driver,
		TaskClient: taskClient,
		CtxOpts:    browser.ContextOptions{ViewportWidth: 1280, ViewportHeight: 800},
		Timeout:    cfg.TaskTimeout,
	})

	r := router.New(router.Deps{
		DB:       database,
		Manager:  mgr,
		Pool:     browserPool,
		Registry: reg,
		Booking:  svc,
		Store:    booking.NewStore(database.DB),
		RedisOpt: redisOpt,
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: r,
	}

	go func() {
		log.Printf("API listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()

	log.Printf("Graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}
	log.Println("Server exited")
}
