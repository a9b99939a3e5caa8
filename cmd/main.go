package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "library_api/docs"
	"library_api/internal/config"
	"library_api/internal/handlers"
	"library_api/internal/logger"
	"library_api/internal/repository"
	"library_api/internal/repository/db"
	"library_api/internal/server"
	"library_api/internal/service"
	"library_api/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// @title                       Library API
// @version                     1.0
// @description                 Book catalog with borrowing, reviews and an activity log.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	// open DB
	conn, err := db.Open(cfg.DB.Driver, cfg.DB.DSN)
	if err != nil {
		log.Fatalw("failed to open database", "driver", cfg.DB.Driver, "err", err)
	}
	defer closeDB(conn, log)

	// wire dependencies
	repos := repository.NewRepository(conn, repository.DialectFor(cfg.DB.Driver))
	services := service.NewService(repos, storage.NewLocalCovers(cfg.Storage.CoversDir), service.Config{
		Auth: service.AuthConfig{
			SigningKey: cfg.Auth.SigningKey,
			TokenTTL:   cfg.Auth.TokenTTL,
		},
		MaxCoverBytes: cfg.Storage.MaxCoverBytes,
		Log:           log.Named("activity"),
	})
	apiHandler := handlers.NewHandler(services, log.Named("http"), handlers.Config{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		DefaultBookLimit: cfg.Books.DefaultLimit,
		DB:               conn,
		MaxCoverBytes:    cfg.Storage.MaxCoverBytes,
	})

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)
	log.Infow("library api started", "port", cfg.Port, "db", cfg.DB.Driver)

	// graceful shutdown
	waitForShutdown(srv, log)
}

func closeDB(conn *sql.DB, log *logger.Logger) {
	if err := conn.Close(); err != nil {
		log.Errorw("failed to close database", "err", err)
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// allow in-flight requests to complete
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
