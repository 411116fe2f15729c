package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Tk21111/whiteboard_sync/api"
	"github.com/Tk21111/whiteboard_sync/config"
	"github.com/Tk21111/whiteboard_sync/db"
	"github.com/Tk21111/whiteboard_sync/internal/logx"
	"github.com/Tk21111/whiteboard_sync/middleware"
	"github.com/Tk21111/whiteboard_sync/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	settings, err := config.Load()
	if err != nil {
		return err
	}

	if err := logx.Init(settings.Env); err != nil {
		return err
	}
	defer logx.L.Sync()

	log := logx.L
	if !settings.EnvFile {
		log.Warn(".env not found, using environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(settings.DBPath, log)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { err = multierr.Append(err, store.Close()) }()

	var snapshots db.SnapshotStore = store
	if settings.SnapshotStore == "s3" {
		client, err := db.NewS3Client(ctx, settings.S3Endpoint)
		if err != nil {
			return err
		}
		snapshots = db.NewS3Snapshots(client, settings.Bucket, log)
	}

	hub := ws.NewHub(log)
	relay := ws.NewRelay(hub, snapshots, store, store, ws.Options{
		RateLimit: settings.RateLimit,
		RateBurst: settings.RateBurst,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/{roomId}", relay.HandleWS)
	mux.Handle("POST /save/{roomId}", api.SaveHandler(snapshots))
	mux.Handle("GET /snapshot/{roomId}", api.SnapshotHandler(snapshots))
	mux.Handle("GET /events/{roomId}", api.EventsHandler(store))

	srv := &http.Server{
		Addr:    settings.Addr,
		Handler: middleware.Logging(middleware.CORS(mux)),
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("whiteboard relay listening",
			zap.String("addr", settings.Addr),
			zap.String("snapshots", settings.SnapshotStore),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
