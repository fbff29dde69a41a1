// Package app wires the collab server runtime: config, logging, storage, HTTP routes and the chat gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"collab/cmd/identity"
	"collab/cmd/internal/auth"
	authapi "collab/cmd/internal/auth/api"
	"collab/cmd/internal/files"
	"collab/cmd/internal/migrations"
	"collab/cmd/internal/realtime"
	"collab/cmd/internal/records"
	"collab/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the collab server runtime. It owns the pool, the audit file and the HTTP server.
type App struct {
	cfg Config
	log Logger

	reg     *prometheus.Registry
	metrics *httpMetrics

	dbPool    *pgxpool.Pool
	dbEnabled bool

	auditFile *auth.FileAuditLog

	auth    *authapi.Handler
	records *records.Handler
	files   *files.Handler

	hub *realtime.Hub
	ws  *realtime.WSGateway
}

// New constructs a fully wired App. Without COLLAB_DATABASE_URL every store is in-memory.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	a := &App{
		cfg: cfg,
		log: log,
		reg: prometheus.NewRegistry(),
	}
	a.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = newHTTPMetrics(a.reg)

	if err := a.wire(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	var (
		accounts    identity.Store
		roles       identity.RoleDirectory
		recordStore records.Store
		audits      auth.MultiAuditLog
	)

	if a.cfg.DatabaseURL == "" {
		a.log.Info("db.disabled.inmemory_store")
		mem := identity.NewMemoryStore()
		accounts, roles = mem, mem
		recordStore = records.NewMemoryStore()
		audits = append(audits, auth.NewMemoryAuditLog())
	} else {
		pool, err := NewDBPool(ctx, a.cfg)
		if err != nil {
			return err
		}
		a.dbPool, a.dbEnabled = pool, true
		a.log.Info("db.enabled.postgres_store")

		if a.cfg.DBAutoMigrate {
			if err := migrations.Up(ctx, pool); err != nil {
				return err
			}
			a.log.Info("db.migrated")
		}

		accountStore, err := identity.NewPostgresStore(pool)
		if err != nil {
			return err
		}
		accounts, roles = accountStore, accountStore

		rs, err := records.NewPostgresStore(pool)
		if err != nil {
			return err
		}
		recordStore = rs
		audits = append(audits, auth.NewPostgresAuditLog(pool))
	}

	if a.cfg.AuditFile != "" {
		f, err := auth.OpenFileAuditLog(a.cfg.AuditFile)
		if err != nil {
			return err
		}
		a.auditFile = f
		audits = append(audits, f)
	}

	pw, err := password.FromEnv()
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(a.log, accounts, pw,
		auth.WithAuditLog(audits),
		auth.WithMetrics(auth.NewMetrics(a.reg)),
	)
	if err != nil {
		return err
	}
	a.auth, err = authapi.NewHandler(a.log, authSvc, authapi.LoadConfigFromEnv())
	if err != nil {
		return err
	}

	a.hub = realtime.NewHub(a.log, a.reg)
	recordSvc, err := records.NewService(a.log, recordStore, records.WithPublisher(a.hub))
	if err != nil {
		return err
	}
	a.records, err = records.NewHandler(a.log, recordSvc, roles)
	if err != nil {
		return err
	}

	send := realtime.SenderFunc(func(ctx context.Context, room int64, content string) error {
		_, err := recordSvc.SendMessage(ctx, room, content)
		return err
	})
	a.ws = realtime.NewWSGateway(a.log, a.hub, send, realtime.LoadGatewayConfigFromEnv())

	blob, err := a.newBlob(ctx)
	if err != nil {
		return err
	}
	a.files, err = files.NewHandler(a.log, blob, a.cfg.UploadMaxBytes)
	return err
}

func (a *App) newBlob(ctx context.Context) (files.Blob, error) {
	if a.cfg.S3Bucket != "" {
		a.log.Info("files.s3", "bucket", a.cfg.S3Bucket, "endpoint", a.cfg.S3Endpoint)
		return files.NewS3Store(ctx, files.S3Config{
			Bucket:    a.cfg.S3Bucket,
			Region:    a.cfg.S3Region,
			Endpoint:  a.cfg.S3Endpoint,
			AccessKey: a.cfg.S3AccessKey,
			SecretKey: a.cfg.S3SecretKey,
		})
	}
	a.log.Info("files.local", "dir", a.cfg.UploadDir)
	return files.NewLocalStore(a.cfg.UploadDir)
}

// Handler returns the full middleware-wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	return WithRequestLogging(h, a.log, a.metrics)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	// Hijacked WebSocket connections are not tracked by srv.Shutdown.
	if err := a.ws.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("ws.shutdown.timeout", "err", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return fmt.Errorf("app: shutdown: %w", err)
	}

	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.auditFile != nil {
		if err := a.auditFile.Close(); err != nil {
			a.log.Error("audit.file.close.fail", "err", err)
		}
		a.auditFile = nil
	}
	if a.dbPool != nil {
		a.dbPool.Close()
		a.dbPool = nil
	}
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
