package main

import (
	"context"
	"database/sql"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"

	"arkiva.org/internal/access"
	"arkiva.org/internal/audit"
	"arkiva.org/internal/auth"
	"arkiva.org/internal/config"
	"arkiva.org/internal/directory"
	"arkiva.org/internal/httpapi"
	"arkiva.org/internal/obs"
	"arkiva.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	configPath := flag.String("config", os.Getenv("ARKIVA_CONFIG"), "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	obs.InitLogging(cfg.Logging.Level, cfg.Logging.Format)
	obs.Init()
	obs.InitBuildInfo(version, commit)

	auditSvc, accessSvc, directorySvc, db := buildServices(cfg)

	tokens := auth.NewTokens(cfg.Auth.JWTSecret)
	if !tokens.Enabled() {
		log.Warn().Msg("auth secret not configured; API runs without authentication")
	}

	api := httpapi.New(httpapi.Options{
		ReadyProbe:    httpapi.ReadyProbe{DB: db},
		Version:       version,
		Tokens:        tokens,
		TokenTTL:      cfg.Auth.TokenTTL,
		Access:        accessSvc,
		Audit:         auditSvc,
		Directory:     directorySvc,
		RatePerSecond: cfg.RateLimit.PerSecond,
		RateBurst:     cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	grpcSrv := grpc.NewServer()
	httpapi.NewGRPCServer(httpapi.ReadyProbe{DB: db}, version).Register(grpcSrv)

	log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting arkiva-api")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http listen")
		}
	}()
	go func() {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			log.Fatal().Err(err).Msg("grpc listen")
		}
		if err := grpcSrv.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	grpcSrv.GracefulStop()
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("stopped")
}

// buildServices wires the domain services on PostgreSQL when a DSN is
// configured, and on in-memory stores otherwise.
func buildServices(cfg *config.Config) (*audit.Service, *access.Service, *directory.Service, *sql.DB) {
	var (
		auditStore     audit.Store
		accessStore    access.Store
		directoryStore directory.Store
		db             *sql.DB
	)
	if dsn := cfg.Database.DSN; dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatal().Err(err).Msg("open database")
		}
		auditStore = store
		accessStore = store
		directoryStore = store
		db = store.DB()
	} else {
		log.Warn().Msg("no database DSN; using in-memory stores")
		mem := audit.NewInMemory()
		auditStore = mem
		accessStore = access.NewInMemory(mem)
		directoryStore = directory.NewInMemory(mem)
	}

	auditSvc, err := audit.NewService(auditStore)
	if err != nil {
		log.Fatal().Err(err).Msg("audit service")
	}
	accessSvc, err := access.NewService(accessStore, auditSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("access service")
	}
	directorySvc, err := directory.NewService(directoryStore, auditSvc)
	if err != nil {
		log.Fatal().Err(err).Msg("directory service")
	}
	return auditSvc, accessSvc, directorySvc, db
}
