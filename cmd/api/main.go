package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"urban-mobility/internal/audit"
	"urban-mobility/internal/auth"
	"urban-mobility/internal/authz"
	"urban-mobility/internal/config"
	"urban-mobility/internal/httpapi"
	"urban-mobility/internal/lockout"
	"urban-mobility/internal/metrics"
	"urban-mobility/internal/scooter"
	"urban-mobility/internal/store"
	"urban-mobility/internal/traveller"
	"urban-mobility/internal/user"
	"urban-mobility/internal/validation"
	"urban-mobility/pkg/crypto"
	"urban-mobility/pkg/logger"
	"urban-mobility/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("config invalid", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()

	cipher, err := crypto.NewFieldCipher(cfg.Security.FieldKeyHex)
	if err != nil {
		log.Error("field cipher init failed", "err", err)
		os.Exit(1)
	}

	pool := utils.PostgresPoolConfig{StatementTimeout: 5 * time.Second}
	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), pool)
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Audit first: every other component reports into it.
	auditLog, err := audit.NewService(audit.NewPostgresRepo(db, cipher),
		audit.WithLogger(log),
		audit.WithFallbackHook(m.AuditFallbacks.Inc),
	)
	if err != nil {
		log.Error("audit init failed", "err", err)
		os.Exit(1)
	}

	check := validation.New(auditLog,
		validation.WithRejectHook(func(reason validation.Reason) {
			m.ValidationFailures.WithLabelValues(string(reason)).Inc()
		}),
	)

	// A broken rule table is a refusal to start, never a permissive fallback.
	table, err := authz.NewTable(authz.DefaultRules())
	if err != nil {
		log.Error("authorization table invalid", "err", err)
		os.Exit(1)
	}
	guard := authz.NewGuard(table, auditLog, authz.WithDenyHook(m.AccessDenied.Inc))

	gw := store.NewGateway(db, auditLog,
		store.WithLogger(log),
		store.WithTimeout(pool.StatementTimeout),
		store.WithOutcomeHook(func(outcome string) {
			m.QueriesExecuted.WithLabelValues(outcome).Inc()
		}),
	)
	// Unknown or duplicate statements are startup faults for the same
	// reason as rule table faults.
	if err := gw.Register(user.Templates()...); err != nil {
		log.Error("statement registration failed", "err", err)
		os.Exit(1)
	}
	if err := gw.Register(traveller.Templates()...); err != nil {
		log.Error("statement registration failed", "err", err)
		os.Exit(1)
	}
	if err := gw.Register(scooter.Templates()...); err != nil {
		log.Error("statement registration failed", "err", err)
		os.Exit(1)
	}

	locks, err := lockout.New(lockout.NewRedisStore(rdb),
		cfg.Security.LockoutMaxFailures, cfg.Security.LockoutWindow, cfg.Security.LockoutCooldown,
		lockout.WithAuditRecorder(auditLog),
		lockout.WithLockoutHook(m.Lockouts.Inc),
	)
	if err != nil {
		log.Error("lockout init failed", "err", err)
		os.Exit(1)
	}

	tokens, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	users, err := user.NewService(guard, check, gw, cipher, auditLog)
	if err != nil {
		log.Error("user service init failed", "err", err)
		os.Exit(1)
	}
	travellers, err := traveller.NewService(guard, check, gw, cipher, auditLog)
	if err != nil {
		log.Error("traveller service init failed", "err", err)
		os.Exit(1)
	}
	scooters, err := scooter.NewService(guard, check, gw)
	if err != nil {
		log.Error("scooter service init failed", "err", err)
		os.Exit(1)
	}

	logins, err := auth.NewService(users, tokens, locks, auditLog,
		auth.WithFailureHook(m.LoginFailures.Inc))
	if err != nil {
		log.Error("login service init failed", "err", err)
		os.Exit(1)
	}

	if err := users.EnsureBootstrapAdmin(rootCtx, cfg.Security.BootstrapAdminUser, cfg.Security.BootstrapAdminPassword); err != nil {
		log.Error("bootstrap admin failed", "err", err)
		os.Exit(1)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	h := httpapi.Handlers{
		Auth:       logins,
		Users:      users,
		Travellers: travellers,
		Scooters:   scooters,
		Audit:      &httpapi.AuditReview{Log: auditLog},
	}
	registerRoutes(r, h, db, tokens, guard)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if n := auditLog.Pending(); n > 0 {
		log.Error("audit events still buffered at shutdown", "count", n)
	}
}
