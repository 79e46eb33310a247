package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ticketops/backup"
	"ticketops/cache"
	"ticketops/engine"
	"ticketops/messaging"
	"ticketops/metrics"
	"ticketops/notify"
	"ticketops/settings"
	"ticketops/www"
)

var (
	adminUsername string
	adminPassword string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and background workers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&adminUsername, "admin-username", "admin", "super admin created on an empty database")
	serveCmd.Flags().StringVar(&adminPassword, "admin-password", "", "password for the initial super admin (env TICKETOPS_ADMIN_PASSWORD)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()
	cfg, log := a.cfg, a.log

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := settings.New(a.db)
	m := metrics.New()

	var mailer notify.Mailer
	if smtp := notify.NewSMTPMailer(cfg.Email); smtp.Configured() {
		mailer = smtp
		log.Info("smtp configured", zap.String("host", cfg.Email.SMTPHost))
	}
	notifier := notify.New(a.db, st, mailer, log)

	var msgClient *messaging.Client
	if cfg.Messaging.Enabled {
		msgClient = messaging.NewClient(cfg.Messaging, log)
		if err := msgClient.Connect(); err != nil {
			log.Warn("messaging connect failed", zap.String("backend", cfg.Messaging.Backend), zap.Error(err))
		} else {
			log.Info("messaging connected", zap.String("backend", cfg.Messaging.Backend))
		}
		defer msgClient.Close()
	}

	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: configPath,
		DB:         a.db,
		Settings:   st,
		Notifier:   notifier,
		Metrics:    m,
		MsgClient:  msgClient,
		Logger:     log,
	})
	password, generated := initialPassword()
	if created, err := eng.Users().EnsureAdmin(adminUsername, password); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	} else if created && generated {
		log.Warn("initial super admin created with generated password, change it after first login",
			zap.String("username", adminUsername), zap.String("password", password))
	} else if created {
		log.Info("initial super admin created", zap.String("username", adminUsername))
	}
	eng.Start()

	backend, closeCache := cacheBackend(ctx, a)
	defer closeCache()

	bk, err := backup.New(ctx, a.db, cfg.Storage, log)
	if err != nil {
		log.Warn("backup storage unavailable", zap.Error(err))
		bk = nil
	}

	handler, stopWeb := www.NewRouter(eng, www.Options{CacheBackend: backend, Backup: bk, Logger: log})
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("web server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		stopWeb()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		notifier.Run(gctx)
		return nil
	})
	if msgClient != nil {
		drainer := messaging.NewOutboxDrainer(a.db, msgClient, cfg.Messaging.OutboxDrainInterval, log)
		drainer.OnDrain(m.OutboxResult)
		g.Go(func() error {
			drainer.Run(gctx)
			return nil
		})
		alerts := messaging.NewAlertConsumer(msgClient, cfg.Messaging.AlertsTopic, eng, log)
		if err := alerts.Start(); err != nil {
			log.Warn("alert consumer subscribe failed", zap.String("topic", cfg.Messaging.AlertsTopic), zap.Error(err))
		} else {
			log.Info("alert consumer listening", zap.String("topic", cfg.Messaging.AlertsTopic))
		}
	}

	log.Info("ready", zap.String("version", Version))
	err = g.Wait()
	log.Info("stopped")
	return err
}

// initialPassword prefers the flag, then the environment, then a generated
// password that is logged once.
func initialPassword() (string, bool) {
	if adminPassword != "" {
		return adminPassword, false
	}
	if v := os.Getenv("TICKETOPS_ADMIN_PASSWORD"); v != "" {
		return v, false
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16], true
}

// cacheBackend returns nil when response caching is disabled. A Redis backend
// that cannot be reached falls back to memory.
func cacheBackend(ctx context.Context, a *app) (cache.Backend, func()) {
	cc := a.cfg.Cache
	if !cc.Enabled {
		return nil, func() {}
	}
	if cc.Backend != "redis" {
		return cache.NewMemoryBackend(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Address,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	rb := cache.NewRedisBackend(client)
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rb.Ping(pctx); err != nil {
		a.log.Warn("redis not available, using in-memory cache", zap.String("addr", a.cfg.Redis.Address), zap.Error(err))
		client.Close()
		return cache.NewMemoryBackend(), func() {}
	}
	a.log.Info("redis connected", zap.String("addr", a.cfg.Redis.Address))
	return rb, func() { client.Close() }
}
