package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/0xtaosu/meme-memos/docs"
	"github.com/0xtaosu/meme-memos/internal/auth"
	"github.com/0xtaosu/meme-memos/internal/cache"
	"github.com/0xtaosu/meme-memos/internal/client/dexscreener"
	"github.com/0xtaosu/meme-memos/internal/client/dune"
	"github.com/0xtaosu/meme-memos/internal/config"
	cronrunner "github.com/0xtaosu/meme-memos/internal/cron"
	"github.com/0xtaosu/meme-memos/internal/db"
	"github.com/0xtaosu/meme-memos/internal/handler"
	"github.com/0xtaosu/meme-memos/internal/logger"
	"github.com/0xtaosu/meme-memos/internal/paas"
	gormrepository "github.com/0xtaosu/meme-memos/internal/repository/gorm"
	"github.com/0xtaosu/meme-memos/internal/service"
	"github.com/0xtaosu/meme-memos/internal/stream"
)

const streamRoute = "/api/memos/stream"

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled metadata refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg config.Config) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	cacheStore, closeCache, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer func() { _ = closeCache() }()
	if redisStore, ok := cacheStore.(*cache.RedisStore); ok {
		pctx, cancel := context.WithTimeout(parent, 3*time.Second)
		if err := redisStore.Ping(pctx); err != nil {
			log.Warn("redis cache unreachable; lookups will bypass it", zap.Error(err))
		}
		cancel()
	}

	dexClient := dexscreener.New(cfg.Dexscreener, &http.Client{Timeout: cfg.Dexscreener.Timeout}, cacheStore)
	duneClient := dune.NewClient(&http.Client{Timeout: cfg.Dune.Timeout}, cfg.Dune)
	if strings.TrimSpace(cfg.Dune.APIKey) == "" {
		log.Warn("dune api key missing; events will be stored without large transactions")
	}

	hub := stream.NewHub(64)
	defer hub.Close()

	store := gormrepository.New(dbConn.Gorm)
	memoService := service.NewMemoService(service.Deps{
		Store:      store,
		Metadata:   dexClient,
		Feed:       duneClient,
		Enrichment: service.NewEnrichmentService(duneClient, cfg.Enrichment, log),
		Publisher:  hub,
		Logger:     log,
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	paasClient := initPaaSClient(ctx, cfg.PaaS, log)
	baseCtx := ctx
	if paasClient != nil {
		baseCtx = paas.WithClient(ctx, paasClient)
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(requestTimeout(cfg.Server.RequestTimeout))
	engine.Use(errorLogger(log))
	engine.Use(paas.InjectClientMiddleware(paasClient))
	engine.Use(paas.WriteAuditMiddleware(paasClient, log))

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	requireAuth := auth.Middleware(issuer, cfg.Auth.Disabled)
	if cfg.Auth.Disabled {
		log.Warn("auth disabled; write routes are open")
	}

	(&handler.HealthHandler{DB: dbConn, Hub: hub}).Register(engine)
	paas.RegisterDocs(engine)
	(&auth.Handler{
		Issuer:   issuer,
		Operator: auth.NewOperator(cfg.Auth),
		Disabled: cfg.Auth.Disabled,
		Logger:   log,
	}).Register(engine, requireAuth)
	(&handler.StreamHandler{Hub: hub, Logger: log}).Register(engine)
	(&handler.MemoHandler{Service: memoService}).Register(engine, requireAuth)
	(&handler.LargeTransactionHandler{Service: memoService}).Register(engine, requireAuth)
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	cronRunner := cronrunner.New(log, baseCtx)
	if cfg.Cron.Enabled {
		_, err := cronRunner.Add("memo_refresh", cfg.Cron.MemoRefresh, func(ctx context.Context) {
			report, err := memoService.RefreshAll(ctx, cfg.Cron.RefreshPacing)
			if err != nil {
				log.Warn("cron memo refresh failed", zap.Error(err))
				paas.LogBestEffortCtx(ctx, "memo_cron_refresh_failed", "error", map[string]any{
					"error": err.Error(),
				})
				return
			}
			if report.Failed > 0 {
				paas.LogBestEffortCtx(ctx, "memo_cron_refresh_partial", "warn", map[string]any{
					"refreshed": report.Refreshed,
					"failed":    report.Failed,
				})
			}
		})
		if err != nil {
			log.Warn("cron register memo refresh failed", zap.Error(err))
		}
	}
	if memStore, ok := cacheStore.(*cache.MemoryStore); ok {
		_, err := cronRunner.Add("cache_purge", "30 */5 * * * *", func(context.Context) {
			if n := memStore.Purge(); n > 0 {
				log.Debug("cache purged", zap.Int("entries", n))
			}
		})
		if err != nil {
			log.Warn("cron register cache purge failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested")
		// Ends open websocket streams; Shutdown does not wait for hijacked conns.
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestTimeout bounds every request except the websocket stream.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 || c.FullPath() == streamRoute {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func errorLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("error", c.Errors.String()),
		)
	}
}

func initPaaSClient(ctx context.Context, cfg config.PaaSConfig, log *zap.Logger) *paas.Client {
	p := paas.New(cfg)
	if p == nil {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := p.Login(lctx); err != nil {
		log.Warn("paas login failed (audit logs disabled)", zap.Error(err))
		return nil
	}
	log.Info("paas login ok")
	return p
}
