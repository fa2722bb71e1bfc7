package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hitoshi/wanderlust/internal/auth"
	"github.com/hitoshi/wanderlust/internal/cache"
	"github.com/hitoshi/wanderlust/internal/config"
	"github.com/hitoshi/wanderlust/internal/database"
	"github.com/hitoshi/wanderlust/internal/events"
	"github.com/hitoshi/wanderlust/internal/handler"
	"github.com/hitoshi/wanderlust/internal/imagestore"
	"github.com/hitoshi/wanderlust/internal/listing"
	"github.com/hitoshi/wanderlust/internal/logger"
	"github.com/hitoshi/wanderlust/internal/metrics"
	"github.com/hitoshi/wanderlust/internal/middleware"
	"github.com/hitoshi/wanderlust/internal/repository"
	"github.com/hitoshi/wanderlust/internal/review"
	"github.com/hitoshi/wanderlust/internal/security"
	"github.com/hitoshi/wanderlust/internal/seed"
	"github.com/hitoshi/wanderlust/internal/user"
	"github.com/hitoshi/wanderlust/internal/worker/cleanup"
)

// 外部サービスへの接続確認のタイムアウト。
const connectTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再設定
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandSeed:
		return runSeed(ctx, cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// stores はコマンド間で共通の接続先。
type stores struct {
	db    *sql.DB
	mongo *mongo.Client
	redis *redis.Client
}

// openStores はPostgreSQLに接続し、withImagesがtrueならMongoDBにも接続する。
// Redisは設定されている場合のみ接続し、失敗しても選択肢キャッシュ無しで続行する。
func openStores(ctx context.Context, cfg *config.Config, withImages bool) (*stores, error) {
	s := &stores{}

	db, err := database.Connect(ctx, cfg.DatabaseURL, connectTimeout)
	if err != nil {
		return nil, err
	}
	s.db = db
	slog.Info("database connection established")

	if withImages {
		client, err := imagestore.Connect(ctx, cfg.MongoURL, connectTimeout)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.mongo = client
		slog.Info("image store connection established", slog.String("database", cfg.MongoDatabase))
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("facet cache unavailable, computing facets on every request",
				slog.String("error", err.Error()),
			)
		} else {
			s.redis = rdb
		}
	}
	return s, nil
}

// facetCache はRedisが使えればRedisの、使えなければNopの選択肢キャッシュを返す。
func (s *stores) facetCache(ttl time.Duration) cache.FacetCache {
	if s.redis == nil {
		return cache.Nop{}
	}
	return cache.NewRedisFacetCache(s.redis, ttl)
}

// Close は開いている接続をすべて閉じる。
func (s *stores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.mongo.Disconnect(ctx)
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// healthChecks は /health で確認する依存先を返す。
func (s *stores) healthChecks() map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{
		"postgres": s.db.PingContext,
	}
	if s.mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return s.mongo.Ping(ctx, nil) }
	}
	if s.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return s.redis.Ping(ctx).Err() }
	}
	return checks
}

// dialPublisher はAMQP_URLが設定されていればブローカーに接続する。
// 未設定・接続失敗の場合はNopPublisherを返し、取りこぼしは掃除ジョブに任せる。
func dialPublisher(cfg *config.Config) (events.Publisher, func()) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, func() {}
	}
	pub, err := events.DialPublisher(cfg.AMQPURL, slog.Default())
	if err != nil {
		slog.Warn("broker unavailable, cascade failures will only be swept",
			slog.String("error", err.Error()),
		)
		return events.NopPublisher{}, func() {}
	}
	return pub, func() { _ = pub.Close() }
}

// runServe はWebサーバーモードで起動する。
// 接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. 接続
	st, err := openStores(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	publisher, closePublisher := dialPublisher(cfg)
	defer closePublisher()

	// 2. メトリクス
	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリ・画像ストア
	userRepo := repository.NewPostgresUserRepo(st.db)
	sessionRepo := repository.NewPostgresSessionRepo(st.db)
	listingRepo := repository.NewPostgresListingRepo(st.db)
	reviewRepo := repository.NewPostgresReviewRepo(st.db)
	images := imagestore.NewGridFSStore(st.mongo.Database(cfg.MongoDatabase), cfg.UploadMaxSize)
	sanitizer := security.NewTextSanitizer()

	// 4. ドメインサービス
	authService := auth.NewService(userRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		BcryptCost:    cfg.BcryptCost,
	})
	listingService := listing.NewService(listing.Deps{
		Listings:  listingRepo,
		Reviews:   reviewRepo,
		Users:     userRepo,
		Images:    images,
		Facets:    st.facetCache(cfg.FacetCacheTTL),
		Publisher: publisher,
		Sanitizer: sanitizer,
		Metrics:   collector,
		Logger:    slog.Default(),
	})
	reviewService := review.NewService(listingRepo, reviewRepo, sanitizer, collector, slog.Default())
	userService := user.NewService(userRepo, listingRepo, reviewRepo)

	// 5. 画面
	renderer, err := handler.NewRenderer(slog.Default())
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		Gatherer:          registry,
		PrincipalResolver: authService,
		RateLimiter:       rateLimiter,
		Cookies:           middleware.CookieConfig{Secure: cfg.CookieSecure, Domain: cfg.CookieDomain},
		UploadMaxSize:     cfg.UploadMaxSize,

		Renderer: renderer,
		BaseURL:  cfg.BaseURL,

		ListingService: listingService,
		ReviewService:  reviewService,
		AuthService:    authService,
		UserService:    userService,
		Images:         images,

		HealthChecks: st.healthChecks(),
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // 画像アップロードを含む
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return serveUntilDone(ctx, server, "web server")
}

// newRegistry はGo・プロセスのメトリクスを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// serveUntilDone はctxがキャンセルされるまでserverを動かし、グレースフルシャットダウンする。
func serveUntilDone(ctx context.Context, server *http.Server, name string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down " + name + "...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 連鎖削除イベントを購読して再実行し、掃除ジョブを定期実行する。
// /health と /metrics はSERVER_PORTで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := newRegistry()
	collector := metrics.NewCollector(registry)

	listingService := listing.NewService(listing.Deps{
		Listings: repository.NewPostgresListingRepo(st.db),
		Reviews:  repository.NewPostgresReviewRepo(st.db),
		Users:    repository.NewPostgresUserRepo(st.db),
		Metrics:  collector,
		Logger:   slog.Default(),
	})
	cleanupJob := cleanup.NewCleanupJob(st.db, collector, slog.Default(), cfg.SessionRetention)

	slog.Info("worker starting",
		slog.Duration("sweep_interval", cfg.OrphanSweepInterval),
		slog.Duration("session_retention", cfg.SessionRetention),
		slog.Bool("broker", cfg.AMQPURL != ""),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanupJob.Start(ctx, cfg.OrphanSweepInterval)
	}()

	if cfg.AMQPURL != "" {
		consumer := events.NewConsumer(cfg.AMQPURL, func(ctx context.Context, ev events.CascadePending) error {
			return listingService.RetryCascade(ctx, ev.ListingID)
		}, slog.Default())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("cascade consumer stopped", slog.String("error", err.Error()))
			}
		}()
	} else {
		slog.Info("broker not configured, cascade retries rely on the sweep job")
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.NewOpsRouter(registry, st.healthChecks()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	err = serveUntilDone(ctx, server, "worker ops server")

	cancel()
	wg.Wait()
	slog.Info("worker stopped gracefully")
	return err
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runSeed は物件が1件も無い場合にサンプル物件を投入する。
// 画像は外部から取得して画像ホストに取り込む。
func runSeed(ctx context.Context, cfg *config.Config) error {
	st, err := openStores(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer st.Close()

	userRepo := repository.NewPostgresUserRepo(st.db)
	images := imagestore.NewGridFSStore(st.mongo.Database(cfg.MongoDatabase), cfg.ImageFetchMaxSize)

	ssrfGuard := security.NewSSRFGuard()
	fetcher := security.NewImageFetcher(ssrfGuard, ssrfGuard.NewSafeClient(cfg.ImageFetchTimeout), cfg.ImageFetchMaxSize)

	seeder := seed.NewSeeder(seed.Deps{
		Users: userRepo,
		Registrar: auth.NewService(userRepo, repository.NewPostgresSessionRepo(st.db), auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			BcryptCost:    cfg.BcryptCost,
		}),
		Listings: repository.NewPostgresListingRepo(st.db),
		Images:   imagestore.NewImporter(fetcher, images),
		Facets:   st.facetCache(cfg.FacetCacheTTL),
		Owner: seed.Owner{
			Username: cfg.SeedOwnerUsername,
			Email:    cfg.SeedOwnerEmail,
			Password: cfg.SeedOwnerPassword,
		},
		Logger: slog.Default(),
	})

	n, err := seeder.Run(ctx)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	slog.Info("seed finished", slog.Int("listings_created", n))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
