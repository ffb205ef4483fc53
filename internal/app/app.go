package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/suppleit/internal/auth"
	"github.com/hitoshi/suppleit/internal/config"
	"github.com/hitoshi/suppleit/internal/database"
	"github.com/hitoshi/suppleit/internal/handler"
	"github.com/hitoshi/suppleit/internal/logger"
	"github.com/hitoshi/suppleit/internal/member"
	"github.com/hitoshi/suppleit/internal/metrics"
	"github.com/hitoshi/suppleit/internal/middleware"
	"github.com/hitoshi/suppleit/internal/model"
	"github.com/hitoshi/suppleit/internal/repository"
	"github.com/hitoshi/suppleit/internal/revocation"
	"github.com/hitoshi/suppleit/internal/security"
	"github.com/hitoshi/suppleit/internal/token"
	"github.com/hitoshi/suppleit/internal/worker/cleanup"
)

// oauthClientTimeout は外部OAuthプロバイダーとの通信タイムアウト。
const oauthClientTimeout = 10 * time.Second

// revocationStore はserveモードで使う失効ストアに必要な操作。
type revocationStore interface {
	revocation.Store
	revocation.Counter
}

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to apply log level: %w", err)
	}

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
		slog.String("revocation_backend", cfg.RevocationBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーと失効エントリの掃除ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. トークンと失効ストア
	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	store, closeStore, err := newRevocationStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービス
	memberRepo := repository.NewPostgresMemberRepo(db)
	authService := auth.NewService(memberRepo, codec, store, auth.NewBcryptHasher(0), collector)

	socialService, err := newSocialLoginService(cfg, authService, memberRepo)
	if err != nil {
		return err
	}

	memberService := member.NewService(memberRepo)

	// 5. ミドルウェア
	gate := middleware.NewRequestGate(codec, store, memberRepo, nil, collector)
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		Gate:              gate,
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		AuthService:   authService,
		Tokens:        codec,
		SocialService: socialService,

		MemberService: memberService,
		Revocations:   store,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
	})

	// 7. 失効エントリの掃除ジョブ
	cleanupJob := cleanup.NewCleanupJob(store, slog.Default(), collector)
	go cleanupJob.Start(ctx, revocation.SweepInterval)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newRevocationStore は設定に応じた失効ストアを生成する。
// 返される関数はストアが保持する接続を閉じる。
func newRevocationStore(ctx context.Context, cfg *config.Config) (revocationStore, func(), error) {
	if cfg.RevocationBackend != config.RevocationBackendRedis {
		return revocation.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis connection established", slog.String("addr", cfg.RedisAddr))

	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	return revocation.NewRedisStore(client, revocation.DefaultRedisPrefix), closeFn, nil
}

// newSocialLoginService は設定済みのプロバイダーだけを登録したSocialLoginServiceを生成する。
// プロバイダーの通信先は起動時にSSRF検証を行い、通信にはSSRF防止付きクライアントを使う。
func newSocialLoginService(cfg *config.Config, authService *auth.Service, members repository.MemberRepository) (*auth.SocialLoginService, error) {
	guard := security.NewSSRFGuard()
	client := guard.NewSafeClient(oauthClientTimeout)
	social := auth.NewSocialLoginService(authService, members, security.NewNicknameSanitizer())

	type endpointProvider interface {
		auth.OAuthProvider
		Endpoints() []string
	}
	register := func(socialType model.SocialType, p endpointProvider) error {
		for _, endpoint := range p.Endpoints() {
			if err := guard.ValidateEndpoint(endpoint); err != nil {
				return fmt.Errorf("invalid %s endpoint %q: %w", socialType, endpoint, err)
			}
		}
		social.Register(socialType, p)
		return nil
	}

	if cfg.GoogleEnabled() {
		google := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}, client)
		if err := register(model.SocialGoogle, google); err != nil {
			return nil, err
		}
	}
	if cfg.NaverEnabled() {
		naver := auth.NewNaverOAuthProvider(auth.NaverOAuthConfig{
			ClientID:     cfg.NaverClientID,
			ClientSecret: cfg.NaverClientSecret,
			RedirectURL:  cfg.NaverRedirectURL,
		}, client)
		if err := register(model.SocialNaver, naver); err != nil {
			return nil, err
		}
	}

	slog.Info("social login providers configured", slog.Any("providers", social.Providers()))
	return social, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
