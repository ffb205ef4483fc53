package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/suppleit/internal/metrics"
	"github.com/hitoshi/suppleit/internal/middleware"
	"github.com/hitoshi/suppleit/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gate              *middleware.RequestGate
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string

	// 認証
	AuthService   AuthServiceInterface
	Tokens        middleware.TokenValidator
	SocialService SocialLoginServiceInterface

	// 会員・運用
	MemberService MemberServiceInterface
	Revocations   RevocationInspector

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RequestGate → RateLimit → ルートポリシー
//
// /health と /metrics はRequestGateの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Tokens)
	socialHandler := NewSocialHandler(deps.SocialService)
	memberHandler := NewMemberHandler(deps.MemberService)
	adminHandler := NewAdminHandler(deps.Revocations)

	credential := deps.RateLimiter.CredentialMiddleware()
	general := deps.RateLimiter.GeneralMiddleware()

	r.Group(func(r chi.Router) {
		r.Use(deps.Gate.Middleware())

		// --- 認証不要のルート（資格情報を受け取るためIP単位で制限） ---
		r.Group(func(r chi.Router) {
			r.Use(credential)

			r.Post("/api/auth/login", authHandler.Login)
			r.Post("/api/auth/refresh", authHandler.Refresh)
			r.Post("/api/auth/find/password", authHandler.FindPassword)

			r.Get("/api/social/login/{provider}", socialHandler.LoginURL)
			r.Post("/api/social/login/{provider}", socialHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(general)

			r.Post("/api/auth/logout", authHandler.Logout)

			// --- 認証が必要なルート ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuthenticated())

				r.Post("/api/auth/change-password", authHandler.ChangePassword)
				r.Get("/api/member/info", memberHandler.Info)
			})

			// --- 管理者のみ ---
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(model.RoleAdmin))

				r.Get("/revocations", adminHandler.Revocations)
			})
		})
	})

	return r
}
