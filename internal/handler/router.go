package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/wanderlust/internal/metrics"
	"github.com/hitoshi/wanderlust/internal/middleware"
)

// uploadOverhead はアップロード上限に加えて許容するフォーム項目分のバイト数。
const uploadOverhead = 1 << 20

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	Gatherer          prometheus.Gatherer
	PrincipalResolver middleware.PrincipalResolver
	RateLimiter       *middleware.RateLimiter
	Cookies           middleware.CookieConfig
	UploadMaxSize     int64

	// 画面
	Renderer *Renderer
	BaseURL  string

	// サービス
	ListingService ListingServiceInterface
	ReviewService  ReviewServiceInterface
	AuthService    AuthServiceInterface
	UserService    UserServiceInterface
	Images         ImageOpener

	HealthChecks map[string]HealthCheck
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → MethodOverride → BodyLimit →
//	Flash → Session → CSRF → RateLimit(General)
//
// chiはルートの選択時にメソッドを確定するため、MethodOverrideはルートに置く。
// /health・/metrics・/images/{id} は画面用のスタック（BodyLimit以降）の外に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Renderer.ErrorPage))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewMethodOverrideMiddleware())

	listingHandler := NewListingHandler(deps.ListingService, deps.Renderer, deps.BaseURL)
	reviewHandler := NewReviewHandler(deps.ReviewService, deps.Renderer)
	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.Cookies)
	userHandler := NewUserHandler(deps.UserService, deps.Renderer)
	imageHandler := NewImageHandler(deps.Images)

	// --- 運用・静的リソース ---
	r.Get("/health", HealthHandler(deps.HealthChecks))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Get("/images/{id}", imageHandler.Serve)

	// --- 画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBodyLimitMiddleware(deps.UploadMaxSize + uploadOverhead))
		r.Use(middleware.NewFlashMiddleware(deps.Cookies))
		r.Use(middleware.NewSessionMiddleware(deps.PrincipalResolver))
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{
			CookieSecure: deps.Cookies.Secure,
			CookieDomain: deps.Cookies.Domain,
			ErrorPage:    deps.Renderer.ErrorPage,
		}))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/listings", http.StatusFound)
		})

		// 認証（ログイン・登録は専用のレート制限を追加）
		r.Get("/signup", authHandler.SignupForm)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.Signup)
		r.Get("/login", authHandler.LoginForm)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)

		requireLogin := middleware.NewRequireLoginMiddleware(deps.Cookies)

		r.Route("/listings", func(r chi.Router) {
			// 閲覧はログイン不要
			r.Get("/", listingHandler.Index)
			r.Get("/search", listingHandler.Search)
			r.Get("/about", listingHandler.About)
			r.Get("/feed.xml", listingHandler.Feed)
			r.Get("/owner/{id}", listingHandler.Owner)
			r.Get("/{id}", listingHandler.Show)

			// 作成・編集・レビューはログインが必要（所有者・作成者の判定はサービス層）
			r.Group(func(r chi.Router) {
				r.Use(requireLogin)

				r.Get("/new", listingHandler.New)
				r.Post("/", listingHandler.Create)

				r.Get("/{id}/edit", listingHandler.Edit)
				r.Put("/{id}", listingHandler.Update)
				r.Delete("/{id}", listingHandler.Delete)
				r.Get("/{id}/report", reviewHandler.Report)

				r.Post("/{id}/reviews", reviewHandler.Create)
				r.Delete("/{id}/reviews/{reviewId}", reviewHandler.Delete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireLogin)
			r.Post("/logout", authHandler.Logout)
			r.Get("/profile", userHandler.Profile)
		})
	})

	return r
}

// NewOpsRouter はworkerプロセス用に /health と /metrics のみを公開するルーターを返す。
func NewOpsRouter(gatherer prometheus.Gatherer, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(nil))
	r.Get("/health", HealthHandler(checks))
	r.Handle("/metrics", metrics.Handler(gatherer))
	return r
}
