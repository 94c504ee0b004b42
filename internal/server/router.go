// Package server は gin エンジンを組み立てる（ミドルウェア・各機能のルート登録）。
package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "LIBRIS-backend/docs"
	"LIBRIS-backend/internal/accounts"
	"LIBRIS-backend/internal/library/books"
	"LIBRIS-backend/internal/library/borrowing"
	"LIBRIS-backend/internal/library/dashboard"
	"LIBRIS-backend/internal/library/genres"
	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/auth"
	"LIBRIS-backend/internal/platform/config"
	"LIBRIS-backend/internal/platform/db"
	"LIBRIS-backend/internal/platform/logging"
	"LIBRIS-backend/internal/platform/metrics"
)

type Deps struct {
	Config  *config.Config
	Conn    *db.Conn
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Mode == config.ModeRelease {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware(d.Log), d.Metrics.Middleware())
	_ = r.SetTrustedProxies(nil)

	if d.Config.Mode == config.ModeDev && len(d.Config.Server.CORSOrigins) > 0 {
		// CORS（開発中のみ必要）
		r.Use(cors.New(cors.Config{
			AllowOrigins:     d.Config.Server.CORSOrigins,
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logging.RequestIDHeader},
			ExposeHeaders:    []string{"Content-Length", logging.RequestIDHeader},
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowCredentials: true,
		}))
	}

	// ヘルス・メトリクス・API ドキュメント
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", d.Metrics.Handler())
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	authSvc := auth.NewService(d.Conn, d.Config.Auth)
	auth.RegisterRoutes(r.Group("/auth"), authSvc, d.Log)

	protected := r.Group("/", auth.RequireAuth(authSvc.Secret()))
	borrow := protected.Group("/borrow")

	books.RegisterRoutes(protected, books.NewService(d.Conn, d.Config.Lending.DefaultOverdueDays, d.Log), d.Log)
	genres.RegisterRoutes(protected, genres.NewService(d.Conn, d.Log), d.Log)
	borrowing.RegisterRoutes(borrow, borrowing.NewService(d.Conn, d.Config.Lending, d.Metrics, d.Log), d.Log)
	dashboard.RegisterRoutes(borrow, dashboard.NewService(d.Conn, d.Config.Lending, d.Log), d.Log)
	accounts.RegisterRoutes(protected.Group("/users"), borrow, accounts.NewService(d.Conn, authSvc, d.Log), d.Log)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, apperr.Body(apperr.ErrNotFound("route not found")))
	})
	return r
}
