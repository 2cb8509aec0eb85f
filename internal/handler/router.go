package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"storefront/internal/config"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/monitor"
	"storefront/pkg/limiter"
)

// Router everything NewRouter mounts. Nil limiters, metrics or tracer
// switch that concern off.
type Router struct {
	Auth         *AuthHandler
	Favorite     *FavoriteHandler
	Notification *NotificationHandler
	Order        *OrderHandler
	Product      *ProductHandler
	Health       *HealthHandler

	Validator      middleware.TokenValidator
	CORS           config.CORSConfig
	RequestTimeout time.Duration

	GlobalLimiter     limiter.RateLimiter
	IPLimiter         limiter.RateLimiter
	PriceCheckLimiter limiter.RateLimiter

	Metrics     *monitor.MetricsCollector
	MetricsPath string
	Tracer      *monitor.Tracer
}

// NewRouter builds the engine with every route under /api/v1
func NewRouter(r Router) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.Recovery())
	if r.Tracer != nil {
		engine.Use(r.Tracer.Middleware())
	}
	engine.Use(middleware.RequestID(), middleware.Logger())
	if r.Metrics != nil {
		engine.Use(r.Metrics.Middleware())
	}
	engine.Use(middleware.CORS(r.CORS))

	engine.GET("/health", r.Health.Health)
	engine.GET("/ping", r.Health.Ping)
	if r.Metrics != nil {
		path := r.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(r.Metrics.Handler()))
	}

	v1 := engine.Group("/api/v1")
	v1.Use(middleware.Timeout(r.RequestTimeout))
	if r.GlobalLimiter != nil {
		v1.Use(middleware.RateLimit(r.GlobalLimiter, middleware.ByGlobal))
	}
	if r.IPLimiter != nil {
		v1.Use(middleware.RateLimit(r.IPLimiter, middleware.ByIP))
	}

	v1.GET("/health", r.Health.Health)
	v1.GET("/ping", r.Health.Ping)

	requireAuth := middleware.RequireAuth(r.Validator)
	requireAdmin := middleware.RequireRole(string(model.RoleAdmin))

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/register", r.Auth.Register)
		authGroup.POST("/login", r.Auth.Login)
		authGroup.POST("/refresh", r.Auth.RefreshToken)
		authGroup.POST("/logout", requireAuth, r.Auth.Logout)
	}

	products := v1.Group("/products")
	{
		products.GET("", r.Product.ListProducts)
		products.GET("/best-sellers", r.Product.BestSellers)
		products.GET("/:id", r.Product.GetProduct)
		products.POST("", requireAuth, requireAdmin, r.Product.CreateProduct)
		products.PUT("/:id", requireAuth, requireAdmin, r.Product.UpdateProduct)
		products.DELETE("/:id", requireAuth, requireAdmin, r.Product.DeleteProduct)
	}

	// the only favorites route that answers anonymous callers
	v1.GET("/favorites/check/:productId", middleware.OptionalAuth(r.Validator), r.Favorite.CheckFavorited)

	favorites := v1.Group("/favorites", requireAuth)
	{
		favorites.GET("", r.Favorite.ListFavorites)
		favorites.POST("", r.Favorite.AddFavorite)
		favorites.DELETE("/:productId", r.Favorite.RemoveFavorite)
	}

	notifications := v1.Group("/notifications", requireAuth)
	{
		notifications.GET("", r.Notification.ListUnread)
		check := []gin.HandlerFunc{}
		if r.PriceCheckLimiter != nil {
			check = append(check, middleware.RateLimit(r.PriceCheckLimiter, middleware.ByUser))
		}
		notifications.POST("/check", append(check, r.Notification.CheckPriceDrops)...)
		notifications.PUT("/read-all", r.Notification.MarkAllRead)
		notifications.PUT("/:id/read", r.Notification.MarkRead)
		notifications.POST("/test", r.Notification.CreateTest)
		notifications.POST("/purge", requireAdmin, r.Notification.PurgeAll)
	}

	orders := v1.Group("/orders", requireAuth)
	{
		orders.POST("", r.Order.PlaceOrder)
		orders.GET("/mine", r.Order.ListMyOrders)
		orders.GET("", requireAdmin, r.Order.ListOrders)
		orders.GET("/:id", requireAdmin, r.Order.GetOrder)
		orders.PUT("/:id/status", requireAdmin, r.Order.UpdateStatus)
	}

	return engine
}
