package router

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/marketplace-backend/internal/config"
	"github.com/ignatzorin/marketplace-backend/internal/http/handlers"
	"github.com/ignatzorin/marketplace-backend/internal/http/middleware"
	"github.com/ignatzorin/marketplace-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	catalogHandler *handlers.CatalogHandler,
	orderHandler *handlers.OrderHandler,
	paymentHandler *handlers.PaymentHandler,
	disputeHandler *handlers.DisputeHandler,
	sellerHandler *handlers.SellerHandler,
	supportHandler *handlers.SupportHandler,
	notificationHandler *handlers.NotificationHandler,
	uploadHandler *handlers.UploadHandler,
	wsHandler *handlers.WSHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authRateLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)
	authGroup.Use(authRateLimit)
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Публичные маршруты
	api.GET("/catalog/products", catalogHandler.ListProducts)
	api.GET("/catalog/products/:id/variants", middleware.UUIDValidator("id"), catalogHandler.ListVariants)
	api.GET("/catalog/variants/:id", middleware.UUIDValidator("id"), catalogHandler.GetVariant)
	api.GET("/ws", wsHandler.Handle)

	// Вебхук платёжного провайдера: аутентификация по подписи, не по токену
	api.POST("/payments/webhook", paymentHandler.Webhook)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		protected.GET("/profile", profileHandler.GetMe)
		protected.PUT("/profile", profileHandler.UpdateMe)

		protected.POST("/orders/checkout", orderHandler.Checkout)
		protected.GET("/orders/my", orderHandler.ListMyOrders)
		protected.GET("/orders/:id", middleware.UUIDValidator("id"), orderHandler.GetOrder)
		protected.POST("/orders/:id/cancel", middleware.UUIDValidator("id"), orderHandler.CancelOrder)

		protected.POST("/disputes", disputeHandler.OpenDispute)
		protected.GET("/disputes/my", disputeHandler.ListMyDisputes)
		protected.GET("/disputes/:id", middleware.UUIDValidator("id"), disputeHandler.GetDispute)

		protected.POST("/seller/apply", sellerHandler.Apply)
		protected.GET("/seller/application", sellerHandler.GetMyApplication)
		protected.GET("/seller/eligibility", sellerHandler.GetEligibility)

		protected.POST("/support/messages", supportHandler.SendMessage)
		protected.GET("/support/messages", supportHandler.GetMyDialog)
		protected.GET("/support/unread", supportHandler.CountUnread)

		protected.GET("/notifications", notificationHandler.List)
		protected.GET("/notifications/unread", notificationHandler.CountUnread)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), notificationHandler.MarkAsRead)

		protected.POST("/uploads/documents", uploadHandler.UploadDocument)
	}

	// Администрирование
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireAdmin())
	{
		admin.GET("/orders", orderHandler.ListAllOrders)
		admin.PUT("/orders/:id/status", middleware.UUIDValidator("id"), orderHandler.SetOrderStatus)
		admin.GET("/orders/:id/transaction", middleware.UUIDValidator("id"), orderHandler.GetOrderTransaction)

		admin.GET("/disputes", disputeHandler.ListAllDisputes)
		admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), disputeHandler.ResolveDispute)

		admin.GET("/seller-applications", sellerHandler.ListApplications)
		admin.POST("/seller-applications/:id/approve", middleware.UUIDValidator("id"), sellerHandler.ApproveApplication)
		admin.POST("/seller-applications/:id/reject", middleware.UUIDValidator("id"), sellerHandler.RejectApplication)

		admin.GET("/support/messages", supportHandler.ListAll)
		admin.GET("/support/clients/:id", middleware.UUIDValidator("id"), supportHandler.GetClientDialog)
		admin.POST("/support/reply", supportHandler.Reply)
	}

	return r
}
