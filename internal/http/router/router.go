package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/freelance-payments/internal/config"
	"github.com/ignatzorin/freelance-payments/internal/http/handlers"
	"github.com/ignatzorin/freelance-payments/internal/http/middleware"
	"github.com/ignatzorin/freelance-payments/internal/idempotency"
	"github.com/ignatzorin/freelance-payments/internal/metrics"
	"github.com/ignatzorin/freelance-payments/internal/models"
)

// Handlers набор хэндлеров API. Nil хэндлер отключает свою группу маршрутов.
type Handlers struct {
	Health        *handlers.HealthHandler
	Payment       *handlers.PaymentHandler
	StripeWebhook *handlers.StripeWebhookHandler
	Order         *handlers.OrderHandler
	Wallet        *handlers.WalletHandler
	Dispute       *handlers.DisputeHandler
	Notification  *handlers.NotificationHandler
	WS            *handlers.WSHandler
}

// Deps инфраструктура, нужная middleware.
type Deps struct {
	Tokens         middleware.AccessTokenParser
	RateLimitStore limiter.Store
	Idempotency    idempotency.Store
	Metrics        *metrics.Collector
	Registry       *prometheus.Registry
}

func SetupRouter(cfg *config.Config, deps Deps, h Handlers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), middleware.Recovery())
	r.Use(middleware.HTTPMetrics(deps.Metrics))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	if h.Health != nil {
		r.GET("/health", h.Health.Health)
	}
	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	requireAuth := middleware.AuthMiddleware(deps.Tokens)
	idempotent := middleware.Idempotency(deps.Idempotency, cfg.IdempotencyTTL)

	// Оплата: анонимный запрос доходит до сервиса, который отвечает 401 или использует dev-пользователя.
	if h.Payment != nil {
		payments := api.Group("/")
		payments.Use(
			middleware.OptionalAuthMiddleware(deps.Tokens),
			middleware.RateLimitMiddleware(deps.RateLimitStore, "payments", cfg.RateLimitLimit, cfg.RateLimitPeriod),
			idempotent,
		)
		{
			payments.POST("/paypal/create-order", h.Payment.CreatePayPalOrder)
			payments.POST("/paypal/capture-payment", h.Payment.CapturePayPalPayment)
			payments.POST("/stripe/create-payment-intent", h.Payment.CreateStripeIntent)
			payments.POST("/stripe/confirm-payment", h.Payment.ConfirmStripePayment)
		}
	}

	// Вебхук подписан Stripe, авторизация и лимиты к нему не применяются.
	if h.StripeWebhook != nil {
		api.POST("/stripe/webhook", h.StripeWebhook.Handle)
	}

	if h.WS != nil {
		api.GET("/ws", h.WS.Handle)
	}

	protected := api.Group("/")
	protected.Use(requireAuth)
	{
		if h.Order != nil {
			protected.POST("/orders/complete", idempotent, h.Order.CompleteOrder)
			protected.GET("/orders/:id", middleware.UUIDValidator("id"), h.Order.GetOrder)
			protected.GET("/orders/:id/history", middleware.UUIDValidator("id"), h.Order.History)
			protected.POST("/orders/:id/deliver", middleware.UUIDValidator("id"), h.Order.Deliver)
			protected.POST("/orders/:id/revision", middleware.UUIDValidator("id"), h.Order.RequestRevision)
			protected.POST("/orders/:id/cancel", middleware.UUIDValidator("id"), h.Order.Cancel)
		}

		if h.Wallet != nil {
			protected.GET("/wallet", h.Wallet.GetWallet)
			protected.GET("/wallet/transactions", h.Wallet.ListTransactions)
			protected.GET("/wallet/withdrawals", h.Wallet.ListWithdrawals)
			protected.GET("/wallet/withdrawals/:id", middleware.UUIDValidator("id"), h.Wallet.GetWithdrawal)
			protected.POST("/wallet/withdraw",
				middleware.RateLimitMiddleware(deps.RateLimitStore, "withdraw", cfg.RateLimitLimit, cfg.RateLimitPeriod),
				idempotent,
				h.Wallet.Withdraw,
			)
		}

		if h.Dispute != nil {
			protected.POST("/orders/:id/dispute", middleware.UUIDValidator("id"), h.Dispute.OpenDispute)
			protected.GET("/orders/:id/dispute", middleware.UUIDValidator("id"), h.Dispute.GetDispute)
			protected.GET("/disputes/:id/messages", middleware.UUIDValidator("id"), h.Dispute.ListMessages)
			protected.POST("/disputes/:id/messages", middleware.UUIDValidator("id"), h.Dispute.AddMessage)
			protected.POST("/disputes/:id/attachments", middleware.UUIDValidator("id"), h.Dispute.UploadAttachment)
		}

		if h.Notification != nil {
			protected.GET("/notifications", h.Notification.ListNotifications)
			protected.GET("/notifications/unread/count", h.Notification.CountUnread)
			protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notification.MarkAsRead)
			protected.PUT("/notifications/read-all", h.Notification.MarkAllAsRead)
		}
	}

	admin := api.Group("/admin")
	admin.Use(requireAuth, middleware.RequireRole(models.RoleAdmin))
	{
		if h.Wallet != nil {
			admin.POST("/withdrawals/:id/complete", middleware.UUIDValidator("id"), idempotent, h.Wallet.CompleteWithdrawal)
			admin.POST("/withdrawals/:id/fail", middleware.UUIDValidator("id"), idempotent, h.Wallet.FailWithdrawal)
		}
		if h.Dispute != nil {
			admin.POST("/disputes/:id/resolve", middleware.UUIDValidator("id"), idempotent, h.Dispute.Resolve)
		}
	}

	return r
}
