package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/waconsole/waconsole/internal/api/handlers"
	"github.com/waconsole/waconsole/internal/api/middleware"
	"github.com/waconsole/waconsole/internal/audit"
	"github.com/waconsole/waconsole/internal/auth"
	"github.com/waconsole/waconsole/internal/cache"
	"github.com/waconsole/waconsole/internal/config"
	"github.com/waconsole/waconsole/internal/contact"
	"github.com/waconsole/waconsole/internal/device"
	"github.com/waconsole/waconsole/internal/group"
	"github.com/waconsole/waconsole/internal/message"
	"github.com/waconsole/waconsole/internal/queue"
	"github.com/waconsole/waconsole/internal/tenant"
	"github.com/waconsole/waconsole/internal/user"
	"github.com/waconsole/waconsole/internal/waha"
	"github.com/waconsole/waconsole/internal/webhook"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	ts     *tenant.Service
	tokens *auth.TokenManager
	jwt    *auth.JWTMiddleware
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	ts := tenant.NewService(db)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		ts:     ts,
		tokens: tokens,
		jwt:    auth.NewJWTMiddleware(tokens, ts),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORS.AllowedOrigins))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Initialize services
	c := cache.NewCache(rt.redis)
	gateway := waha.NewClient(rt.cfg.Gateway.BaseURL, rt.cfg.Gateway.APIKey, rt.cfg.Gateway.Timeout)
	queueClient := queue.NewClient(rt.cfg.Redis)
	dispatcher := webhook.NewDispatcher(rt.db, queueClient)
	webhookSvc := webhook.NewService(rt.db, dispatcher)
	auditSvc := audit.NewService(rt.db)

	authSvc := auth.NewService(rt.db, rt.ts, rt.tokens, c)
	userSvc := user.NewService(rt.db, rt.ts)
	groupSvc := group.NewService(rt.db)
	contactSvc := contact.NewService(rt.db)
	deviceSvc := device.NewService(rt.db, gateway, c, queueClient, webhookSvc)
	messageSvc := message.NewService(rt.db, gateway, deviceSvc, webhookSvc)

	// Gateway callbacks (authenticated by shared HMAC secret, not JWT)
	gatewayH := handlers.NewGatewayEventHandler(rt.cfg.Gateway.WebhookSecret, deviceSvc, messageSvc)
	r.Post("/webhooks/waha", gatewayH.Handle)

	authH := handlers.NewAuthHandler(authSvc, auditSvc)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.Post("/refresh", authH.Refresh)
		})

		// Everything below requires a valid access token
		r.Group(func(r chi.Router) {
			r.Use(rt.jwt.Authenticate)

			r.Post("/auth/logout", authH.Logout)
			r.Get("/auth/profile", authH.Profile)
			r.Put("/auth/profile", authH.UpdateProfile)
			r.Put("/auth/password", authH.ChangePassword)

			userH := handlers.NewUserHandler(userSvc)
			r.Route("/users", func(r chi.Router) {
				r.Get("/", userH.List)
				r.With(auth.RequireCapability(auth.CapUsersCreate)).Post("/", userH.Create)
				r.Get("/{id}", userH.Get)
				r.Put("/{id}", userH.Update)
				r.With(auth.RequireCapability(auth.CapUsersDelete)).Delete("/{id}", userH.Delete)
			})

			groupH := handlers.NewGroupHandler(groupSvc)
			r.Route("/groups", func(r chi.Router) {
				r.Get("/", groupH.List)
				r.Get("/{id}", groupH.Get)
				r.Group(func(r chi.Router) {
					r.Use(auth.RequireCapability(auth.CapGroupsManage))
					r.Post("/", groupH.Create)
					r.Put("/{id}", groupH.Update)
					r.Delete("/{id}", groupH.Delete)
				})
			})

			contactH := handlers.NewContactHandler(contactSvc)
			r.Route("/contacts", func(r chi.Router) {
				r.Get("/", contactH.List)
				r.Post("/", contactH.Create)
				r.Get("/{id}", contactH.Get)
				r.Put("/{id}", contactH.Update)
				r.Delete("/{id}", contactH.Delete)
			})

			deviceH := handlers.NewDeviceHandler(deviceSvc, auditSvc)
			messageH := handlers.NewMessageHandler(messageSvc, auditSvc)
			r.Route("/whatsapp", func(r chi.Router) {
				r.With(auth.RequireCapability(auth.CapMessagesSend)).Post("/send", messageH.Send)

				r.Route("/devices", func(r chi.Router) {
					r.Get("/", deviceH.List)
					r.Get("/{id}", deviceH.Get)
					r.Get("/{id}/status", deviceH.Status)
					r.Group(func(r chi.Router) {
						r.Use(auth.RequireCapability(auth.CapDevicesLink))
						r.Post("/", deviceH.Create)
						r.Get("/{id}/qr", deviceH.QRCode)
						r.Post("/{id}/disconnect", deviceH.Disconnect)
						r.Delete("/{id}", deviceH.Delete)
					})
				})
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", messageH.List)
				r.Get("/{id}", messageH.Get)
			})

			webhookH := handlers.NewWebhookHandler(webhookSvc)
			r.Route("/webhooks", func(r chi.Router) {
				r.Use(auth.RequireCapability(auth.CapGroupsManage))
				r.Post("/", webhookH.Create)
				r.Get("/", webhookH.List)
				r.Delete("/{id}", webhookH.Delete)
			})

			adminH := handlers.NewAdminHandler(auditSvc)
			r.Route("/admin", func(r chi.Router) {
				r.With(auth.RequireCapability(auth.CapLogsView)).Get("/audit", adminH.AuditLogs)
			})
		})
	})

	return r
}
