package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/itellico/mono/internal/api/handlers"
	"github.com/itellico/mono/internal/api/middleware"
	"github.com/itellico/mono/internal/audit"
	"github.com/itellico/mono/internal/auth"
	"github.com/itellico/mono/internal/cache"
	"github.com/itellico/mono/internal/category"
	"github.com/itellico/mono/internal/config"
	"github.com/itellico/mono/internal/media"
	"github.com/itellico/mono/internal/obs"
	"github.com/itellico/mono/internal/queue"
	"github.com/itellico/mono/internal/settings"
	"github.com/itellico/mono/internal/subscription"
	"github.com/itellico/mono/internal/tag"
	"github.com/itellico/mono/internal/tenant"
	"github.com/itellico/mono/internal/tracking"
	"github.com/itellico/mono/internal/version"
)

type Router struct {
	mux      *chi.Mux
	db       *pgxpool.Pool
	redis    *redis.Client
	cfg      *config.Config
	ts       *tenant.Service
	jwt      *auth.JWTMiddleware
	apikey   *auth.APIKeyMiddleware
	resolver *auth.Resolver
	cache    *cache.Cache
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	ts := tenant.NewService(db)
	c := cache.New(rdb)
	return &Router{
		mux:      chi.NewRouter(),
		db:       db,
		redis:    rdb,
		cfg:      cfg,
		ts:       ts,
		jwt:      auth.NewJWTMiddleware(cfg.Auth.JWTSecret, ts),
		apikey:   auth.NewAPIKeyMiddleware(db, cfg.Auth.APIKeyHeader, ts),
		resolver: auth.NewResolver(db, c, cfg.Cache.PermissionsTTL),
		cache:    c,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(obs.Instrument)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	// Health and metrics endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	// Initialize services
	ttl := rt.cfg.Cache.DefaultTTL
	auditSvc := audit.NewService(rt.db)
	catSvc := category.NewService(rt.db, rt.cache, ttl)
	tagSvc := tag.NewService(rt.db, rt.cache, ttl)
	queueClient := queue.NewClient(rt.cfg.Redis)
	mediaSvc := media.NewService(rt.db, rt.cache, queueClient, ttl,
		rt.cfg.Media.MaxSizeBytes, rt.cfg.Media.BasePath)
	settingsSvc := settings.NewService(rt.db, rt.cache, ttl, rt.resolver)
	subSvc := subscription.NewService(rt.db, rt.cache, ttl)
	versionSvc := version.NewService(rt.db, rt.cache, ttl)
	rbacStore := auth.NewStore(rt.db, rt.resolver)
	tracker := tracking.NewTracker(rt.redis, rt.cfg.Tracking.ListKey)

	perm := func(name string) func(http.Handler) http.Handler {
		return auth.RequirePermission(rt.resolver, name)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		authH := handlers.NewAuthHandler(rt.ts, rt.resolver, rt.cfg.Auth.JWTSecret, rt.cfg.Auth.TokenTTL)
		r.Post("/auth/login", authH.Login)

		// Everything below requires a principal: API key first, then JWT.
		r.Group(func(r chi.Router) {
			r.Use(rt.apikey.Authenticate)
			r.Use(rt.jwt.Authenticate)

			r.Get("/auth/me", authH.Me)

			catH := handlers.NewCategoryHandler(catSvc, auditSvc)
			r.Route("/categories", func(r chi.Router) {
				r.With(perm("categories.read")).Get("/", catH.List)
				r.With(perm("categories.read")).Get("/{id}", catH.Get)
				r.With(perm("categories.create")).Post("/", catH.Create)
				r.With(perm("categories.update")).Put("/{id}", catH.Update)
				r.With(perm("categories.delete")).Delete("/{id}", catH.Delete)
			})

			tagH := handlers.NewTagHandler(tagSvc)
			r.Route("/tags", func(r chi.Router) {
				r.With(perm("tags.read")).Get("/", tagH.List)
				r.With(perm("tags.read")).Get("/{id}", tagH.Get)
				r.With(perm("tags.create")).Post("/", tagH.Create)
				r.With(perm("tags.delete")).Delete("/{id}", tagH.Delete)
			})

			mediaH := handlers.NewMediaHandler(mediaSvc)
			r.Route("/media", func(r chi.Router) {
				r.With(perm("media.read")).Get("/", mediaH.List)
				r.With(perm("media.read")).Get("/{id}", mediaH.Get)
				r.With(perm("media.create")).Post("/", mediaH.Upload)
				r.With(perm("media.update")).Put("/{id}/tags", mediaH.SetTags)
				r.With(perm("media.delete")).Delete("/{id}", mediaH.Delete)
			})

			rbacH := handlers.NewRBACHandler(rbacStore, auditSvc)
			r.Route("/roles", func(r chi.Router) {
				r.With(perm("roles.read")).Get("/", rbacH.ListRoles)
				r.With(perm("roles.manage")).Post("/", rbacH.CreateRole)
				r.With(perm("roles.manage")).Delete("/{id}", rbacH.DeleteRole)
				r.With(perm("roles.manage")).Put("/{id}/permissions", rbacH.SetRolePermissions)
			})
			r.With(perm("roles.read")).Get("/permissions", rbacH.ListPermissions)
			r.With(perm("roles.manage")).Post("/user-roles", rbacH.AssignRole)
			r.With(perm("roles.manage")).Delete("/users/{userID}/roles/{roleID}", rbacH.RevokeRole)

			settingsH := handlers.NewSettingsHandler(settingsSvc)
			r.Route("/settings", func(r chi.Router) {
				r.With(perm("settings.read")).Get("/", settingsH.List)
				r.With(perm("settings.read")).Get("/{key}", settingsH.Resolve)
				r.With(perm("settings.update")).Put("/", settingsH.Set)
				r.With(perm("settings.delete")).Delete("/{id}", settingsH.Delete)
			})

			subH := handlers.NewSubscriptionHandler(subSvc)
			r.Route("/plans", func(r chi.Router) {
				r.With(perm("plans.read")).Get("/", subH.ListPlans)
				r.With(perm("plans.read")).Get("/{id}", subH.GetPlan)
				r.With(perm("plans.manage")).Post("/", subH.CreatePlan)
				r.With(perm("plans.manage")).Delete("/{id}", subH.DeletePlan)
				r.With(perm("plans.manage")).Put("/{id}/features/{key}", subH.SetPlanFeature)
			})
			r.With(perm("plans.read")).Get("/features", subH.ListFeatures)

			versionH := handlers.NewVersionHandler(versionSvc, queueClient)
			r.Route("/versions", func(r chi.Router) {
				r.With(perm("versions.read")).Get("/", versionH.List)
				r.With(perm("versions.create")).Post("/", versionH.Record)
				r.With(perm("versions.prune")).Post("/prune", versionH.Prune)
				r.With(perm("versions.read")).Get("/{version}", versionH.Get)
			})

			tenantH := handlers.NewTenantHandler(rt.ts, auditSvc)
			r.Route("/tenants", func(r chi.Router) {
				r.With(perm("tenants.manage")).Get("/", tenantH.List)
				r.With(perm("tenants.manage")).Get("/{id}", tenantH.Get)
				r.With(perm("tenants.manage")).Post("/", tenantH.Create)
				r.With(perm("tenants.manage")).Put("/{id}", tenantH.Update)
			})

			auditH := handlers.NewAuditHandler(auditSvc)
			r.With(perm("audit.read")).Get("/audit", auditH.List)

			trackH := handlers.NewTrackHandler(tracker)
			r.Post("/track", trackH.Track)
		})
	})

	return r
}
