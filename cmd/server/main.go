package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rheckart/rescue-ranger/modules/admin"
	"github.com/rheckart/rescue-ranger/modules/horses"
	"github.com/rheckart/rescue-ranger/pkg/audit"
	"github.com/rheckart/rescue-ranger/pkg/authz"
	"github.com/rheckart/rescue-ranger/pkg/clientip"
	"github.com/rheckart/rescue-ranger/pkg/config"
	"github.com/rheckart/rescue-ranger/pkg/environment"
	"github.com/rheckart/rescue-ranger/pkg/httpserver"
	"github.com/rheckart/rescue-ranger/pkg/jwt"
	"github.com/rheckart/rescue-ranger/pkg/logger"
	"github.com/rheckart/rescue-ranger/pkg/pg"
	"github.com/rheckart/rescue-ranger/pkg/redis"
	"github.com/rheckart/rescue-ranger/pkg/requestid"
	"github.com/rheckart/rescue-ranger/pkg/scoped"
	"github.com/rheckart/rescue-ranger/pkg/tenant"
	"github.com/rheckart/rescue-ranger/pkg/tenantmetrics"
)

type appConfig struct {
	Environment     string `env:"APP_ENV" envDefault:"development"`
	ServiceName     string `env:"APP_NAME" envDefault:"rescue-ranger"`
	BaseDomain      string `env:"APP_BASE_DOMAIN" envDefault:"rescueranger.app"`
	DefaultTenant   string `env:"APP_DEFAULT_TENANT" envDefault:"demo"`
	JWTSigningKey   string `env:"JWT_SIGNING_KEY,required"`
	RolesFile       string `env:"AUTHZ_ROLES_FILE" envDefault:"config/roles.yaml"`
	TenantCacheSize int64  `env:"TENANT_CACHE_SIZE_BYTES" envDefault:"33554432"`
}

func main() {
	ctx := context.Background()

	var (
		appCfg   appConfig
		pgCfg    pg.Config
		redisCfg redis.Config
		httpCfg  httpserver.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&httpCfg)

	env := environment.Environment(appCfg.Environment)

	log := logger.New(
		logger.WithEnvironment(appCfg.Environment, appCfg.ServiceName),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
			environment.LoggerExtractor(),
		),
	)

	if err := run(ctx, appCfg, pgCfg, redisCfg, httpCfg, env, log); err != nil {
		log.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	appCfg appConfig,
	pgCfg pg.Config,
	redisCfg redis.Config,
	httpCfg httpserver.Config,
	env environment.Environment,
	log *slog.Logger,
) error {
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Tenant directory: L1 in-process + L2 redis cache over postgres.
	l1, err := tenant.NewMemoryCache(appCfg.TenantCacheSize)
	if err != nil {
		return err
	}
	tenantStore := tenant.NewPostgresStore(pool)
	directory := tenant.NewDirectory(
		tenantStore,
		tenant.NewLayeredCache(l1, tenant.NewRedisCache(redisClient, "tenant")),
		tenant.WithDirectoryLogger(log),
	)

	// Audit: batched writes into redis retention buckets.
	auditStorage := audit.NewRedisStorage(redisClient)
	auditWriter, closeAudit := audit.NewAsyncWriter(auditStorage, audit.AsyncOptions{Logger: log})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = closeAudit(shutdownCtx)
	}()

	auditSvc := audit.NewService(auditWriter,
		audit.WithServiceLogger(log),
		audit.WithUserIDExtractor(func(ctx context.Context) (string, bool) {
			identity, ok := authz.IdentityFromContext(ctx)
			return identity.Subject, ok
		}),
		audit.WithUserEmailExtractor(func(ctx context.Context) (string, bool) {
			identity, ok := authz.IdentityFromContext(ctx)
			return identity.Email, ok
		}),
		audit.WithRequestIDExtractor(func(ctx context.Context) (string, bool) {
			id := requestid.FromContext(ctx)
			return id, id != ""
		}),
		audit.WithClientIPExtractor(func(ctx context.Context) (string, bool) {
			ip := clientip.GetIPFromContext(ctx)
			return ip, ip != ""
		}),
		audit.WithUserAgentExtractor(audit.UserAgentFromContext),
	)

	tenantSvc := tenant.NewService(tenantStore, directory,
		tenant.WithAudit(auditSvc),
		tenant.WithServiceLogger(log),
	)

	metrics := tenantmetrics.NewRecorder(prometheus.DefaultRegisterer)
	defer metrics.Close()
	go metrics.RefreshActiveTenants(ctx, time.Minute, tenantStore.CountActive)

	roles, err := authz.LoadRolesFile(appCfg.RolesFile)
	if err != nil {
		return err
	}
	authorizer := authz.NewAuthorizer(authz.NewPostgresMembershipSource(pool), roles, log)

	jwtSvc, err := jwt.NewFromString(appCfg.JWTSigningKey)
	if err != nil {
		return err
	}

	horseStore := scoped.New(horses.NewPostgresBackend(pool), tenant.IDFromContext, log)
	horseSvc := horses.NewService(horseStore, auditSvc)

	adminSvc := admin.NewService(admin.Options{
		Tenants:    tenantSvc,
		Directory:  directory,
		Authorizer: authorizer,
		Tokens:     jwtSvc,
		AuditRead:  audit.NewReader(auditStorage),
		Audit:      auditSvc,
		Metrics:    metrics,
	})

	extractor := tenant.NewDefaultExtractor(appCfg.BaseDomain, log)

	tenantOpts := []tenant.Option{
		tenant.WithMetrics(metrics),
		tenant.WithLogger(log),
		tenant.WithSkipPaths("/admin", "/health", "/metrics"),
	}
	if env == environment.Development && appCfg.DefaultTenant != "" {
		tenantOpts = append(tenantOpts, tenant.WithDefaultSubdomain(appCfg.DefaultTenant))
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Use(audit.UserAgentMiddleware)
	r.Use(environment.Middleware(env))
	r.Use(authz.Middleware(jwtSvc))
	r.Use(tenant.Middleware(extractor, directory, tenantOpts...))

	r.Mount("/admin", admin.Router(adminSvc, tenant.DirectoryHealthcheck(tenantStore)))
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(tenant.RequireTenant(nil))
		r.Mount("/horses", horses.Router(horseSvc, authorizer))
	})

	srv := httpserver.New(httpCfg, log)
	return srv.Run(ctx, r)
}
