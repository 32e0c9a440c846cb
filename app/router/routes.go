// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/amirphl/omc-bdc-price-service/app/dto"
	"github.com/amirphl/omc-bdc-price-service/app/handlers"
	"github.com/amirphl/omc-bdc-price-service/app/middleware"
	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/swaggo/swag"
	"go.uber.org/zap"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// HealthCheck reports whether one dependency is reachable
type HealthCheck func(ctx context.Context) error

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Auth       handlers.AuthHandlerInterface
	PriceEntry handlers.PriceEntryHandlerInterface
	Catalog    handlers.CatalogHandlerInterface
	Admin      handlers.AdminHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app            *fiber.App
	cfg            *config.ProductionConfig
	handlers       Handlers
	authMiddleware *middleware.AuthMiddleware
	healthChecks   map[string]HealthCheck
	logger         *zap.Logger
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.ProductionConfig,
	h Handlers,
	authMiddleware *middleware.AuthMiddleware,
	healthChecks map[string]HealthCheck,
	log *zap.Logger,
) Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &FiberRouter{
		cfg:            cfg,
		handlers:       h,
		authMiddleware: authMiddleware,
		healthChecks:   healthChecks,
		logger:         log,
	}

	r.app = fiber.New(fiber.Config{
		AppName:          "OMC BDC Price API",
		ServerHeader:     "omc-bdc-price",
		ErrorHandler:     r.errorHandler,
		BodyLimit:        cfg.Server.BodyLimit,
		ReadTimeout:      cfg.Server.ReadTimeout,
		WriteTimeout:     cfg.Server.WriteTimeout,
		IdleTimeout:      cfg.Server.IdleTimeout,
		ProxyHeader:      cfg.Server.ProxyHeader,
		TrustProxy:       len(cfg.Server.TrustedProxies) > 0,
		TrustProxyConfig: fiber.TrustProxyConfig{Proxies: cfg.Server.TrustedProxies},
		JSONEncoder:      json.Marshal,
		JSONDecoder:      json.Unmarshal,
	})

	return r
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	r.logger.Info("Setting up routes")

	r.setupMiddleware()

	if r.cfg.Metrics.Enabled {
		r.app.Get(r.cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	if r.cfg.Deployment.Environment != "production" {
		api.Get("/swagger.json", r.serveSwaggerJSON)
	}

	api.Use(r.rateLimiter(r.cfg.Security.GlobalRateLimit, func(c fiber.Ctx) bool {
		return c.Path() == "/api/v1/health"
	}))

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth", r.rateLimiter(r.cfg.Security.AuthRateLimit, nil))
	auth.Post("/login", r.handlers.Auth.Login)
	auth.Post("/admin/login", r.handlers.Auth.AdminLogin)

	// Reporter routes
	userAuth := r.authMiddleware.Authenticate()

	entries := api.Group("/price-entries", userAuth)
	entries.Post("/omc", r.handlers.PriceEntry.SubmitOMC)
	entries.Post("/bdc", r.handlers.PriceEntry.SubmitBDC)
	entries.Post("/presigned-urls", r.handlers.PriceEntry.PresignURLs)
	entries.Get("/", r.handlers.PriceEntry.List)
	entries.Get("/export", r.handlers.PriceEntry.Export)
	entries.Get("/:id", r.handlers.PriceEntry.Get)
	entries.Put("/:id", r.handlers.PriceEntry.Update)
	entries.Delete("/:id/images/:image_id", r.handlers.PriceEntry.DeleteImage)

	// The catalog is identical for every reporter, so successful reads are cached briefly
	catalogCache := cache.New(cache.Config{
		Expiration:          time.Minute,
		DisableCacheControl: false,
	})
	api.Get("/stations", userAuth, catalogCache, r.handlers.Catalog.ListStations)
	api.Get("/stations/:id", userAuth, catalogCache, r.handlers.Catalog.GetStation)
	api.Get("/products", userAuth, catalogCache, r.handlers.Catalog.ListProducts)
	api.Get("/products/:id", userAuth, catalogCache, r.handlers.Catalog.GetProduct)

	// Admin routes
	admin := api.Group("/admin", r.authMiddleware.AdminAuthenticate())
	admin.Post("/stations/sync", r.handlers.Admin.SyncStations)

	admin.Post("/products", r.handlers.Admin.CreateProduct)
	admin.Delete("/products/:id", r.handlers.Admin.DeleteProduct)
	admin.Post("/products/:id/restore", r.handlers.Admin.RestoreProduct)

	admin.Post("/companies", r.handlers.Admin.CreateCompany)
	admin.Get("/companies", r.handlers.Admin.ListCompanies)
	admin.Get("/companies/:id", r.handlers.Admin.GetCompany)
	admin.Put("/companies/:id", r.handlers.Admin.UpdateCompany)

	admin.Post("/users", r.handlers.Admin.CreateUser)
	admin.Get("/users", r.handlers.Admin.ListUsers)
	admin.Get("/users/:id", r.handlers.Admin.GetUser)
	admin.Put("/users/:id", r.handlers.Admin.UpdateUser)

	admin.Get("/price-entries/:id/sync-logs", r.handlers.Admin.SyncLogs)
	admin.Post("/price-entries/:id/sync/resolve", r.handlers.Admin.ResolveUnconfirmedCreate)
	admin.Post("/sync/retry", r.handlers.Admin.RunRetry)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	r.logger.Info("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			r.logger.Error("panic recovered",
				zap.String("request_id", requestid.FromContext(c)),
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))

	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             r.cfg.Security.XFrameOptions,
		HSTSMaxAge:                31536000,
		ContentSecurityPolicy:     r.cfg.Security.CSPPolicy,
		ReferrerPolicy:            r.cfg.Security.ReferrerPolicy,
		CrossOriginResourcePolicy: "cross-origin",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	maxAge := r.cfg.Security.CORSMaxAge
	if maxAge <= 0 {
		maxAge = utils.CORSMaxAge
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins:     r.cfg.Security.AllowedOrigins,
		AllowMethods:     r.cfg.Security.AllowedMethods,
		AllowHeaders:     lo.Union(r.cfg.Security.AllowedHeaders, []string{"X-Request-ID"}),
		ExposeHeaders:    []string{"X-Request-ID", fiber.HeaderContentDisposition},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           maxAge,
	}))

	if r.cfg.Server.EnableCompression {
		r.app.Use(compress.New(compress.Config{
			Level: compress.LevelBestSpeed,
		}))
	}

	if r.cfg.Logging.EnableAccessLog {
		r.app.Use(logger.New(logger.Config{
			Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","ip":"${ip}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
			TimeFormat: time.RFC3339,
			TimeZone:   "UTC",
			Next: func(c fiber.Ctx) bool {
				return c.Path() == "/api/v1/health" || c.Path() == r.cfg.Metrics.Path
			},
		}))
	}

	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}
}

func (r *FiberRouter) rateLimiter(max int, next func(c fiber.Ctx) bool) fiber.Handler {
	window := r.cfg.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: next,
	})
}

func (r *FiberRouter) Start(address string) error {
	r.logger.Info("Starting server", zap.String("address", address))
	return r.app.Listen(address)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	checks := make(fiber.Map, len(r.healthChecks))
	healthy := true
	for name, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status, message, state := fiber.StatusOK, "Service is healthy", "ok"
	if !healthy {
		status, message, state = fiber.StatusServiceUnavailable, "Service is degraded", "degraded"
	}
	return c.Status(status).JSON(dto.APIResponse{
		Success: healthy,
		Message: message,
		Data: fiber.Map{
			"status":    state,
			"checks":    checks,
			"timestamp": utils.UTCNow().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "omc-bdc-price-service",
		},
	})
}

func (r *FiberRouter) serveSwaggerJSON(c fiber.Ctx) error {
	doc, err := swag.ReadDoc()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to load Swagger documentation",
			Error: dto.ErrorDetail{
				Code: "SWAGGER_LOAD_ERROR",
			},
		})
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(doc)
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

func (r *FiberRouter) errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "An internal server error occurred"
	errorCode := "INTERNAL_ERROR"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		if code < fiber.StatusInternalServerError {
			message = e.Message
			errorCode = "REQUEST_ERROR"
		}
	}

	if code >= fiber.StatusInternalServerError {
		r.logger.Error("request failed", zap.Int("status", code), zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: errorCode,
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
