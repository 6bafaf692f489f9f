package router

import (
	"net/http"

	"github.com/erp/returns/internal/infrastructure/logger"
	"github.com/erp/returns/internal/infrastructure/telemetry"
	"github.com/erp/returns/internal/interfaces/http/dto"
	"github.com/erp/returns/internal/interfaces/http/handler"
	"github.com/erp/returns/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers served by the engine
type Handlers struct {
	Returns        *handler.ReturnHandler
	Parties        *handler.PartyHandler
	Reconciliation *handler.ReconciliationHandler
	System         *handler.SystemHandler
}

// Options configures the middleware chain. A nil MeterProvider disables HTTP metrics.
// Swagger UI is served only when Swagger.Enabled is set and the generated docs
// package has been linked into the binary.
type Options struct {
	ServiceName    string
	Logger         *zap.Logger
	TracingEnabled bool
	MeterProvider  *telemetry.MeterProvider
	Profiling      middleware.ProfilingConfig
	CORS           middleware.CORSConfig
	Swagger        middleware.SwaggerConfig
	MaxBodySize    int64
	TrustedProxies []string
}

// New builds the gin engine with the middleware chain and every route mounted.
// The request ID is assigned before anything logs, and tracing wraps metrics.
func New(h Handlers, opts Options) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()
	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if opts.TracingEnabled {
		engine.Use(middleware.Tracing(opts.ServiceName))
		engine.Use(middleware.SpanEnricher())
	}
	engine.Use(middleware.HTTPMetrics(opts.MeterProvider, log))
	engine.Use(middleware.Profiling(opts.Profiling))
	engine.Use(middleware.CORS(opts.CORS))
	engine.Use(middleware.Secure())
	if opts.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(opts.MaxBodySize))
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound,
			"No route for "+c.Request.Method+" "+c.Request.URL.Path,
			c.Writer.Header().Get(logger.RequestIDHeader),
		))
	})

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(opts.Swagger),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	Mount(engine, domainGroups(h)...)
	return engine, nil
}

func domainGroups(h Handlers) []*DomainGroup {
	groups := make([]*DomainGroup, 0, 4)
	if h.Returns != nil {
		groups = append(groups,
			NewDomainGroup("returns", "/returns").
				GET("", h.Returns.List).
				POST("", h.Returns.Create).
				POST("/validate", h.Returns.ValidateForm).
				GET("/:id", h.Returns.Get).
				DELETE("/:id", h.Returns.Delete).
				GET("/:id/checks/:action", h.Returns.Check).
				POST("/:id/confirm", h.Returns.Confirm).
				POST("/:id/cancel", h.Returns.Cancel).
				GET("/:id/movements", h.Returns.Movements),
			NewDomainGroup("invoices", "/invoices").
				GET("/:id/return-form", h.Returns.ReturnForm),
		)
	}
	if h.Parties != nil {
		groups = append(groups, NewDomainGroup("parties", "/parties").
			GET("/:id/ledger", h.Parties.Ledger))
	}
	if h.Reconciliation != nil {
		groups = append(groups, NewDomainGroup("reconciliation", "/reconciliation").
			POST("/run", h.Reconciliation.Run))
	}
	return groups
}
