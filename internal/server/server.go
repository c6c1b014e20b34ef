// Package server wires the stores and handlers into the gin router and runs
// the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"storefront/internal/accounts"
	"storefront/internal/auth"
	"storefront/internal/catalog"
	"storefront/internal/orders"
	"storefront/internal/pages"
	"storefront/internal/policy"
	"storefront/internal/pricing"
	"storefront/internal/realtime"
	"storefront/internal/webhooks"
)

type Deps struct {
	DB     *gorm.DB
	JWT    *auth.JWTManager
	Policy *policy.Policy
	// Notify receives committed changes. Defaults to Broker.
	Notify    realtime.Notifier
	Broker    *realtime.Broker
	Keepalive time.Duration
	Log       *slog.Logger
}

// NewRouter builds the stores over d.DB and registers every route.
func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Log == nil {
		d.Log = slog.New(slog.DiscardHandler)
	}
	if d.Broker == nil {
		d.Broker = realtime.NewBroker(d.Policy, 0, d.Log)
	}
	if d.Notify == nil {
		d.Notify = d.Broker
	}

	catalogRepo := catalog.NewRepo(d.DB, d.Policy, d.Notify)
	pricingRepo := pricing.NewRepo(d.DB, d.Policy, d.Notify)
	orderRepo := orders.NewRepo(d.DB, d.Policy, d.Notify)
	accountRepo := accounts.NewRepo(d.DB, d.Policy)

	catalogH := catalog.NewHandler(catalogRepo)
	pricingH := pricing.NewHandler(pricingRepo)
	orderH := orders.NewHandler(orderRepo)
	accountH := accounts.NewHandler(accountRepo)
	streamH := realtime.NewHandler(d.Broker, d.Keepalive)
	pageH := pages.NewHandler(catalogRepo)
	hookH := webhooks.NewHandler(webhooks.Deps{
		Accounts: accountRepo,
		Catalog:  catalogRepo,
		Pricing:  pricingRepo,
		Orders:   orderRepo,
		Log:      d.Log,
	})

	tmpl, err := pages.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse page templates: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(loggingMiddleware(d.Log))
	r.SetHTMLTemplate(tmpl)

	r.GET("/health", health(d.DB))
	r.GET("/", pageH.Home)
	r.GET("/help", pageH.Help)
	r.GET("/terms", pageH.Terms)

	api := r.Group("/api")
	api.Use(auth.Authenticate(d.JWT))

	// Public catalog routes (anonymous allowed)
	api.GET("/sizes", catalogH.ListSizes)
	api.GET("/colors", catalogH.ListColors)
	api.GET("/products", catalogH.ListProducts)
	api.GET("/products/:id", catalogH.GetProduct)
	api.GET("/variants", catalogH.ListVariants)
	api.GET("/realtime", streamH.Stream)

	user := api.Group("/")
	user.Use(auth.RequireRole(policy.RoleAuthenticated, policy.RoleAdmin))
	{
		user.GET("/me", accountH.Me)
		user.PATCH("/me", accountH.UpdateMe)
		user.GET("/orders", orderH.ListMine)
		user.GET("/orders/:id", orderH.Get)
		user.GET("/order-items", orderH.ListItems)
	}

	admin := api.Group("/admin")
	admin.Use(auth.RequireRole(policy.RoleAdmin))
	{
		admin.POST("/sizes", catalogH.AdminCreateSize)
		admin.PATCH("/sizes/:id", catalogH.AdminUpdateSize)
		admin.DELETE("/sizes/:id", catalogH.AdminDeleteSize)

		admin.POST("/colors", catalogH.AdminCreateColor)
		admin.PATCH("/colors/:id", catalogH.AdminUpdateColor)
		admin.DELETE("/colors/:id", catalogH.AdminDeleteColor)

		admin.GET("/products", catalogH.AdminListProducts)
		admin.POST("/products", catalogH.AdminCreateProduct)
		admin.PATCH("/products/:id", catalogH.AdminUpdateProduct)
		admin.DELETE("/products/:id", catalogH.AdminDeleteProduct)

		admin.POST("/variants", catalogH.AdminCreateVariant)
		admin.PATCH("/variants/:id", catalogH.AdminUpdateVariant)
		admin.DELETE("/variants/:id", catalogH.AdminDeleteVariant)
		admin.POST("/variants/:id/stock", catalogH.AdminAdjustStock)

		admin.GET("/product-changes", catalogH.AdminListProductChanges)

		admin.GET("/prices", pricingH.AdminList)
		admin.POST("/prices", pricingH.AdminUpsert)
		admin.GET("/prices/:id", pricingH.AdminGet)
		admin.POST("/prices/:id/deactivate", pricingH.AdminDeactivate)
		admin.DELETE("/prices/:id", pricingH.AdminDelete)

		admin.GET("/orders/:id/changes", orderH.AdminListChanges)
	}

	hooks := api.Group("/webhooks")
	hooks.Use(auth.RequireRole(policy.RoleServiceRole))
	{
		hooks.POST("/identities", hookH.Identity)
		hooks.POST("/payments", hookH.Payment)
	}

	return r, nil
}

func health(gdb *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := gdb.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func loggingMiddleware(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("http request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// Server is the HTTP listener around the router.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

func New(addr string, h http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	// No WriteTimeout: realtime streams stay open.
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

// Start listens in the background. Listen errors are sent on the returned
// channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server starting", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", "error", err)
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// OnShutdown registers f to run when Stop begins, e.g. to end open streams.
func (s *Server) OnShutdown(f func()) { s.srv.RegisterOnShutdown(f) }

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.srv.Shutdown(ctx)
}
