package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/shelfpos/api/controllers"
	"github.com/angelmondragon/shelfpos/api/middleware"
	"github.com/angelmondragon/shelfpos/internal/backup"
	"github.com/angelmondragon/shelfpos/internal/categories"
	"github.com/angelmondragon/shelfpos/internal/checkout"
	"github.com/angelmondragon/shelfpos/internal/orders"
	"github.com/angelmondragon/shelfpos/internal/products"
	"github.com/angelmondragon/shelfpos/internal/session"
	"github.com/angelmondragon/shelfpos/internal/statistics/dashboard"
	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/metrics"
)

// Deps is everything the router serves. Gatherer and HTTPMetrics may be
// nil; Ready lists the dependencies the readiness probe pings.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	Ready       map[string]controllers.Pinger
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Categories categories.Service
	Products   products.Service
	Orders     orders.Service
	Dashboard  *dashboard.Service
	Checkout   *checkout.Service
	Backup     *backup.Pipeline
	Shell      backup.Shell
	Session    *session.Manager
	Now        func() time.Time
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger
	now := d.Now
	if now == nil {
		now = time.Now
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.HTTPMetrics),
		middleware.CORS(cfg.HTTP.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, d.Ready))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/session", func(r chi.Router) {
			r.Get("/", controllers.SessionStatus(d.Session))
			r.Post("/lock", controllers.LockSession(d.Session))
			r.Post("/unlock", controllers.UnlockSession(d.Session, logg))
			r.With(middleware.RequireUnlocked(d.Session, logg)).Post("/password", controllers.SetSessionPassword(d.Session, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUnlocked(d.Session, logg))

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", controllers.ListCategories(d.Categories, logg))
				r.Post("/", controllers.CreateCategory(d.Categories, logg))
				r.Get("/{id}", controllers.GetCategory(d.Categories, logg))
				r.Put("/{id}", controllers.UpdateCategory(d.Categories, logg))
				r.Delete("/{id}", controllers.DeleteCategory(d.Categories, logg))
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", controllers.ListProducts(d.Products, cfg.Catalog.DefaultPageSize, logg))
				r.Post("/", controllers.CreateProduct(d.Products, logg))
				r.Post("/bulk", controllers.BulkCreateProducts(d.Products, logg))
				r.Get("/barcode/{barcode}", controllers.GetProductByBarcode(d.Products, logg))
				r.Get("/{id}", controllers.GetProduct(d.Products, logg))
				r.Put("/{id}", controllers.UpdateProduct(d.Products, logg))
				r.Delete("/{id}", controllers.DeleteProduct(d.Products, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(d.Orders, logg))
				r.Post("/", controllers.CreateOrder(d.Orders, logg))
				r.Post("/purge", controllers.PurgeOldOrders(d.Orders, logg))
				r.Get("/{id}", controllers.GetOrder(d.Orders, logg))
				r.Put("/{id}", controllers.UpdateOrder(d.Orders, logg))
				r.Delete("/{id}", controllers.DeleteOrder(d.Orders, logg))
				r.Post("/{id}/cancel", controllers.CancelOrder(d.Orders, logg))
			})

			r.Route("/statistics", func(r chi.Router) {
				r.Get("/sales", controllers.SalesStatistics(d.Orders, logg))
				r.Get("/top-products", controllers.TopProducts(d.Orders, logg))
				r.Get("/dashboard", controllers.Dashboard(d.Dashboard, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Get("/cart", controllers.GetCart(d.Checkout))
				r.Delete("/cart", controllers.ClearCart(d.Checkout))
				r.Patch("/cart/{productId}", controllers.SetCartQuantity(d.Checkout, logg))
				r.Delete("/cart/{productId}", controllers.RemoveCartItem(d.Checkout, logg))
				r.Post("/scan", controllers.ScanItem(d.Checkout, logg))
				r.Post("/submit", controllers.SubmitCart(d.Checkout, logg))
			})

			r.Route("/backup", func(r chi.Router) {
				r.Get("/", controllers.ListBackups(d.Shell, logg))
				r.Delete("/", controllers.DeleteBackup(d.Backup, d.Shell, logg))
				r.Get("/download", controllers.DownloadBackup(d.Backup, func() string { return backup.BackupFilename(now()) }, logg))
				r.Post("/export", controllers.ExportBackup(d.Backup, d.Shell, logg))
				r.Post("/auto", controllers.AutoBackup(d.Backup, d.Shell, logg))
				r.Post("/import", controllers.ImportBackup(d.Backup, d.Shell, logg))
			})
		})
	})

	return r
}
