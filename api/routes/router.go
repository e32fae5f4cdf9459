package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relistco/relist-backend/api/controllers"
	webhookcontrollers "github.com/relistco/relist-backend/api/controllers/webhooks"
	"github.com/relistco/relist-backend/api/middleware"
	"github.com/relistco/relist-backend/internal/catalog"
	checkoutsvc "github.com/relistco/relist-backend/internal/checkout"
	"github.com/relistco/relist-backend/internal/ledger"
	"github.com/relistco/relist-backend/internal/listings"
	"github.com/relistco/relist-backend/internal/sellers"
	stripewebhook "github.com/relistco/relist-backend/internal/webhooks/stripe"
	"github.com/relistco/relist-backend/pkg/config"
	"github.com/relistco/relist-backend/pkg/logger"
	"github.com/relistco/relist-backend/pkg/mailer"
	pkgstripe "github.com/relistco/relist-backend/pkg/stripe"
)

// Services bundles the wired domain services the router mounts.
type Services struct {
	Sellers  *sellers.Service
	Catalog  *catalog.Service
	Listings *listings.Service
	Checkout *checkoutsvc.Service
	Ledger   *ledger.Service
	Webhooks *stripewebhook.Service
	Mailer   mailer.Mailer
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	redisPinger controllers.Pinger,
	svcs Services,
	stripeClient *pkgstripe.Client,
	webhookGuard *stripewebhook.IdempotencyGuard,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbPinger,
			"redis":    redisPinger,
		}))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(svcs.Webhooks, stripeClient, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/sellers/account", func(r chi.Router) {
			r.Post("/", controllers.CreateSellerAccount(svcs.Sellers, logg))
			r.Delete("/", controllers.DeleteSellerAccount(svcs.Sellers, logg))
			r.Post("/onboarding-link", controllers.SellerOnboardingLink(svcs.Sellers, logg))
			r.Get("/status", controllers.SellerAccountStatus(svcs.Sellers, logg))
			r.Get("/dashboard-link", controllers.SellerDashboardLink(svcs.Sellers, logg))
		})

		r.Route("/listings/{listingId}", func(r chi.Router) {
			r.Post("/product", controllers.SetupListingProduct(svcs.Catalog, svcs.Listings, logg))
			r.Put("/price", controllers.UpdateListingPrice(svcs.Catalog, svcs.Listings, logg))
			r.Post("/active", controllers.SetListingActive(svcs.Catalog, svcs.Listings, logg))
			r.Get("/transactions", controllers.ListListingTransactions(svcs.Ledger, svcs.Listings, logg))
			r.Post("/contact", controllers.ContactSeller(svcs.Mailer, svcs.Listings, logg))
		})

		r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))
		r.Get("/transactions", controllers.ListTransactions(svcs.Ledger, logg))
	})

	return r
}
