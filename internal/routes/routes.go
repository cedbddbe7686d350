package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/creatorpay/creatorpay/internal/account"
	"github.com/creatorpay/creatorpay/internal/catalog"
	"github.com/creatorpay/creatorpay/internal/config"
	"github.com/creatorpay/creatorpay/internal/funding"
	"github.com/creatorpay/creatorpay/internal/history"
	"github.com/creatorpay/creatorpay/internal/identity"
	"github.com/creatorpay/creatorpay/internal/ledger"
	"github.com/creatorpay/creatorpay/internal/metrics"
	"github.com/creatorpay/creatorpay/internal/middleware"
	"github.com/creatorpay/creatorpay/internal/notification"
	"github.com/creatorpay/creatorpay/internal/purchases"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	// Health
	RegisterHealthRoutes(app, d)

	// Ledger backend, wrapped with operation metrics.
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}
	collector := metrics.NewCollector()
	ledgerBackend = metrics.Instrument(ledgerBackend, collector)

	// External collaborators. Real directory/catalog/gateway clients are
	// injected per deployment; the static stand-ins keep dev mode whole.
	var directory identity.Directory = identity.StaticDirectory{}
	var cat catalog.Catalog = catalog.StaticCatalog{}
	var gateway funding.Gateway = funding.StaticGateway{}
	notifier := notification.NewLoggerNotifier(d.Logger)

	// Services and handlers
	accountSvc := account.NewService(ledgerBackend)
	purchaseSvc := purchases.NewService(ledgerBackend, notifier)
	historySvc := history.NewService(ledgerBackend, directory, cat)
	fundingSvc, err := funding.NewService(ledgerBackend, gateway, notifier)
	if err != nil {
		return err
	}

	accountHandler := account.NewHandler(accountSvc)
	purchaseHandler := purchases.NewHandler(purchaseSvc)
	historyHandler := history.NewHandler(historySvc)
	fundingHandler := funding.NewHandler(fundingSvc)

	// Replay protection for client-driven mutations. Without Redis the
	// ledger's own idempotency key still covers top-ups.
	idem := passthrough
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID := middleware.RequestIDFrom(c)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAccountRoutes(api, accountHandler, idem)
	RegisterHistoryRoutes(api, historyHandler)
	RegisterPurchaseRoutes(api, purchaseHandler, idem)
	RegisterFundingRoutes(api, fundingHandler, middleware.WebhookRateLimit(d.Cache, d.Cfg.WebhookPerMinute))

	app.Get("/metrics", adaptor.HTTPHandler(collector.Handler()))

	return nil
}

func passthrough(c *fiber.Ctx) error {
	return c.Next()
}
