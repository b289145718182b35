package main

import (
	"context"
	"fmt"
	"log"

	_ "pos-sync/docs"
	common_api "pos-sync/internal/common/api"
	"pos-sync/internal/config"
	"pos-sync/internal/database"
	cron_feature "pos-sync/internal/features/cron"
	"pos-sync/internal/features/diagnostics"
	"pos-sync/internal/features/queue"
	"pos-sync/internal/features/remote"
	"pos-sync/internal/features/store"
	sync_feature "pos-sync/internal/features/sync"
	"pos-sync/internal/features/system"
	"pos-sync/internal/logger"
	"pos-sync/internal/middleware"
	"pos-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute tags the constructor so Fx adds it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes calls Setup() on every route of the "routes" group.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for i, route := range routes {
		log.Printf("Setting up route %d: %T\n", i+1, route)
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer starts Fiber in a goroutine and shuts it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// FlushLogger writes buffered log entries to the local store on shutdown.
func FlushLogger(lc fx.Lifecycle, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = log.Sync()
			return nil
		},
	})
}

// @title           POS Sync Admin API
// @version         1.0
// @description     Operator API of the POS sync daemon: queue, drains, diagnostics and scheduled jobs.

// @host            localhost:8090
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			logger.NewLogger,
			NewFiberServer,

			// Repositories
			queue.NewQueueRepository,
			store.NewStoreRepository,
			cron_feature.NewCronRepository,
			system.NewLogRepository,

			// Services
			queue.NewQueueService,
			store.NewStoreService,
			remote.NewRemoteClient,
			sync_feature.NewHub,
			sync_feature.NewSyncService,
			diagnostics.NewRemoteSource,
			diagnostics.NewDiagnosticsService,
			cron_feature.NewCronService,

			// Controllers
			queue.NewQueueController,
			sync_feature.NewSyncController,
			diagnostics.NewDiagnosticsController,
			cron_feature.NewCronController,
			system.NewHealthController,
			system.NewDebugController,

			// Routes
			AsRoute(queue.NewQueueApi),
			AsRoute(sync_feature.NewSyncApi),
			AsRoute(diagnostics.NewDiagnosticsApi),
			AsRoute(cron_feature.NewCronApi),
			AsRoute(system.NewHealthApi),
			AsRoute(system.NewDebugApi),
			AsRoute(system.NewSwaggerApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) {
				utils.SetSecret(cfg.JWTSecret)
			},
			RegisterAllRoutesWithAnnotation,
			StartServer,
			FlushLogger,
			func(lc fx.Lifecycle, cronService cron_feature.CronService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return cronService.InitializeScheduler(ctx)
					},
					OnStop: func(ctx context.Context) error {
						return cronService.StopScheduler()
					},
				})
			},
		),
	)

	app.Run()
}
