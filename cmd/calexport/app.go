package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	exportchromium "github.com/goliatone/go-calexport/adapters/chromium"
	historybun "github.com/goliatone/go-calexport/adapters/history/bun"
	exporthttp "github.com/goliatone/go-calexport/adapters/http"
	exportrouter "github.com/goliatone/go-calexport/adapters/router"
	"github.com/goliatone/go-calexport/cmd/calexport/config"
	exportcmd "github.com/goliatone/go-calexport/command"
	"github.com/goliatone/go-calexport/export"
	exportqry "github.com/goliatone/go-calexport/query"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
)

// App holds the application dependencies.
type App struct {
	Config        config.Config
	Logger        *SimpleLogger
	Pipeline      *export.Pipeline
	Exporter      export.Exporter
	History       export.HistoryStore
	db            *bun.DB
	subscriptions []dispatcher.Subscription
}

// NewApp creates the application with a chromium acquirer.
func NewApp(ctx context.Context, cfg config.Config, logger *SimpleLogger) (*App, error) {
	acquirer := exportchromium.NewAcquirer()
	acquirer.BrowserPath = cfg.Engine.ChromiumPath
	acquirer.BundlePath = cfg.Engine.BundlePath
	acquirer.Args = cfg.Engine.Args
	acquirer.Headless = cfg.Engine.Headless
	if cfg.Engine.LaunchTimeout > 0 {
		acquirer.LaunchTimeout = cfg.Engine.LaunchTimeout
	}
	acquirer.Logger = logger
	return newApp(ctx, cfg, logger, acquirer)
}

func newApp(ctx context.Context, cfg config.Config, logger *SimpleLogger, acquirer export.Acquirer) (*App, error) {
	if logger == nil {
		logger = NewSimpleLogger("calexport", LevelInfo, nil)
	}

	pipeline := export.NewPipeline(acquirer)
	pipeline.Logger = logger
	pipeline.Dispatcher.QuiescenceTimeout = cfg.Render.QuiescenceTimeout
	pipeline.Dispatcher.IdleWindow = cfg.Render.IdleWindow

	override, _ := export.ParseProfileClass(cfg.Engine.Profile)
	pipeline.Profiles = export.EnvProfileSource{
		Override:  override,
		RemoteURL: cfg.Engine.RemoteURL,
	}
	if cfg.Render.Sanitize {
		pipeline.Sanitizer = export.NewUGCSanitizer()
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipeline,
	}

	if cfg.History.Enabled {
		if cfg.History.DSN == "" {
			app.History = export.NewMemoryHistory(cfg.History.MaxRecords)
		} else {
			db, err := historybun.OpenSQLite(ctx, cfg.History.DSN)
			if err != nil {
				return nil, fmt.Errorf("failed to open history store: %w", err)
			}
			app.db = db
			app.History = historybun.NewStore(db)
		}
		pipeline.History = app.History
	}

	admission := export.NewAdmission(pipeline, export.ResolveWorkerCount(cfg.Render.MaxConcurrent))
	app.Exporter = admission
	logger.Infof("export admission limit: %d concurrent engines", admission.Workers())

	app.subscriptions = append(app.subscriptions,
		dispatcher.SubscribeCommand(exportcmd.NewExportCalendarHandler(admission)),
	)
	if app.History != nil {
		app.subscriptions = append(app.subscriptions,
			dispatcher.SubscribeQuery(exportqry.NewRenderHistoryHandler(app.History)),
		)
	}

	return app, nil
}

func (a *App) apiConfig() exportrouter.Config {
	return exportrouter.Config{
		Exporter:     a.Exporter,
		History:      a.History,
		BasePath:     a.Config.Server.BasePath,
		MaxBodyBytes: a.Config.Server.MaxBodyBytes,
		Logger:       a.Logger,
	}
}

// SetupRoutes registers the export routes on a go-router router.
func (a *App) SetupRoutes(r router.Router[*fiber.App]) {
	exportrouter.NewHandler(a.apiConfig()).RegisterRoutes(r)
}

// HTTPHandler returns the net/http export handler.
func (a *App) HTTPHandler() *exporthttp.Handler {
	return exporthttp.NewHandler(a.apiConfig())
}

// Close releases dispatcher subscriptions and the history database.
func (a *App) Close() {
	for _, sub := range a.subscriptions {
		sub.Unsubscribe()
	}
	a.subscriptions = nil
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Errorf("history store close failed: %v", err)
		}
		a.db = nil
	}
}

func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
