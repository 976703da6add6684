package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-calexport/adapters/exportapi"
	"github.com/goliatone/go-calexport/cmd/calexport/config"
	exportcmd "github.com/goliatone/go-calexport/command"
	"github.com/goliatone/go-calexport/export"
	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-router"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

// Version is set at build time via ldflags.
var Version = "dev"

// appFactory builds the application; tests swap in a stub engine.
var appFactory = NewApp

const usage = `calexport renders calendar HTML fragments to PNG or PDF.

Usage:
  calexport [serve] [flags]             run the export HTTP API
  calexport render [flags] <file|->     render a fragment through the same pipeline
  calexport version

Run "calexport <command> --help" for flags.
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		return runServe(args, stderr)
	case "render":
		return runRender(args, stdin, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, Version)
		return nil
	case "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// commonFlags holds flags shared across commands.
type commonFlags struct {
	configPath    string
	profile       string
	chromiumPath  string
	remoteURL     string
	renderTimeout time.Duration
	logLevel      string
	sanitize      bool
}

func registerCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fs.StringVar(&f.profile, "profile", "", "engine profile: local, constrained or remote")
	fs.StringVar(&f.chromiumPath, "chromium-path", "", "browser executable for the local profile")
	fs.StringVar(&f.remoteURL, "remote-url", "", "DevTools endpoint for the remote profile")
	fs.DurationVar(&f.renderTimeout, "render-timeout", 0, "network idle timeout per render")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info or error")
	fs.BoolVar(&f.sanitize, "sanitize", false, "strip scripts and handlers from markup")
}

// loadConfig layers defaults, the config file, the environment and flags.
func loadConfig(fs *flag.FlagSet, f commonFlags, apply func(*config.Config)) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg, nil); err != nil {
		return cfg, err
	}
	if fs.Changed("profile") {
		cfg.Engine.Profile = f.profile
	}
	if fs.Changed("chromium-path") {
		cfg.Engine.ChromiumPath = f.chromiumPath
	}
	if fs.Changed("remote-url") {
		cfg.Engine.RemoteURL = f.remoteURL
	}
	if fs.Changed("render-timeout") {
		cfg.Render.QuiescenceTimeout = f.renderTimeout
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if fs.Changed("sanitize") {
		cfg.Render.Sanitize = f.sanitize
	}
	if apply != nil {
		apply(&cfg)
	}
	return cfg, cfg.Validate()
}

func setMaxProcs(logger *SimpleLogger) {
	// maxprocs.Set only fails on an invalid GOMAXPROCS value; runtime defaults apply then.
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Debugf)); err != nil {
		logger.Errorf("maxprocs: %v", err)
	}
}

func runServe(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	registerCommonFlags(fs, &common)
	host := fs.String("host", "", "listen host")
	port := fs.StringP("port", "p", "", "listen port")
	transport := fs.String("transport", "", "fiber or http")
	maxConcurrent := fs.Int("max-concurrent", 0, "concurrent engines (0 sizes from GOMAXPROCS)")
	historyDSN := fs.String("history-dsn", "", "SQLite DSN for render history")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs, common, func(cfg *config.Config) {
		if fs.Changed("host") {
			cfg.Server.Host = *host
		}
		if fs.Changed("port") {
			cfg.Server.Port = *port
		}
		if fs.Changed("transport") {
			cfg.Server.Transport = *transport
		}
		if fs.Changed("max-concurrent") {
			cfg.Render.MaxConcurrent = *maxConcurrent
		}
		if fs.Changed("history-dsn") {
			cfg.History.DSN = *historyDSN
		}
	})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := NewSimpleLogger("calexport", ParseLevel(cfg.Logging.Level), stderr)
	setMaxProcs(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := appFactory(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer app.Close()

	if cfg.Server.Transport == "http" {
		return serveHTTP(ctx, app)
	}
	return serveFiber(ctx, app, stderr)
}

func serveFiber(ctx context.Context, app *App, stderr io.Writer) error {
	srv := router.NewFiberAdapter(fiberAppInitializer(app.Config, stderr))
	app.SetupRoutes(srv.Router())

	addr := app.Config.Addr()
	errCh := make(chan error, 1)
	go func() {
		app.Logger.Infof("listening on http://%s (fiber)", addr)
		errCh <- srv.Serve(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.Logger.Infof("shutting down server")
	shutdownCtx, cancel := shutdownContext()
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func fiberAppInitializer(cfg config.Config, stderr io.Writer) func(*fiber.App) *fiber.App {
	return func(*fiber.App) *fiber.App {
		fiberApp := fiber.New(fiber.Config{
			AppName:               "calexport " + Version,
			DisableStartupMessage: true,
			// Leave room above the decoder limit so oversize bodies get the JSON 400.
			BodyLimit: int(bodyLimit(cfg)) + 64<<10,
		})
		fiberApp.Use(fiberrecover.New())
		fiberApp.Use(fiberlogger.New(fiberlogger.Config{
			Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
			Output: stderr,
		}))
		return fiberApp
	}
}

func bodyLimit(cfg config.Config) int64 {
	if cfg.Server.MaxBodyBytes > 0 {
		return cfg.Server.MaxBodyBytes
	}
	return exportapi.DefaultMaxBodyBytes
}

func serveHTTP(ctx context.Context, app *App) error {
	mux := http.NewServeMux()
	app.HTTPHandler().RegisterRoutes(mux)

	server := &http.Server{
		Addr:              app.Config.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		app.Logger.Infof("listening on http://%s (net/http)", server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.Logger.Infof("shutting down server")
	shutdownCtx, cancel := shutdownContext()
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runRender(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	registerCommonFlags(fs, &common)
	mode := fs.StringP("mode", "m", string(export.ModePDF), "image or pdf")
	out := fs.StringP("output", "o", "", "output path (default: dated calendar filename, - for stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("render expects exactly one input file (or - for stdin)")
	}

	cfg, err := loadConfig(fs, common, func(cfg *config.Config) {
		cfg.History.Enabled = false
		cfg.Render.MaxConcurrent = 1
	})
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := NewSimpleLogger("calexport", ParseLevel(cfg.Logging.Level), stderr)
	setMaxProcs(logger)

	markup, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := appFactory(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}
	defer app.Close()

	artifact, err := dispatcher.DispatchWithResult[exportcmd.ExportCalendar, export.Artifact](ctx, exportcmd.ExportCalendar{
		Markup: markup,
		Mode:   export.Mode(strings.ToLower(*mode)),
	})
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	target := *out
	if target == "" {
		target = artifact.Filename
	}
	if target == "-" {
		_, err := stdout.Write(artifact.Bytes)
		return err
	}
	if err := os.WriteFile(target, artifact.Bytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	logger.Infof("wrote %s (%d bytes)", filepath.Clean(target), len(artifact.Bytes))
	return nil
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
