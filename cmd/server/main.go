package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"github.com/steplogs/viewer/internal/api"
	"github.com/steplogs/viewer/internal/config"
	"github.com/steplogs/viewer/internal/docker"
	"github.com/steplogs/viewer/internal/ingest"
	"github.com/steplogs/viewer/internal/metrics"
	"github.com/steplogs/viewer/internal/parser"
	"github.com/steplogs/viewer/internal/store"
	"github.com/steplogs/viewer/internal/web"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const logHeader = `${time_rfc3339} ${level} ${prefix}`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(cfg)

	if err := ingest.ValidateSchedule(cfg.Ingest.Schedule); err != nil {
		return err
	}

	rules := parser.DefaultLineRules()
	if cfg.Ingest.RulesFile != "" {
		if rules, err = parser.LoadLineRules(cfg.Ingest.RulesFile); err != nil {
			return fmt.Errorf("failed to load line rules: %w", err)
		}
	}

	level := cfg.GetLogLevel()
	api.ExposeErrorDetails = level == log.DEBUG
	ingestLog := newLogger("ingest", level)
	serverLog := newLogger("server", level)

	source, err := docker.NewSource(cfg.Docker.Host, cfg.Docker.APIVersion)
	if err != nil {
		return err
	}
	defer source.Close()

	logStore := store.NewLogStore()

	task := ingest.NewTask(ingest.Config{
		ContainerID: opts.containerID,
		Rules:       rules,
		UseCursor:   cfg.Ingest.UseCursor,
	}, source, logStore, ingestLog)

	scheduler, err := ingest.NewScheduler(task, cfg.Ingest.Schedule, newLogger("scheduler", level))
	if err != nil {
		return err
	}
	scheduler.AllowOverlap = cfg.Ingest.AllowOverlap

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(level)
	api.SetupMiddleware(e)

	if cfg.Advanced.EnableRequestLogging {
		e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/api/health" || path == "/metrics" || strings.HasPrefix(path, "/assets/")
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.Advanced.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Advanced.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
			},
		}))
	}

	if cfg.Server.EnableCORS {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.GetAllowOrigins(),
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}

	if cfg.Advanced.EnableMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		collector, err := metrics.NewCollector(reg, logStore)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
		task.SetObserver(collector)
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	h := api.NewHandler(logStore, task, scheduler, source, Version)
	api.RegisterRoutes(e, h, api.NewWebSocketHandler(logStore, serverLog))

	if web.HasEmbeddedFiles() {
		if err := web.RegisterStaticRoutes(e); err != nil {
			serverLog.Warnf("failed to register static routes: %v", err)
		}
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Step Functions Log Viewer                       ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Container:  %-45s║\n", truncate(opts.containerID, 45))
	fmt.Printf("║  Schedule:   %-45s║\n", cfg.Ingest.Schedule)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", truncate(opts.configPath, 46))
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	scheduler.Start()
	// First pass now rather than at the first cron tick.
	scheduler.Trigger()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.StartServer(s)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		serverLog.Infof("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		serverLog.Warnf("ingestion did not stop cleanly: %v", err)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func newLogger(prefix string, level log.Lvl) *log.Logger {
	l := log.New(prefix)
	l.SetHeader(logHeader)
	l.SetLevel(level)
	return l
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}

type cliOptions struct {
	containerID string
	configPath  string
	port        int
	schedule    string
	logLevel    string
}

func parseFlags(args []string) (*cliOptions, error) {
	opts := &cliOptions{}

	fs := pflag.NewFlagSet("sfn-logs", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sfn-logs [flags] <container-id>\n\nFlags:\n%s", fs.FlagUsages())
	}
	fs.StringVar(&opts.configPath, "config", "", "path to the XML config file (default: next to the executable)")
	fs.IntVarP(&opts.port, "port", "p", 0, "HTTP port, overrides the config file")
	fs.StringVar(&opts.schedule, "schedule", "", "ingestion cron schedule with a seconds field, overrides the config file")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn, error or off")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, errors.New("you need to specify exactly one container id")
	}
	opts.containerID = fs.Arg(0)

	if opts.configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %w", err)
		}
		opts.configPath = filepath.Join(filepath.Dir(exePath), config.DefaultFileName)
	}

	return opts, nil
}

// apply lets explicit flags win over the config file and environment.
func (o *cliOptions) apply(cfg *config.AppConfig) {
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.schedule != "" {
		cfg.Ingest.Schedule = o.schedule
	}
	if o.logLevel != "" {
		cfg.Advanced.LogLevel = o.logLevel
	}
}
