package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/bv-saas/web/internal/api"
	"github.com/bv-saas/web/internal/config"
	"github.com/bv-saas/web/internal/session"
	"github.com/bv-saas/web/internal/upload"
	"github.com/bv-saas/web/internal/web"
)

// exitCode is a process termination code.
type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1
)

// defaultConfigName is looked up next to the executable when -config is not given.
const defaultConfigName = "bvsaas.config.xml"

// Grace period between a termination signal and shutdown so load balancers
// can take the instance out of rotation.
const preStopWait = 5 * time.Second

// Shutdown timeout for the http server.
const shutdownTimeout = 5 * time.Second

var errSignalReceived = errors.New("signal received")

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(int(gracefulMain()))
}

// gracefulMain releases resources gracefully upon termination.
// When we call os.Exit defer statements do not run resulting in unclean process shutdown.
func gracefulMain() exitCode {
	var logger log.Logger
	{
		logger = log.NewJSONLogger(log.NewSyncWriter(os.Stderr))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	fs := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file (.xml, .yaml or .yml)")
	v := fs.Bool("v", false, "Show version")

	err := fs.Parse(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return exitSuccess
	}
	if err != nil {
		level.Error(logger).Log("msg", "parsing cli flags failed", "err", err)
		return exitFailure
	}

	if *v {
		fmt.Printf("%s (built %s)\n", Version, BuildTime)
		return exitSuccess
	}

	if *configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			level.Error(logger).Log("msg", "failed to get executable path", "err", err)
			return exitFailure
		}
		*configPath = filepath.Join(filepath.Dir(exePath), defaultConfigName)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		level.Error(logger).Log("msg", "cannot load config", "path", *configPath, "err", err)
		return exitFailure
	}
	if err := cfg.Validate(); err != nil {
		level.Error(logger).Log("msg", "config validation failed", "err", err)
		return exitFailure
	}

	logger = level.NewFilter(logger, levelOption(cfg.Advanced.LogLevel))

	// It's nice to be able to see panics in Logs, hence we monitor for panics after
	// logger has been bootstrapped.
	defer monitorPanic(logger)

	uploader, err := upload.New(upload.Options{
		Mode:      cfg.Upload.Mode,
		BaseURL:   cfg.Upload.APIBaseURL,
		MockDelay: cfg.MockDelay(),
		Timeout:   cfg.RequestTimeout(),
	}, logger)
	if err != nil {
		level.Error(logger).Log("msg", "cannot create uploader", "err", err)
		return exitFailure
	}

	sessions := session.NewManager(uploader, logger)
	sessions.SetMaxSessions(cfg.Session.MaxSessions)
	defer sessions.CloseAll()

	embeddedMode := web.HasEmbeddedFiles()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	api.SetupMiddleware(e, cfg, logger)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Sessions:     sessions,
		Logger:       logger,
		Version:      Version,
		UploaderMode: cfg.Upload.Mode,
		ReadLimit:    cfg.WebSocketReadLimit(),
		UploadsAPI:   cfg.Upload.EnableUploadsAPI,
	}))

	// Register embedded page if available
	if embeddedMode {
		if err := web.RegisterStaticRoutes(e); err != nil {
			level.Warn(logger).Log("msg", "failed to register static routes", "err", err)
		}
	}

	// Configure server with settings from config
	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	printBanner(*configPath, cfg, embeddedMode)

	group, ctx := errgroup.WithContext(context.Background())
	group.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case received := <-sig:
			level.Info(logger).Log("msg", fmt.Sprintf("signal received (waiting %v before terminating): %v", preStopWait, received))
			time.Sleep(preStopWait)
			level.Info(logger).Log("msg", "terminating...")

			return fmt.Errorf("%w: %s", errSignalReceived, received)
		}
	})

	group.Go(func() error {
		level.Info(logger).Log("msg", "listening", "addr", s.Addr, "uploader", cfg.Upload.Mode)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve error: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		return sessions.RunCleanup(ctx, cfg.CleanupInterval(), cfg.SessionTimeout())
	})

	group.Go(func() error {
		<-ctx.Done()

		level.Info(logger).Log("msg", "graceful shutdown of server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		return ctx.Err()
	})

	if err := group.Wait(); err != nil && !isTermination(err) {
		level.Error(logger).Log("msg", fmt.Sprintf("actors stopped with err: %v", err))
		return exitFailure
	}

	level.Info(logger).Log("msg", "actors stopped without errors")

	return exitSuccess
}

// isTermination reports errors that only mean the process was asked to stop.
func isTermination(err error) bool {
	return errors.Is(err, errSignalReceived) || errors.Is(err, context.Canceled)
}

func levelOption(name string) level.Option {
	switch name {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}

func printBanner(configPath string, cfg *config.AppConfig, embedded bool) {
	mode := "API only"
	if embedded {
		mode = "Embedded page"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           BV SaaS Web Server                              ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("║  Mode:       %-45s║\n", mode)
	fmt.Printf("║  Uploader:   %-45s║\n", cfg.Upload.Mode)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	if embedded {
		fmt.Printf("Open http://localhost:%d in your browser\n\n", cfg.Server.Port)
	}
}

// monitorPanic monitors panics and reports them somewhere (e.g. logs, ...).
func monitorPanic(logger log.Logger) {
	if rec := recover(); rec != nil {
		err := fmt.Sprintf("panic: %v \n stack trace: %s", rec, debug.Stack())
		level.Error(logger).Log("err", err)
		panic(err)
	}
}
