// Package main provides the Go-ESign signing service entrypoint.
//
// Go-ESign converts JSON documents to XML, wraps them in a WS-Security SOAP
// envelope and signs them with a GOST R 34.10 certificate. Certificates come
// from PEM files (the file provider) or a PKCS#11 token.
//
// Command line options:
//
//	--config       Path to a YAML configuration file
//	--host         API server hostname (default: 127.0.0.1)
//	--port         API server port (default: 6001)
//	--test-mode    Start in test mode unless a state file says otherwise
//	--version      Show version information
//	--help         Show help message
//
// Logging options:
//
//	--log-level    Logging level: debug, info, warn, error, fatal (default: info)
//	--log-format   Logging format: text or json (default: text)
//	--log-output   Log output: stdout, stderr, or file path (default: stdout)
//
// Every option can also be set in the configuration file or through an
// ESIGN_* environment variable; command line flags take precedence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/SUNET/go-esign/docs/swagger" // Import generated docs
	"github.com/SUNET/go-esign/pkg/api"
	"github.com/SUNET/go-esign/pkg/config"
	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/SUNET/go-esign/pkg/service"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Go-ESign API
// @version 1.0
// @description GOST XML signing service for WS-Security SOAP envelopes
// @description
// @description Go-ESign converts JSON documents to XML, wraps them in a WS-Security SOAP envelope and signs them
// @description with a GOST R 34.10 certificate from a software key store or a PKCS#11 token.
// @termsOfService https://github.com/SUNET/go-esign

// @contact.name SUNET
// @contact.url https://github.com/SUNET/go-esign
// @contact.email noreply@sunet.se

// @license.name BSD-2-Clause
// @license.url https://opensource.org/licenses/BSD-2-Clause

// @host localhost:6001
// @BasePath /

// @schemes http https

// @tag.name Health
// @tag.description Health check and readiness endpoints for Kubernetes and monitoring systems

// @tag.name Status
// @tag.description Server status

// @tag.name Signing
// @tag.description Signing capability, sign requests and outcomes

// @tag.name Certificates
// @tag.description Certificate listing and selection

// @tag.name Settings
// @tag.description Persisted settings

// Version is set at build time using -ldflags
// go build -ldflags "-X main.Version=1.0.0" .
var Version = "dev"

// usage prints the command-line usage information to stderr.
func usage() {
	prog := os.Args[0]
	fmt.Fprintf(os.Stderr, "\nUsage: %s [options]\n", prog)
	fmt.Fprintln(os.Stderr, "Options:")
	fmt.Fprintln(os.Stderr, "  --help         Show this help message and exit.")
	fmt.Fprintln(os.Stderr, "  --version      Show version information and exit.")
	fmt.Fprintln(os.Stderr, "  --config       Path to a YAML configuration file")
	fmt.Fprintln(os.Stderr, "  --host         API server hostname (default: 127.0.0.1)")
	fmt.Fprintln(os.Stderr, "  --port         API server port (default: 6001)")
	fmt.Fprintln(os.Stderr, "  --test-mode    Start in test mode unless a state file says otherwise")
	fmt.Fprintln(os.Stderr, "Logging options:")
	fmt.Fprintln(os.Stderr, "  --log-level    Logging level: debug, info, warn, error, fatal (default: info)")
	fmt.Fprintln(os.Stderr, "  --log-format   Logging format: text or json (default: text)")
	fmt.Fprintln(os.Stderr, "  --log-output   Log output: stdout, stderr, or file path (default: stdout)")
	fmt.Fprintln(os.Stderr, "")
}

// options are the command line flags. Empty values leave the configuration untouched.
type options struct {
	configFile string
	host       string
	port       string
	testMode   bool
	logLevel   string
	logFormat  string
	logOutput  string
}

// loadConfig reads the configuration file and applies the flags that were set.
func loadConfig(opts options, set map[string]bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}
	if set["host"] {
		cfg.Server.Host = opts.host
	}
	if set["port"] {
		cfg.Server.Port = opts.port
	}
	if set["test-mode"] {
		cfg.Signing.TestMode = opts.testMode
	}
	if set["log-level"] {
		cfg.Logging.Level = opts.logLevel
	}
	if set["log-format"] {
		cfg.Logging.Format = opts.logFormat
	}
	if set["log-output"] {
		cfg.Logging.Output = opts.logOutput
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newRouter builds the gin engine serving the API of svc.
func newRouter(cfg *config.Config, svc *service.Service, logger logging.Logger) (*gin.Engine, *api.ServerContext) {
	serverCtx := api.NewServerContext(svc.Orchestrator, logger.With(logging.F("component", "api")))
	serverCtx.Settings = svc.Settings
	serverCtx.MaxRequestSize = cfg.Server.MaxRequestSize
	serverCtx.Metrics = api.NewMetrics()
	serverCtx.RateLimiter = api.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Security.EnableCORS {
		r.Use(api.CORSMiddleware(cfg.Security.AllowedOrigins))
	}

	// Register Swagger UI endpoint
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api.RegisterAPIRoutes(r, serverCtx)
	return r, serverCtx
}

func main() {
	var opts options
	showHelp := flag.Bool("help", false, "Show help message")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.StringVar(&opts.configFile, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&opts.host, "host", "127.0.0.1", "API server hostname")
	flag.StringVar(&opts.port, "port", "6001", "API server port")
	flag.BoolVar(&opts.testMode, "test-mode", false, "Start in test mode")

	// Logging configuration
	flag.StringVar(&opts.logLevel, "log-level", "info", "Logging level (debug, info, warn, error, fatal)")
	flag.StringVar(&opts.logFormat, "log-format", "text", "Logging format (text, json)")
	flag.StringVar(&opts.logOutput, "log-output", "stdout", "Log output (stdout, stderr, or file path)")

	flag.Usage = usage
	flag.Parse()

	if *showHelp {
		usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Println("Version:", Version)
		os.Exit(0)
	}

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	cfg, err := loadConfig(opts, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := service.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to configure logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	svc, err := service.New(cfg, logger)
	if err != nil {
		logger.Error("Failed to start signing service", logging.F("error", err.Error()))
		os.Exit(1)
	}
	defer svc.Close()

	if err := svc.Watch(); err != nil {
		logger.Warn("State file changes will not be picked up", logging.F("error", err.Error()))
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r, serverCtx := newRouter(cfg, svc, logger)
	stopObserving := serverCtx.Metrics.ObserveOutcomes(svc.Orchestrator.Events())
	defer stopObserving()

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	serverCtx.RateLimiter.StartCleanup(time.Minute, stopCleanup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	available := svc.Orchestrator.CheckCapability(ctx)

	listenAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("API server starting",
		logging.F("address", listenAddr),
		logging.F("version", Version),
		logging.F("provider", cfg.Provider.Type),
		logging.F("capability", available),
		logging.F("test_mode", svc.Orchestrator.TestMode()),
		logging.F("log_level", cfg.Logging.Level))
	logger.Info("Swagger UI available", logging.F("url", fmt.Sprintf("http://%s/swagger/index.html", listenAddr)))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("API server failed",
				logging.F("error", err.Error()),
				logging.F("address", listenAddr))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown failed", logging.F("error", err.Error()))
		}
	}
}
