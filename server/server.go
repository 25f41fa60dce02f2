package server

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/n9te9/federation-executor/gateway"
)

const gatewayVersion = "v0.1.0"

// Run loads gateway.yaml, builds the gateway, and serves it with
// graceful shutdown on SIGTERM/SIGINT.
func Run() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	settings, err := gateway.LoadOption("gateway.yaml")
	if err != nil {
		log.Fatalf("failed to load gateway settings: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer cancel()

	gw, err := gateway.New(ctx, *settings)
	if err != nil {
		log.Fatalf("failed to build gateway: %v", err)
	}

	handler := http.Handler(gw)
	if settings.Opentelemetry.Tracing.Enable {
		handler = otelhttp.NewHandler(handler, settings.ServiceName)
	}

	timeout, err := settings.Timeout()
	if err != nil {
		log.Fatalf("failed to parse timeout duration: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: handler,
	}

	var shutdownTracer func(context.Context) error
	if settings.Opentelemetry.Tracing.Enable {
		shutdownTracer, err = gateway.InitTracer(ctx, settings.ServiceName, gatewayVersion)
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
	}

	go func() {
		log.Printf("starting gateway server on port %d", settings.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("gateway server failed: %v", err)
		}
	}()

	<-ctx.Done()

	timeoutCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Println("shutting down gateway server...")
	if err := srv.Shutdown(timeoutCtx); err != nil {
		log.Fatalf("failed to shutdown gateway server: %v", err)
	}

	if shutdownTracer != nil {
		if err := shutdownTracer(timeoutCtx); err != nil {
			log.Fatalf("failed to shutdown tracer: %v", err)
		}
	}

	log.Println("gateway server stopped")
}

// Init writes a starter gateway.yaml to the current directory.
func Init() error {
	const template = `endpoint: /graphql
service_name: federation-gateway
port: 8080
timeout_duration: 5s
subgraph_timeout_duration: 3s
enable_hang_over_request_header: true
enable_debug_checks: false
header_allowlist:
  - Authorization
  - X-Request-Id
subgraphs: []
opentelemetry:
  tracing:
    enable: false
`
	if _, err := os.Stat("gateway.yaml"); err == nil {
		return fmt.Errorf("gateway.yaml already exists")
	}

	if err := os.WriteFile("gateway.yaml", []byte(template), 0o644); err != nil {
		return fmt.Errorf("writing gateway.yaml: %w", err)
	}

	fmt.Println("wrote gateway.yaml")
	return nil
}
