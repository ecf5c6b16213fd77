// Command checkstream runs the inline LLM guardrail streaming proxy: the
// chat-completion surface on its configured listen address, and the admin
// surface (health, readiness, policy reload, metrics) on a separate one.
//
// Usage:
//
//	checkstream -models models.yaml -catalog catalog.yaml -admin-addr :9090
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Skelf-Research/checkstream-sub000/internal/admin"
	"github.com/Skelf-Research/checkstream-sub000/internal/audit"
	"github.com/Skelf-Research/checkstream-sub000/internal/classifier"
	"github.com/Skelf-Research/checkstream-sub000/internal/config"
	"github.com/Skelf-Research/checkstream-sub000/internal/controlplane"
	"github.com/Skelf-Research/checkstream-sub000/internal/extract"
	"github.com/Skelf-Research/checkstream-sub000/internal/obslog"
	"github.com/Skelf-Research/checkstream-sub000/internal/phase"
	"github.com/Skelf-Research/checkstream-sub000/internal/proxy"
	"github.com/Skelf-Research/checkstream-sub000/internal/registry"
	"github.com/Skelf-Research/checkstream-sub000/internal/registry/remote"
	"github.com/Skelf-Research/checkstream-sub000/internal/workerpool"
)

const defaultReadHeaderTimeout = 10 * time.Second

var (
	modelCatalogPath = flag.String("models", "models.yaml", "path to the model catalog YAML")
	catalogPath      = flag.String("catalog", "catalog.yaml", "path to the classifier+pipeline catalog YAML")
	adminAddr        = flag.String("admin-addr", ":9090", "listen address for the admin surface")
	auditLogPath     = flag.String("audit-log", "data/audit.log", "path to the append-only audit log")
	workerPoolSize   = flag.Int64("worker-pool-size", 4, "max concurrent ML classifier invocations")

	s3Bucket   = flag.String("s3-bucket", "", "S3 bucket for remote classifier artifacts (optional)")
	s3Region   = flag.String("s3-region", "", "S3 region override (optional)")
	s3CacheDir = flag.String("s3-cache-dir", "data/remote-cache", "local cache directory for fetched remote artifacts")

	redisAddr = flag.String("redis-addr", "", "if set, mirror audit records to this Redis address in addition to the file log")
	redisKey  = flag.String("redis-key", "checkstream:audit", "Redis list key used by the audit mirror sink")

	cpBundleURL      = flag.String("control-plane-bundle-url", "", "if set, poll this URL for policy bundle updates")
	cpTokenURL       = flag.String("control-plane-token-url", "", "OAuth2 token endpoint for control-plane authentication")
	cpClientID       = flag.String("control-plane-client-id", "", "OAuth2 client ID for control-plane authentication")
	cpClientSecret   = flag.String("control-plane-client-secret", "", "OAuth2 client secret for control-plane authentication")
	cpPollInterval   = flag.Duration("control-plane-poll-interval", 30*time.Second, "interval between control-plane bundle polls")
	shutdownDeadline = flag.Duration("shutdown-timeout", 15*time.Second, "grace period for draining in-flight requests on shutdown")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A tracer provider with no span processor or exporter still runs the
	// real SDK's sampling and span-lifecycle machinery; operators wire an
	// exporter (OTLP, etc.) by setting OTEL_EXPORTER_OTLP_ENDPOINT and
	// swapping in the corresponding exporter package, which spec scope
	// leaves to deployment-specific choice (SPEC_FULL.md §11).
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	store, err := config.NewStore(*modelCatalogPath, *catalogPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fetcher, err := buildFetcher(ctx)
	if err != nil {
		return fmt.Errorf("build remote fetcher: %w", err)
	}

	pool := workerpool.New(*workerPoolSize)
	reg := registry.New(store, fetcher, pool)

	emergency, err := buildEmergencyClassifier(ctx, reg, store)
	if err != nil {
		return fmt.Errorf("build emergency classifier: %w", err)
	}

	engine := phase.New(store, reg.Lookup(), emergency)

	extractor, err := extract.New()
	if err != nil {
		return fmt.Errorf("build extractor: %w", err)
	}

	sink, exporter, err := buildAuditSink(*auditLogPath)
	if err != nil {
		return fmt.Errorf("build audit sink: %w", err)
	}
	chain := audit.NewChain(sink)
	defer chain.Close()

	proxySrv := proxy.NewServer(store, engine, extractor, chain)
	proxyHTTP := &http.Server{
		Addr:              store.Current().Catalog.Proxy.ListenAddress,
		Handler:           otelhttp.NewHandler(proxySrv.Handler(), "checkstream.proxy"),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	adminOpts := []admin.ServerOption{admin.WithAddr(*adminAddr)}
	if exporter != nil {
		adminOpts = append(adminOpts, admin.WithExporter(exporter))
	}
	adminSrv := admin.NewServer(store, reg, adminOpts...)

	if err := reg.Preload(ctx); err != nil {
		obslog.Error("checkstream: preload failed, starting degraded", "error", err)
	} else {
		adminSrv.SetReady(true)
	}

	var poller *controlplane.Poller
	if *cpBundleURL != "" {
		cc := clientcredentials.Config{
			ClientID:     *cpClientID,
			ClientSecret: *cpClientSecret,
			TokenURL:     *cpTokenURL,
		}
		poller = controlplane.NewPoller(store, cc, *cpBundleURL, controlplane.WithInterval(*cpPollInterval))
		go poller.Run(ctx)
	}

	errCh := make(chan error, 2)
	go func() {
		obslog.Info("checkstream: proxy listening", "addr", proxyHTTP.Addr)
		if err := proxyHTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("proxy server: %w", err)
		}
	}()
	go func() {
		obslog.Info("checkstream: admin surface listening", "addr", *adminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("admin server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		obslog.Info("checkstream: shutdown signal received")
	case err := <-errCh:
		obslog.Error("checkstream: server failed, shutting down", "error", err)
	}

	if poller != nil {
		poller.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownDeadline)
	defer cancel()
	_ = proxyHTTP.Shutdown(shutdownCtx)
	_ = adminSrv.Shutdown(shutdownCtx)

	return nil
}

// buildFetcher wires an S3-backed remote classifier artifact fetcher when
// -s3-bucket is set, leaving the registry to rely only on local and
// builtin sources otherwise.
func buildFetcher(ctx context.Context) (remote.Fetcher, error) {
	if *s3Bucket == "" {
		return nil, nil
	}
	return remote.NewS3Fetcher(ctx, *s3Bucket, *s3Region, *s3CacheDir)
}

// buildEmergencyClassifier resolves the catalog's configured
// emergency_classifier (spec §4.5's tier-A-only last resort) through the
// registry so it benefits from the same caching and validation as every
// other classifier reference.
func buildEmergencyClassifier(ctx context.Context, reg *registry.Registry, store *config.Store) (classifier.Classifier, error) {
	name := store.Current().Catalog.Proxy.EmergencyClassifier
	if name == "" {
		return nil, nil
	}
	return reg.Get(ctx, name)
}

// buildAuditSink wires the default file-backed hash-chained log and,
// when -redis-addr is set, mirrors every record to Redis as well. Export
// (admin.Exporter) is only available when the file sink is reachable
// directly, since RedisSink and the resulting MultiSink don't support
// range export by self_hash.
func buildAuditSink(path string) (audit.Sink, admin.Exporter, error) {
	fileSink, err := audit.NewFileSink(path)
	if err != nil {
		return nil, nil, err
	}
	if *redisAddr == "" {
		return fileSink, fileSink, nil
	}

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	redisSink := audit.NewRedisSink(client, *redisKey)
	return audit.NewMultiSink(fileSink, redisSink), fileSink, nil
}
