// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles and runs the book QA HTTP service.
//
// It coordinates every component of the service: the corpus search
// provider, the retrieval and refusal pipeline, the LLM client, HTTP
// routing via Gin, OpenTelemetry tracing, and Prometheus metrics.
//
// # Lifecycle
//
//	cfg := orchestrator.Config{Port: 8000}
//	svc, err := orchestrator.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/AleutianAI/AleutianBookQA/pkg/config"
	"github.com/AleutianAI/AleutianBookQA/services/corpus"
	"github.com/AleutianAI/AleutianBookQA/services/llm"
	"github.com/AleutianAI/AleutianBookQA/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianBookQA/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianBookQA/services/rag/answer"
	"github.com/AleutianAI/AleutianBookQA/services/rag/assembler"
	"github.com/AleutianAI/AleutianBookQA/services/rag/grounding"
	"github.com/AleutianAI/AleutianBookQA/services/rag/prompt"
	"github.com/AleutianAI/AleutianBookQA/services/rag/refusal"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service abstracts the service lifecycle for testing and alternative
// implementations. Run blocks and should be called at most once.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing. Callers
	// must not modify routes after construction.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds service construction options. All fields are optional;
// zero values fall back to the loaded YAML config and environment.
type Config struct {
	// Port is the HTTP server port. Default: the YAML config port.
	Port int

	// EnableMetrics enables the Prometheus /metrics endpoint.
	// Default: true.
	EnableMetrics *bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: OTEL_EXPORTER_OTLP_ENDPOINT or aleutian-otel-collector:4317.
	OTelEndpoint string

	// Pipeline carries the tunables normally loaded from the YAML file.
	// Tests inject it directly; zero value loads config.Global.
	Pipeline *config.BookQAConfig

	// Provider overrides the corpus backend. Nil selects by config
	// (weaviate or static) and environment.
	Provider corpus.SearchProvider

	// LLMClient overrides the model backend. Nil selects by
	// LLM_BACKEND_TYPE.
	LLMClient llm.LLMClient
}

// =============================================================================
// Implementation
// =============================================================================

// service wires the pipeline into a runnable HTTP server. All fields
// are read-only after New returns.
type service struct {
	config        Config
	pipeline      config.BookQAConfig
	router        *gin.Engine
	provider      corpus.SearchProvider
	llmClient     llm.LLMClient
	answerService *answer.Service
	tracerCleanup func(context.Context)
}

// New creates a ready-to-run service.
//
// # Description
//
// Initialization order:
//  1. Resolve configuration (injected, YAML file, environment).
//  2. Initialize OpenTelemetry tracing and Prometheus metrics.
//  3. Build the corpus provider (Weaviate, or static demo mode).
//  4. Build the LLM client with outbound rate limiting.
//  5. Wire the retrieval/refusal pipeline.
//  6. Register HTTP routes.
//
// A missing Weaviate endpoint degrades to the static provider with a
// warning rather than failing startup; a missing LLM credential is
// fatal because the service cannot answer anything without a model.
func New(cfg Config) (Service, error) {
	s := &service{config: cfg}

	if cfg.Pipeline != nil {
		s.pipeline = *cfg.Pipeline
	} else {
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		s.pipeline = config.Global
	}
	if s.config.Port <= 0 {
		s.config.Port = s.pipeline.Server.Port
	}
	if s.config.Port <= 0 {
		s.config.Port = 8000
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	if cfg.EnableMetrics == nil || *cfg.EnableMetrics {
		if observability.DefaultMetrics == nil {
			observability.InitMetrics()
		}
		slog.Info("Initialized Prometheus metrics for the query pipeline")
	}

	if err := s.initProvider(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize corpus provider: %w", err)
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.initPipeline()
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until it stops. Cleanup is
// automatic on return.
func (s *service) Run() error {
	defer s.cleanup()
	slog.Info("Starting the book QA server", "port", s.config.Port)
	return s.router.Run(fmt.Sprintf(":%d", s.config.Port))
}

// Router returns the configured Gin engine.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Initialization Helpers
// =============================================================================

// initTracer sets up the OTLP gRPC trace exporter.
//
// The collector endpoint comes from Config.OTelEndpoint, then the
// OTEL_EXPORTER_OTLP_ENDPOINT env var. The gRPC connection is lazy, so
// startup succeeds even when the collector is down; spans are dropped
// until it comes back.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := s.config.OTelEndpoint
	if otelEndpoint == "" {
		otelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if otelEndpoint == "" {
		otelEndpoint = "aleutian-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("bookqa-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// initProvider builds the corpus search provider.
//
// The weaviate provider needs WEAVIATE_SERVICE_URL; when the URL is
// missing or unparsable the service degrades to the empty static
// provider so the refusal pipeline still behaves correctly (every query
// refuses with no relevant content).
func (s *service) initProvider() error {
	if s.config.Provider != nil {
		s.provider = s.config.Provider
		return nil
	}
	defer func() {
		s.provider = instrumentedProvider{s.provider}
	}()

	if s.pipeline.Retrieval.Provider == "static" {
		slog.Info("Using the static in-memory corpus provider (demo mode)")
		s.provider = corpus.NewStaticProvider(nil)
		return nil
	}

	weaviateURL := os.Getenv("WEAVIATE_SERVICE_URL")
	// Sanitize: Trim quotes and whitespace just in case the container
	// runtime passes them literally
	weaviateURL = strings.Trim(weaviateURL, "\"' ")

	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Warn("WEAVIATE_SERVICE_URL not set or empty. Running with an empty static corpus.")
		s.provider = corpus.NewStaticProvider(nil)
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running with an empty static corpus.",
			"url", weaviateURL, "error", err)
		s.provider = corpus.NewStaticProvider(nil)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		return fmt.Errorf("failed to create Weaviate client: %w", err)
	}
	s.provider = corpus.NewWeaviateProvider(client)
	slog.Info("Using the Weaviate corpus provider", "host", parsedURL.Host)
	return nil
}

// initLLMClient builds the model backend with the configured outbound
// rate limit.
func (s *service) initLLMClient() error {
	if s.config.LLMClient != nil {
		s.llmClient = s.config.LLMClient
		return nil
	}
	client, err := llm.NewClientFromEnv()
	if err != nil {
		return err
	}
	s.llmClient = llm.NewRateLimitedClient(client,
		s.pipeline.LLM.RequestsPerSecond, s.pipeline.LLM.Burst)
	return nil
}

// initPipeline wires the retrieval and refusal components from the
// loaded tunables.
func (s *service) initPipeline() {
	overrides := make(map[refusal.Reason]string, len(s.pipeline.Refusal.MessageOverrides))
	for reason, msg := range s.pipeline.Refusal.MessageOverrides {
		overrides[refusal.Reason(reason)] = msg
	}
	catalog := refusal.NewCatalog(overrides)

	patterns := grounding.DefaultPatterns
	if extra := s.pipeline.Grounding.ExtraPatterns; len(extra) > 0 {
		patterns = append(append([]string{}, patterns...), extra...)
	}

	asm := assembler.NewAssembler(s.provider, assembler.Options{
		SearchLimit:          s.pipeline.Retrieval.SearchLimit,
		MaxSentencesPerChunk: s.pipeline.Retrieval.MaxSentencesPerChunk,
	})
	validator := grounding.NewValidator(catalog, grounding.Options{
		Patterns:         patterns,
		OverlapThreshold: s.pipeline.Grounding.OverlapThreshold,
		MinSentenceWords: s.pipeline.Grounding.MinSentenceWords,
	})

	s.answerService = answer.NewService(
		asm,
		refusal.NewGate(catalog),
		validator,
		catalog,
		prompt.NewBuilder(prompt.Options{}),
		s.llmClient,
		answer.Options{MinContextLength: s.pipeline.Refusal.MinContextLength},
	)
}

// initRouter builds the Gin engine with tracing middleware and routes.
func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	router := gin.Default()
	router.Use(otelgin.Middleware("bookqa-service"))
	routes.SetupRoutes(router, s.answerService, s.provider, s.pipeline.Server.APIKey)
	s.router = router
}

// cleanup shuts down the tracer exporter.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Provider Instrumentation
// =============================================================================

// instrumentedProvider times corpus searches for the retrieval latency
// histogram. It forwards the readiness probe of the wrapped provider so
// the health endpoint still sees it.
type instrumentedProvider struct {
	corpus.SearchProvider
}

func (p instrumentedProvider) Search(ctx context.Context, query string, limit int) ([]corpus.Chunk, error) {
	start := time.Now()
	chunks, err := p.SearchProvider.Search(ctx, query, limit)
	if m := observability.DefaultMetrics; m != nil {
		m.RecordRetrieval(time.Since(start).Seconds())
	}
	return chunks, err
}

func (p instrumentedProvider) Ready(ctx context.Context) error {
	if checker, ok := p.SearchProvider.(corpus.ReadinessChecker); ok {
		return checker.Ready(ctx)
	}
	return nil
}
