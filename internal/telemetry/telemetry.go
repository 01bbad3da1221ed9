// Package telemetry はOpenTelemetryによる分散トレースの初期化とHTTP計装を提供する。
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
)

// ShutdownFunc は未送信のスパンをフラッシュしてエクスポーターを停止する。
type ShutdownFunc func(ctx context.Context) error

// Config はトレース設定。
type Config struct {
	ServiceName string
	// Endpoint はOTLP/HTTPの送信先。空の場合はエクスポートしない
	Endpoint string
}

// Init はグローバルのTracerProviderとプロパゲーターを設定する。
// Endpointが空の場合はW3C Trace Contextの伝播のみ設定し、何もしないShutdownFuncを返す。
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("telemetry: service name is required")
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if cfg.Endpoint == "" {
		slog.Info("trace export disabled", slog.String("service", cfg.ServiceName))
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := newTraceExporter(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)

	slog.Info("trace export enabled",
		slog.String("service", cfg.ServiceName),
		slog.String("endpoint", cfg.Endpoint),
	)

	return tracerProvider.Shutdown, nil
}

// newTraceExporter はエンドポイント文字列からOTLP/HTTPエクスポーターを生成する。
// "http://"または"https://"で始まる場合はURLとして解釈し、httpなら平文で送信する。
// それ以外はhost:portとみなし平文で送信する。
func newTraceExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if !strings.Contains(endpoint, "://") {
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint: %s", endpoint)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(parsed.Host)}
	if parsed.Path != "" && parsed.Path != "/" {
		opts = append(opts, otlptracehttp.WithURLPath(parsed.Path))
	}
	switch parsed.Scheme {
	case "http":
		opts = append(opts, otlptracehttp.WithInsecure())
	case "https":
	default:
		return nil, fmt.Errorf("invalid OTLP endpoint scheme: %s", parsed.Scheme)
	}

	return otlptracehttp.New(ctx, opts...)
}

// Middleware はサーバー側のスパンを開始するミドルウェアを返す。
// 最も外側に配置し、後続のミドルウェアのログにtrace_idが載るようにする。
// スパン名はルーティング後にchiのルートパターンで確定させ、未マッチのパスはメソッド名のみにする。
func Middleware(serviceName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			span := trace.SpanFromContext(r.Context())
			if pattern := routePattern(r); pattern != "" {
				span.SetName(r.Method + " " + pattern)
				span.SetAttributes(semconv.HTTPRoute(pattern))
			}
		})
		return otelhttp.NewHandler(routed, serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method
			}),
		)
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

// Transport はクライアント側のスパンを記録し、トレースコンテキストを伝播するRoundTripperを返す。
// baseがnilの場合はhttp.DefaultTransportを使う。
func Transport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}

// InstrumentClient はclientのTransportを計装済みのものに差し替えたコピーを返す。
func InstrumentClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	instrumented := *client
	instrumented.Transport = Transport(client.Transport)
	return &instrumented
}
