// Package telemetry inicializa tracing e métricas OpenTelemetry e expõe os
// contadores de negócio do pipeline.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/matheusmosca/commerce-settlement/internal/config"
)

const instrumentationName = "github.com/matheusmosca/commerce-settlement"

func newResource(ctx context.Context, serviceName string) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
}

// InitTracer configura o exporter OTLP/HTTP e registra o provider global
func InitTracer(ctx context.Context, serviceName string, cfg config.Telemetry) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	otel.SetTracerProvider(tp)

	return tp, nil
}

// InitMetrics configura o exporter de métricas com leitura periódica
func InitMetrics(ctx context.Context, serviceName string, cfg config.Telemetry) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp, nil
}

// Tracer retorna o tracer do serviço a partir do provider global
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// StartSpan cria um span filho com atributos de pedido
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := Tracer().Start(ctx, operation)
	span.SetAttributes(attribute.String("component", "settlement"))
	span.SetAttributes(attrs...)
	return ctx, span
}

// Metrics agrupa os contadores de negócio
type Metrics struct {
	OrdersCreated    metric.Int64Counter
	Settlements      metric.Int64Counter
	SettlementReplay metric.Int64Counter
	ReceiptsReviewed metric.Int64Counter
	StockMovements   metric.Int64Counter
}

// NewMetrics registra os contadores no meter global. Sem provider
// configurado o meter global é no-op.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(instrumentationName)

	ordersCreated, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders created, by payment method"))
	if err != nil {
		return nil, err
	}
	settlements, err := meter.Int64Counter("settlements_total",
		metric.WithDescription("Settlement attempts, by path and outcome"))
	if err != nil {
		return nil, err
	}
	replays, err := meter.Int64Counter("settlement_replays_total",
		metric.WithDescription("Settlement triggers answered as idempotent replays"))
	if err != nil {
		return nil, err
	}
	reviewed, err := meter.Int64Counter("receipts_reviewed_total",
		metric.WithDescription("Payment receipts reviewed, by action"))
	if err != nil {
		return nil, err
	}
	movements, err := meter.Int64Counter("stock_movements_total",
		metric.WithDescription("Ledger entries appended, by reason"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		OrdersCreated:    ordersCreated,
		Settlements:      settlements,
		SettlementReplay: replays,
		ReceiptsReviewed: reviewed,
		StockMovements:   movements,
	}, nil
}

// MustMetrics é NewMetrics para testes e para o bootstrap
func MustMetrics() *Metrics {
	m, err := NewMetrics()
	if err != nil {
		panic(err)
	}
	return m
}

// Add incrementa c em n com os atributos dados; c nil é ignorado
func Add(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.Add(ctx, n, metric.WithAttributes(attrs...))
}
