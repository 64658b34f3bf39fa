// Package exporter pushes evaluation metrics to an OpenTelemetry collector
// as OTLP gauges, over gRPC or HTTP/protobuf.
package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/proto"

	"github.com/fidde/churn_dashboard/pkg/models"
)

// Supported protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

const (
	scopeName      = "github.com/fidde/churn_dashboard/internal/exporter"
	defaultTimeout = 10 * time.Second
)

// Config holds exporter configuration.
type Config struct {
	Protocol    string
	Endpoint    string
	ServiceName string
	Timeout     time.Duration
}

// Exporter sends one OTLP request per evaluation.
type Exporter struct {
	protocol   string
	endpoint   string
	timeout    time.Duration
	resource   *resourcepb.Resource
	conn       *grpc.ClientConn
	client     colmetricspb.MetricsServiceClient
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates an exporter. A gRPC connection is established lazily by the
// first export.
func New(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("exporter endpoint is required")
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "churn-dashboard"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exporter{
		protocol: cfg.Protocol,
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		resource: NewResource(cfg.ServiceName, uuid.NewString()),
		logger:   logger,
	}

	switch cfg.Protocol {
	case ProtocolGRPC:
		conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("creating gRPC client for %s: %w", cfg.Endpoint, err)
		}
		e.conn = conn
		e.client = colmetricspb.NewMetricsServiceClient(conn)
	case ProtocolHTTP:
		e.endpoint = metricsURL(cfg.Endpoint)
		e.httpClient = &http.Client{Timeout: cfg.Timeout}
	default:
		return nil, fmt.Errorf("unknown exporter protocol: %s (supported: grpc, http)", cfg.Protocol)
	}

	return e, nil
}

// NewResource describes this process.
func NewResource(serviceName, instanceID string) *resourcepb.Resource {
	return &resourcepb.Resource{
		Attributes: []*commonpb.KeyValue{
			stringAttr("service.name", serviceName),
			stringAttr("service.instance.id", instanceID),
		},
	}
}

// Export sends the metrics of one evaluation.
func (e *Exporter) Export(ctx context.Context, result *models.FilterResult, filters models.FilterSpec) error {
	req := BuildRequest(e.resource, result, filters, time.Now())

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var err error
	if e.protocol == ProtocolGRPC {
		err = e.exportGRPC(ctx, req)
	} else {
		err = e.exportHTTP(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("exporting metrics to %s: %w", e.endpoint, err)
	}

	e.logger.Debug("exported evaluation metrics",
		"model", result.Model.String(),
		"endpoint", e.endpoint,
	)
	return nil
}

func (e *Exporter) exportGRPC(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) error {
	resp, err := e.client.Export(ctx, req)
	if err != nil {
		return err
	}
	if ps := resp.GetPartialSuccess(); ps != nil && ps.GetRejectedDataPoints() > 0 {
		e.logger.Warn("collector rejected data points",
			"rejected", ps.GetRejectedDataPoints(),
			"message", ps.GetErrorMessage(),
		)
	}
	return nil
}

func (e *Exporter) exportHTTP(ctx context.Context, req *colmetricspb.ExportMetricsServiceRequest) error {
	body, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/x-protobuf")

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("collector returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Close releases the gRPC connection.
func (e *Exporter) Close() error {
	if e.conn != nil {
		return e.conn.Close()
	}
	return nil
}

// BuildRequest converts an evaluation into an OTLP request. Undefined
// metrics are left out.
func BuildRequest(resource *resourcepb.Resource, result *models.FilterResult, filters models.FilterSpec, now time.Time) *colmetricspb.ExportMetricsServiceRequest {
	ts := uint64(now.UnixNano())
	attrs := []*commonpb.KeyValue{
		stringAttr("model", result.Model.String()),
		stringAttr("rank_mode", result.RankMode.String()),
		stringAttr("filters", filters.Key()),
	}

	m := result.Metrics
	scores := []struct {
		name   string
		metric models.Metric
	}{
		{"churn.model.accuracy", m.Accuracy},
		{"churn.model.recall", m.Recall},
		{"churn.model.precision", m.Precision},
		{"churn.model.f1", m.F1},
		{"churn.model.roc_auc", m.ROCAUC},
	}

	var metrics []*metricspb.Metric
	for _, s := range scores {
		v, ok := s.metric.Float()
		if !ok {
			continue
		}
		metrics = append(metrics, gauge(s.name, "1", &metricspb.NumberDataPoint{
			Attributes:   attrs,
			TimeUnixNano: ts,
			Value:        &metricspb.NumberDataPoint_AsDouble{AsDouble: v},
		}))
	}

	metrics = append(metrics,
		gauge("churn.filtered.customers", "{customer}", &metricspb.NumberDataPoint{
			Attributes:   attrs,
			TimeUnixNano: ts,
			Value:        &metricspb.NumberDataPoint_AsInt{AsInt: int64(m.Support)},
		}),
		gauge("churn.filtered.churners", "{customer}", &metricspb.NumberDataPoint{
			Attributes:   attrs,
			TimeUnixNano: ts,
			Value:        &metricspb.NumberDataPoint_AsInt{AsInt: int64(m.Positives)},
		}),
	)

	return &colmetricspb.ExportMetricsServiceRequest{
		ResourceMetrics: []*metricspb.ResourceMetrics{{
			Resource: resource,
			ScopeMetrics: []*metricspb.ScopeMetrics{{
				Scope:   &commonpb.InstrumentationScope{Name: scopeName},
				Metrics: metrics,
			}},
		}},
	}
}

func gauge(name, unit string, dp *metricspb.NumberDataPoint) *metricspb.Metric {
	return &metricspb.Metric{
		Name: name,
		Unit: unit,
		Data: &metricspb.Metric_Gauge{
			Gauge: &metricspb.Gauge{DataPoints: []*metricspb.NumberDataPoint{dp}},
		},
	}
}

func stringAttr(key, value string) *commonpb.KeyValue {
	return &commonpb.KeyValue{
		Key:   key,
		Value: &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: value}},
	}
}

func metricsURL(endpoint string) string {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	if !strings.HasSuffix(endpoint, "/v1/metrics") {
		endpoint += "/v1/metrics"
	}
	return endpoint
}
