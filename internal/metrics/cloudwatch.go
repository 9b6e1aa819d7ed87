package metrics

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/ErikVieiraFer/alanocrypto-admin-sub000/logger"
)

//go:embed CWdash.json
var dashboardTemplate string

// cloudWatchAPI is the subset of the CloudWatch client used here.
type cloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
	PutDashboard(ctx context.Context, params *cloudwatch.PutDashboardInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutDashboardOutput, error)
}

type cloudWatchState struct {
	client        cloudWatchAPI
	namespace     string
	dashboardName string
	region        string
}

var (
	cwState atomic.Pointer[cloudWatchState]

	// cloudWatchPublishInterval bounds how often a single metric is sent.
	cloudWatchPublishInterval = 30 * time.Second
	timeNow                   = time.Now
	publishMetricsFunc        = publishMetrics

	lastPublishMu sync.Mutex
	lastPublish   = make(map[string]time.Time)
)

func init() {
	cwState.Store(&cloudWatchState{
		namespace:     "Signalbot",
		dashboardName: "Signalbot",
	})
}

// InitCloudWatch creates the CloudWatch client for region and applies the
// embedded dashboard. Failures are logged and leave publishing disabled.
func InitCloudWatch(ctx context.Context, region, namespace, dashboard string) {
	log := logger.GetLogger().WithComponent("cloudwatch")

	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	state := newCloudWatchState(cloudwatch.NewFromConfig(cfg), namespace, dashboard, cfg.Region)
	if state.region == "" {
		state.region = region
	}
	cwState.Store(state)

	log.WithFields(logger.Fields{
		"region":    state.region,
		"namespace": state.namespace,
	}).Info("initialized CloudWatch client")

	if err := CreateDashboardFromTemplate(ctx); err != nil {
		log.WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}

func newCloudWatchState(client cloudWatchAPI, namespace, dashboard, region string) *cloudWatchState {
	state := &cloudWatchState{client: client, namespace: "Signalbot", dashboardName: "Signalbot", region: region}
	if namespace != "" {
		state.namespace = namespace
	}
	if dashboard != "" {
		state.dashboardName = dashboard
	}
	return state
}

// EmitMetric logs the metric, hands it to the registered handlers and
// publishes it to CloudWatch when a client is configured.
func EmitMetric(log *logger.Log, component string, metric string, value interface{}, metricType string, fields logger.Fields) {
	metricEvent, ok := recordMetric(log, component, metric, value, metricType, fields)
	if !ok {
		return
	}

	numericValue, ok := toFloat64(metricEvent.Value)
	if !ok {
		logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{"metric": metricEvent.Name}).Debug("non-numeric metric value; skipping publish")
		return
	}

	publishMetricDatum(metricEvent, numericValue)
}

// CreateDashboardFromTemplate renders the embedded dashboard for the current
// namespace and region and uploads it.
func CreateDashboardFromTemplate(ctx context.Context) error {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return nil
	}

	body := renderDashboard(state.namespace, state.region)
	if !json.Valid([]byte(body)) {
		return fmt.Errorf("dashboard template is not valid JSON after substitution")
	}

	_, err := state.client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(state.dashboardName),
		DashboardBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("put dashboard %s: %w", state.dashboardName, err)
	}

	logger.GetLogger().WithComponent("cloudwatch").Debug("updated CloudWatch dashboard from template")
	return nil
}

func renderDashboard(namespace, region string) string {
	body := dashboardTemplate
	if namespace != "" {
		body = strings.ReplaceAll(body, "\"Signalbot\"", fmt.Sprintf("%q", namespace))
	}
	if region != "" {
		body = strings.ReplaceAll(body, "\"us-east-1\"", fmt.Sprintf("%q", region))
	}
	return body
}

func publishMetricDatum(metric Metric, value float64) {
	state := cwState.Load()
	if state == nil || state.client == nil {
		return
	}

	key := metric.Component + "/" + metric.Name
	if field, ok := metric.Fields["field"].(string); ok {
		key += "/" + field
	}
	now := timeNow()
	lastPublishMu.Lock()
	if last, ok := lastPublish[key]; ok && now.Sub(last) < cloudWatchPublishInterval {
		lastPublishMu.Unlock()
		return
	}
	lastPublish[key] = now
	lastPublishMu.Unlock()

	unit := cwtypes.StandardUnitCount
	if rawUnit, ok := metric.Fields["unit"].(string); ok {
		if parsed, found := metricUnitFromString(rawUnit); found {
			unit = parsed
		}
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(metric.Component)}}
	for k, v := range metric.Fields {
		if k == "unit" {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	data := []cwtypes.MetricDatum{{
		MetricName: aws.String(metric.Name),
		Dimensions: dims,
		Timestamp:  aws.Time(metric.Timestamp),
		Unit:       unit,
		Value:      aws.Float64(value),
	}}
	publishMetricsFunc(context.Background(), state, data)
}

func publishMetrics(ctx context.Context, state *cloudWatchState, data []cwtypes.MetricDatum) {
	if state == nil || state.client == nil || len(data) == 0 {
		return
	}

	if _, err := state.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(state.namespace),
		MetricData: data,
	}); err != nil {
		logger.GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}

	names := make([]string, 0, len(data))
	for _, datum := range data {
		if datum.MetricName != nil {
			names = append(names, *datum.MetricName)
		}
	}
	logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{"metrics": strings.Join(names, ",")}).Debug("published metrics to CloudWatch")
}

func resetMetricPublishTimes() {
	lastPublishMu.Lock()
	lastPublish = make(map[string]time.Time)
	lastPublishMu.Unlock()
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func metricUnitFromString(unit string) (cwtypes.StandardUnit, bool) {
	switch strings.ToLower(unit) {
	case "count":
		return cwtypes.StandardUnitCount, true
	case "percent":
		return cwtypes.StandardUnitPercent, true
	case "seconds":
		return cwtypes.StandardUnitSeconds, true
	case "milliseconds":
		return cwtypes.StandardUnitMilliseconds, true
	default:
		return cwtypes.StandardUnitCount, false
	}
}
