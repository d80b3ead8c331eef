package metrics

import (
	"context"
	"log"
	"time"

	"github.com/Conceptual-Machines/algorhythm-api/internal/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	httpStatusServerError    = 500
	cloudwatchTimeoutSeconds = 5
)

// metricPutter is the subset of the CloudWatch client we use
type metricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Client wraps CloudWatch client for custom metrics
type Client struct {
	client      metricPutter
	enabled     bool
	environment string
	namespace   string
	async       bool
}

// NewClient creates a new CloudWatch metrics client, enabled only in production
func NewClient(ctx context.Context, environment, namespace string) (*Client, error) {
	if environment != "production" {
		log.Printf("📊 CloudWatch Metrics: DISABLED (environment: %s)", environment)
		return &Client{
			enabled:     false,
			environment: environment,
			namespace:   namespace,
		}, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("⚠️  Failed to load AWS config for CloudWatch: %v", err)
		return &Client{enabled: false, environment: environment, namespace: namespace}, nil
	}

	log.Printf("📊 CloudWatch Metrics: ✅ ENABLED (namespace: %s)", namespace)

	return &Client{
		client:      cloudwatch.NewFromConfig(cfg),
		enabled:     true,
		environment: environment,
		namespace:   namespace,
		async:       true,
	}, nil
}

// RecordAPIRequest records an API request metric
func (m *Client) RecordAPIRequest(endpoint string, statusCode int, duration time.Duration) {
	if !m.enabled {
		return
	}

	metricName := "APIRequests"
	if statusCode >= httpStatusServerError {
		metricName = "APIErrors"
	}
	dimensions := m.dimensions("Endpoint", endpoint)

	m.dispatch(func(ctx context.Context) {
		m.put(ctx, metricName, 1, types.StandardUnitCount, dimensions)
		m.put(ctx, "APILatency", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, dimensions)
	})
}

// RecordPipelineRun records a pipeline run; failedStage is empty on success
func (m *Client) RecordPipelineRun(duration time.Duration, failedStage string) {
	if !m.enabled {
		return
	}

	m.dispatch(func(ctx context.Context) {
		if failedStage == "" {
			m.put(ctx, "PipelineSuccess", 1, types.StandardUnitCount, m.dimensions())
		} else {
			m.put(ctx, "PipelineFailure", 1, types.StandardUnitCount, m.dimensions("Stage", failedStage))
		}
		m.put(ctx, "PipelineDuration", float64(duration.Milliseconds()), types.StandardUnitMilliseconds, m.dimensions())
	})
}

// RecordTokenUsage records token usage of one stage call
func (m *Client) RecordTokenUsage(stage, model string, usage llm.TokenUsage) {
	if !m.enabled {
		return
	}

	dimensions := m.dimensions("Stage", stage, "Model", model)
	m.dispatch(func(ctx context.Context) {
		m.put(ctx, "LLMTokens/Total", float64(usage.Total), types.StandardUnitCount, dimensions)
		m.put(ctx, "LLMTokens/Input", float64(usage.Input), types.StandardUnitCount, dimensions)
		m.put(ctx, "LLMTokens/Output", float64(usage.Output), types.StandardUnitCount, dimensions)
		if usage.Reasoning > 0 {
			m.put(ctx, "LLMTokens/Reasoning", float64(usage.Reasoning), types.StandardUnitCount, dimensions)
		}
	})
}

// dimensions builds Environment plus the given name/value pairs
func (m *Client) dimensions(pairs ...string) []types.Dimension {
	dims := []types.Dimension{
		{Name: aws.String("Environment"), Value: aws.String(m.environment)},
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		dims = append(dims, types.Dimension{Name: aws.String(pairs[i]), Value: aws.String(pairs[i+1])})
	}
	return dims
}

func (m *Client) dispatch(fn func(ctx context.Context)) {
	if m.async {
		go fn(context.Background())
		return
	}
	fn(context.Background())
}

// put sends a metric to CloudWatch, logging failures
func (m *Client) put(
	ctx context.Context,
	metricName string,
	value float64,
	unit types.StandardUnit,
	dimensions []types.Dimension,
) {
	if !m.enabled || m.client == nil {
		return
	}

	cwCtx, cancel := context.WithTimeout(ctx, cloudwatchTimeoutSeconds*time.Second)
	defer cancel()

	_, err := m.client.PutMetricData(cwCtx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(m.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(metricName),
				Value:      aws.Float64(value),
				Unit:       unit,
				Timestamp:  aws.Time(time.Now()),
				Dimensions: dimensions,
			},
		},
	})
	if err != nil {
		log.Printf("Failed to record %s metric: %v", metricName, err)
	}
}
