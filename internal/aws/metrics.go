package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// DefaultMetricsNamespace is used when no namespace is configured.
const DefaultMetricsNamespace = "CRM/Jobs"

// Metrics publishes job outcome metrics to CloudWatch.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics bound to namespace.
func NewMetrics(client CloudWatchAPI, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	return &Metrics{
		CloudWatch: client,
		Namespace:  namespace,
		nowFunc:    time.Now,
	}
}

// RecordJobRun emits JobSucceeded or JobFailed (count 1) and JobDuration
// (milliseconds), all with a Job dimension. A nil Metrics is a no-op.
func (m *Metrics) RecordJobRun(ctx context.Context, job string, succeeded bool, duration time.Duration) error {
	if m == nil || m.CloudWatch == nil {
		return nil
	}

	outcome := "JobSucceeded"
	if !succeeded {
		outcome = "JobFailed"
	}
	now := m.nowFunc()
	dims := []cwtypes.Dimension{{Name: awsString("Job"), Value: &job}}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &m.Namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString(outcome),
				Dimensions: dims,
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitCount,
				Value:      float64Ptr(1),
			},
			{
				MetricName: awsString("JobDuration"),
				Dimensions: dims,
				Timestamp:  &now,
				Unit:       cwtypes.StandardUnitMilliseconds,
				Value:      float64Ptr(float64(duration.Milliseconds())),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func float64Ptr(v float64) *float64 { return &v }
