package recognition

import "context"

// MetricsSummary represents aggregated recognition insights.
type MetricsSummary struct {
	TotalAttempts              int64   `json:"total_attempts"`
	RecognizedAttempts         int64   `json:"recognized_attempts"`
	RecognitionRate            float64 `json:"recognition_rate"`
	AverageConfidence          float64 `json:"average_confidence"`
	AverageProcessingLatencyMs float64 `json:"average_processing_latency_ms"`
	Threshold                  float64 `json:"threshold"`
}

// MetricsSummary aggregates recognition metrics from the audit trail.
func (s *Service) MetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := s.repo.AggregateRecognitions(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalAttempts:              aggregation.TotalCount,
		RecognizedAttempts:         aggregation.RecognizedCount,
		AverageConfidence:          aggregation.AverageConfidence,
		AverageProcessingLatencyMs: aggregation.AverageProcessingMs,
		Threshold:                  s.threshold,
	}

	if aggregation.TotalCount > 0 {
		summary.RecognitionRate = float64(aggregation.RecognizedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
