package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/clambin/go-common/http/metrics"
	"github.com/clambin/go-common/http/roundtripper"
	"github.com/clambin/greenhouse-controller/internal/automation"
	"github.com/prometheus/client_golang/prometheus"
	"net/http"
	"strconv"
)

var _ Sink = &HTTPSink{}

// HTTPSink posts commands to a device gateway (e.g. a PLC or Modbus bridge).
type HTTPSink struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPSink returns an HTTPSink that records all requests to the gateway in requestMetrics.
func NewHTTPSink(url string, requestMetrics metrics.RequestMetrics) *HTTPSink {
	return &HTTPSink{
		URL: url,
		HTTPClient: &http.Client{Transport: roundtripper.New(
			roundtripper.WithRequestMetrics(requestMetrics),
			roundtripper.WithRoundTripper(http.DefaultTransport),
		)},
	}
}

// NewRequestMetrics returns the metrics for requests to the device gateway.
func NewRequestMetrics(namespace, subsystem string, labels prometheus.Labels) metrics.RequestMetrics {
	return metrics.NewRequestMetrics(metrics.Options{
		Namespace:   namespace,
		Subsystem:   subsystem,
		ConstLabels: labels,
		LabelValues: func(request *http.Request, code int) (string, string, string) {
			return request.Method, request.URL.Path, strconv.Itoa(code)
		},
	})
}

func (s *HTTPSink) Apply(ctx context.Context, command automation.Command) error {
	body, err := json.Marshal(command)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post: %s", resp.Status)
	}
	return nil
}
