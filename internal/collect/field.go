package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

const defaultFieldEndpoint = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// FieldClient fetches real-user (CrUX) data and Lighthouse audit flags
// from the PageSpeed Insights API.
type FieldClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
	logger   *zap.Logger
}

// NewFieldClient creates a client for the given API key. An empty key
// is allowed; the public API rate-limits unkeyed requests aggressively.
func NewFieldClient(apiKey string, logger *zap.Logger) *FieldClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FieldClient{
		endpoint: defaultFieldEndpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// psiResponse covers the slice of the PSI payload we consume.
type psiResponse struct {
	LoadingExperience struct {
		Metrics map[string]struct {
			Percentile float64 `json:"percentile"`
			Category   string  `json:"category"`
		} `json:"metrics"`
	} `json:"loadingExperience"`
	LighthouseResult struct {
		Audits map[string]struct {
			Score *float64 `json:"score"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// psiMetricNames maps PSI's field metric keys onto our metric names.
var psiMetricNames = map[string]types.Metric{
	"LARGEST_CONTENTFUL_PAINT_MS":     types.MetricLCP,
	"FIRST_CONTENTFUL_PAINT_MS":       types.MetricFCP,
	"EXPERIMENTAL_TIME_TO_FIRST_BYTE": types.MetricTTFB,
	"INTERACTION_TO_NEXT_PAINT":       types.MetricINP,
	"CUMULATIVE_LAYOUT_SHIFT_SCORE":   types.MetricCLS,
}

// signalNames maps metrics onto the gate's data signal keys.
var signalNames = map[types.Metric]string{
	types.MetricLCP:  "lcpValue",
	types.MetricFCP:  "fcpValue",
	types.MetricTTFB: "ttfbValue",
	types.MetricTBT:  "tbtValue",
	types.MetricINP:  "inpValue",
	types.MetricCLS:  "clsValue",
}

// signalAudits are the lighthouse audits folded into the gate snapshot.
// A failing score (< 0.9) sets the flag.
var signalAudits = []string{
	"render-blocking-resources",
	"unused-javascript",
	"unused-css-rules",
	"uses-text-compression",
	"uses-long-cache-ttl",
	"uses-responsive-images",
}

// Fetch retrieves field data for the URL on the given device class and
// folds it into gate signals plus measured metric values. The raw
// response body is returned as the field-data task payload.
func (c *FieldClient) Fetch(ctx context.Context, pageURL string, device types.DeviceClass) (types.SignalSnapshot, types.MetricValues, string, error) {
	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", string(device))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return types.SignalSnapshot{}, nil, "", fmt.Errorf("building field request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return types.SignalSnapshot{}, nil, "", fmt.Errorf("fetching field data: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.SignalSnapshot{}, nil, "", fmt.Errorf("field API returned %d for %s", resp.StatusCode, pageURL)
	}

	var body psiResponse
	raw := json.NewDecoder(resp.Body)
	if err := raw.Decode(&body); err != nil {
		return types.SignalSnapshot{}, nil, "", fmt.Errorf("decoding field response: %w", err)
	}

	snap := types.SignalSnapshot{
		Data:   map[string]float64{},
		Audits: map[string]bool{},
	}
	values := types.MetricValues{}
	for key, m := range body.LoadingExperience.Metrics {
		metric, ok := psiMetricNames[key]
		if !ok {
			continue
		}
		v := m.Percentile
		if metric == types.MetricCLS {
			v /= 100 // PSI reports CLS ×100
		}
		values[metric] = v
		snap.Data[signalNames[metric]] = v
	}
	for _, name := range signalAudits {
		audit, ok := body.LighthouseResult.Audits[name]
		if ok && audit.Score != nil && *audit.Score < 0.9 {
			snap.Audits[name] = true
		}
	}
	c.logger.Debug("field data fetched",
		zap.String("url", pageURL),
		zap.String("device", string(device)),
		zap.Int("metrics", len(values)),
		zap.Int("failing_audits", len(snap.Audits)))

	payload, err := json.Marshal(body)
	if err != nil {
		return types.SignalSnapshot{}, nil, "", fmt.Errorf("encoding field payload: %w", err)
	}
	return snap, values, string(payload), nil
}
