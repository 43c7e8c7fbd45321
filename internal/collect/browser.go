// Package collect gathers the raw inputs a run consumes: lab signals
// captured from a headless browser and field data fetched from the
// PageSpeed Insights API. Collection happens before the pipeline runs;
// the core only ever sees the resulting snapshot and payloads.
package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/perfsleuth/perfsleuth/internal/types"
)

// LabCapture is everything one headless page load yields: numeric
// signals for the gate, measured metric values, and raw payloads for
// the analysis tasks.
type LabCapture struct {
	Signals      types.SignalSnapshot
	MetricValues types.MetricValues

	// Payloads per task type: a trace excerpt for network-trace, the
	// document outline for markup, and so on.
	Payloads map[types.TaskType]string
}

// BrowserCollector drives a headless Chrome via chromedp.
type BrowserCollector struct {
	timeout time.Duration
	logger  *zap.Logger
}

// NewBrowserCollector creates a collector with the given page-load
// timeout (default 60s).
func NewBrowserCollector(timeout time.Duration, logger *zap.Logger) *BrowserCollector {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserCollector{timeout: timeout, logger: logger}
}

// perfSnapshotJS pulls navigation/resource timing and document shape
// out of the loaded page in one evaluation.
const perfSnapshotJS = `(() => {
	const nav = performance.getEntriesByType("navigation")[0] || {};
	const resources = performance.getEntriesByType("resource");
	const paints = {};
	for (const p of performance.getEntriesByType("paint")) {
		paints[p.name] = p.startTime;
	}
	let transfer = 0;
	for (const r of resources) transfer += (r.transferSize || 0);
	return JSON.stringify({
		ttfb: nav.responseStart || 0,
		fcp: paints["first-contentful-paint"] || 0,
		entriesCount: resources.length,
		transferBytes: transfer,
		domSize: document.getElementsByTagName("*").length,
		entries: resources.slice(0, 200).map(r => ({
			name: r.name, duration: Math.round(r.duration),
			transferSize: r.transferSize || 0, initiatorType: r.initiatorType,
		})),
	});
})()`

type perfSnapshot struct {
	TTFB          float64 `json:"ttfb"`
	FCP           float64 `json:"fcp"`
	EntriesCount  float64 `json:"entriesCount"`
	TransferBytes float64 `json:"transferBytes"`
	DOMSize       float64 `json:"domSize"`
	Entries       []struct {
		Name          string  `json:"name"`
		Duration      float64 `json:"duration"`
		TransferSize  float64 `json:"transferSize"`
		InitiatorType string  `json:"initiatorType"`
	} `json:"entries"`
}

// Capture loads the URL headlessly and extracts signals, metric values,
// and task payloads.
func (c *BrowserCollector) Capture(ctx context.Context, url string) (*LabCapture, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, c.timeout)
	defer timeoutCancel()

	var rawPerf, outerHTML string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second), // let late resources land
		chromedp.Evaluate(perfSnapshotJS, &rawPerf),
		chromedp.OuterHTML("html", &outerHTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("capturing %s: %w", url, err)
	}

	var snap perfSnapshot
	if err := json.Unmarshal([]byte(rawPerf), &snap); err != nil {
		return nil, fmt.Errorf("decoding performance snapshot: %w", err)
	}
	c.logger.Debug("lab capture complete",
		zap.String("url", url),
		zap.Int("entries", len(snap.Entries)),
		zap.Float64("transfer_bytes", snap.TransferBytes))

	trace, err := json.MarshalIndent(snap.Entries, "", " ")
	if err != nil {
		return nil, fmt.Errorf("encoding trace payload: %w", err)
	}
	markup := outerHTML
	if len(markup) > 50000 {
		markup = markup[:50000]
	}

	capture := &LabCapture{
		Signals: types.SignalSnapshot{
			Data: map[string]float64{
				"ttfbValue":     snap.TTFB,
				"fcpValue":      snap.FCP,
				"entriesCount":  snap.EntriesCount,
				"transferBytes": snap.TransferBytes,
				"domSize":       snap.DOMSize,
			},
			Audits: map[string]bool{},
		},
		MetricValues: types.MetricValues{
			types.MetricTTFB: snap.TTFB,
			types.MetricFCP:  snap.FCP,
		},
		Payloads: map[types.TaskType]string{
			types.TaskNetworkTrace: string(trace),
			types.TaskMarkup:       markup,
			types.TaskLabAnalysis:  rawPerf,
		},
	}
	return capture, nil
}
