// Package vision implements the HTTP client for the external timing board
// extraction service. The service answers with a loosely shaped JSON payload;
// the gateway validates and coerces it into typed extracted timings before
// anything downstream sees it.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/perundhu/perundhu-backend/internal/config"
	"github.com/perundhu/perundhu-backend/internal/domain"
)

// Pause before the single retry of a failed extraction request.
const retryBackoff = 500 * time.Millisecond

// Extraction is the validated result of a vision extraction call.
type Extraction struct {
	Timings    []domain.ExtractedTiming
	Confidence float64
}

// Gateway calls the vision extraction sidecar over HTTP.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// New creates a Gateway from the vision section of the config.
func New(cfg config.VisionConfig, logger *slog.Logger) *Gateway {
	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger.With("adapter", "vision"),
	}
}

// Available probes the service health endpoint. A gateway that is not
// available makes extraction requests fail fast with ErrExtractionUnavailable.
func (g *Gateway) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.log.WarnContext(ctx, "vision health probe failed", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

type extractRequest struct {
	ImageURL string `json:"image_url"`
}

// Extract sends the image reference to the extraction service and returns
// the typed timings. Returns domain.ErrExtractionUnavailable when the
// service cannot be reached and domain.ErrExtractionFailed when it answers
// with an error or a payload that cannot be coerced.
func (g *Gateway) Extract(ctx context.Context, imageURL string) (*Extraction, error) {
	body, err := json.Marshal(extractRequest{ImageURL: imageURL})
	if err != nil {
		return nil, fmt.Errorf("vision: encode request: %w", err)
	}

	g.log.DebugContext(ctx, "vision extract request", slog.String("image_url", imageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("vision: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.doWithRetry(ctx, req, body)
	if err != nil {
		g.log.ErrorContext(ctx, "vision request failed", slog.String("image_url", imageURL), slog.String("error", err.Error()))
		return nil, fmt.Errorf("vision: %w: %w", domain.ErrExtractionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("vision: status %d: %w", resp.StatusCode, domain.ErrExtractionUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: status %d: %w", resp.StatusCode, domain.ErrExtractionFailed)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vision: read body: %w", err)
	}

	result, err := coercePayload(raw)
	if err != nil {
		g.log.WarnContext(ctx, "vision payload rejected", slog.String("image_url", imageURL), slog.String("error", err.Error()))
		return nil, err
	}

	g.log.DebugContext(ctx, "vision extract response",
		slog.String("image_url", imageURL),
		slog.Int("destinations", len(result.Timings)),
		slog.Float64("confidence", result.Confidence),
	)

	return result, nil
}

// doWithRetry executes the request with a single retry on 5xx or network
// errors. The request body is rebuilt for the second attempt.
func (g *Gateway) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	resp, err := g.httpClient.Do(req)

	shouldRetry := err != nil || (resp != nil && resp.StatusCode >= 500)
	if !shouldRetry {
		return resp, err
	}

	// Don't retry if context is already cancelled.
	if ctx.Err() != nil {
		return resp, err
	}

	reason := "network error"
	if err == nil && resp != nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	g.log.WarnContext(ctx, "vision retry", slog.String("reason", reason))

	// Close body from the failed attempt before retrying.
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	backoff := time.NewTimer(retryBackoff)
	defer backoff.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-backoff.C:
	}

	retry := req.Clone(ctx)
	retry.Body = io.NopCloser(bytes.NewReader(body))
	resp, err = g.httpClient.Do(retry)
	return resp, err
}

// coercePayload validates the untyped extraction payload and converts it
// into typed timings. The service is not fully trusted: missing or
// wrongly-typed fields reject the payload instead of flowing inward.
func coercePayload(raw []byte) (*Extraction, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("vision: decode json: %w: %w", err, domain.ErrExtractionFailed)
	}

	destinations, ok := payload["destinations"].([]any)
	if !ok {
		return nil, fmt.Errorf("vision: payload missing destinations list: %w", domain.ErrExtractionFailed)
	}
	if len(destinations) == 0 {
		return nil, fmt.Errorf("vision: payload has no destinations: %w", domain.ErrExtractionFailed)
	}

	result := &Extraction{
		Timings: make([]domain.ExtractedTiming, 0, len(destinations)),
	}

	if c, ok := payload["confidence"].(float64); ok {
		result.Confidence = c
	}

	for i, d := range destinations {
		entry, ok := d.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("vision: destination %d is not an object: %w", i, domain.ErrExtractionFailed)
		}

		name, ok := entry["destination"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("vision: destination %d has no name: %w", i, domain.ErrExtractionFailed)
		}

		timing := domain.ExtractedTiming{
			Destination: domain.NormalizePlaceName(name),
		}
		if tamil, ok := entry["destination_tamil"].(string); ok && tamil != "" {
			timing.DestinationTamil = &tamil
		}

		times, err := coerceTimes(entry["times"])
		if err != nil {
			return nil, fmt.Errorf("vision: destination %q: %w", name, err)
		}
		timing.Morning, timing.Afternoon, timing.Night = domain.BucketTimes(times)

		result.Timings = append(result.Timings, timing)
	}

	return result, nil
}

// coerceTimes accepts the times field as a list of strings. A missing or
// empty list is allowed; a destination may carry no readable times.
func coerceTimes(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}

	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("times is not a list: %w", domain.ErrExtractionFailed)
	}

	times := make([]string, 0, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("times[%d] is not a string: %w", i, domain.ErrExtractionFailed)
		}
		if strings.TrimSpace(s) == "" {
			continue
		}
		times = append(times, s)
	}
	return times, nil
}
