package vision

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/perundhu/perundhu-backend/internal/config"
	"github.com/perundhu/perundhu-backend/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGateway(baseURL string) *Gateway {
	return New(config.VisionConfig{BaseURL: baseURL, Timeout: 5 * time.Second}, newTestLogger())
}

func TestGateway_Extract_Success(t *testing.T) {
	t.Parallel()

	body := `{
		"confidence": 0.85,
		"destinations": [
			{"destination": "chennai", "destination_tamil": "சென்னை", "times": ["6.30", "2.15 PM", "21.00"]},
			{"destination": "salem", "times": []}
		]
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/extract" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ImageURL != "/uploads/board.jpg" {
			t.Errorf("image_url = %s", req.ImageURL)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	result, err := g.Extract(context.Background(), "/uploads/board.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", result.Confidence)
	}
	if len(result.Timings) != 2 {
		t.Fatalf("timings len = %d, want 2", len(result.Timings))
	}

	chennai := result.Timings[0]
	if chennai.Destination != "Chennai" {
		t.Errorf("destination = %q, want Chennai", chennai.Destination)
	}
	if chennai.DestinationTamil == nil || *chennai.DestinationTamil != "சென்னை" {
		t.Errorf("destination_tamil not carried over")
	}
	if len(chennai.Morning) != 1 || chennai.Morning[0] != "6.30" {
		t.Errorf("morning = %v, want [6.30]", chennai.Morning)
	}
	if len(chennai.Afternoon) != 1 || chennai.Afternoon[0] != "2.15 PM" {
		t.Errorf("afternoon = %v, want [2.15 PM]", chennai.Afternoon)
	}
	if len(chennai.Night) != 1 || chennai.Night[0] != "21.00" {
		t.Errorf("night = %v, want [21.00]", chennai.Night)
	}

	if !result.Timings[1].IsEmpty() {
		t.Errorf("salem should have no times")
	}
}

func TestGateway_Extract_UnreadableTimeLandsInAllBuckets(t *testing.T) {
	t.Parallel()

	body := `{
		"confidence": 0.4,
		"destinations": [{"destination": "Madurai", "times": ["garbled"]}]
	}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	result, err := g.Extract(context.Background(), "/uploads/board.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	timing := result.Timings[0]
	for _, bucket := range [][]string{timing.Morning, timing.Afternoon, timing.Night} {
		if len(bucket) != 1 || bucket[0] != "garbled" {
			t.Errorf("bucket = %v, want [garbled]", bucket)
		}
	}
}

func TestGateway_Extract_MalformedPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json`},
		{"missing destinations", `{"confidence": 0.9}`},
		{"empty destinations", `{"confidence": 0.9, "destinations": []}`},
		{"destination not an object", `{"destinations": ["Chennai"]}`},
		{"destination without name", `{"destinations": [{"times": ["6.30"]}]}`},
		{"times not a list", `{"destinations": [{"destination": "Chennai", "times": "6.30"}]}`},
		{"time not a string", `{"destinations": [{"destination": "Chennai", "times": [630]}]}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			g := newGateway(srv.URL)
			_, err := g.Extract(context.Background(), "/uploads/board.jpg")
			if !errors.Is(err, domain.ErrExtractionFailed) {
				t.Fatalf("error = %v, want ErrExtractionFailed", err)
			}
		})
	}
}

func TestGateway_Extract_RetriesOn5xx(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"confidence": 0.9, "destinations": [{"destination": "Chennai", "times": ["6.30"]}]}`))
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	result, err := g.Extract(context.Background(), "/uploads/board.jpg")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(result.Timings) != 1 {
		t.Errorf("timings len = %d, want 1", len(result.Timings))
	}
}

func TestGateway_Extract_CancelledDuringRetryBackoff(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	g := newGateway(srv.URL)
	start := time.Now()
	_, err := g.Extract(ctx, "/uploads/board.jpg")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
	// The deadline fires mid-backoff; the call must not sit out the full pause.
	if elapsed := time.Since(start); elapsed >= retryBackoff {
		t.Errorf("returned after %v, want before the %v backoff", elapsed, retryBackoff)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestGateway_Extract_PersistentServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	_, err := g.Extract(context.Background(), "/uploads/board.jpg")
	if !errors.Is(err, domain.ErrExtractionUnavailable) {
		t.Fatalf("error = %v, want ErrExtractionUnavailable", err)
	}
}

func TestGateway_Extract_ClientError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	g := newGateway(srv.URL)
	_, err := g.Extract(context.Background(), "/uploads/board.jpg")
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("error = %v, want ErrExtractionFailed", err)
	}
}

func TestGateway_Extract_Unreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	g := newGateway(srv.URL)
	_, err := g.Extract(context.Background(), "/uploads/board.jpg")
	if !errors.Is(err, domain.ErrExtractionUnavailable) {
		t.Fatalf("error = %v, want ErrExtractionUnavailable", err)
	}
}

func TestGateway_Available(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/health" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			w.Write([]byte(`{"status": "healthy"}`))
		}))
		defer srv.Close()

		if !newGateway(srv.URL).Available(context.Background()) {
			t.Error("Available() = false, want true")
		}
	})

	t.Run("down", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		if newGateway(srv.URL).Available(context.Background()) {
			t.Error("Available() = true, want false")
		}
	})
}
