package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMuxServesLiveness(t *testing.T) {
	srv := httptest.NewServer(Mux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("body = %s, want ok status", body)
	}
}

func TestMuxExposesQueueMetrics(t *testing.T) {
	srv := httptest.NewServer(Mux())
	defer srv.Close()

	JobsSucceeded.WithLabelValues("sync_reviews").Inc()
	JobsRetried.WithLabelValues("sync_reviews").Inc()
	CreditsCharged.Add(3)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, metric := range []string{
		"jobs_succeeded_total",
		"jobs_retried_total",
		"credits_charged_total",
	} {
		if !strings.Contains(string(body), metric) {
			t.Fatalf("metrics output missing %s", metric)
		}
	}
}
