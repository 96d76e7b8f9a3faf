package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler_ServesRegisteredMetrics(t *testing.T) {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "storesync_metrics_test_total",
		Help: "Counter registered by the metrics test",
	})
	if err := Registry.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	defer Registry.Unregister(c)
	c.Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "storesync_metrics_test_total 1") {
		t.Errorf("body does not contain test counter:\n%s", body)
	}
}
