package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/helphive/backend/internal/models"
)

func TestRecorderCounters(t *testing.T) {
	r := New()

	r.Transition("", models.StatusPending, "create")
	r.Transition(models.StatusPending, models.StatusOffered, "make_offer")
	r.Transition(models.StatusPending, models.StatusOffered, "make_offer")
	r.Offer(true)
	r.Offer(false)
	r.Offer(false)
	r.Error("accept_offer", "forbidden")

	if got := testutil.ToFloat64(r.transitions.WithLabelValues("none", "pending", "create")); got != 1 {
		t.Fatalf("create transitions = %v", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("pending", "offered", "make_offer")); got != 2 {
		t.Fatalf("offer transitions = %v", got)
	}
	if got := testutil.ToFloat64(r.offers.WithLabelValues("duplicate")); got != 2 {
		t.Fatalf("duplicate offers = %v", got)
	}
	if got := testutil.ToFloat64(r.errors.WithLabelValues("accept_offer", "forbidden")); got != 1 {
		t.Fatalf("errors = %v", got)
	}
}

func TestRecorderHistograms(t *testing.T) {
	r := New()
	r.ObserveStorage("get_request", 3*time.Millisecond)
	r.ObserveLockWait(time.Millisecond)

	if n := testutil.CollectAndCount(r.storage); n != 1 {
		t.Fatalf("expected one storage series, got %d", n)
	}
	if n := testutil.CollectAndCount(r.lockWait); n != 1 {
		t.Fatalf("expected lock wait series, got %d", n)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	r := New()
	r.Offer(true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(body), `helphive_offers_total{result="added"} 1`) {
		t.Fatalf("metrics output missing offer counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatal("expected go collector output")
	}
}
