package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Xean001/tubedrop/internal/core/domain"
)

func TestRecorderExposition(t *testing.T) {
	r := NewRecorder()
	r.ItemFinished(domain.WorkflowAudio, domain.StatusSucceeded, "")
	r.ItemFinished(domain.WorkflowAudio, domain.StatusFailed, domain.KindPrivate)
	r.RunFinished(domain.WorkflowAudio, domain.LinkCollection, 3*time.Second)
	r.BytesRetrieved(2048)
	r.Delivered("served")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`tubedrop_items_total{kind="",status="succeeded",workflow="audio"} 1`,
		`tubedrop_items_total{kind="private",status="failed",workflow="audio"} 1`,
		`tubedrop_run_duration_seconds_count{link_kind="collection",workflow="audio"} 1`,
		`tubedrop_retrieved_bytes_total 2048`,
		`tubedrop_deliveries_total{result="served"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition lacks %q", want)
		}
	}
}
