package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	require.NoError(t, m.Write(&pb))
	if pb.Counter != nil {
		return pb.GetCounter().GetValue()
	}
	return pb.GetGauge().GetValue()
}

func TestObserveSync(t *testing.T) {
	Register()
	Register()

	before := value(t, syncTotal.WithLabelValues("fetch", ResultSuccess))
	ObserveSync("fetch", ResultSuccess, 20*time.Millisecond)
	assert.Equal(t, before+1, value(t, syncTotal.WithLabelValues("fetch", ResultSuccess)))

	ObserveSync("save", ResultRejected, 0)
	assert.GreaterOrEqual(t, value(t, syncTotal.WithLabelValues("save", ResultRejected)), float64(1))
}

func TestEditsAndUnsaved(t *testing.T) {
	before := value(t, edits.WithLabelValues("brightness"))
	IncEdit("brightness")
	assert.Equal(t, before+1, value(t, edits.WithLabelValues("brightness")))

	SetUnsaved(true)
	assert.Equal(t, float64(1), value(t, unsaved))
	SetUnsaved(false)
	assert.Equal(t, float64(0), value(t, unsaved))
}

func TestHandler(t *testing.T) {
	Register()
	IncEdit("mode")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lightsched_edits_total")
}
