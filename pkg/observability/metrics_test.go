package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotKeys(t *testing.T) {
	snapshot := Snapshot()
	for _, key := range []string{"webhook_processed", "webhook_failed", "webhook_ignored", "webhook_replayed"} {
		_, ok := snapshot[key]
		assert.True(t, ok, key)
	}
	assert.Len(t, snapshot, 4)
}

func TestSnapshotReflectsIncrements(t *testing.T) {
	before := Snapshot()["webhook_processed"]
	WebhookProcessed.Inc()
	after := Snapshot()["webhook_processed"]
	assert.Equal(t, before+1, after)
}

func TestHandlerExposition(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; version=0.0.4; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	lines := strings.Split(strings.TrimSuffix(body, "\n"), "\n")
	require.Len(t, lines, 12)

	// Series appear in fixed order, each as HELP, TYPE, value.
	expected := []string{"webhook_processed_total", "webhook_failed_total", "webhook_ignored_total", "webhook_replayed_total"}
	for i, name := range expected {
		assert.Equal(t, "# HELP "+name, lines[i*3][:len("# HELP ")+len(name)])
		assert.Equal(t, "# TYPE "+name+" counter", lines[i*3+1])
		assert.True(t, strings.HasPrefix(lines[i*3+2], name+" "), lines[i*3+2])
	}
}
