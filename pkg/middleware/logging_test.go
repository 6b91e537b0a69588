package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveThrough(logger *zap.Logger, pattern, target string, status int) {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("hello"))
	})
	RequestLogger(logger)(mux).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
}

func TestRequestLogger_LogsRequest(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	serveThrough(zap.New(core), "GET /api/deploy-tasks/{tid}", "/api/deploy-tasks/123", http.StatusAccepted)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, zapcore.DebugLevel, entry.Level)
	fields := entry.ContextMap()
	assert.Equal(t, int64(http.StatusAccepted), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.Equal(t, "GET /api/deploy-tasks/{tid}", fields["route"])
	assert.Equal(t, "/api/deploy-tasks/123", fields["path"])
}

func TestRequestLogger_ServerErrorsLogAtWarn(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	serveThrough(zap.New(core), "GET /boom", "/boom", http.StatusInternalServerError)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}

func TestRequestLogger_CountsByPattern(t *testing.T) {
	const pattern = "GET /api/configs/{cid}/preview"
	before := testutil.ToFloat64(httpRequests.WithLabelValues(pattern, "200"))

	serveThrough(nil, pattern, "/api/configs/a/preview", http.StatusOK)
	serveThrough(nil, pattern, "/api/configs/b/preview", http.StatusOK)

	assert.Equal(t, before+2, testutil.ToFloat64(httpRequests.WithLabelValues(pattern, "200")))
}

func TestRequestLogger_UnmatchedRoute(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "404"))

	serveThrough(nil, "GET /known", "/unknown", http.StatusOK)

	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("unmatched", "404")))
}
