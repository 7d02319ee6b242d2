package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rescue-ranger/internal/pipeline"
)

type fakeIngestor struct {
	result  *pipeline.IngestResult
	err     error
	lastRaw *pipeline.RawReading
}

func (f *fakeIngestor) Submit(ctx context.Context, raw *pipeline.RawReading) (*pipeline.IngestResult, error) {
	f.lastRaw = raw
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestRouter(ingestor Ingestor) *Router {
	logger := zap.NewNop()
	router := NewRouter(logger)
	router.RegisterReadingRoutes(NewReadingHandler(ingestor, logger))
	return router
}

func TestSubmitReading_Success(t *testing.T) {
	ingestor := &fakeIngestor{result: &pipeline.IngestResult{Accepted: true, Emergency: true}}
	router := newTestRouter(ingestor)

	body := `{"deviceId":"device-123","heartRate":120,"spO2":97,"location":{"latitude":31.23,"longitude":121.47}}`
	req := httptest.NewRequest(http.MethodPost, "/api/readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp pipeline.IngestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Emergency)

	require.NotNil(t, ingestor.lastRaw)
	assert.Equal(t, "device-123", ingestor.lastRaw.DeviceID)
	require.NotNil(t, ingestor.lastRaw.HeartRate)
	assert.Equal(t, 120, *ingestor.lastRaw.HeartRate)
}

func TestSubmitReading_ValidationError(t *testing.T) {
	ingestor := &fakeIngestor{err: &pipeline.ValidationError{Field: "heartRate", Message: "is required"}}
	router := newTestRouter(ingestor)

	body := `{"deviceId":"device-123","spO2":97,"location":{"latitude":31.23,"longitude":121.47}}`
	req := httptest.NewRequest(http.MethodPost, "/api/readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "heartRate")
}

func TestSubmitReading_MalformedBody(t *testing.T) {
	router := newTestRouter(&fakeIngestor{})

	for _, body := range []string{"", "{not json"} {
		req := httptest.NewRequest(http.MethodPost, "/api/readings", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}

func TestSubmitReading_InternalError(t *testing.T) {
	ingestor := &fakeIngestor{err: fmt.Errorf("failed to save reading: connection refused")}
	router := newTestRouter(ingestor)

	body := `{"deviceId":"device-123","heartRate":75,"spO2":98,"location":{"latitude":31.23,"longitude":121.47}}`
	req := httptest.NewRequest(http.MethodPost, "/api/readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
}

func TestSubmitReading_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(&fakeIngestor{})

	req := httptest.NewRequest(http.MethodGet, "/api/readings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(&fakeIngestor{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}
