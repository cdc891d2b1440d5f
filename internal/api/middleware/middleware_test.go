package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("wildcard by default", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/listings/search", nil)
		req.Header.Set("Origin", "https://map.example.com")
		rec := httptest.NewRecorder()

		CORSMiddleware(okHandler(`{}`)).ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("explicit allow list echoes origin", func(t *testing.T) {
		t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://map.example.com")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://map.example.com")
		rec := httptest.NewRecorder()

		CORSMiddleware(okHandler(`{}`)).ServeHTTP(rec, req)

		assert.Equal(t, "https://map.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("preflight short circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/listings/search", nil)
		rec := httptest.NewRecorder()

		CORSMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("preflight reached handler")
		})).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestCompression(t *testing.T) {
	body := `{"type":"FeatureCollection","features":[]}`

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	Compression(okHandler(body)).ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, body, string(decoded))

	plain := httptest.NewRecorder()
	Compression(okHandler(body)).ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Equal(t, body, plain.Body.String())
}

func TestLoggingAndObservabilityCaptureStatus(t *testing.T) {
	handler := ObservabilityMiddleware(nil)(LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}
