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

func TestCompressResponseMiddleware(t *testing.T) {
	payload := `[{"barcode":"4901","name":"Cola","price":"3.50"}]`
	handler := CompressResponseMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))

	t.Run("gzips when the client accepts it", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v0/products", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		zr, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		defer zr.Close()
		body, err := io.ReadAll(zr)
		require.NoError(t, err)
		assert.Equal(t, payload, string(body))
	})

	t.Run("passes through otherwise", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v0/products", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, payload, w.Body.String())
	})
}
