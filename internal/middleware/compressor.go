package middleware

import (
	"compress/gzip"
	"net/http"
	"strings"
)

// CompressResponseMiddleware gzips the response body when the client accepts
// it. Catalog listings are the only routes large enough to bother with.
func CompressResponseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// By default set the original http.ResponseWriter
		ow := w

		acceptEncoding := r.Header.Get("Accept-Encoding")
		if strings.Contains(acceptEncoding, "gzip") {
			cw := newGzipWriter(w)
			ow = cw
			defer cw.Close()
		}

		// Transfer control to the handler
		next.ServeHTTP(ow, r)
	})
}

type gzipWriter struct {
	http.ResponseWriter
	zw *gzip.Writer
}

func newGzipWriter(w http.ResponseWriter) *gzipWriter {
	w.Header().Set("Content-Encoding", "gzip")
	return &gzipWriter{
		ResponseWriter: w,
		zw:             gzip.NewWriter(w),
	}
}

func (g *gzipWriter) Write(p []byte) (int, error) {
	return g.zw.Write(p)
}

func (g *gzipWriter) Close() error {
	return g.zw.Close()
}
