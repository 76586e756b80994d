package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Log interface for logging
type Log interface {
	Info(string, ...zap.Field)
}

type RequestLogger struct {
	log Log
}

func NewRequestLogger(log Log) *RequestLogger {
	return &RequestLogger{log: log}
}

// Handler logs method, URI, status and duration of every request.
func (m *RequestLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.log.Info("request completed",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
