package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID keeps an incoming X-Request-Id or assigns a new one, and echoes it in the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// statusRecorder remembers the status code the handler wrote, so the
// request can be logged at a matching level.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write without a prior WriteHeader implies 200.
func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

type requestLogEntry struct {
	ip         string
	method     string
	url        string
	proto      string
	requestID  string
	durationMS float64
	statusCode int
}

func (e requestLogEntry) userAttr() slog.Attr {
	return slog.Group("user", "ip", e.ip)
}

func (e requestLogEntry) requestAttr() slog.Attr {
	return slog.Group("request",
		"id", e.requestID,
		"proto", e.proto,
		"method", e.method,
		"url", e.url,
		"duration_ms", e.durationMS,
		"status_code", e.statusCode,
	)
}

// LogRequest is middleware that logs every request once it completes,
// at error for 5xx, warn for 4xx and info otherwise.
func (s *Server) LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry := requestLogEntry{
			ip:        r.RemoteAddr,
			method:    r.Method,
			url:       r.URL.String(),
			proto:     r.Proto,
			requestID: RequestIDFromContext(r.Context()),
		}

		recorder := &statusRecorder{ResponseWriter: w}

		start := time.Now()
		next.ServeHTTP(recorder, r)

		entry.durationMS = float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)
		entry.statusCode = recorder.status

		switch {
		case recorder.status >= 500:
			s.logger.Error("Request", entry.userAttr(), entry.requestAttr())
		case recorder.status >= 400:
			s.logger.Warn("Request", entry.userAttr(), entry.requestAttr())
		default:
			s.logger.Info("Request", entry.userAttr(), entry.requestAttr())
		}
	})
}

// Recoverer turns a handler panic into a logged 500. http.ErrAbortHandler
// is re-raised so the server aborts the response as intended.
func (s *Server) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				s.logger.Error("Internal Error in HTTP handler",
					"request_id", RequestIDFromContext(r.Context()),
					"error", rvr)
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
