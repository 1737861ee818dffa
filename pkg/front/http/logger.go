package http

import (
	nethttp "net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// statusWriter remembers the status code written through it
type statusWriter struct {
	nethttp.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func Logger(handler nethttp.Handler, name string, verbose bool) nethttp.Handler {
	return nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		t0 := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: nethttp.StatusOK}
		handler.ServeHTTP(sw, r)
		if verbose {
			log.WithFields(log.Fields{
				"handler":  name,
				"method":   r.Method,
				"uri":      r.RequestURI,
				"status":   sw.status,
				"duration": time.Since(t0),
			}).Info("http request")
		}
	})
}
