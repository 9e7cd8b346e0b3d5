package server

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func withLogging(logger *log.Logger, clock func() time.Time, next http.Handler) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := clock()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger.Printf("REQ %s %s id=%s From=%s status=%d bytes=%d in %s",
			r.Method, r.URL.String(), middleware.GetReqID(r.Context()), r.RemoteAddr, status, ww.BytesWritten(), clock().Sub(start))
	})
}
