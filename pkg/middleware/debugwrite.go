package middleware

import (
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"sync/atomic"
	"time"
)

// DebugRequests logs every request with its status and timing, tagging webhook
// deliveries with their topic and shop headers, and flags handlers that call
// WriteHeader twice. Enable by setting DEBUG_HTTP=1 (or true/yes).
func DebugRequests() func(http.Handler) http.Handler {
	v := strings.ToLower(os.Getenv("DEBUG_HTTP"))
	if v == "" || !(strings.HasPrefix(v, "1") || strings.HasPrefix(v, "t") || strings.HasPrefix(v, "y")) {
		return func(next http.Handler) http.Handler { return next }
	}
	log.Println("debug request logging enabled")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dw := &dwrapper{ResponseWriter: w, method: r.Method, path: r.URL.Path}
			start := time.Now()
			next.ServeHTTP(dw, r)
			dur := time.Since(start).Round(time.Millisecond)
			if topic := r.Header.Get("X-Shopify-Topic"); topic != "" {
				log.Printf("%s %s -> %d (%s) topic=%s shop=%s", r.Method, r.URL.Path, dw.status(), dur, topic, r.Header.Get("X-Shopify-Shop-Domain"))
				return
			}
			log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, dw.status(), dur)
		})
	}
}

type dwrapper struct {
	http.ResponseWriter
	wrote  int32
	method string
	path   string
	code   int
}

func (d *dwrapper) WriteHeader(code int) {
	if atomic.CompareAndSwapInt32(&d.wrote, 0, 1) {
		d.code = code
		d.ResponseWriter.WriteHeader(code)
		return
	}
	log.Printf("DOUBLE WriteHeader: %s %s first=%d second=%d\n%s", d.method, d.path, d.code, code, debug.Stack())
}

func (d *dwrapper) Write(b []byte) (int, error) {
	if atomic.LoadInt32(&d.wrote) == 0 {
		d.WriteHeader(http.StatusOK)
	}
	return d.ResponseWriter.Write(b)
}

func (d *dwrapper) status() int {
	if atomic.LoadInt32(&d.wrote) == 0 {
		return http.StatusOK
	}
	return d.code
}
