package web

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogRequestMiddleware logs every completed api request with the client
// address, honouring forwarding headers only from trusted proxies.
type LogRequestMiddleware struct {
	logger          zerolog.Logger
	excludePrefixes []string
	trustedProxies  []string
	next            http.Handler
}

func NewLogRequestMiddleware(logger zerolog.Logger, trustedProxies, exclude []string, next http.Handler) *LogRequestMiddleware {
	return &LogRequestMiddleware{
		logger:          logger,
		excludePrefixes: exclude,
		trustedProxies:  trustedProxies,
		next:            next,
	}
}

func (mw *LogRequestMiddleware) remoteAddr(req *http.Request) string {
	remoteHost, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	trusted := false
	for _, addr := range mw.trustedProxies {
		if addr == remoteHost {
			trusted = true
			break
		}
	}
	if !trusted {
		return remoteHost
	}
	if realIP := req.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
	}
	return remoteHost
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (mw *LogRequestMiddleware) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	for _, prefix := range mw.excludePrefixes {
		if strings.HasPrefix(req.URL.Path, prefix) {
			mw.next.ServeHTTP(rw, req)
			return
		}
	}
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
	mw.next.ServeHTTP(rec, req)
	mw.logger.Info().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("remote", mw.remoteAddr(req)).
		Int("status", rec.status).
		Dur("latency", time.Since(start)).
		Msg("completed handling request")
}
