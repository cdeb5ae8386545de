package httpd

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/influxdata/httprouter"
	"github.com/influxdata/kflow/expvar"
)

// statistics gathered by the httpd package.
const (
	statRequest     = "req"        // Number of HTTP requests served
	statPingRequest = "ping_req"   // Number of ping requests served
	statClientError = "client_err" // Number of responses with a 4xx status
	statServerError = "server_err" // Number of responses with a 5xx status
	statPanic       = "panics"     // Number of handlers that panicked
)

const BasePath = "/kflow/v1"

// Route is a single HTTP endpoint.
// Route parameters are read with httprouter.ParamsFromContext.
type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
	// NoJSON skips the default JSON content type.
	NoJSON bool
	// NoGzip disables response compression for the route.
	NoGzip bool
	// Raw routes are not prefixed with BasePath.
	Raw bool
}

// Handler represents an HTTP handler for the kflow API server.
type Handler struct {
	mu     sync.RWMutex
	router *httprouter.Router
	routes map[string]Route

	allowGzip      bool
	loggingEnabled bool

	Version string

	diag    Diagnostic
	statMap *expvar.Map
}

// NewHandler returns a new instance of handler with the ping and route listing endpoints.
func NewHandler(loggingEnabled, allowGzip bool, statMap *expvar.Map, d Diagnostic) *Handler {
	h := &Handler{
		routes:         make(map[string]Route),
		allowGzip:      allowGzip,
		loggingEnabled: loggingEnabled,
		diag:           d,
		statMap:        statMap,
	}
	h.router = h.newRouter()

	h.AddRoutes([]Route{
		{
			Name:        "ping",
			Method:      "GET",
			Pattern:     "/ping",
			HandlerFunc: h.servePing,
		},
		{
			Name:        "ping-head",
			Method:      "HEAD",
			Pattern:     "/ping",
			HandlerFunc: h.servePing,
		},
		{
			// Display current API routes
			Name:        "routes",
			Method:      "GET",
			Pattern:     "/routes",
			HandlerFunc: h.serveRoutes,
		},
		{
			Name:        "debug/vars",
			Method:      "GET",
			Pattern:     "/debug/vars",
			HandlerFunc: h.serveVars,
		},
	})
	return h
}

func (h *Handler) newRouter() *httprouter.Router {
	r := httprouter.New()
	r.HandleMethodNotAllowed = true
	r.NotFound = jsonContent(http.HandlerFunc(serve404))
	r.MethodNotAllowed = jsonContent(http.HandlerFunc(serve405))
	return r
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

func (r Route) fullPattern() string {
	if r.Raw {
		return r.Pattern
	}
	return BasePath + r.Pattern
}

func (h *Handler) AddRoutes(routes []Route) error {
	for _, r := range routes {
		if err := h.AddRoute(r); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) AddRoute(r Route) error {
	if len(r.Pattern) == 0 || r.Pattern[0] != '/' {
		return fmt.Errorf("route patterns must begin with a '/' %s", r.Pattern)
	}
	if r.HandlerFunc == nil {
		return fmt.Errorf("route %s %s does not have a handler function", r.Method, r.Pattern)
	}
	switch r.Method {
	case "GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS":
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	key := routeKey(r.Method, r.fullPattern())
	if _, ok := h.routes[key]; ok {
		return fmt.Errorf("route %s already exists", key)
	}
	// httprouter panics on conflicting wildcards.
	if err := h.register(h.router, r); err != nil {
		return err
	}
	h.routes[key] = r
	return nil
}

func (h *Handler) register(router *httprouter.Router, r Route) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("invalid route %s %s: %v", r.Method, r.fullPattern(), rec)
		}
	}()
	router.Handler(r.Method, r.fullPattern(), h.wrap(r))
	return nil
}

// DelRoutes removes routes from the handler. Routes that do not exist are ignored.
// httprouter cannot deregister a route so the router is rebuilt.
func (h *Handler) DelRoutes(routes []Route) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range routes {
		delete(h.routes, routeKey(r.Method, r.fullPattern()))
	}
	router := h.newRouter()
	for _, r := range h.routes {
		// Routes were valid when added.
		_ = h.register(router, r)
	}
	h.router = router
}

// wrap applies the filters shared by all routes.
func (h *Handler) wrap(r Route) http.Handler {
	var handler http.Handler = r.HandlerFunc
	if !r.NoJSON {
		handler = jsonContent(handler)
	}
	if h.allowGzip && !r.NoGzip {
		handler = gzipFilter(handler)
	}
	handler = versionHeader(handler, h)
	handler = cors(handler)
	handler = requestID(handler)
	handler = h.statusStats(handler)
	if h.loggingEnabled {
		handler = logHandler(handler, h.diag)
	}
	return recovery(handler, h) // make sure recovery is always last
}

// ServeHTTP responds to HTTP request to the handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.statMap.Add(statRequest, 1)
	h.mu.RLock()
	router := h.router
	h.mu.RUnlock()
	router.ServeHTTP(w, r)
}

// serveRoutes returns a list of all routes and their methods
func (h *Handler) serveRoutes(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	routes := make(map[string][]string)
	for _, rt := range h.routes {
		p := rt.fullPattern()
		routes[p] = append(routes[p], rt.Method)
	}
	h.mu.RUnlock()
	for _, methods := range routes {
		sort.Strings(methods)
	}
	w.Write(MarshalJSON(routes, true))
}

func (h *Handler) serveVars(w http.ResponseWriter, r *http.Request) {
	w.Write(MarshalJSON(h.statMap.Values(), true))
}

// servePing returns a simple response to let the client know the server is running.
func (h *Handler) servePing(w http.ResponseWriter, r *http.Request) {
	h.statMap.Add(statPingRequest, 1)
	w.WriteHeader(http.StatusNoContent)
}

// serve404 returns an a formated 404 error
func serve404(w http.ResponseWriter, r *http.Request) {
	HttpError(w, "Not Found", true, http.StatusNotFound)
}

func serve405(w http.ResponseWriter, r *http.Request) {
	HttpError(w, "Method Not Allowed", true, http.StatusMethodNotAllowed)
}

// MarshalJSON will marshal v to JSON. Pretty prints if pretty is true.
func MarshalJSON(v interface{}, pretty bool) []byte {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "    ")
	} else {
		b, err = json.Marshal(v)
	}

	if err != nil {
		b, _ = json.Marshal(errResponse{Error: err.Error()})
	}
	return b
}

type errResponse struct {
	Error string `json:"error"`
}

// HttpError writes an error to the client in a standard format.
func HttpError(w http.ResponseWriter, err string, pretty bool, code int) {
	w.WriteHeader(code)
	w.Write(MarshalJSON(errResponse{Error: err}, pretty))
}

// Filters and filter helpers

type gzipResponseWriter struct {
	io.Writer
	http.ResponseWriter
}

func (w gzipResponseWriter) Write(b []byte) (int, error) {
	return w.Writer.Write(b)
}

func (w gzipResponseWriter) Flush() {
	w.Writer.(*gzip.Writer).Flush()
}

// determines if the client can accept compressed responses, and encodes accordingly
func gzipFilter(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			inner.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		defer gz.Close()
		gzw := gzipResponseWriter{Writer: gz, ResponseWriter: w}
		inner.ServeHTTP(gzw, r)
	})
}

func jsonContent(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		inner.ServeHTTP(w, r)
	})
}

// versionHeader adds the X-Kflow-Version header to outgoing responses.
func versionHeader(inner http.Handler, h *Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-Kflow-Version", h.Version)
		inner.ServeHTTP(w, r)
	})
}

// cors responds to incoming requests and adds the appropriate cors headers
func cors(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set(`Access-Control-Allow-Origin`, origin)
			w.Header().Set(`Access-Control-Allow-Methods`, strings.Join([]string{
				`DELETE`,
				`GET`,
				`OPTIONS`,
				`POST`,
				`PUT`,
				`PATCH`,
			}, ", "))

			w.Header().Set(`Access-Control-Allow-Headers`, strings.Join([]string{
				`Accept`,
				`Accept-Encoding`,
				`Content-Length`,
				`Content-Type`,
				`X-HTTP-Method-Override`,
			}, ", "))
		}

		if r.Method == "OPTIONS" {
			return
		}

		inner.ServeHTTP(w, r)
	})
}

func requestID(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Request-Id") == "" {
			r.Header.Set("Request-Id", uuid.New().String())
		}
		w.Header().Set("Request-Id", r.Header.Get("Request-Id"))

		inner.ServeHTTP(w, r)
	})
}

func (h *Handler) statusStats(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := newResponseLogger(w)
		inner.ServeHTTP(l, r)
		switch s := l.Status(); {
		case s >= 500:
			h.statMap.Add(statServerError, 1)
		case s >= 400:
			h.statMap.Add(statClientError, 1)
		}
	})
}

func logHandler(inner http.Handler, d Diagnostic) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		l := newResponseLogger(w)
		inner.ServeHTTP(l, r)
		d.HTTP(
			r.Host,
			start,
			r.Method,
			r.URL.RequestURI(),
			r.Proto,
			l.Status(),
			r.Referer(),
			r.UserAgent(),
			r.Header.Get("Request-Id"),
			time.Since(start),
		)
	})
}

func recovery(inner http.Handler, h *Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := newResponseLogger(w)
		defer func() {
			if err := recover(); err != nil {
				h.statMap.Add(statPanic, 1)
				h.diag.RecoveryError(
					"encountered panic",
					fmt.Sprintf("%v\n%s", err, debug.Stack()),
					r.Host,
					r.Method,
					r.URL.RequestURI(),
				)
				if !l.written {
					HttpError(w, "internal server error", false, http.StatusInternalServerError)
				}
			}
		}()
		inner.ServeHTTP(l, r)
	})
}

// responseLogger records the status written by a handler.
type responseLogger struct {
	w       http.ResponseWriter
	status  int
	written bool
}

func newResponseLogger(w http.ResponseWriter) *responseLogger {
	return &responseLogger{w: w}
}

func (l *responseLogger) Header() http.Header {
	return l.w.Header()
}

func (l *responseLogger) Write(b []byte) (int, error) {
	if !l.written {
		l.WriteHeader(http.StatusOK)
	}
	return l.w.Write(b)
}

func (l *responseLogger) WriteHeader(s int) {
	if l.written {
		return
	}
	l.written = true
	l.status = s
	l.w.WriteHeader(s)
}

func (l *responseLogger) Flush() {
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
}

func (l *responseLogger) Status() int {
	if l.status == 0 {
		// This can happen if we never actually write data, but only set response headers.
		l.status = http.StatusOK
	}
	return l.status
}
