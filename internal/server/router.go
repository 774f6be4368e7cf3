package server

import (
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evanoh/chatrelay/internal/metrics"
	"github.com/evanoh/chatrelay/internal/proxy"
	"github.com/evanoh/chatrelay/internal/worker"
)

// maxRequestBody caps inbound completion request bodies.
const maxRequestBody = 8 << 20 // 8 MiB

// Router exposes the gateway's HTTP surface:
//
//	POST {basePath}/v1/chat/completions   relay to the worker
//	GET  {basePath}/healthz               supervisor status snapshot
//	GET  /metrics                          Prometheus metrics (optional)
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup          *worker.Supervisor
	fw           *proxy.Forwarder
	basePath     string
	serveMetrics bool
}

// NewRouter constructs a Router relaying to the given supervisor's worker.
func NewRouter(sup *worker.Supervisor, fw *proxy.Forwarder, basePath string) *Router {
	return &Router{sup: sup, fw: fw, basePath: sanitizeBase(basePath)}
}

// EnableMetrics mounts GET /metrics on the returned handler.
func (r *Router) EnableMetrics() { r.serveMetrics = true }

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST(proxy.CompletionsPath, r.handleCompletions)
	group.GET("/healthz", r.handleHealth)
	if r.serveMetrics {
		g.GET("/metrics", gin.WrapH(metrics.Handler()))
	}
	return g
}

// NewServer returns an HTTP server for addr using this router. The write
// timeout is left unset: a forward may legitimately take the proxy's full
// per-request timeout.
func NewServer(addr string, r *Router) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleCompletions(c *gin.Context) {
	if !r.sup.Ready() {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "worker not ready (state: " + r.sup.State().String() + ")"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "failed to read request body: " + err.Error()})
		return
	}
	if !validCompletionBody(body) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "request body must be a JSON object"})
		return
	}

	res, err := r.fw.Forward(c.Request.Context(), body)
	if err != nil {
		status, msg := mapForwardError(err)
		writeJSON(c, status, errorResp{Error: msg})
		return
	}
	c.Data(res.StatusCode, "application/json", res.Body)
}

func (r *Router) handleHealth(c *gin.Context) {
	st := r.sup.Snapshot()
	status := http.StatusOK
	if st.State != worker.StateReady {
		status = http.StatusServiceUnavailable
	}
	writeJSON(c, status, st)
}

// mapForwardError translates the proxy error taxonomy into the 5xx surface
// presented to callers.
func mapForwardError(err error) (int, string) {
	var perr *proxy.Error
	if errors.As(err, &perr) {
		switch perr.Kind {
		case proxy.KindForward:
			if isTimeout(perr.Err) {
				return http.StatusGatewayTimeout, perr.Error()
			}
			return http.StatusBadGateway, perr.Error()
		case proxy.KindDecode:
			return http.StatusBadGateway, perr.Error()
		}
	}
	return http.StatusInternalServerError, "unexpected error forwarding to worker"
}

func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
